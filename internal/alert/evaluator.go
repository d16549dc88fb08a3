// Package alert evaluates threshold rules against the latest value per
// point. Evaluation is stateless and pull-only: nothing is persisted and
// every call recomputes from the snapshot it is handed.
package alert

import "time"

// Alert kinds.
const (
	KindAboveMax = "above-max"
	KindBelowMin = "below-min"
)

// Rule is one caller-supplied threshold rule. A nil Enabled counts as
// enabled; a nil threshold side is not checked.
type Rule struct {
	PointCode string   `json:"point_code" yaml:"point_code"`
	MinValue  *float64 `json:"min_value" yaml:"min_value"`
	MaxValue  *float64 `json:"max_value" yaml:"max_value"`
	Enabled   *bool    `json:"alert_enabled" yaml:"enabled"`
}

func (r Rule) enabled() bool { return r.Enabled == nil || *r.Enabled }

// Latest is the newest value known for a point.
type Latest struct {
	PointName string
	Value     float64
	Time      time.Time
}

// Snapshot maps point_code to its latest value. Points absent from the
// snapshot have no data and are skipped.
type Snapshot map[string]Latest

// Alert is one fired threshold violation.
type Alert struct {
	PointCode    string    `json:"point_code"`
	PointName    string    `json:"point_name"`
	Kind         string    `json:"kind"`
	Threshold    float64   `json:"threshold"`
	CurrentValue float64   `json:"current_value"`
	Time         time.Time `json:"time"`
}

// Evaluate runs every enabled rule against the snapshot. Both sides of a
// rule may fire independently in one pass.
func Evaluate(rules []Rule, snapshot Snapshot) []Alert {
	alerts := make([]Alert, 0)
	for _, rule := range rules {
		if !rule.enabled() {
			continue
		}
		latest, ok := snapshot[rule.PointCode]
		if !ok {
			continue
		}
		name := latest.PointName
		if name == "" {
			name = rule.PointCode
		}
		if rule.MaxValue != nil && latest.Value > *rule.MaxValue {
			alerts = append(alerts, Alert{
				PointCode:    rule.PointCode,
				PointName:    name,
				Kind:         KindAboveMax,
				Threshold:    *rule.MaxValue,
				CurrentValue: latest.Value,
				Time:         latest.Time,
			})
		}
		if rule.MinValue != nil && latest.Value < *rule.MinValue {
			alerts = append(alerts, Alert{
				PointCode:    rule.PointCode,
				PointName:    name,
				Kind:         KindBelowMin,
				Threshold:    *rule.MinValue,
				CurrentValue: latest.Value,
				Time:         latest.Time,
			})
		}
	}
	return alerts
}
