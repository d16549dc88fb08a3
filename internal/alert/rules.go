package alert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile mirrors alert_rules.yaml.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a standing rule set from a YAML file. Deployments that
// only pass rules per request don't need one.
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse alert rules %s: %w", path, err)
	}
	for i, r := range f.Rules {
		if r.PointCode == "" {
			return nil, fmt.Errorf("alert rule %d: point_code must be set", i)
		}
	}
	return f.Rules, nil
}
