package store

import (
	"context"
	"errors"
	"time"

	"hydro-monitor/internal/hydroerr"
	"hydro-monitor/internal/model"

	"gorm.io/gorm"
)

// MeasurementCreate is the ingest payload for the generic series. A zero
// Time means "use the ingestion time".
type MeasurementCreate struct {
	PointCode       string    `json:"point_code"`
	Value           float64   `json:"value"`
	Time            time.Time `json:"time"`
	MeasurementType string    `json:"measurement_type"`
}

// MeasurementOut is a generic row enriched with the owning point's device
// type, resolved at query time.
type MeasurementOut struct {
	model.Measurement
	DeviceType string `json:"device_type,omitempty"`
}

// LatestMeasurement is one entry of the global latest-per-point snapshot.
type LatestMeasurement struct {
	PointCode  string    `json:"point_code"`
	PointName  string    `json:"point_name"`
	DeviceType string    `json:"device_type"`
	Value      float64   `json:"value"`
	Time       time.Time `json:"time"`
}

// MeasurementStats summarizes the generic series of one point.
type MeasurementStats struct {
	PointCode    string    `json:"point_code"`
	MaxValue     float64   `json:"max_value"`
	MinValue     float64   `json:"min_value"`
	AvgValue     float64   `json:"avg_value"`
	Count        int64     `json:"count"`
	LatestTime   time.Time `json:"latest_time"`
	EarliestTime time.Time `json:"earliest_time"`
}

// CompareResult is the point-to-point comparison of two resolved rows.
type CompareResult struct {
	PointCode     string    `json:"point_code"`
	PointName     string    `json:"point_name"`
	CurrentValue  float64   `json:"current_value"`
	PreviousValue float64   `json:"previous_value"`
	ChangeValue   float64   `json:"change_value"`
	ChangePercent float64   `json:"change_percent"`
	Time          time.Time `json:"time"`
}

// CreateMeasurement appends one generic row after validating that the point
// exists. A zero time defaults to now.
func (s *Store) CreateMeasurement(ctx context.Context, in MeasurementCreate) (*model.Measurement, error) {
	if _, err := s.GetPoint(ctx, in.PointCode); err != nil {
		return nil, err
	}
	m := model.Measurement{
		PointCode:       in.PointCode,
		Value:           in.Value,
		Time:            in.Time,
		MeasurementType: in.MeasurementType,
	}
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	if err := s.orm.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMeasurementsBatch appends many generic rows in one transaction.
// Items referencing an unknown point are skipped, not fatal; the returned
// slice contains exactly the accepted rows.
func (s *Store) CreateMeasurementsBatch(ctx context.Context, items []MeasurementCreate) ([]model.Measurement, error) {
	accepted := make([]model.Measurement, 0, len(items))
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, in := range items {
			var exists int64
			if err := tx.Model(&model.MonitorPoint{}).
				Where("point_code = ?", in.PointCode).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				continue
			}
			m := model.Measurement{
				PointCode:       in.PointCode,
				Value:           in.Value,
				Time:            in.Time,
				MeasurementType: in.MeasurementType,
			}
			if m.Time.IsZero() {
				m.Time = time.Now()
			}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			accepted = append(accepted, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// ListMeasurements returns the point's generic history, newest first.
func (s *Store) ListMeasurements(ctx context.Context, pointCode string, skip, limit int) ([]model.Measurement, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.Measurement
	err := s.orm.WithContext(ctx).
		Where("point_code = ?", pointCode).
		Order("time DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MeasurementsRange returns rows with time in [start, end] inclusive,
// ascending, each enriched with the point's device type.
func (s *Store) MeasurementsRange(ctx context.Context, pointCode string, start, end time.Time) ([]MeasurementOut, error) {
	deviceType := ""
	if p, err := s.GetPoint(ctx, pointCode); err == nil {
		deviceType = p.DeviceType
	} else if !hydroerr.IsNotFound(err) {
		return nil, err
	}

	var rows []model.Measurement
	err := s.orm.WithContext(ctx).
		Where("point_code = ? AND time >= ? AND time <= ?", pointCode, start, end).
		Order("time, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]MeasurementOut, 0, len(rows))
	for _, r := range rows {
		out = append(out, MeasurementOut{Measurement: r, DeviceType: deviceType})
	}
	return out, nil
}

// LatestMeasurement returns the newest generic row for a point. Ties on
// time resolve to the highest id.
func (s *Store) LatestMeasurement(ctx context.Context, pointCode string) (*LatestMeasurement, error) {
	var m model.Measurement
	err := s.orm.WithContext(ctx).
		Where("point_code = ?", pointCode).
		Order("time DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, hydroerr.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	out := &LatestMeasurement{PointCode: m.PointCode, PointName: m.PointCode, Value: m.Value, Time: m.Time}
	if p, perr := s.GetPoint(ctx, pointCode); perr == nil {
		out.PointName = p.PointName
		out.DeviceType = p.DeviceType
	}
	return out, nil
}

// AllLatestMeasurements returns, for every point with generic data, the row
// with the maximum time (max id on ties) joined with the registry row.
// Points without measurements are omitted.
func (s *Store) AllLatestMeasurements(ctx context.Context) ([]LatestMeasurement, error) {
	// latest timestamp per point, then max id among the tied rows
	byTime := s.orm.Model(&model.Measurement{}).
		Select("point_code, MAX(time) AS max_time").
		Group("point_code")
	byID := s.orm.Table("measurements AS m").
		Joins("JOIN (?) AS l ON l.point_code = m.point_code AND l.max_time = m.time", byTime).
		Select("MAX(m.id) AS id").
		Group("m.point_code")

	var out []LatestMeasurement
	err := s.orm.WithContext(ctx).
		Table("measurements AS m").
		Joins("JOIN (?) AS w ON w.id = m.id", byID).
		Joins("JOIN monitor_points p ON p.point_code = m.point_code").
		Select("m.point_code, p.point_name, p.device_type, m.value, m.time").
		Order("m.point_code").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MeasurementStats aggregates the generic series of one point. A point with
// zero rows yields ErrNoData, regardless of whether it is registered.
func (s *Store) MeasurementStats(ctx context.Context, pointCode string) (*MeasurementStats, error) {
	var agg struct {
		MaxValue     *float64
		MinValue     *float64
		AvgValue     *float64
		Count        int64
		LatestTime   *time.Time
		EarliestTime *time.Time
	}
	err := s.orm.WithContext(ctx).Model(&model.Measurement{}).
		Select("MAX(value) AS max_value, MIN(value) AS min_value, AVG(value) AS avg_value, COUNT(id) AS count, MAX(time) AS latest_time, MIN(time) AS earliest_time").
		Where("point_code = ?", pointCode).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	if agg.Count == 0 {
		return nil, hydroerr.ErrNoData
	}
	return &MeasurementStats{
		PointCode:    pointCode,
		MaxValue:     *agg.MaxValue,
		MinValue:     *agg.MinValue,
		AvgValue:     *agg.AvgValue,
		Count:        agg.Count,
		LatestTime:   *agg.LatestTime,
		EarliestTime: *agg.EarliestTime,
	}, nil
}

// CompareMeasurements resolves a current and a previous row and reports the
// change between them. currentTime/previousTime are optional upper bounds;
// without previousTime the previous row is the newest one strictly before
// the current row's time. A previous value of exactly zero yields a zero
// change percentage rather than a division by zero.
func (s *Store) CompareMeasurements(ctx context.Context, pointCode string, currentTime, previousTime *time.Time) (*CompareResult, error) {
	current, err := s.latestAtOrBefore(ctx, pointCode, currentTime, false, time.Time{})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, hydroerr.ErrNoCurrentData
	}
	if err != nil {
		return nil, err
	}

	previous, err := s.latestAtOrBefore(ctx, pointCode, previousTime, previousTime == nil, current.Time)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, hydroerr.ErrNoPreviousData
	}
	if err != nil {
		return nil, err
	}

	change := current.Value - previous.Value
	percent := 0.0
	if previous.Value != 0 {
		percent = change / previous.Value * 100
	}

	res := &CompareResult{
		PointCode:     pointCode,
		PointName:     pointCode,
		CurrentValue:  current.Value,
		PreviousValue: previous.Value,
		ChangeValue:   change,
		ChangePercent: percent,
		Time:          current.Time,
	}
	if p, perr := s.GetPoint(ctx, pointCode); perr == nil {
		res.PointName = p.PointName
	}
	return res, nil
}

// latestAtOrBefore picks the newest row for a point, optionally bounded by
// time <= upper, or strictly before a reference time when strictBefore is
// set and no explicit bound was given.
func (s *Store) latestAtOrBefore(ctx context.Context, pointCode string, upper *time.Time, strictBefore bool, ref time.Time) (*model.Measurement, error) {
	q := s.orm.WithContext(ctx).Where("point_code = ?", pointCode)
	switch {
	case upper != nil:
		q = q.Where("time <= ?", *upper)
	case strictBefore:
		q = q.Where("time < ?", ref)
	}
	var m model.Measurement
	if err := q.Order("time DESC, id DESC").First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
