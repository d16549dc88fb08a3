package store

import (
	"context"
	"errors"
	"time"

	"hydro-monitor/internal/hydroerr"
	"hydro-monitor/internal/model"

	"gorm.io/gorm"
)

// ReadingCreate is the ingest payload for one instrument observation.
// Values must carry exactly the channels of the family: both axes for an
// inverted plumb, the single channel otherwise.
type ReadingCreate struct {
	PointCode string
	Time      time.Time
	Values    map[model.Channel]float64
}

// AppendReading stores one observation of a specialized instrument as one
// row per channel, all sharing the observation time, inside a single
// transaction.
func (s *Store) AppendReading(ctx context.Context, family model.Family, in ReadingCreate) ([]model.InstrumentReading, error) {
	if _, err := s.GetPoint(ctx, in.PointCode); err != nil {
		return nil, err
	}
	channels := family.Channels()
	if len(in.Values) != len(channels) {
		return nil, hydroerr.Validationf("family %s expects channels %v", family, channels)
	}
	for ch := range in.Values {
		if !family.Has(ch) {
			return nil, hydroerr.Validationf("channel %s does not belong to family %s", ch, family)
		}
	}

	at := in.Time
	if at.IsZero() {
		at = time.Now()
	}
	rows := make([]model.InstrumentReading, 0, len(channels))
	err := s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range channels {
			r := model.InstrumentReading{
				PointCode: in.PointCode,
				Family:    family,
				Channel:   ch,
				Time:      at,
				Value:     in.Values[ch],
			}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListReadings returns the family's history for a point, newest first.
func (s *Store) ListReadings(ctx context.Context, family model.Family, pointCode string, skip, limit int) ([]model.InstrumentReading, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.InstrumentReading
	err := s.orm.WithContext(ctx).
		Where("point_code = ? AND family = ?", pointCode, family).
		Order("time DESC, id DESC").
		Offset(skip).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestReading returns the newest row of each channel the family reports.
// An empty series yields ErrNoData.
func (s *Store) LatestReading(ctx context.Context, family model.Family, pointCode string) ([]model.InstrumentReading, error) {
	out := make([]model.InstrumentReading, 0, len(family.Channels()))
	for _, ch := range family.Channels() {
		var r model.InstrumentReading
		err := s.orm.WithContext(ctx).
			Where("point_code = ? AND family = ? AND channel = ?", pointCode, family, ch).
			Order("time DESC, id DESC").
			First(&r).Error
		if err == nil {
			out = append(out, r)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, hydroerr.ErrNoData
	}
	return out, nil
}
