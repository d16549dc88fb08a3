package store

import (
	"context"
	"errors"
	"time"

	"hydro-monitor/internal/hydroerr"
	"hydro-monitor/internal/model"

	"gorm.io/gorm"
)

// PointUpdate carries a partial update of a monitor point. Nil fields are
// left untouched; PointCode itself is immutable.
type PointUpdate struct {
	PointName   *string  `json:"point_name"`
	DeviceType  *string  `json:"device_type"`
	Longitude   *float64 `json:"longitude"`
	Latitude    *float64 `json:"latitude"`
	Height      *float64 `json:"height"`
	BindModelID *string  `json:"bind_model_id"`
}

// PointDetail is a point enriched with its latest generic measurement and
// the number of generic rows recorded for it.
type PointDetail struct {
	model.MonitorPoint
	LatestValue *float64   `json:"latest_value"`
	LatestTime  *time.Time `json:"latest_time"`
	DataCount   int64      `json:"data_count"`
}

// CreatePoint registers a new monitor point.
func (s *Store) CreatePoint(ctx context.Context, p *model.MonitorPoint) error {
	if err := s.orm.WithContext(ctx).
		Where("point_code = ?", p.PointCode).
		First(&model.MonitorPoint{}).Error; err == nil {
		return hydroerr.ErrPointCodeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.orm.WithContext(ctx).Create(p).Error
}

// GetPoint returns the point with the given business code.
func (s *Store) GetPoint(ctx context.Context, pointCode string) (*model.MonitorPoint, error) {
	var p model.MonitorPoint
	err := s.orm.WithContext(ctx).Where("point_code = ?", pointCode).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, hydroerr.ErrPointNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPoints returns all points ordered by primary key.
func (s *Store) ListPoints(ctx context.Context) ([]model.MonitorPoint, error) {
	var points []model.MonitorPoint
	if err := s.orm.WithContext(ctx).Order("id").Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

// UpdatePoint applies the provided fields to an existing point.
func (s *Store) UpdatePoint(ctx context.Context, pointCode string, upd PointUpdate) (*model.MonitorPoint, error) {
	p, err := s.GetPoint(ctx, pointCode)
	if err != nil {
		return nil, err
	}
	if upd.PointName != nil {
		p.PointName = *upd.PointName
	}
	if upd.DeviceType != nil {
		p.DeviceType = *upd.DeviceType
	}
	if upd.Longitude != nil {
		p.Longitude = *upd.Longitude
	}
	if upd.Latitude != nil {
		p.Latitude = *upd.Latitude
	}
	if upd.Height != nil {
		p.Height = *upd.Height
	}
	if upd.BindModelID != nil {
		p.BindModelID = upd.BindModelID
	}
	if err := s.orm.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePoint removes a point. Deletion is restricted while instrument
// readings still reference the code; legacy generic measurements do not
// block deletion and are left orphaned, matching the historic behavior of
// the measurements table.
func (s *Store) DeletePoint(ctx context.Context, pointCode string) error {
	p, err := s.GetPoint(ctx, pointCode)
	if err != nil {
		return err
	}
	var readings int64
	if err := s.orm.WithContext(ctx).Model(&model.InstrumentReading{}).
		Where("point_code = ?", pointCode).Count(&readings).Error; err != nil {
		return err
	}
	if readings > 0 {
		return hydroerr.ErrPointInUse
	}
	return s.orm.WithContext(ctx).Delete(p).Error
}

// PointDetail composes the registry row with latest-value and row-count
// enrichment from the generic series.
func (s *Store) PointDetail(ctx context.Context, pointCode string) (*PointDetail, error) {
	p, err := s.GetPoint(ctx, pointCode)
	if err != nil {
		return nil, err
	}
	detail := &PointDetail{MonitorPoint: *p}

	var latest model.Measurement
	err = s.orm.WithContext(ctx).
		Where("point_code = ?", pointCode).
		Order("time DESC, id DESC").
		First(&latest).Error
	switch {
	case err == nil:
		detail.LatestValue = &latest.Value
		detail.LatestTime = &latest.Time
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := s.orm.WithContext(ctx).Model(&model.Measurement{}).
		Where("point_code = ?", pointCode).Count(&detail.DataCount).Error; err != nil {
		return nil, err
	}
	return detail, nil
}
