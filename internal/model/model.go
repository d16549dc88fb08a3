package model

import "time"

// User is an account allowed to call the API. Role is "admin" or "user".
type User struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username       string    `gorm:"column:username;uniqueIndex" json:"username"`
	Email          string    `gorm:"column:email;uniqueIndex" json:"email"`
	HashedPassword string    `gorm:"column:hashed_password" json:"-"`
	Role           string    `gorm:"column:role;default:user" json:"role"`
	IsActive       bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string { return "users" }

// MonitorPoint is a fixed sensor location. PointCode is the business key
// joining every series table and is immutable after creation.
type MonitorPoint struct {
	ID          uint    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PointCode   string  `gorm:"column:point_code;uniqueIndex" json:"point_code"`
	PointName   string  `gorm:"column:point_name" json:"point_name"`
	DeviceType  string  `gorm:"column:device_type" json:"device_type"`
	Longitude   float64 `gorm:"column:longitude" json:"longitude"`
	Latitude    float64 `gorm:"column:latitude" json:"latitude"`
	Height      float64 `gorm:"column:height" json:"height"`
	BindModelID *string `gorm:"column:bind_model_id" json:"bind_model_id,omitempty"`
}

func (MonitorPoint) TableName() string { return "monitor_points" }

// Measurement is one row of the legacy generic series. MeasurementType is a
// free-text sub-channel ("left-right", "up-down", ...); several rows may
// share (point_code, time) for different channels.
type Measurement struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PointCode       string    `gorm:"column:point_code;index" json:"point_code"`
	Value           float64   `gorm:"column:value" json:"value"`
	Time            time.Time `gorm:"column:time;index" json:"time"`
	MeasurementType string    `gorm:"column:measurement_type" json:"measurement_type,omitempty"`
}

func (Measurement) TableName() string { return "measurements" }

// InstrumentReading is one channel sample of a specialized instrument
// series. The four legacy per-family tables collapse into this one table;
// Family and Channel come from the closed unions in family.go.
type InstrumentReading struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PointCode string    `gorm:"column:point_code;index" json:"point_code"`
	Family    Family    `gorm:"column:family;index" json:"family"`
	Channel   Channel   `gorm:"column:channel" json:"channel"`
	Time      time.Time `gorm:"column:time;index" json:"time"`
	Value     float64   `gorm:"column:value" json:"value"`

	Point MonitorPoint `gorm:"foreignKey:PointCode;references:PointCode" json:"-"`
}

func (InstrumentReading) TableName() string { return "instrument_readings" }
