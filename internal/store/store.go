// Package store owns every persisted table: the point registry, the legacy
// generic measurement series, the unified instrument-reading series and the
// user accounts. All queries go through one explicitly constructed Store;
// multi-row writes run inside a single transaction.
package store

import (
	"hydro-monitor/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the sqlite connection.
type Store struct {
	orm *gorm.DB
}

// Open opens the SQLite database using GORM and runs migrations.
func Open(path string) (*Store, error) {
	g, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if err := migrate(g); err != nil {
		_ = closeORM(g)
		return nil, err
	}
	return &Store{orm: g}, nil
}

// migrate ensures the schema for all models exists.
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.MonitorPoint{},
		&model.Measurement{},
		&model.InstrumentReading{},
	)
}

// closeORM closes the underlying SQL DB associated with the GORM connection.
func closeORM(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Close() error { return closeORM(s.orm) }
