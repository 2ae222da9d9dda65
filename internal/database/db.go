package database

import (
	"fmt"
	"time"

	"estimator/internal/config"
	"estimator/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection opens the postgres pool and migrates the schema.
func NewConnection(cfg config.PostgresConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := Migrate(db); err != nil {
		log.Warn("failed to auto-migrate models", zap.Error(err))
	}
	return db, nil
}

// Migrate creates or updates every table of the estimate schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Work{},
		&model.SubWork{},
		&model.LineItem{},
		&model.Rate{},
		&model.MeasurementRow{},
		&model.RateAnalysis{},
		&model.RateAnalysisEntry{},
		&model.ApprovalWorkflow{},
		&model.ApprovalHistoryEntry{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
