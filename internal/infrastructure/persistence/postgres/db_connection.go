// Package postgres provides the GORM-backed persistence layer.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/domain/models"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// ====== Connection Management ======

// NewConnection opens the database, configures the pool, and verifies
// connectivity with a short ping.
func NewConnection(cfg *config.DatabaseConfig, log logger.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), gormCfg)
	if err != nil {
		return nil, ccserrors.ErrDatabaseConnectionFailed(err.Error())
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, ccserrors.ErrDatabaseConnectionFailed(err.Error())
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxConnLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, ccserrors.ErrDatabaseConnectionFailed(err.Error())
	}

	log.Info(ctx, "database connection established",
		logger.String("host", cfg.Host),
		logger.Int("max_open_conns", cfg.MaxConns),
	)
	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Companion{},
		&models.Session{},
		&models.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping verifies the connection is still alive. Used by the health handler.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
