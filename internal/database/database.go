// Package database manages the PostgreSQL connection and schema migration.
package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mailmind/mailmind-backend/internal/models"
)

// Connection pool configuration
const (
	DefaultMaxIdleConns    = 10
	DefaultMaxOpenConns    = 100
	DefaultConnMaxLifetime = time.Hour
	DefaultConnMaxIdleTime = 10 * time.Minute
)

// Connect establishes a connection to the PostgreSQL database. appEnv is
// passed in explicitly so this package never reads the environment.
func Connect(databaseURL, appEnv string) (*gorm.DB, error) {
	if appEnv == "production" {
		if err := validateSSLMode(databaseURL); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := configureConnectionPool(db); err != nil {
		return nil, err
	}

	slog.Info("Connected to database successfully")
	return db, nil
}

// validateSSLMode ensures SSL is enabled in production
func validateSSLMode(databaseURL string) error {
	if strings.Contains(databaseURL, "sslmode=disable") {
		return fmt.Errorf("SSL mode cannot be disabled in production")
	}
	return nil
}

// configureConnectionPool sets up connection pool limits
func configureConnectionPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(DefaultMaxIdleConns)
	sqlDB.SetMaxOpenConns(DefaultMaxOpenConns)
	sqlDB.SetConnMaxLifetime(DefaultConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(DefaultConnMaxIdleTime)

	return nil
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.UsageLog{},
		&models.EmailLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
