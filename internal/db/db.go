package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/guestboard/internal/models"
)

// Open returns a GORM connection for a "postgres://" or "sqlite://" URL and
// migrates the record table.
func Open(dbURL string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch {
	case strings.HasPrefix(dbURL, "postgres://"):
		// pgx accepts the full URL as a DSN.
		dialector = postgres.Open(dbURL)
		log.Info("connecting to postgres")
	case strings.HasPrefix(dbURL, "sqlite://"):
		dsn := strings.TrimPrefix(dbURL, "sqlite://")
		dialector = sqlite.Open(dsn)
		log.Info("connecting to sqlite", zap.String("path", dsn))
	default:
		return nil, fmt.Errorf("unsupported database url %q", dbURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Be quiet by default
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := db.AutoMigrate(&models.Record{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("database connection established")
	return db, nil
}
