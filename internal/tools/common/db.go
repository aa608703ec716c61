package common

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/database"
	"github.com/allresumeservices/client-intake/internal/observability"
)

// LoadConfigDB loads envFile, validates configuration and opens the database.
// Callers close the database with CloseDB.
func LoadConfigDB(envFile string) (*config.Config, *gorm.DB, error) {
	if err := LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

func CloseDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func Logger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg)
}
