// Package store opens the embedded governance database and keeps its schema
// current.
package store

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/approval"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/telemetry"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const defaultPath = "careergov.db"

// Open connects to the sqlite database at path and migrates the governance
// tables. TranslateError is required so unique-index collisions surface as
// gorm.ErrDuplicatedKey for the version store's retry loop.
func Open(path string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(path) == "" {
		path = defaultPath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open governance database %q: %w", path, err)
	}

	if err := db.AutoMigrate(
		&versions.Version{},
		&approval.Request{},
		&telemetry.Record{},
	); err != nil {
		return nil, fmt.Errorf("migrate governance tables: %w", err)
	}

	logger.Debug("governance database ready", zap.String("path", path))

	return db, nil
}
