// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/crowdserve/crowdserve/internal/config"
	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetDatabaseLogger()
		log = &l
	})
	return log
}

// GormDB wraps the GORM database connection and hands out the task, user
// and notification stores bound to it.
type GormDB struct {
	db *gorm.DB
}

// NewGormDB creates a new GORM database connection
func NewGormDB(cfg *config.DatabaseConfig) (*GormDB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormLogWriter{}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// A single connection serialises transactions; SQLite has no row locks.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	getLog().Debug().Str("driver", cfg.Driver).Msg("Database connection opened")
	return &GormDB{db: db}, nil
}

// gormLogWriter routes GORM's own messages (slow queries, errors) to the
// database logger.
type gormLogWriter struct{}

func (gormLogWriter) Printf(format string, args ...interface{}) {
	getLog().Warn().Msgf(format, args...)
}

// AutoMigrate runs database migrations
func (db *GormDB) AutoMigrate() error {
	if err := db.db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.Notification{},
	); err != nil {
		return err
	}

	// Databases created before the composite index existed only carry the
	// single-column user_id index.
	if !db.db.Migrator().HasIndex(&models.Notification{}, "idx_notifications_user_created") {
		if err := db.db.Migrator().CreateIndex(&models.Notification{}, "idx_notifications_user_created"); err != nil {
			return fmt.Errorf("failed to create notifications index (user_id, created_at): %w", err)
		}
	}

	return nil
}

// ValidateSchema checks if GORM models match the database schema
func (db *GormDB) ValidateSchema() error {
	var missingTables []string
	var missingColumns []string

	tables := []struct {
		name    string
		model   any
		columns []string
	}{
		{"users", &models.User{}, []string{"id", "display_name", "email", "bio", "created_at"}},
		{"tasks", &models.Task{}, []string{
			"id", "title", "description", "location", "reward", "status",
			"poster_id", "worker_id", "version", "created_at", "updated_at",
		}},
		{"notifications", &models.Notification{}, []string{
			"id", "user_id", "title", "message", "task_id", "created_at", "is_read",
		}},
	}

	for _, table := range tables {
		if !db.db.Migrator().HasTable(table.model) {
			missingTables = append(missingTables, table.name)
			continue
		}
		for _, col := range table.columns {
			if !db.db.Migrator().HasColumn(table.model, col) {
				missingColumns = append(missingColumns, fmt.Sprintf("%s.%s", table.name, col))
			}
		}
	}

	if len(missingTables) > 0 {
		return fmt.Errorf("missing tables: %v\n\nRun 'crowdserve migrate' to create the required tables", missingTables)
	}
	if len(missingColumns) > 0 {
		return fmt.Errorf("missing columns: %v\n\nRun 'crowdserve migrate' to add the required columns", missingColumns)
	}

	return nil
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Tasks returns the task store backed by this connection
func (db *GormDB) Tasks() *TaskRepo {
	return &TaskRepo{db: db.db}
}

// Users returns the user directory backed by this connection
func (db *GormDB) Users() *UserRepo {
	return &UserRepo{db: db.db}
}

// Notifications returns the notification store backed by this connection
func (db *GormDB) Notifications() *NotificationRepo {
	return &NotificationRepo{db: db.db}
}
