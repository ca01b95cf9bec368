// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"
	"testing"

	"github.com/crowdserve/crowdserve/internal/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// DatabaseFixture represents a database setup with cleanup
type DatabaseFixture struct {
	DB      *GormDB
	Cleanup func()
}

// UseFreshInMemoryDatabase creates an in-memory SQLite database with GORM
// AutoMigrate applied. Each call gets its own named database, so fixtures in
// parallel tests never see each other's rows. Cleanup is also registered
// with t.
func UseFreshInMemoryDatabase(t testing.TB) *DatabaseFixture {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: fmt.Sprintf("file:test-%s?mode=memory&cache=shared", uuid.New().String()),
	}

	db, err := NewGormDB(cfg)
	require.NoError(t, err, "Failed to create in-memory database")

	err = db.AutoMigrate()
	require.NoError(t, err, "Failed to run migrations on in-memory database")

	cleanup := func() {
		db.Close()
	}
	t.Cleanup(cleanup)

	return &DatabaseFixture{
		DB:      db,
		Cleanup: cleanup,
	}
}
