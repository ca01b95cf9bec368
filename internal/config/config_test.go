// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-User-ID", cfg.Server.IdentityHeader)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestNewConfig_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  host: db.internal
  port: 5433
  username: crowd
  password: secret
  database: crowdserve
server:
  port: 9090
  allowed_origins: ["https://crowdserve.example"]
  shutdown_grace: 5s
log:
  level: debug
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://crowdserve.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownGrace)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "host=db.internal port=5433 user=crowd password=secret dbname=crowdserve sslmode=disable", cfg.Database.GetDSN())
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CROWDSERVE_SERVER_PORT", "7070")

	// Env vars only override keys viper already knows from the file.
	cfg, err := NewConfig(writeConfig(t, "server:\n  host: 0.0.0.0\n  port: 8081\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"bad driver", "database:\n  driver: mysql\n", "unsupported database driver"},
		{"bad level", "log:\n  level: loud\n", "invalid log level"},
		{"bad port", "server:\n  port: 70000\n", "invalid server port"},
		{"bad ratio", "tracing:\n  sample_ratio: 2\n", "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestGetDSN_SQLite(t *testing.T) {
	memory := DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	assert.Equal(t, "file::memory:?cache=shared", memory.GetDSN())

	file := DatabaseConfig{Driver: "sqlite", Database: "crowdserve.db"}
	assert.Equal(t, "crowdserve.db", file.GetDSN())
}
