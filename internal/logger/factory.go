// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetWorkflowLogger returns a logger for the workflow coordinator
func GetWorkflowLogger() zerolog.Logger {
	return GetLogger("workflow")
}

// GetLifecycleLogger returns a logger for task state transitions
func GetLifecycleLogger() zerolog.Logger {
	return GetLogger("lifecycle")
}

// GetNotificationLogger returns a logger for notification delivery
func GetNotificationLogger() zerolog.Logger {
	return GetLogger("notification")
}

// GetDatabaseLogger returns a logger for database operations
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}
