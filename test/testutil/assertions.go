// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"errors"
	"testing"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertTaskInvariants verifies the worker/status and poster/worker rules
func AssertTaskInvariants(t testing.TB, task *models.Task) {
	t.Helper()
	require.NotNil(t, task)
	assert.Empty(t, task.CheckInvariants(), "task %s (%s) breaks an invariant", task.ID, task.Status)
}

// AssertInvalidState verifies err is an InvalidStateError reporting actual
func AssertInvalidState(t testing.TB, err error, actual models.TaskStatus) {
	t.Helper()
	var ise *apperr.InvalidStateError
	require.True(t, errors.As(err, &ise), "expected InvalidStateError, got %v", err)
	assert.Equal(t, actual.String(), ise.Actual)
}

// AssertKind verifies err carries the given apperr kind label
func AssertKind(t testing.TB, err error, kind string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.Kind(err), "unexpected error: %v", err)
}
