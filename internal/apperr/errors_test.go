// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		want string
	}{
		{"not found", NotFound("task", "t1"), ErrNotFound, "not_found"},
		{"invalid state", &InvalidStateError{TaskID: "t1", Op: "complete", Actual: "OPEN", Expected: []string{"ASSIGNED"}}, ErrInvalidState, "invalid_state"},
		{"forbidden", &ForbiddenError{ActorID: "u1", Entity: "task", ID: "t1", Reason: "not the poster"}, ErrForbidden, "forbidden"},
		{"validation", Invalid("title", "title is required"), ErrValidation, "validation"},
		{"persistence", Persistence("save task", errors.New("disk full")), ErrPersistence, "persistence"},
		{"conflict", fmt.Errorf("save: %w", ErrConflict), ErrConflict, "conflict"},
		{"invariant", &InvariantError{TaskID: "t1", Violation: "poster and worker must differ"}, ErrInvariant, "invariant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}

	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "", Kind(errors.New("plain")))
}

func TestInvalidStateErrorMessage(t *testing.T) {
	err := &InvalidStateError{TaskID: "t1", Op: "cancel", Actual: "COMPLETED", Expected: []string{"OPEN", "ASSIGNED"}}
	assert.Equal(t, "cannot cancel task t1: status must be OPEN or ASSIGNED, but was: COMPLETED", err.Error())

	var target *InvalidStateError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &target)
	assert.Equal(t, "COMPLETED", target.Actual)
}

func TestPersistence(t *testing.T) {
	assert.NoError(t, Persistence("op", nil))

	cause := errors.New("connection reset")
	err := Persistence("find task", cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "find task")

	// Typed errors keep their kind.
	nf := NotFound("user", "u9")
	assert.Same(t, nf, Persistence("find user", nf))
}
