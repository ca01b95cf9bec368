// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"testing"

	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTasks() []*models.Task {
	return []*models.Task{
		{ID: "a", Status: models.TaskStatusOpen},
		{ID: "b", Status: models.TaskStatusAssigned},
		{ID: "c", Status: models.TaskStatusOpen},
		{ID: "d", Status: models.TaskStatusCompleted},
		{ID: "e", Status: models.TaskStatusCancelled},
	}
}

func ids(tasks []*models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilter_Strategies(t *testing.T) {
	tests := []struct {
		strategy Strategy
		name     string
		want     []string
	}{
		{OpenTasks, "OpenTaskFilter", []string{"a", "c"}},
		{AssignedTasks, "AssignedTaskFilter", []string{"b"}},
		{CompletedTasks, "CompletedTaskFilter", []string{"d"}},
		{CancelledTasks, "CancelledTaskFilter", []string{"e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.strategy.Name)
			assert.Equal(t, tt.want, ids(Filter(sampleTasks(), tt.strategy)))
		})
	}
}

func TestFilter_IdempotentAndPure(t *testing.T) {
	input := sampleTasks()

	once := Filter(input, OpenTasks)
	twice := Filter(once, OpenTasks)
	assert.Equal(t, ids(once), ids(twice))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(input), "input must be untouched")
	assert.Empty(t, Filter(nil, OpenTasks))
}

func TestStrategyByName(t *testing.T) {
	for name, want := range map[string]string{
		"open":       "OpenTaskFilter",
		"ASSIGNED":   "AssignedTaskFilter",
		" completed": "CompletedTaskFilter",
		"Cancelled":  "CancelledTaskFilter",
	} {
		s, err := StrategyByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name)
	}

	_, err := StrategyByName("archived")
	assert.Error(t, err)
}

func TestFilterContext(t *testing.T) {
	fc := NewFilterContext(OpenTasks)
	assert.Equal(t, "OpenTaskFilter", fc.CurrentName())
	assert.Equal(t, []string{"a", "c"}, ids(fc.Apply(sampleTasks())))

	require.NoError(t, fc.SwitchStrategy(CompletedTasks))
	assert.Equal(t, "CompletedTaskFilter", fc.CurrentName())
	assert.Equal(t, []string{"d"}, ids(fc.Apply(sampleTasks())))

	err := fc.SwitchStrategy(Strategy{Name: "empty"})
	assert.Error(t, err)
	assert.Equal(t, "CompletedTaskFilter", fc.CurrentName())

	assert.Equal(t, "OpenTaskFilter", NewFilterContext(Strategy{}).CurrentName())
}
