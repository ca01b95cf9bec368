// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"strings"
	"sync"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/samber/lo"
)

// Strategy is a named task predicate
type Strategy struct {
	Name string
	Keep func(task *models.Task) bool
}

// IsZero reports whether s has no predicate
func (s Strategy) IsZero() bool {
	return s.Keep == nil
}

// Filter returns the tasks s keeps, in input order. tasks is not modified.
func Filter(tasks []*models.Task, s Strategy) []*models.Task {
	return lo.Filter(tasks, func(t *models.Task, _ int) bool {
		return s.Keep(t)
	})
}

// ByStatus keeps tasks in the given status
func ByStatus(name string, status models.TaskStatus) Strategy {
	return Strategy{
		Name: name,
		Keep: func(t *models.Task) bool { return t.Status == status },
	}
}

var (
	OpenTasks      = ByStatus("OpenTaskFilter", models.TaskStatusOpen)
	AssignedTasks  = ByStatus("AssignedTaskFilter", models.TaskStatusAssigned)
	CompletedTasks = ByStatus("CompletedTaskFilter", models.TaskStatusCompleted)
	CancelledTasks = ByStatus("CancelledTaskFilter", models.TaskStatusCancelled)
)

// StrategyByName resolves a status name such as "open" or "ASSIGNED" to its
// strategy.
func StrategyByName(name string) (Strategy, error) {
	switch models.TaskStatus(strings.ToUpper(strings.TrimSpace(name))) {
	case models.TaskStatusOpen:
		return OpenTasks, nil
	case models.TaskStatusAssigned:
		return AssignedTasks, nil
	case models.TaskStatusCompleted:
		return CompletedTasks, nil
	case models.TaskStatusCancelled:
		return CancelledTasks, nil
	default:
		return Strategy{}, apperr.Invalid("status", "unknown status filter: %q", name)
	}
}

// FilterContext applies a replaceable strategy
type FilterContext struct {
	mu       sync.RWMutex
	strategy Strategy
}

// NewFilterContext creates a context using s, or OpenTasks when s is zero
func NewFilterContext(s Strategy) *FilterContext {
	if s.IsZero() {
		s = OpenTasks
	}
	return &FilterContext{strategy: s}
}

// Apply filters tasks with the current strategy
func (c *FilterContext) Apply(tasks []*models.Task) []*models.Task {
	c.mu.RLock()
	s := c.strategy
	c.mu.RUnlock()
	return Filter(tasks, s)
}

// SwitchStrategy replaces the current strategy
func (c *FilterContext) SwitchStrategy(s Strategy) error {
	if s.IsZero() {
		return apperr.Invalid("strategy", "strategy is required")
	}
	c.mu.Lock()
	c.strategy = s
	c.mu.Unlock()
	return nil
}

// CurrentName returns the name of the current strategy
func (c *FilterContext) CurrentName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy.Name
}
