// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"context"
	"testing"

	"github.com/crowdserve/crowdserve/internal/marketplace/database"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/stretchr/testify/require"
)

// Well-known user ids used across tests
const (
	PosterID  = "u1"
	WorkerID  = "u2"
	RivalID   = "u3"
	UnknownID = "u-unknown"
)

// SampleUsers returns the poster, worker and rival users keyed by id
func SampleUsers() map[string]*models.User {
	return map[string]*models.User{
		PosterID: {ID: PosterID, DisplayName: "U1", Email: "u1@example.com"},
		WorkerID: {ID: WorkerID, DisplayName: "U2", Email: "u2@example.com"},
		RivalID:  {ID: RivalID, DisplayName: "U3", Email: "u3@example.com"},
	}
}

// Marketplace is a migrated in-memory database seeded with SampleUsers
type Marketplace struct {
	DB    *database.GormDB
	Users map[string]*models.User
}

// NewMarketplace creates a fresh database and inserts the sample users
func NewMarketplace(t testing.TB) *Marketplace {
	t.Helper()

	fixture := database.UseFreshInMemoryDatabase(t)
	users := SampleUsers()
	for _, id := range []string{PosterID, WorkerID, RivalID} {
		require.NoError(t, fixture.DB.Users().CreateUser(context.Background(), users[id]))
	}
	return &Marketplace{DB: fixture.DB, Users: users}
}

// Poster returns the sample poster
func (m *Marketplace) Poster() *models.User { return m.Users[PosterID] }

// Worker returns the sample worker
func (m *Marketplace) Worker() *models.User { return m.Users[WorkerID] }

// Rival returns the second sample worker
func (m *Marketplace) Rival() *models.User { return m.Users[RivalID] }

// InsertTask stores a new task as given, bypassing lifecycle checks. Use it
// to reach states such as COMPLETED directly. task.ID must be empty.
func (m *Marketplace) InsertTask(t testing.TB, task *models.Task) *models.Task {
	t.Helper()
	saved, err := m.DB.Tasks().Save(context.Background(), task)
	require.NoError(t, err)
	return saved
}

// TaskBuilder builds task values for tests
type TaskBuilder struct {
	task models.Task
}

// NewTask starts a builder for an OPEN task posted by poster
func NewTask(title string, poster *models.User) *TaskBuilder {
	return &TaskBuilder{task: models.Task{
		Title:    title,
		Status:   models.TaskStatusOpen,
		PosterID: poster.ID,
		Poster:   poster,
	}}
}

// WithID sets the task id
func (b *TaskBuilder) WithID(id string) *TaskBuilder {
	b.task.ID = id
	return b
}

// WithReward sets the reward
func (b *TaskBuilder) WithReward(r float64) *TaskBuilder {
	b.task.Reward = r
	return b
}

// WithStatus sets the status
func (b *TaskBuilder) WithStatus(s models.TaskStatus) *TaskBuilder {
	b.task.Status = s
	return b
}

// WithWorker assigns worker
func (b *TaskBuilder) WithWorker(w *models.User) *TaskBuilder {
	b.task.SetWorker(w)
	return b
}

// Build returns a copy of the built task
func (b *TaskBuilder) Build() *models.Task {
	t := b.task
	return &t
}
