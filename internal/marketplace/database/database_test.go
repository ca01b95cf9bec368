// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/config"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test constants
const (
	TestPosterID = "user-poster"
	TestWorkerID = "user-worker"
)

// seedUsers inserts a poster and a worker and returns them
func seedUsers(t *testing.T, db *GormDB) (*models.User, *models.User) {
	t.Helper()
	ctx := context.Background()

	poster := &models.User{ID: TestPosterID, DisplayName: "Priya Poster", Email: "poster@example.com"}
	worker := &models.User{ID: TestWorkerID, DisplayName: "Walt Worker", Email: "worker@example.com"}
	require.NoError(t, db.Users().CreateUser(ctx, poster))
	require.NoError(t, db.Users().CreateUser(ctx, worker))
	return poster, worker
}

// createOpenTask saves a new OPEN task for poster
func createOpenTask(t *testing.T, db *GormDB, poster *models.User, title string) *models.Task {
	t.Helper()
	task, err := db.Tasks().Save(context.Background(), &models.Task{
		Title:    title,
		Reward:   20,
		Status:   models.TaskStatusOpen,
		PosterID: poster.ID,
		Poster:   poster,
	})
	require.NoError(t, err)
	return task
}

func TestNewGormDB_UnsupportedDriver(t *testing.T) {
	_, err := NewGormDB(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrate_ValidateSchema(t *testing.T) {
	fixture := UseFreshInMemoryDatabase(t)

	require.NoError(t, fixture.DB.ValidateSchema())
	// Running migrations again is harmless.
	require.NoError(t, fixture.DB.AutoMigrate())
	require.NoError(t, fixture.DB.ValidateSchema())
}

func TestValidateSchema_MissingTables(t *testing.T) {
	db, err := NewGormDB(&config.DatabaseConfig{
		Driver:   "sqlite",
		Database: "file:unmigrated?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = db.ValidateSchema()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing tables")
	assert.Contains(t, err.Error(), "tasks")
}

func TestTaskRepo_SaveNewTask(t *testing.T) {
	fixture := UseFreshInMemoryDatabase(t)
	poster, _ := seedUsers(t, fixture.DB)

	task := createOpenTask(t, fixture.DB, poster, "Mow lawn")

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, int64(1), task.Version)
	assert.Equal(t, models.TaskStatusOpen, task.Status)
	assert.False(t, task.CreatedAt.IsZero())
	require.NotNil(t, task.Poster)
	assert.Equal(t, "Priya Poster", task.Poster.DisplayName)
	assert.Nil(t, task.Worker)
}

func TestTaskRepo_FindMissing(t *testing.T) {
	fixture := UseFreshInMemoryDatabase(t)

	task, err := fixture.DB.Tasks().Find(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestTaskRepo_UpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	poster, worker := seedUsers(t, fixture.DB)
	tasks := fixture.DB.Tasks()

	task := createOpenTask(t, fixture.DB, poster, "Walk dog")
	task.SetWorker(worker)
	task.Status = models.TaskStatusAssigned

	updated, err := tasks.Save(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, models.TaskStatusAssigned, updated.Status)
	require.NotNil(t, updated.Worker)
	assert.Equal(t, "Walt Worker", updated.Worker.DisplayName)

	reloaded, err := tasks.Find(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reloaded.Version)
	assert.True(t, reloaded.IsWorkedBy(TestWorkerID))
}

func TestTaskRepo_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	poster, worker := seedUsers(t, fixture.DB)
	tasks := fixture.DB.Tasks()

	task := createOpenTask(t, fixture.DB, poster, "Paint fence")

	first, err := tasks.Find(ctx, task.ID)
	require.NoError(t, err)
	second, err := tasks.Find(ctx, task.ID)
	require.NoError(t, err)

	first.SetWorker(worker)
	first.Status = models.TaskStatusAssigned
	_, err = tasks.Save(ctx, first)
	require.NoError(t, err)

	second.Status = models.TaskStatusCancelled
	_, err = tasks.Save(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := tasks.Find(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusAssigned, stored.Status)
}

func TestTaskRepo_FindByStatusPosterWorker(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	poster, worker := seedUsers(t, fixture.DB)
	tasks := fixture.DB.Tasks()

	open := createOpenTask(t, fixture.DB, poster, "Open one")
	assigned := createOpenTask(t, fixture.DB, poster, "Assigned one")
	assigned.SetWorker(worker)
	assigned.Status = models.TaskStatusAssigned
	_, err := tasks.Save(ctx, assigned)
	require.NoError(t, err)

	byStatus, err := tasks.FindByStatus(ctx, models.TaskStatusOpen)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, open.ID, byStatus[0].ID)

	byPoster, err := tasks.FindByPoster(ctx, poster.ID)
	require.NoError(t, err)
	assert.Len(t, byPoster, 2)

	byWorker, err := tasks.FindByWorker(ctx, worker.ID)
	require.NoError(t, err)
	require.Len(t, byWorker, 1)
	assert.Equal(t, assigned.ID, byWorker[0].ID)

	none, err := tasks.FindByStatus(ctx, models.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTaskRepo_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	poster, worker := seedUsers(t, fixture.DB)
	tasks := fixture.DB.Tasks()

	task := createOpenTask(t, fixture.DB, poster, "Rake leaves")
	boom := errors.New("boom")

	err := tasks.Transaction(ctx, func(tx store.TaskStore) error {
		current, err := tx.Find(ctx, task.ID)
		if err != nil {
			return err
		}
		current.SetWorker(worker)
		current.Status = models.TaskStatusAssigned
		if _, err := tx.Save(ctx, current); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := tasks.Find(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusOpen, stored.Status)
	assert.False(t, stored.HasWorker())
	assert.Equal(t, int64(1), stored.Version)
}

func TestTaskRepo_TransactionPassesThroughKinds(t *testing.T) {
	fixture := UseFreshInMemoryDatabase(t)

	err := fixture.DB.Tasks().Transaction(context.Background(), func(tx store.TaskStore) error {
		return apperr.NotFound("Task", "t-404")
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrPersistence)
}

func TestTaskRepo_Delete(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	poster, _ := seedUsers(t, fixture.DB)
	tasks := fixture.DB.Tasks()

	task := createOpenTask(t, fixture.DB, poster, "Temporary")
	require.NoError(t, tasks.Delete(ctx, task))

	gone, err := tasks.Find(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	users := fixture.DB.Users()

	u := &models.User{DisplayName: "New Person", Email: "new@example.com"}
	require.NoError(t, users.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	byID, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "new@example.com", byID.Email)

	byEmail, err := users.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	missing, err := users.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = users.CreateUser(ctx, &models.User{DisplayName: "Copy", Email: "new@example.com"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	byID.DisplayName = "Renamed"
	byID.Bio = "Likes dogs"
	require.NoError(t, users.UpdateUser(ctx, byID))
	reloaded, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", reloaded.DisplayName)
	assert.Equal(t, "Likes dogs", reloaded.Bio)
	assert.Equal(t, "new@example.com", reloaded.Email)

	err = users.UpdateUser(ctx, &models.User{ID: "missing", DisplayName: "X"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNotificationRepo(t *testing.T) {
	ctx := context.Background()
	fixture := UseFreshInMemoryDatabase(t)
	seedUsers(t, fixture.DB)
	notifications := fixture.DB.Notifications()

	base := time.Now().Add(-time.Hour)
	older := &models.Notification{UserID: TestPosterID, Title: "Older", CreatedAt: base}
	newer := &models.Notification{UserID: TestPosterID, Title: "Newer", CreatedAt: base.Add(time.Minute)}
	other := &models.Notification{UserID: TestWorkerID, Title: "Other", CreatedAt: base}

	require.NoError(t, notifications.SaveAll(ctx, []*models.Notification{older, newer, other}))
	assert.NotEmpty(t, older.ID)

	list, err := notifications.FindByUserNewestFirst(ctx, TestPosterID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Newer", list[0].Title)
	assert.Equal(t, "Older", list[1].Title)

	// Marking one read through Save updates the existing row.
	older.Read = true
	require.NoError(t, notifications.Save(ctx, older))

	unread, err := notifications.FindUnreadByUser(ctx, TestPosterID)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, newer.ID, unread[0].ID)

	count, err := notifications.CountUnreadByUser(ctx, TestPosterID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	marked, err := notifications.MarkAllReadForUser(ctx, TestPosterID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	count, err = notifications.CountUnreadByUser(ctx, TestPosterID)
	require.NoError(t, err)
	assert.Zero(t, count)

	otherCount, err := notifications.CountUnreadByUser(ctx, TestWorkerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherCount)

	found, err := notifications.Find(ctx, other.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.False(t, found.Read)

	missing, err := notifications.Find(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNotificationRepo_SaveAllEmpty(t *testing.T) {
	fixture := UseFreshInMemoryDatabase(t)
	assert.NoError(t, fixture.DB.Notifications().SaveAll(context.Background(), nil))
}
