// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/test/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotificationMessages(t *testing.T) {
	users := testutil.SampleUsers()
	task := testutil.NewTask("Mow lawn", users[testutil.PosterID]).
		WithID("t1").
		WithReward(20).
		WithStatus(models.TaskStatusCompleted).
		WithWorker(users[testutil.WorkerID]).
		Build()

	assert.Equal(t, "Your task 'Mow lawn' has been completed by U2.", posterMessage(task))
	assert.Equal(t, "You have successfully completed the task 'Mow lawn'. Reward: $20", workerMessage(task))

	task.Reward = 12.5
	assert.Equal(t, "You have successfully completed the task 'Mow lawn'. Reward: $12.5", workerMessage(task))

	// Worker id without a loaded worker record.
	task.Worker = nil
	assert.Equal(t, "Your task 'Mow lawn' has been completed by a worker.", posterMessage(task))
}

func TestOnTaskCompleted_NotifiesPosterAndWorker(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewMarketplace(t)
	svc := NewNotificationService(m.DB.Notifications())

	task := m.InsertTask(t, testutil.NewTask("Mow lawn", m.Poster()).
		WithReward(20).
		WithStatus(models.TaskStatusCompleted).
		WithWorker(m.Worker()).
		Build())

	require.NoError(t, svc.OnTaskCompleted(ctx, task))

	posterNotes, err := svc.ListForUser(ctx, testutil.PosterID)
	require.NoError(t, err)
	require.Len(t, posterNotes, 1)
	assert.Equal(t, CompletionTitle, posterNotes[0].Title)
	assert.Equal(t, "Your task 'Mow lawn' has been completed by U2.", posterNotes[0].Message)
	require.NotNil(t, posterNotes[0].TaskID)
	assert.Equal(t, task.ID, *posterNotes[0].TaskID)
	assert.False(t, posterNotes[0].Read)

	workerNotes, err := svc.ListForUser(ctx, testutil.WorkerID)
	require.NoError(t, err)
	require.Len(t, workerNotes, 1)
	assert.Contains(t, workerNotes[0].Message, "Reward: $20")
}

func TestOnTaskCompleted_OnlyPresentParties(t *testing.T) {
	ctx := context.Background()
	notes := &testutil.MockNotificationStore{}
	svc := NewNotificationService(notes)

	task := &models.Task{ID: "t1", Title: "Solo", PosterID: testutil.PosterID, Status: models.TaskStatusCompleted}

	notes.On("SaveAll", ctx, mock.MatchedBy(func(ns []*models.Notification) bool {
		return len(ns) == 1 && ns[0].UserID == testutil.PosterID
	})).Return(nil).Once()

	require.NoError(t, svc.OnTaskCompleted(ctx, task))
	notes.AssertExpectations(t)

	// No poster and no worker: nothing to store.
	require.NoError(t, svc.OnTaskCompleted(ctx, &models.Task{ID: "t2"}))
	notes.AssertNumberOfCalls(t, "SaveAll", 1)
}

func TestOnTaskCompleted_StoreFailure(t *testing.T) {
	ctx := context.Background()
	notes := &testutil.MockNotificationStore{}
	svc := NewNotificationService(notes)
	users := testutil.SampleUsers()

	task := testutil.NewTask("Broken", users[testutil.PosterID]).
		WithID("t1").
		WithStatus(models.TaskStatusCompleted).
		WithWorker(users[testutil.WorkerID]).
		Build()

	notes.On("SaveAll", ctx, mock.Anything).Return(errors.New("disk full")).Once()

	err := svc.OnTaskCompleted(ctx, task)
	testutil.AssertKind(t, err, "persistence")
	assert.Contains(t, err.Error(), "disk full")
	notes.AssertExpectations(t)
}

func TestNotificationService_ReadSide(t *testing.T) {
	ctx := context.Background()
	m := testutil.NewMarketplace(t)
	svc := NewNotificationService(m.DB.Notifications())

	first, err := svc.Create(ctx, m.Poster(), "Hello", "first", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, m.Poster(), "Hello", "second", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, nil, "Hello", "nobody", nil)
	testutil.AssertKind(t, err, "validation")

	count, err := svc.CountUnread(ctx, testutil.PosterID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = svc.MarkRead(ctx, first.ID, testutil.WorkerID)
	testutil.AssertKind(t, err, "forbidden")

	_, err = svc.MarkRead(ctx, "missing", testutil.PosterID)
	testutil.AssertKind(t, err, "not_found")

	read, err := svc.MarkRead(ctx, first.ID, testutil.PosterID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	again, err := svc.MarkRead(ctx, first.ID, testutil.PosterID)
	require.NoError(t, err)
	assert.True(t, again.Read)

	unread, err := svc.ListUnread(ctx, testutil.PosterID)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "second", unread[0].Message)

	marked, err := svc.MarkAllRead(ctx, testutil.PosterID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	marked, err = svc.MarkAllRead(ctx, testutil.PosterID)
	require.NoError(t, err)
	assert.Zero(t, marked)

	count, err = svc.CountUnread(ctx, testutil.PosterID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNotificationService_MarkAllReadFailure(t *testing.T) {
	ctx := context.Background()
	notes := &testutil.MockNotificationStore{}
	svc := NewNotificationService(notes)

	notes.On("MarkAllReadForUser", ctx, "u1").
		Return(int64(0), apperr.Persistence("mark notifications read", errors.New("locked"))).Once()

	_, err := svc.MarkAllRead(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	notes.AssertExpectations(t)
}
