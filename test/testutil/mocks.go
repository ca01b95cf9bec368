// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"context"
	"sync"

	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/stretchr/testify/mock"
)

// MockNotificationStore is a testify mock of store.NotificationStore
type MockNotificationStore struct {
	mock.Mock
}

func (m *MockNotificationStore) Save(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotificationStore) SaveAll(ctx context.Context, ns []*models.Notification) error {
	return m.Called(ctx, ns).Error(0)
}

func (m *MockNotificationStore) Find(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	n, _ := args.Get(0).(*models.Notification)
	return n, args.Error(1)
}

func (m *MockNotificationStore) FindByUserNewestFirst(ctx context.Context, userID string) ([]*models.Notification, error) {
	args := m.Called(ctx, userID)
	ns, _ := args.Get(0).([]*models.Notification)
	return ns, args.Error(1)
}

func (m *MockNotificationStore) FindUnreadByUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	args := m.Called(ctx, userID)
	ns, _ := args.Get(0).([]*models.Notification)
	return ns, args.Error(1)
}

func (m *MockNotificationStore) CountUnreadByUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationStore) MarkAllReadForUser(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockListener is a testify mock of a completion listener
type MockListener struct {
	mock.Mock
}

func (m *MockListener) OnTaskCompleted(ctx context.Context, task *models.Task) error {
	return m.Called(ctx, task).Error(0)
}

// ListenerRecorder records every completed task it receives
type ListenerRecorder struct {
	mu    sync.Mutex
	tasks []*models.Task
	// Err, when set, is returned from every call after recording
	Err error
}

// OnTaskCompleted records task
func (r *ListenerRecorder) OnTaskCompleted(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return r.Err
}

// Tasks returns the recorded tasks in delivery order
func (r *ListenerRecorder) Tasks() []*models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Count returns how many events were recorded
func (r *ListenerRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
