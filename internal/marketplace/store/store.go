// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store declares the storage collaborators the marketplace core
// consumes. Lookups return (nil, nil) when no record exists; every other
// failure is an apperr kind, never a raw driver error.
package store

import (
	"context"

	"github.com/crowdserve/crowdserve/internal/marketplace/models"
)

// TaskStore persists tasks. Tasks it returns have Poster and Worker loaded.
type TaskStore interface {
	Find(ctx context.Context, id string) (*models.Task, error)
	FindByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error)
	FindByPoster(ctx context.Context, userID string) ([]*models.Task, error)
	FindByWorker(ctx context.Context, userID string) ([]*models.Task, error)

	// Save inserts a task without an id and updates an existing one. Updates
	// are guarded by the task's version; a stale version yields
	// apperr.ErrConflict and writes nothing.
	Save(ctx context.Context, task *models.Task) (*models.Task, error)
	Delete(ctx context.Context, task *models.Task) error

	// Transaction runs fn against a store bound to a single transaction.
	// Tasks read through that store are locked against concurrent
	// transitions where the backend supports row locks.
	Transaction(ctx context.Context, fn func(tx TaskStore) error) error
}

// UserDirectory resolves users.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUser rewrites the profile fields of an existing user; an
	// unknown id yields apperr.ErrNotFound.
	UpdateUser(ctx context.Context, user *models.User) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	Save(ctx context.Context, n *models.Notification) error
	// SaveAll persists every notification or none of them.
	SaveAll(ctx context.Context, ns []*models.Notification) error
	Find(ctx context.Context, id string) (*models.Notification, error)
	FindByUserNewestFirst(ctx context.Context, userID string) ([]*models.Notification, error)
	FindUnreadByUser(ctx context.Context, userID string) ([]*models.Notification, error)
	CountUnreadByUser(ctx context.Context, userID string) (int64, error)
	MarkAllReadForUser(ctx context.Context, userID string) (int64, error)
}
