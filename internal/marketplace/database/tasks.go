// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepo is the GORM implementation of store.TaskStore
type TaskRepo struct {
	db *gorm.DB
	// inTx marks a repo bound to a transaction; reads then take row locks
	// where the dialect has them.
	inTx bool
}

var _ store.TaskStore = (*TaskRepo)(nil)

func (r *TaskRepo) query(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Poster").Preload("Worker")
}

// Find retrieves a task by ID, or nil when it does not exist
func (r *TaskRepo) Find(ctx context.Context, id string) (*models.Task, error) {
	q := r.query(ctx)
	if r.inTx && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var task models.Task
	err := q.First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Persistence("find task", err)
	}
	return &task, nil
}

// FindByStatus retrieves all tasks in the given status, oldest first
func (r *TaskRepo) FindByStatus(ctx context.Context, status models.TaskStatus) ([]*models.Task, error) {
	return r.findWhere(ctx, "find tasks by status", "status = ?", status)
}

// FindByPoster retrieves all tasks posted by userID, oldest first
func (r *TaskRepo) FindByPoster(ctx context.Context, userID string) ([]*models.Task, error) {
	return r.findWhere(ctx, "find tasks by poster", "poster_id = ?", userID)
}

// FindByWorker retrieves all tasks assigned to userID, oldest first
func (r *TaskRepo) FindByWorker(ctx context.Context, userID string) ([]*models.Task, error) {
	return r.findWhere(ctx, "find tasks by worker", "worker_id = ?", userID)
}

func (r *TaskRepo) findWhere(ctx context.Context, op string, cond string, arg any) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.query(ctx).
		Where(cond, arg).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return tasks, nil
}

// Save inserts a task without an ID and updates an existing one.
// Updates only apply when the stored version matches task.Version; the
// version is then bumped. Reward and poster are never rewritten.
func (r *TaskRepo) Save(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
		if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error; err != nil {
			return nil, apperr.Persistence("create task", err)
		}
		return r.reload(ctx, task.ID)
	}

	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Updates(map[string]any{
			"title":       task.Title,
			"description": task.Description,
			"location":    task.Location,
			"status":      task.Status,
			"worker_id":   task.WorkerID,
			"version":     task.Version + 1,
			"updated_at":  now,
		})
	if res.Error != nil {
		return nil, apperr.Persistence("update task", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("task %s at version %d: %w", task.ID, task.Version, apperr.ErrConflict)
	}

	task.Version++
	task.UpdatedAt = now
	return r.reload(ctx, task.ID)
}

func (r *TaskRepo) reload(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := r.query(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, apperr.Persistence("reload task", err)
	}
	return &task, nil
}

// Delete removes a task
func (r *TaskRepo) Delete(ctx context.Context, task *models.Task) error {
	err := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", task.ID).Error
	return apperr.Persistence("delete task", err)
}

// Transaction runs fn against a TaskRepo bound to one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (r *TaskRepo) Transaction(ctx context.Context, fn func(tx store.TaskStore) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&TaskRepo{db: tx, inTx: true})
	})
	return apperr.Persistence("task transaction", err)
}
