// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	lifecycleLog     *zerolog.Logger
	lifecycleLogOnce sync.Once
)

func getLifecycleLog() *zerolog.Logger {
	lifecycleLogOnce.Do(func() {
		l := logger.GetLifecycleLogger()
		lifecycleLog = &l
	})
	return lifecycleLog
}

// TaskSpec carries the caller supplied fields of a new task
type TaskSpec struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Location    string  `json:"location" validate:"max=500"`
	Reward      float64 `json:"reward" validate:"finite,gte=0"`
}

// LifecycleService owns task creation and every status transition.
//
// Each transition is a read-check-write inside one store transaction, so a
// rejected operation writes nothing.
type LifecycleService struct {
	tasks    store.TaskStore
	validate *validator.Validate
}

// NewLifecycleService creates a lifecycle service over tasks
func NewLifecycleService(tasks store.TaskStore) *LifecycleService {
	return &LifecycleService{
		tasks:    tasks,
		validate: newValidator(),
	}
}

// Create persists a new OPEN task posted by poster
func (s *LifecycleService) Create(ctx context.Context, spec TaskSpec, poster *models.User) (*models.Task, error) {
	spec.Title = strings.TrimSpace(spec.Title)
	if err := validateStruct(s.validate, spec); err != nil {
		return nil, err
	}
	if poster == nil {
		return nil, apperr.Invalid("poster", "poster is required")
	}

	task, err := s.tasks.Save(ctx, &models.Task{
		Title:       spec.Title,
		Description: spec.Description,
		Location:    spec.Location,
		Reward:      spec.Reward,
		Status:      models.TaskStatusOpen,
		PosterID:    poster.ID,
		Poster:      poster,
	})
	if err != nil {
		return nil, apperr.Persistence("create task", err)
	}

	getLifecycleLog().Info().
		Str("task_id", task.ID).
		Str("poster_id", poster.ID).
		Float64("reward", task.Reward).
		Msg("Task created")
	return task, nil
}

// Get returns a task or a NotFoundError
func (s *LifecycleService) Get(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.tasks.Find(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apperr.NotFound("Task", taskID)
	}
	return task, nil
}

// OpenTasks returns every task still waiting for a worker
func (s *LifecycleService) OpenTasks(ctx context.Context) ([]*models.Task, error) {
	return s.tasks.FindByStatus(ctx, models.TaskStatusOpen)
}

// AllTasks returns tasks in every status, grouped by status
func (s *LifecycleService) AllTasks(ctx context.Context) ([]*models.Task, error) {
	var all []*models.Task
	for _, status := range []models.TaskStatus{
		models.TaskStatusOpen,
		models.TaskStatusAssigned,
		models.TaskStatusCompleted,
		models.TaskStatusCancelled,
	} {
		tasks, err := s.tasks.FindByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// TasksForUser returns the tasks user posted followed by the tasks user is
// working on
func (s *LifecycleService) TasksForUser(ctx context.Context, user *models.User) ([]*models.Task, error) {
	posted, err := s.tasks.FindByPoster(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	assigned, err := s.tasks.FindByWorker(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return lo.UniqBy(append(posted, assigned...), func(t *models.Task) string { return t.ID }), nil
}

// AssignWorker moves an OPEN task to ASSIGNED with worker attached
func (s *LifecycleService) AssignWorker(ctx context.Context, taskID string, worker *models.User) (*models.Task, error) {
	if worker == nil {
		return nil, apperr.Invalid("worker", "worker is required")
	}

	expected := []models.TaskStatus{models.TaskStatusOpen}
	task, err := s.transition(ctx, "assign", taskID, expected, func(task *models.Task) error {
		if task.IsPostedBy(worker.ID) {
			return &apperr.ForbiddenError{
				ActorID: worker.ID,
				Entity:  "Task",
				ID:      task.ID,
				Reason:  "poster cannot accept their own task",
			}
		}
		task.SetWorker(worker)
		task.Status = models.TaskStatusAssigned
		return nil
	})
	if err != nil {
		return nil, err
	}

	getLifecycleLog().Info().Str("task_id", task.ID).Str("worker_id", worker.ID).Msg("Task assigned")
	return task, nil
}

// MarkCompleted moves an ASSIGNED task to COMPLETED. It emits no event;
// publishing is the coordinator's job.
func (s *LifecycleService) MarkCompleted(ctx context.Context, taskID string) (*models.Task, error) {
	expected := []models.TaskStatus{models.TaskStatusAssigned}
	task, err := s.transition(ctx, "complete", taskID, expected, func(task *models.Task) error {
		task.Status = models.TaskStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	getLifecycleLog().Info().Str("task_id", task.ID).Msg("Task completed")
	return task, nil
}

// Cancel moves an OPEN or ASSIGNED task to CANCELLED and releases its worker.
// Only the poster may cancel.
func (s *LifecycleService) Cancel(ctx context.Context, taskID string, requester *models.User) (*models.Task, error) {
	if requester == nil {
		return nil, apperr.Invalid("requester", "requester is required")
	}

	expected := []models.TaskStatus{models.TaskStatusOpen, models.TaskStatusAssigned}
	task, err := s.transition(ctx, "cancel", taskID, nil, func(task *models.Task) error {
		if !task.IsPostedBy(requester.ID) {
			return forbiddenForNonPoster(requester, task)
		}
		if !lo.Contains(expected, task.Status) {
			return invalidState(task, "cancel", expected)
		}
		task.Status = models.TaskStatusCancelled
		task.SetWorker(nil)
		return nil
	})
	if err != nil {
		return nil, err
	}

	getLifecycleLog().Info().Str("task_id", task.ID).Str("requester_id", requester.ID).Msg("Task cancelled")
	return task, nil
}

// Delete removes an OPEN task. Only the poster may delete.
func (s *LifecycleService) Delete(ctx context.Context, taskID string, requester *models.User) error {
	if requester == nil {
		return apperr.Invalid("requester", "requester is required")
	}

	err := s.tasks.Transaction(ctx, func(tx store.TaskStore) error {
		task, err := tx.Find(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return apperr.NotFound("Task", taskID)
		}
		if !task.IsPostedBy(requester.ID) {
			return forbiddenForNonPoster(requester, task)
		}
		if task.Status != models.TaskStatusOpen {
			return invalidState(task, "delete", []models.TaskStatus{models.TaskStatusOpen})
		}
		return tx.Delete(ctx, task)
	})
	if err != nil {
		return err
	}

	getLifecycleLog().Info().Str("task_id", taskID).Str("requester_id", requester.ID).Msg("Task deleted")
	return nil
}

// transition loads the task inside a transaction, checks its status against
// expected (when non-empty), applies mutate and saves. A lost optimistic
// race is re-read once and reported as the state the winner left behind.
func (s *LifecycleService) transition(
	ctx context.Context,
	op string,
	taskID string,
	expected []models.TaskStatus,
	mutate func(task *models.Task) error,
) (*models.Task, error) {
	var result *models.Task

	err := s.tasks.Transaction(ctx, func(tx store.TaskStore) error {
		task, err := tx.Find(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return apperr.NotFound("Task", taskID)
		}
		if len(expected) > 0 && !lo.Contains(expected, task.Status) {
			return invalidState(task, op, expected)
		}
		if err := mutate(task); err != nil {
			return err
		}
		if msg := task.CheckInvariants(); msg != "" {
			return &apperr.InvariantError{TaskID: task.ID, Violation: msg}
		}

		saved, err := tx.Save(ctx, task)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})

	if errors.Is(err, apperr.ErrConflict) {
		getLifecycleLog().Debug().Str("task_id", taskID).Str("op", op).Msg("Lost concurrent transition, re-reading")
		return nil, s.conflictState(ctx, taskID, op, expected)
	}
	if err != nil {
		getLifecycleLog().Debug().Err(err).Str("task_id", taskID).Str("op", op).Msg("Transition rejected")
		return nil, err
	}
	return result, nil
}

func (s *LifecycleService) conflictState(ctx context.Context, taskID, op string, expected []models.TaskStatus) error {
	current, err := s.tasks.Find(ctx, taskID)
	if err != nil {
		return err
	}
	if current == nil {
		return apperr.NotFound("Task", taskID)
	}
	if len(expected) == 0 {
		expected = []models.TaskStatus{models.TaskStatusOpen, models.TaskStatusAssigned}
	}
	return invalidState(current, op, expected)
}

func invalidState(task *models.Task, op string, expected []models.TaskStatus) error {
	return &apperr.InvalidStateError{
		TaskID:   task.ID,
		Op:       op,
		Actual:   task.Status.String(),
		Expected: lo.Map(expected, func(s models.TaskStatus, _ int) string { return s.String() }),
	}
}

func forbiddenForNonPoster(requester *models.User, task *models.Task) error {
	return &apperr.ForbiddenError{
		ActorID: requester.ID,
		Entity:  "Task",
		ID:      task.ID,
		Reason:  "only the poster may do this",
	}
}
