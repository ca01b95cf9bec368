// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	workflowLog     *zerolog.Logger
	workflowLogOnce sync.Once
)

func getWorkflowLog() *zerolog.Logger {
	workflowLogOnce.Do(func() {
		l := logger.GetWorkflowLogger()
		workflowLog = &l
	})
	return workflowLog
}

// TracerName names the tracer used for coordinator spans
const TracerName = "crowdserve/workflow"

// Coordinator is the entry point for task workflows. It resolves users,
// delegates transitions to the lifecycle service and publishes completions
// on the bus it owns.
type Coordinator struct {
	lifecycle *LifecycleService
	users     store.UserDirectory
	bus       *EventBus
	tracer    trace.Tracer
}

// NewCoordinator creates a coordinator with an empty completion bus
func NewCoordinator(lifecycle *LifecycleService, users store.UserDirectory) *Coordinator {
	return &Coordinator{
		lifecycle: lifecycle,
		users:     users,
		bus:       NewEventBus(),
		tracer:    otel.Tracer(TracerName),
	}
}

// Subscribe registers l for completion events
func (c *Coordinator) Subscribe(l Listener) {
	c.bus.Subscribe(l)
	getWorkflowLog().Debug().Str("listener_type", typeName(l)).Msg("Completion listener subscribed")
}

// GetTask returns a task or a NotFoundError
func (c *Coordinator) GetTask(ctx context.Context, taskID string) (task *models.Task, err error) {
	ctx, span := c.start(ctx, "GetTask", attribute.String("task.id", taskID))
	defer func() { endSpan(span, err) }()

	return c.lifecycle.Get(ctx, taskID)
}

// CreateTask posts a new task on behalf of posterID
func (c *Coordinator) CreateTask(ctx context.Context, spec TaskSpec, posterID string) (task *models.Task, err error) {
	ctx, span := c.start(ctx, "CreateTask", attribute.String("actor.id", posterID))
	defer func() { endSpan(span, err) }()

	poster, err := c.resolveUser(ctx, posterID)
	if err != nil {
		return nil, err
	}
	task, err = c.lifecycle.Create(ctx, spec, poster)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("task.id", task.ID))
	return task, nil
}

// AcceptTask assigns workerID to an OPEN task
func (c *Coordinator) AcceptTask(ctx context.Context, taskID, workerID string) (task *models.Task, err error) {
	ctx, span := c.start(ctx, "AcceptTask",
		attribute.String("task.id", taskID),
		attribute.String("actor.id", workerID))
	defer func() { endSpan(span, err) }()

	worker, err := c.resolveUser(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return c.lifecycle.AssignWorker(ctx, taskID, worker)
}

// CompleteTask marks an ASSIGNED task COMPLETED and then publishes it.
// Publishing happens after the status change is committed; a listener
// failure is returned but does not undo the completion.
func (c *Coordinator) CompleteTask(ctx context.Context, taskID string) (task *models.Task, err error) {
	ctx, span := c.start(ctx, "CompleteTask", attribute.String("task.id", taskID))
	defer func() { endSpan(span, err) }()

	return c.complete(ctx, taskID)
}

// CompleteTaskAs completes a task on behalf of actorID, who must be the
// assigned worker or the poster
func (c *Coordinator) CompleteTaskAs(ctx context.Context, taskID, actorID string) (task *models.Task, err error) {
	ctx, span := c.start(ctx, "CompleteTaskAs",
		attribute.String("task.id", taskID),
		attribute.String("actor.id", actorID))
	defer func() { endSpan(span, err) }()

	current, err := c.lifecycle.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !current.IsWorkedBy(actorID) && !current.IsPostedBy(actorID) {
		return nil, &apperr.ForbiddenError{
			ActorID: actorID,
			Entity:  "Task",
			ID:      taskID,
			Reason:  "only the assigned worker or the poster may complete a task",
		}
	}
	return c.complete(ctx, taskID)
}

func (c *Coordinator) complete(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := c.lifecycle.MarkCompleted(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if err := c.bus.Publish(ctx, task); err != nil {
		return nil, fmt.Errorf("task %s completed but a listener failed: %w", taskID, err)
	}
	return task, nil
}

// CancelTask cancels a task on behalf of its poster
func (c *Coordinator) CancelTask(ctx context.Context, taskID, requesterID string) (task *models.Task, err error) {
	ctx, span := c.start(ctx, "CancelTask",
		attribute.String("task.id", taskID),
		attribute.String("actor.id", requesterID))
	defer func() { endSpan(span, err) }()

	requester, err := c.resolveUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return c.lifecycle.Cancel(ctx, taskID, requester)
}

// DeleteTask deletes an OPEN task on behalf of its poster
func (c *Coordinator) DeleteTask(ctx context.Context, taskID, requesterID string) (err error) {
	ctx, span := c.start(ctx, "DeleteTask",
		attribute.String("task.id", taskID),
		attribute.String("actor.id", requesterID))
	defer func() { endSpan(span, err) }()

	requester, err := c.resolveUser(ctx, requesterID)
	if err != nil {
		return err
	}
	return c.lifecycle.Delete(ctx, taskID, requester)
}

// OpenTasks lists tasks waiting for a worker
func (c *Coordinator) OpenTasks(ctx context.Context) (tasks []*models.Task, err error) {
	ctx, span := c.start(ctx, "OpenTasks")
	defer func() { endSpan(span, err) }()

	return c.lifecycle.OpenTasks(ctx)
}

// AllTasks lists every task regardless of status
func (c *Coordinator) AllTasks(ctx context.Context) (tasks []*models.Task, err error) {
	ctx, span := c.start(ctx, "AllTasks")
	defer func() { endSpan(span, err) }()

	return c.lifecycle.AllTasks(ctx)
}

// TasksForUser lists the tasks userID posted followed by those they work on
func (c *Coordinator) TasksForUser(ctx context.Context, userID string) (tasks []*models.Task, err error) {
	ctx, span := c.start(ctx, "TasksForUser", attribute.String("actor.id", userID))
	defer func() { endSpan(span, err) }()

	user, err := c.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.lifecycle.TasksForUser(ctx, user)
}

// FilterTasks loads every task and keeps those s selects
func (c *Coordinator) FilterTasks(ctx context.Context, s Strategy) (tasks []*models.Task, err error) {
	ctx, span := c.start(ctx, "FilterTasks", attribute.String("filter", s.Name))
	defer func() { endSpan(span, err) }()

	if s.IsZero() {
		return nil, apperr.Invalid("strategy", "strategy is required")
	}
	all, err := c.lifecycle.AllTasks(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, s), nil
}

func (c *Coordinator) resolveUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User", userID)
	}
	return user, nil
}

func (c *Coordinator) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "workflow."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("error.kind", apperr.Kind(err)))
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
