// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/rs/zerolog"
)

var (
	notificationLog     *zerolog.Logger
	notificationLogOnce sync.Once
)

func getNotificationLog() *zerolog.Logger {
	notificationLogOnce.Do(func() {
		l := logger.GetNotificationLogger()
		notificationLog = &l
	})
	return notificationLog
}

// CompletionTitle is the title of both completion notifications
const CompletionTitle = "Task Completed!"

// NotificationService writes completion notifications and serves the
// notification read side. It is subscribed to the completion bus.
type NotificationService struct {
	store store.NotificationStore
}

var _ Listener = (*NotificationService)(nil)

// NewNotificationService creates a notification service over s
func NewNotificationService(s store.NotificationStore) *NotificationService {
	return &NotificationService{store: s}
}

// OnTaskCompleted notifies the poster and the worker of a completed task.
// Both notifications are stored together or not at all.
func (s *NotificationService) OnTaskCompleted(ctx context.Context, task *models.Task) error {
	var batch []*models.Notification

	if task.PosterID != "" {
		batch = append(batch, newNotification(task.PosterID, CompletionTitle, posterMessage(task), task))
	}
	if task.HasWorker() {
		batch = append(batch, newNotification(*task.WorkerID, CompletionTitle, workerMessage(task), task))
	}
	if len(batch) == 0 {
		return nil
	}

	if err := s.store.SaveAll(ctx, batch); err != nil {
		getNotificationLog().Error().Err(err).Str("task_id", task.ID).Msg("Failed to store completion notifications")
		return apperr.Persistence("store completion notifications", err)
	}

	getNotificationLog().Info().
		Str("task_id", task.ID).
		Int("count", len(batch)).
		Msg("Completion notifications stored")
	return nil
}

func posterMessage(task *models.Task) string {
	workerName := "a worker"
	if task.Worker != nil && task.Worker.DisplayName != "" {
		workerName = task.Worker.DisplayName
	}
	return fmt.Sprintf("Your task '%s' has been completed by %s.", task.Title, workerName)
}

func workerMessage(task *models.Task) string {
	return fmt.Sprintf("You have successfully completed the task '%s'. Reward: $%s",
		task.Title, strconv.FormatFloat(task.Reward, 'f', -1, 64))
}

func newNotification(userID, title, message string, task *models.Task) *models.Notification {
	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
	}
	if task != nil {
		id := task.ID
		n.TaskID = &id
	}
	return n
}

// Create stores a single notification for user, optionally tied to task
func (s *NotificationService) Create(ctx context.Context, user *models.User, title, message string, task *models.Task) (*models.Notification, error) {
	if user == nil {
		return nil, apperr.Invalid("user", "recipient is required")
	}
	n := newNotification(user.ID, title, message, task)
	if err := s.store.Save(ctx, n); err != nil {
		return nil, apperr.Persistence("create notification", err)
	}
	return n, nil
}

// ListForUser returns all notifications of userID, newest first
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	return s.store.FindByUserNewestFirst(ctx, userID)
}

// ListUnread returns the unread notifications of userID, newest first
func (s *NotificationService) ListUnread(ctx context.Context, userID string) ([]*models.Notification, error) {
	return s.store.FindUnreadByUser(ctx, userID)
}

// CountUnread counts the unread notifications of userID
func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.store.CountUnreadByUser(ctx, userID)
}

// MarkRead marks one notification read on behalf of its recipient.
// Marking an already-read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) (*models.Notification, error) {
	n, err := s.store.Find(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, apperr.NotFound("Notification", notificationID)
	}
	if n.UserID != userID {
		return nil, &apperr.ForbiddenError{
			ActorID: userID,
			Entity:  "Notification",
			ID:      notificationID,
			Reason:  "not the recipient",
		}
	}
	if n.Read {
		return n, nil
	}

	n.Read = true
	if err := s.store.Save(ctx, n); err != nil {
		return nil, apperr.Persistence("mark notification read", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of userID read and returns
// how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	count, err := s.store.MarkAllReadForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	getNotificationLog().Debug().Str("user_id", userID).Int64("count", count).Msg("Notifications marked read")
	return count, nil
}
