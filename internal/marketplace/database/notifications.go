// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepo is the GORM implementation of store.NotificationStore
type NotificationRepo struct {
	db *gorm.DB
}

var _ store.NotificationStore = (*NotificationRepo)(nil)

// Save inserts a new notification or updates an existing one
func (r *NotificationRepo) Save(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
		return apperr.Persistence("create notification", r.db.WithContext(ctx).Create(n).Error)
	}
	return apperr.Persistence("save notification", r.db.WithContext(ctx).Save(n).Error)
}

// SaveAll inserts the notifications in one transaction
func (r *NotificationRepo) SaveAll(ctx context.Context, ns []*models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	for _, n := range ns {
		if n.ID == "" {
			n.ID = uuid.New().String()
		}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(ns).Error
	})
	return apperr.Persistence("create notifications", err)
}

// Find retrieves a notification by ID, or nil when it does not exist
func (r *NotificationRepo) Find(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Persistence("find notification", err)
	}
	return &n, nil
}

// FindByUserNewestFirst retrieves all notifications for a user, newest first
func (r *NotificationRepo) FindByUserNewestFirst(ctx context.Context, userID string) ([]*models.Notification, error) {
	var ns []*models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&ns).Error
	if err != nil {
		return nil, apperr.Persistence("find notifications", err)
	}
	return ns, nil
}

// FindUnreadByUser retrieves unread notifications for a user, newest first
func (r *NotificationRepo) FindUnreadByUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	var ns []*models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC").
		Find(&ns).Error
	if err != nil {
		return nil, apperr.Persistence("find unread notifications", err)
	}
	return ns, nil
}

// CountUnreadByUser counts unread notifications for a user
func (r *NotificationRepo) CountUnreadByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Persistence("count unread notifications", err)
	}
	return count, nil
}

// MarkAllReadForUser marks every unread notification of a user as read in a
// single statement and returns how many changed
func (r *NotificationRepo) MarkAllReadForUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, apperr.Persistence("mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}
