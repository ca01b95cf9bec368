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

// UserRepo is the GORM implementation of store.UserDirectory
type UserRepo struct {
	db *gorm.DB
}

var _ store.UserDirectory = (*UserRepo)(nil)

// FindByID retrieves a user by ID, or nil when it does not exist
func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "find user", "id = ?", id)
}

// FindByEmail retrieves a user by email, or nil when it does not exist
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "find user by email", "email = ?", email)
}

func (r *UserRepo) first(ctx context.Context, op, cond string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(cond, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Persistence(op, err)
	}
	return &user, nil
}

// CreateUser inserts a user, assigning an ID when none is set
func (r *UserRepo) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Invalid("email", "email %s is already registered", user.Email)
	}
	return apperr.Persistence("create user", err)
}

// UpdateUser writes the display name and bio of an existing user
func (r *UserRepo) UpdateUser(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"display_name": user.DisplayName,
			"bio":          user.Bio,
		})
	if res.Error != nil {
		return apperr.Persistence("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("User", user.ID)
	}
	return nil
}
