// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"strings"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/store"

	"github.com/go-playground/validator/v10"
)

// Registration is the input for a new directory entry
type Registration struct {
	ID          string `json:"id,omitempty" validate:"omitempty,max=64,userid"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Bio         string `json:"bio" validate:"max=500"`
}

// ProfileUpdate carries the user-editable profile fields
type ProfileUpdate struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Bio         string `json:"bio" validate:"max=500"`
}

// UserService registers and resolves users
type UserService struct {
	users    store.UserDirectory
	validate *validator.Validate
}

// NewUserService creates a user service over users
func NewUserService(users store.UserDirectory) *UserService {
	return &UserService{users: users, validate: newValidator()}
}

// Register creates a user. Emails are unique, compared case-insensitively.
func (s *UserService) Register(ctx context.Context, reg Registration) (*models.User, error) {
	reg.DisplayName = strings.TrimSpace(reg.DisplayName)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if err := validateStruct(s.validate, reg); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, reg.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Invalid("email", "email %s is already registered", reg.Email)
	}

	user := &models.User{
		ID:          reg.ID,
		DisplayName: reg.DisplayName,
		Email:       reg.Email,
		Bio:         reg.Bio,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	getWorkflowLog().Info().Str("user_id", user.ID).Msg("User registered")
	return user, nil
}

// Get returns a user or a NotFoundError
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User", id)
	}
	return user, nil
}

// UpdateProfile replaces the display name and bio of userID. Users may only
// edit their own profile.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, userID string, upd ProfileUpdate) (*models.User, error) {
	if actorID != userID {
		return nil, &apperr.ForbiddenError{
			ActorID: actorID,
			Entity:  "User",
			ID:      userID,
			Reason:  "users may only edit their own profile",
		}
	}
	upd.DisplayName = strings.TrimSpace(upd.DisplayName)
	upd.Bio = strings.TrimSpace(upd.Bio)
	if err := validateStruct(s.validate, upd); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.DisplayName = upd.DisplayName
	user.Bio = upd.Bio
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	getWorkflowLog().Info().Str("user_id", user.ID).Msg("Profile updated")
	return user, nil
}
