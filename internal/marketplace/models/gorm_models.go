// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"regexp"
	"time"

	"gorm.io/gorm"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "OPEN"
	TaskStatusAssigned  TaskStatus = "ASSIGNED"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsValid reports whether ts is one of the four known states
func (ts TaskStatus) IsValid() bool {
	switch ts {
	case TaskStatusOpen, TaskStatusAssigned, TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves ts
func (ts TaskStatus) IsTerminal() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusCancelled
}

// RequiresWorker reports whether a task in this status must have a worker
func (ts TaskStatus) RequiresWorker() bool {
	return ts == TaskStatusAssigned || ts == TaskStatusCompleted
}

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_.@]{1,128}$`)

// IsValidUserID reports whether id can be carried in the identity header
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// User represents the GORM model for users
type User struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	DisplayName string    `gorm:"not null;type:text" json:"display_name"`
	Email       string    `gorm:"not null;type:text;uniqueIndex" json:"email"`
	Bio         string    `gorm:"type:text" json:"bio,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// Task represents the GORM model for tasks
type Task struct {
	ID          string     `gorm:"primaryKey;type:text" json:"id"`
	Title       string     `gorm:"not null;type:text" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Location    string     `gorm:"type:text" json:"location"`
	Reward      float64    `gorm:"not null;default:0" json:"reward"`
	Status      TaskStatus `gorm:"not null;type:text;index" json:"status"`
	PosterID    string     `gorm:"not null;type:text;index" json:"poster_id"`
	WorkerID    *string    `gorm:"type:text;index" json:"worker_id,omitempty"`
	Version     int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Poster *User `gorm:"foreignKey:PosterID" json:"poster,omitempty"`
	Worker *User `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
}

// TableName returns the table name for Task
func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// HasWorker reports whether a worker is assigned
func (t *Task) HasWorker() bool {
	return t.WorkerID != nil && *t.WorkerID != ""
}

// IsPostedBy reports whether userID owns the task
func (t *Task) IsPostedBy(userID string) bool {
	return t.PosterID == userID
}

// IsWorkedBy reports whether userID is the assigned worker
func (t *Task) IsWorkedBy(userID string) bool {
	return t.HasWorker() && *t.WorkerID == userID
}

// SetWorker assigns (or clears, when w is nil) the worker reference
func (t *Task) SetWorker(w *User) {
	if w == nil {
		t.WorkerID = nil
		t.Worker = nil
		return
	}
	id := w.ID
	t.WorkerID = &id
	t.Worker = w
}

// CheckInvariants verifies the worker/status and poster/worker invariants.
// It returns a description of the first violation, or "" if none.
func (t *Task) CheckInvariants() string {
	if t.Status.RequiresWorker() && !t.HasWorker() {
		return "status " + t.Status.String() + " requires a worker"
	}
	if !t.Status.RequiresWorker() && t.HasWorker() {
		return "status " + t.Status.String() + " must not have a worker"
	}
	if t.HasWorker() && *t.WorkerID == t.PosterID {
		return "poster and worker must differ"
	}
	return ""
}

// Notification represents the GORM model for notifications
type Notification struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	UserID    string    `gorm:"not null;type:text;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Title     string    `gorm:"not null;type:text" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	TaskID    *string   `gorm:"type:text;index" json:"task_id,omitempty"`
	CreatedAt time.Time `gorm:"not null;index:idx_notifications_user_created,priority:2" json:"created_at"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"read"`
}

// TableName returns the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return nil
}
