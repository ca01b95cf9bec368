// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"fmt"
	"time"

	"github.com/crowdserve/crowdserve/internal/marketplace/models"

	"github.com/google/uuid"
)

// EventType names the kind of a pushed event on the wire
type EventType string

const (
	EventTaskCompleted EventType = "task_completed"
)

// TaskCompletedEvent is pushed when a task reaches COMPLETED
type TaskCompletedEvent struct {
	Metadata
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Reward      float64   `json:"reward"`
	PosterID    string    `json:"poster_id"`
	WorkerID    string    `json:"worker_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e TaskCompletedEvent) GetMetadata() Metadata {
	return e.Metadata
}

// GetTaskID returns the completed task's id
func (e TaskCompletedEvent) GetTaskID() string { return e.TaskID }

// GetUserIDs returns the users the event concerns
func (e TaskCompletedEvent) GetUserIDs() []string {
	if e.WorkerID == "" {
		return []string{e.PosterID}
	}
	return []string{e.PosterID, e.WorkerID}
}

// NewTaskCompletedEvent builds the event for a completed task
func NewTaskCompletedEvent(task *models.Task) TaskCompletedEvent {
	var workerID string
	if task.HasWorker() {
		workerID = *task.WorkerID
	}
	return TaskCompletedEvent{
		Metadata: Metadata{
			TaskID:         task.ID,
			IdempotencyKey: completionKey(task),
			Version:        CurrentProtocolVersion,
		},
		Type:        EventTaskCompleted,
		Title:       task.Title,
		Reward:      task.Reward,
		PosterID:    task.PosterID,
		WorkerID:    workerID,
		CompletedAt: task.UpdatedAt,
	}
}

// completionKey derives a name-based UUID from the task id and version, so
// the same completion always yields the same key.
func completionKey(task *models.Task) string {
	name := fmt.Sprintf("%s:%s:%d", EventTaskCompleted, task.ID, task.Version)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
