// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the messages the server pushes to live clients.
package protocol

// Metadata contains common fields for every pushed event.
type Metadata struct {
	// TaskID serves as the correlation ID for task-related events
	TaskID string `json:"task_id,omitempty"`

	// IdempotencyKey lets clients drop an event they already handled.
	// It is stable for a given task version.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Version indicates the protocol version, "v{major}.{minor}.{patch}"
	Version string `json:"version"`
}

// CurrentProtocolVersion defines the current version of the protocol.
const CurrentProtocolVersion = "v1.0.0"

// Event is anything that can be pushed to a live client.
type Event interface {
	GetMetadata() Metadata
}

// GetIdempotencyKey extracts the idempotency key from any event
func GetIdempotencyKey(event Event) string {
	return event.GetMetadata().IdempotencyKey
}
