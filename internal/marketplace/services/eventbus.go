// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"sync"

	"github.com/crowdserve/crowdserve/internal/marketplace/models"
)

// Listener reacts to a task reaching COMPLETED
type Listener interface {
	OnTaskCompleted(ctx context.Context, task *models.Task) error
}

// ListenerFunc adapts a plain function to Listener
type ListenerFunc func(ctx context.Context, task *models.Task) error

// OnTaskCompleted calls f(ctx, task)
func (f ListenerFunc) OnTaskCompleted(ctx context.Context, task *models.Task) error {
	return f(ctx, task)
}

// EventBus delivers completion events to subscribed listeners.
// Delivery is synchronous and follows subscription order.
type EventBus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe appends l. Subscribing the same listener twice delivers twice.
func (b *EventBus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Len returns the number of subscriptions
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands task to every listener in order. The first listener error
// stops delivery and is returned as is.
func (b *EventBus) Publish(ctx context.Context, task *models.Task) error {
	b.mu.RLock()
	snapshot := make([]Listener, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for i, l := range snapshot {
		if err := l.OnTaskCompleted(ctx, task); err != nil {
			getWorkflowLog().Warn().
				Err(err).
				Str("task_id", task.ID).
				Int("listener", i).
				Str("listener_type", typeName(l)).
				Msg("Completion listener failed, stopping delivery")
			return err
		}
	}
	return nil
}
