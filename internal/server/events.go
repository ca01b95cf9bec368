// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the REST + WebSocket API. Handlers call the
// workflow coordinator for mutations; completions reach connected WebSocket
// clients through the CompletionFeed listener.
package server

import (
	"context"
	"sync"

	"github.com/crowdserve/crowdserve/internal/logger"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/protocol"

	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// CompletionFeed is a completion listener that queues events for live
// clients. Queuing never blocks the completing request: when the queue is
// full the event is dropped.
type CompletionFeed struct {
	events chan protocol.Event
}

// NewCompletionFeed creates a feed with room for buffer pending events
func NewCompletionFeed(buffer int) *CompletionFeed {
	return &CompletionFeed{events: make(chan protocol.Event, buffer)}
}

// OnTaskCompleted queues a TaskCompletedEvent for task
func (f *CompletionFeed) OnTaskCompleted(_ context.Context, task *models.Task) error {
	event := protocol.NewTaskCompletedEvent(task)
	select {
	case f.events <- event:
	default:
		getLog().Warn().Str("task_id", task.ID).Msg("Completion feed full, dropping live event")
	}
	return nil
}

// Events returns the queue the broadcaster drains
func (f *CompletionFeed) Events() <-chan protocol.Event {
	return f.events
}

// EventBroadcaster reads every queued event and fans it out to all
// connected WebSocket clients.
type EventBroadcaster struct {
	eventChan <-chan protocol.Event
	clients   *ClientRegistry
}

// NewEventBroadcaster creates a broadcaster over eventChan.
func NewEventBroadcaster(eventChan <-chan protocol.Event, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Run reads events until the channel is closed or context is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(event)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(event protocol.Event) {
	if b.clients != nil {
		b.clients.Broadcast(event)
	}
}
