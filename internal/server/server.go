// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/crowdserve/crowdserve/internal/config"
	"github.com/crowdserve/crowdserve/internal/marketplace/services"

	"github.com/go-chi/chi/v5"
)

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
	clients     *ClientRegistry
}

// New creates and wires up the API server. It does NOT start listening;
// call Run() for that. feed must already be subscribed to workflow.
func New(
	cfg *config.ServerConfig,
	workflow *services.Coordinator,
	notifications *services.NotificationService,
	users *services.UserService,
	feed *CompletionFeed,
) *Server {
	registry := NewClientRegistry()
	broadcaster := NewEventBroadcaster(feed.Events(), registry)
	handlers := NewHandlers(workflow, notifications, users)

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Identity(cfg.IdentityHeader))
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins, cfg.IdentityHeader))
	r.Use(MaxBodySize(cfg.MaxBodyBytes))

	// REST routes
	r.Route("/api/v1", func(r chi.Router) {
		// Registration and profile lookup need no acting user.
		r.Post("/users", handlers.RegisterUser)
		r.Get("/users/{id}", handlers.GetUser)
		r.Get("/tasks", handlers.ListTasks)
		r.Get("/tasks/{id}", handlers.GetTask)

		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)

			r.Put("/users/me", handlers.UpdateProfile)

			r.Post("/tasks", handlers.CreateTask)
			r.Delete("/tasks/{id}", handlers.DeleteTask)
			r.Post("/tasks/{id}/accept", handlers.AcceptTask)
			r.Post("/tasks/{id}/complete", handlers.CompleteTask)
			r.Post("/tasks/{id}/cancel", handlers.CancelTask)
			r.Get("/me/tasks", handlers.MyTasks)

			r.Get("/notifications", handlers.ListNotifications)
			r.Get("/notifications/unread", handlers.ListUnread)
			r.Get("/notifications/unread/count", handlers.CountUnread)
			r.Post("/notifications/read-all", handlers.MarkAllRead)
			r.Post("/notifications/{id}/read", handlers.MarkRead)
		})
	})

	// WebSocket: each client only hears about its own tasks
	r.With(RequireIdentity).Get("/ws", HandleWebSocket(registry, cfg.AllowedOrigins))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		broadcaster: broadcaster,
		clients:     registry,
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// StartBroadcaster runs the event broadcaster in the background until ctx
// is cancelled, restarting it after a panic a bounded number of times.
func (s *Server) StartBroadcaster(ctx context.Context) {
	go func() {
		const maxRetries = 3
		for attempt := 1; attempt <= maxRetries; attempt++ {
			func() {
				defer func() {
					if r := recover(); r != nil {
						getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
					}
				}()
				s.broadcaster.Run(ctx)
			}()

			// Normal return (context cancelled): exit without retry.
			if ctx.Err() != nil {
				return
			}

			if attempt < maxRetries {
				getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster after panic")
				time.Sleep(1 * time.Second)
			}
		}
		getLog().Error().Msg("Event broadcaster exhausted retries - live events will no longer be dispatched")
	}()
}

// Run starts the event broadcaster and the HTTP server.
// Blocks until the server is shut down.
func (s *Server) Run(ctx context.Context) error {
	s.StartBroadcaster(ctx)

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
