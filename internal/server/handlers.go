// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crowdserve/crowdserve/internal/apperr"
	"github.com/crowdserve/crowdserve/internal/marketplace/models"
	"github.com/crowdserve/crowdserve/internal/marketplace/services"

	"github.com/go-chi/chi/v5"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	workflow      *services.Coordinator
	notifications *services.NotificationService
	users         *services.UserService
}

// NewHandlers creates the handler set.
func NewHandlers(workflow *services.Coordinator, notifications *services.NotificationService, users *services.UserService) *Handlers {
	return &Handlers{workflow: workflow, notifications: notifications, users: users}
}

// --- response shapes ---

type errorResponse struct {
	Error   string              `json:"error"`
	Context string              `json:"context,omitempty"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

type taskListResponse struct {
	Filter string         `json:"filter,omitempty"`
	Tasks  []*models.Task `json:"tasks"`
}

type notificationListResponse struct {
	Notifications []*models.Notification `json:"notifications"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps an apperr kind to its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.Kind(err)

	status := http.StatusInternalServerError
	switch kind {
	case "not_found":
		status = http.StatusNotFound
	case "forbidden":
		status = http.StatusForbidden
	case "invalid_state", "conflict":
		status = http.StatusConflict
	case "validation":
		status = http.StatusBadRequest
	case "":
		kind = "internal"
	}

	resp := errorResponse{Error: kind, Context: err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		getLog().Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("Request failed")
		// Storage details stay in the log.
		resp.Context = "internal error"
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "validation", Context: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation", Context: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// --- users ---

// RegisterUser handles POST /api/v1/users
func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var reg services.Registration
	if !decodeJSON(w, r, &reg) {
		return
	}
	user, err := h.users.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /api/v1/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/v1/users/me
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd services.ProfileUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	actor := GetActorID(r.Context())
	user, err := h.users.UpdateProfile(r.Context(), actor, actor, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// --- tasks ---

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var spec services.TaskSpec
	if !decodeJSON(w, r, &spec) {
		return
	}
	task, err := h.workflow.CreateTask(r.Context(), spec, GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks handles GET /api/v1/tasks?status=open|assigned|completed|cancelled
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = string(models.TaskStatusOpen)
	}
	strategy, err := services.StrategyByName(status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tasks, err := h.workflow.FilterTasks(r.Context(), strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskListResponse{Filter: strategy.Name, Tasks: emptyIfNil(tasks)})
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.workflow.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// AcceptTask handles POST /api/v1/tasks/{id}/accept
func (h *Handlers) AcceptTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.workflow.AcceptTask(r.Context(), chi.URLParam(r, "id"), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CompleteTask handles POST /api/v1/tasks/{id}/complete
func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.workflow.CompleteTaskAs(r.Context(), chi.URLParam(r, "id"), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CancelTask handles POST /api/v1/tasks/{id}/cancel
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.workflow.CancelTask(r.Context(), chi.URLParam(r, "id"), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.DeleteTask(r.Context(), chi.URLParam(r, "id"), GetActorID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MyTasks handles GET /api/v1/me/tasks
func (h *Handlers) MyTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.workflow.TasksForUser(r.Context(), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: emptyIfNil(tasks)})
}

// --- notifications ---

// ListNotifications handles GET /api/v1/notifications
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.notifications.ListForUser(r.Context(), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: emptyIfNil(ns)})
}

// ListUnread handles GET /api/v1/notifications/unread
func (h *Handlers) ListUnread(w http.ResponseWriter, r *http.Request) {
	ns, err := h.notifications.ListUnread(r.Context(), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: emptyIfNil(ns)})
}

// CountUnread handles GET /api/v1/notifications/unread/count
func (h *Handlers) CountUnread(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.CountUnread(r.Context(), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	marked, err := h.notifications.MarkAllRead(r.Context(), GetActorID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": marked})
}
