// Copyright (C) 2026 CrowdServe
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/crowdserve/crowdserve/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	maxClients    = 1000
	clientBacklog = 64
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	writeWait     = 10 * time.Second
)

// subscription selects the events one live client receives: those
// concerning its user, optionally narrowed to a single task.
type subscription struct {
	userID string
	taskID string
}

type taskScoped interface {
	GetTaskID() string
}

type userScoped interface {
	GetUserIDs() []string
}

func (s subscription) matches(event protocol.Event) bool {
	us, ok := event.(userScoped)
	if !ok || !slices.Contains(us.GetUserIDs(), s.userID) {
		return false
	}
	if s.taskID == "" {
		return true
	}
	ts, ok := event.(taskScoped)
	return ok && ts.GetTaskID() == s.taskID
}

// feedClient is one connected WebSocket. Its subscription is fixed at
// connect time.
type feedClient struct {
	conn *websocket.Conn
	sub  subscription
	send chan []byte
}

// ClientRegistry tracks connected clients and fans events out to them.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[*feedClient]struct{})}
}

// Len returns the number of connected clients.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// envelope is the server → client message shape.
type envelope struct {
	Type    string         `json:"type"`
	Payload protocol.Event `json:"payload"`
}

// Broadcast queues event for every client whose subscription matches.
// Clients with a full backlog miss the event.
func (r *ClientRegistry) Broadcast(event protocol.Event) {
	data, err := json.Marshal(envelope{Type: "event", Payload: event})
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal live event")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		if !c.sub.matches(event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			getLog().Warn().Str("user_id", c.sub.userID).Msg("Dropping live event for slow client")
		}
	}
}

func (r *ClientRegistry) add(c *feedClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= maxClients {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

func (r *ClientRegistry) remove(c *feedClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

// HandleWebSocket streams completion events concerning the acting user.
// An optional task_id query parameter narrows the stream to one task.
// Must be mounted behind RequireIdentity.
func HandleWebSocket(registry *ClientRegistry, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		sub := subscription{
			userID: GetActorID(r.Context()),
			taskID: r.URL.Query().Get("task_id"),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			getLog().Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		c := &feedClient{conn: conn, sub: sub, send: make(chan []byte, clientBacklog)}
		if !registry.add(c) {
			getLog().Warn().Msg("WebSocket connection limit reached")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
			conn.Close()
			return
		}
		getLog().Info().Str("user_id", sub.userID).Str("task_id", sub.taskID).Msg("Live client connected")

		go c.writeLoop()
		c.readLoop(registry)
	}
}

// readLoop only services control frames; the feed is one-way. It returns
// when the client goes away.
func (c *feedClient) readLoop(registry *ClientRegistry) {
	defer func() {
		registry.remove(c)
		close(c.send)
		c.conn.Close()
		getLog().Info().Str("user_id", c.sub.userID).Msg("Live client disconnected")
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				getLog().Debug().Err(err).Msg("Live client read error")
			}
			return
		}
	}
}

func (c *feedClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Debug().Err(err).Msg("Live client write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
