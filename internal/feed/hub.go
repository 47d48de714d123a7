// Package feed streams live pitch session events to websocket subscribers.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event types.
const (
	EventTurn    = "turn"
	EventSummary = "summary"
	EventMatch   = "match"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Event is one update pushed to subscribers of a session.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	PersonaID  string    `json:"persona_id,omitempty"`
	Turn       int       `json:"turn,omitempty"`
	Message    string    `json:"message,omitempty"`
	Mood       string    `json:"mood,omitempty"`
	IsComplete bool      `json:"is_complete,omitempty"`
	Data       any       `json:"data,omitempty"`
	At         time.Time `json:"at"`
}

type subscriber struct {
	ch chan Event
}

// Hub fans out session events to every subscriber of that session.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called to release it.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	if _, ok := h.subs[sessionID]; !ok {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { h.remove(sessionID, sub) })
	}
}

func (h *Hub) remove(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.subs, sessionID)
	}
}

// Publish delivers ev to the session's subscribers. Slow subscribers miss events.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[ev.SessionID] {
		select {
		case sub.ch <- ev:
		default:
			slog.Warn("Feed subscriber too slow, dropping event", "session_id", ev.SessionID, "type", ev.Type)
		}
	}
}

// CloseSession disconnects every subscriber of a session.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		close(sub.ch)
	}
	delete(h.subs, sessionID)
}

// Subscribers returns the number of listeners on a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// ServeSession upgrades the request and streams events until either side closes.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string, originPatterns []string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Warn("Feed websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	events, cancel := h.Subscribe(sessionID)
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels on disconnect.
	ctx := ws.CloseRead(r.Context())
	slog.Info("Feed subscriber connected", "session_id", sessionID)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = ws.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, ws, ev)
			cancelWrite()
			if err != nil {
				slog.Debug("Feed write failed", "session_id", sessionID, "error", err)
				_ = ws.Close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ctx.Done():
			_ = ws.Close(websocket.StatusNormalClosure, "client gone")
			return
		}
	}
}
