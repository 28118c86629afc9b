package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	boardsync "github.com/avasseur/boardsync/internal/sync"
	"github.com/coder/websocket"
)

// EventType tags a websocket broadcast.
type EventType string

const (
	EventSyncStarted   EventType = "sync_started"
	EventSyncCompleted EventType = "sync_completed"
)

// Event is one message pushed to connected dashboard clients.
type Event struct {
	Type      EventType            `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	Result    *boardsync.RunResult `json:"result,omitempty"`
}

// Publish queues an event for broadcast. Full queues drop the event
// rather than block the sync path.
func (s *Server) Publish(ev Event) {
	select {
	case s.broadcast <- ev:
	case <-s.ctx.Done():
	default:
		slog.Warn("broadcast queue full, dropping event", "type", ev.Type)
	}
}

// NotifyRunStart adapts Publish to the scheduler's start hook. It only
// fires for runs that actually begin, so a busy-rejected trigger never
// broadcasts a started event without a matching completion.
func (s *Server) NotifyRunStart() {
	s.Publish(Event{Type: EventSyncStarted})
}

// NotifyRunComplete adapts Publish to the scheduler's completion hook.
func (s *Server) NotifyRunComplete(result *boardsync.RunResult) {
	s.Publish(Event{Type: EventSyncCompleted, Result: result})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.broadcast:
			if ev.Timestamp.IsZero() {
				ev.Timestamp = time.Now()
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("failed to marshal event", "error", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	slog.Debug("websocket client connected", "clients", count)

	// Read loop: clients send nothing meaningful, but reading detects
	// disconnects and answers control frames.
	go func() {
		defer s.removeClient(conn)
		for {
			if _, _, err := conn.Read(s.ctx); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if s.clients[conn] {
		delete(s.clients, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	s.clientsMu.Unlock()
}
