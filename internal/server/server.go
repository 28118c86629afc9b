// Package server exposes the HTTP API: sync control, dashboard reads, and
// a websocket stream of sync lifecycle events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/avasseur/boardsync/internal/config"
	"github.com/avasseur/boardsync/internal/dashboard"
	boardsync "github.com/avasseur/boardsync/internal/sync"
	"github.com/coder/websocket"
)

// SyncController is the slice of the scheduler the API needs.
type SyncController interface {
	Status() boardsync.Status
	Start()
	Stop()
	RunNow(ctx context.Context, opts boardsync.RunOptions) (*boardsync.RunResult, error)
}

// DashboardProvider serves the read-only dashboard queries.
type DashboardProvider interface {
	Week() dashboard.WeekInfo
	Availability(ctx context.Context) (*dashboard.Availability, error)
	Planning(ctx context.Context) (*dashboard.Planning, error)
	Todos(ctx context.Context) (*dashboard.TodosReport, error)
}

// Server owns the HTTP listener and the websocket client set.
type Server struct {
	addr      string
	scheduler SyncController
	dash      DashboardProvider

	httpServer *http.Server
	listener   net.Listener

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]bool

	broadcast chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server bound to the configured host and port.
func New(cfg config.ServerConfig, scheduler SyncController, dash DashboardProvider) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		scheduler: scheduler,
		dash:      dash,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 100),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/sync/status", s.handleSyncStatus)
	mux.HandleFunc("/api/v1/sync/execute", s.handleSyncExecute)
	mux.HandleFunc("/api/v1/sync/start", s.handleSyncStart)
	mux.HandleFunc("/api/v1/sync/stop", s.handleSyncStop)
	mux.HandleFunc("/api/v1/dashboard/availability", s.handleAvailability)
	mux.HandleFunc("/api/v1/dashboard/planning", s.handlePlanning)
	mux.HandleFunc("/api/v1/dashboard/todos", s.handleTodos)
	mux.HandleFunc("/api/v1/dashboard/week", s.handleWeek)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start begins serving. It returns once the listener is bound; request
// handling runs on background goroutines.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		slog.Info("HTTP server listening", "addr", s.addr)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, useful when the port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown closes websocket clients and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	slog.Info("HTTP server stopped")
	return err
}
