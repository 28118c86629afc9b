package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	boardsync "github.com/avasseur/boardsync/internal/sync"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeData(w, map[string]any{
		"status":    "ok",
		"scheduler": s.scheduler.Status().Running,
	})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeData(w, s.scheduler.Status())
}

func (s *Server) handleSyncExecute(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := s.scheduler.RunNow(r.Context(), boardsync.RunOptions{})
	if err != nil {
		if errors.Is(err, boardsync.ErrSyncBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		env := envelope{Success: false, Error: err.Error()}
		if result != nil {
			env.Data = result
		}
		writeJSON(w, http.StatusInternalServerError, env)
		return
	}
	writeData(w, result)
}

func (s *Server) handleSyncStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.scheduler.Start()
	writeData(w, s.scheduler.Status())
}

func (s *Server) handleSyncStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.scheduler.Stop()
	writeData(w, s.scheduler.Status())
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	data, err := s.dash.Availability(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if data == nil {
		writeJSON(w, http.StatusOK, envelope{Success: true, Error: "no availability data found for the current week"})
		return
	}
	writeData(w, data)
}

func (s *Server) handlePlanning(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	data, err := s.dash.Planning(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if data == nil {
		writeJSON(w, http.StatusOK, envelope{Success: true, Error: "no planning data found for the current week"})
		return
	}
	writeData(w, data)
}

func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	data, err := s.dash.Todos(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeData(w, data)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeData(w, s.dash.Week())
}
