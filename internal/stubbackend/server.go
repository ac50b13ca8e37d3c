// Package stubbackend is an in-memory realization of the hosted backend's
// contract: row queries, remote procedures, auth-session lookup and a
// websocket change feed. It backs cmd/local-backend and the wire-level tests.
package stubbackend

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"align-five/internal/logging"
)

type Server struct {
	store  *Store
	hub    *feedHub
	router *chi.Mux
}

// New builds a stub backend. Each seed user gets a profile whose display
// name matches the id, and authenticates with a bearer token equal to it.
func New(seedUsers []string) *Server {
	hub := newFeedHub()
	st := newStore(hub)
	for _, u := range seedUsers {
		st.seedProfile(u, u)
	}
	s := &Server{store: st, hub: hub}
	s.router = s.newRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Store exposes the data plane for test seeding.
func (s *Server) Store() *Store { return s.store }

// DropFeeds severs every realtime subscriber, simulating silent channel
// death.
func (s *Server) DropFeeds() { s.hub.CloseAll() }

func (s *Server) newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	logmw := httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:  slog.LevelDebug,
			Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
		},
	)

	r.Get("/realtime/v1", s.hub.HandleWS)
	r.Group(func(r chi.Router) {
		r.Use(logmw)
		r.Get("/auth/v1/user", s.handleAuthUser)
		r.Get("/rest/v1/{table}", s.handleSelect)
		r.Post("/rest/v1/rpc/{name}", s.handleRPC)
		r.Post("/rest/v1/{table}", s.handleInsert)
		r.Patch("/rest/v1/{table}", s.handleUpdate)
	})
	return r
}

func bearerUser(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleAuthUser(w http.ResponseWriter, r *http.Request) {
	user := bearerUser(r)
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": user})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if bearerUser(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
		return
	}
	table := chi.URLParam(r, "table")
	rows := s.store.Select(table, r.URL.Query())
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	if bearerUser(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
		return
	}
	table := chi.URLParam(r, "table")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	row, err := s.store.Insert(table, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, []any{row})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if bearerUser(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
		return
	}
	table := chi.URLParam(r, "table")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	rows, err := s.store.Update(table, r.URL.Query(), body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	user := bearerUser(r)
	if user == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing token"})
		return
	}
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	result, err := s.store.callRPC(name, user, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
