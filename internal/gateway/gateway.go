// Package gateway exposes the administrative HTTP surface: quota
// inspection and reset, handler health, stored entries, and event
// injection.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pawdiary/pawdiary/internal/bus"
	"github.com/pawdiary/pawdiary/internal/config"
	"github.com/pawdiary/pawdiary/internal/event"
	"github.com/pawdiary/pawdiary/internal/journal"
	"github.com/pawdiary/pawdiary/internal/quota"
	"github.com/pawdiary/pawdiary/internal/registry"
)

// Server is the admin HTTP server. All endpoints are thin read-mostly
// wrappers over the engine's operations.
type Server struct {
	cfg      config.GatewayConfig
	sched    *quota.Scheduler
	registry *registry.Registry
	store    *journal.Store
	bus      *bus.EventBus
	catalog  *event.Catalog
}

// New creates a gateway server over the engine's collaborators.
func New(cfg config.GatewayConfig, sched *quota.Scheduler, reg *registry.Registry, store *journal.Store, b *bus.EventBus, catalog *event.Catalog) *Server {
	return &Server{
		cfg:      cfg,
		sched:    sched,
		registry: reg,
		store:    store,
		bus:      b,
		catalog:  catalog,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.auth(s.handleStatus))
	mux.HandleFunc("/api/v1/quota", s.auth(s.handleQuota))
	mux.HandleFunc("/api/v1/quota/reset", s.auth(s.handleQuotaReset))
	mux.HandleFunc("/api/v1/handlers", s.auth(s.handleHandlers))
	mux.HandleFunc("/api/v1/handlers/restart", s.auth(s.handleRestart))
	mux.HandleFunc("/api/v1/categories", s.auth(s.handleCategories))
	mux.HandleFunc("/api/v1/entries", s.auth(s.handleEntries))
	mux.HandleFunc("/api/v1/routes", s.auth(s.handleRoutes))
	mux.HandleFunc("/api/v1/events", s.auth(s.handleInjectEvent))
	return mux
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Admin gateway listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// auth enforces bearer-token auth when a token is configured.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != s.cfg.APIToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"pendingEvents":  s.bus.PendingEvents(),
		"pendingEntries": s.bus.PendingEntries(),
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.CurrentState())
}

func (s *Server) handleQuotaReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req struct {
		Day   string `json:"day"`
		Quota *int   `json:"quota"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Day == "" {
		req.Day = time.Now().Format("2006-01-02")
	}
	if req.Quota != nil {
		s.sched.ResetForDayWithQuota(req.Day, *req.Quota)
	} else {
		s.sched.ResetForDay(req.Day)
	}
	slog.Info("Quota reset via admin API", "day", req.Day)
	writeJSON(w, http.StatusOK, s.sched.CurrentState())
}

func (s *Server) handleHandlers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.AllHealth())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	category := r.URL.Query().Get("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	if err := s.registry.Restart(category); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": category, "status": "restarted"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"registered": s.registry.Categories(),
		"known":      s.catalog.Categories(),
	})
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	filter := journal.FilterArgs{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("category"); v != "" {
		filter.Category = v
	}
	if v := r.URL.Query().Get("subjectId"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.SubjectID = n
		}
	}
	entries, err := s.store.ListEntries(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	recs, err := s.store.RecentRoutes(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleInjectEvent accepts a raw event payload and queues it for
// routing, same path as stream intake.
func (s *Server) handleInjectEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload: "+err.Error())
		return
	}
	if err := s.catalog.Validate(&ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.bus.PublishEvent(&ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"eventId": ev.ID, "status": "queued"})
}
