package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bdobrica/Shashin/common/version"
)

// HealthServer exposes /health, /status and /metrics.
// It is optional; Shashin runs without it when HTTPAddr is empty.
type HealthServer struct {
	addr      string
	db        dbProvider
	sessions  sessionCounter
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// dbProvider is the part of the store the health server needs.
type dbProvider interface {
	Ping(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
}

type sessionCounter interface {
	Len() int
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	Commit        string    `json:"commit"`
	BuildTime     string    `json:"build_time"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSecs    float64   `json:"uptime_seconds"`
	Sessions      int       `json:"sessions"`
	SchemaVersion int       `json:"schema_version"`
}

// NewHealthServer creates and configures the HTTP server (does not start it).
// db and sessions may be nil.
func NewHealthServer(addr string, db dbProvider, sessions sessionCounter) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		addr:      addr,
		db:        db,
		sessions:  sessions,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /status", hs.handleStatus)
	mux.Handle("GET /metrics", promhttp.Handler())
	return hs
}

// ServeHTTP lets tests drive the server with httptest.NewRecorder.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. It returns once the listener is
// open and shuts the server down when ctx is cancelled.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("health server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		h.Stop()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (h *HealthServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}
}

// handleHealth reports ok, or 503 when the database is unreachable.
func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	}
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:     "ok",
		Version:    version.Version,
		Commit:     version.GitCommit,
		BuildTime:  version.BuildTime,
		StartedAt:  h.startedAt,
		UptimeSecs: time.Since(h.startedAt).Seconds(),
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	if h.db != nil {
		if v, err := h.db.SchemaVersion(r.Context()); err == nil {
			resp.SchemaVersion = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: failed to encode JSON response", "err", err)
	}
}
