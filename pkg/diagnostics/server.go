// Package diagnostics provides an HTTP endpoint exposing exporter status.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otlpmetrics/internal/constants"
	"github.com/hyp3rd/otlpmetrics/pkg/config"
	"github.com/hyp3rd/otlpmetrics/pkg/logging"
)

// StatusPath is the route serving the JSON snapshot.
const StatusPath = "/otlpmetrics/status"

// Snapshot captures the exporter state for the diagnostics endpoint.
type Snapshot struct {
	Library     string        `json:"library"`
	Version     string        `json:"version"`
	Endpoint    string        `json:"endpoint"`
	Path        string        `json:"path"`
	Compression string        `json:"compression"`
	Timeout     string        `json:"timeout"`
	StartTime   time.Time     `json:"start_time"`
	Shutdown    bool          `json:"shutdown"`
	Exports     ExportCounts  `json:"exports"`
	LastError   ExporterError `json:"last_error"`
	Timestamp   time.Time     `json:"timestamp"`
}

// ExportCounts aggregates export outcomes since construction.
type ExportCounts struct {
	Succeeded       int64            `json:"succeeded"`
	Failed          int64            `json:"failed"`
	FailuresByPhase map[string]int64 `json:"failures_by_phase,omitempty"`
}

// ExporterError describes the most recent failed export.
type ExporterError struct {
	Phase   string    `json:"phase,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// SnapshotProvider supplies diagnostic snapshots.
type SnapshotProvider interface {
	Snapshot() Snapshot
}

// Server exposes exporter status over HTTP for operational diagnostics.
type Server struct {
	cfg      config.DiagnosticsConfig
	provider SnapshotProvider
	logger   logging.Adapter

	server *http.Server
	addr   net.Addr
	mu     sync.Mutex
	start  sync.Once
	stop   sync.Once
	done   chan struct{}
}

// NewServer constructs a diagnostics server. A nil logger discards server errors.
func NewServer(cfg config.DiagnosticsConfig, provider SnapshotProvider, logger logging.Adapter) *Server {
	if logger == nil {
		logger = logging.NewNoopAdapter()
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins serving the diagnostics endpoint until the supplied context is canceled or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.HTTPAddr == "" {
		return ewrap.New("diagnostics http_addr is required")
	}

	var startErr error

	s.start.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc(StatusPath, s.HandleStatus)

		lc := net.ListenConfig{}

		ln, err := lc.Listen(ctx, "tcp", s.cfg.HTTPAddr)
		if err != nil {
			startErr = ewrap.Wrap(err, "listen diagnostics")

			return
		}

		s.mu.Lock()
		s.server = &http.Server{
			Addr:              s.cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		}
		s.addr = ln.Addr()
		srv := s.server
		s.mu.Unlock()

		go func() {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultShutdownTimeout)
			defer cancel()

			err := s.Shutdown(shutdownCtx)
			if err != nil {
				s.logger.Error(shutdownCtx, err, "shutdown diagnostics server")
			}
		}()

		go func() {
			err := srv.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error(ctx, err, "diagnostics server stopped")
			}
		}()
	})

	return startErr
}

// Addr reports the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addr
}

// Shutdown stops the diagnostics server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.stop.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.server == nil {
			return
		}

		ctxShutdown, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
		defer cancel()

		shutdownErr = s.server.Shutdown(ctxShutdown)
		s.server = nil
	})

	if shutdownErr != nil {
		return ewrap.Wrap(shutdownErr, "shutdown diagnostics server")
	}

	return nil
}

// HandleStatus serves StatusPath with a JSON snapshot of the exporter.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)

		return
	}

	if s.cfg.AuthToken != "" {
		if !validAuth(r.Header.Get("Authorization"), s.cfg.AuthToken) {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}
	}

	snapshot := s.provider.Snapshot()
	snapshot.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(snapshot)
	if err != nil {
		s.logger.Error(r.Context(), err, "encode diagnostics snapshot")
	}
}

func validAuth(header, token string) bool {
	const prefix = "Bearer "

	if header == "" {
		return false
	}

	if !strings.HasPrefix(header, prefix) {
		return false
	}

	return strings.TrimSpace(header[len(prefix):]) == token
}
