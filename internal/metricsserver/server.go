// Package metricsserver exposes the last completed run's metrics artifact
// over HTTP: a small http.Server wrapping a handful of read-only JSON and
// CSV endpoints over files already written to disk, nothing templated or
// interactive.
package metricsserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sublinear-mpc/matching/pkg/errors"
	"github.com/sublinear-mpc/matching/pkg/utils"
)

// Server serves metrics_run.json (and, alongside it, metrics_run.csv) out
// of a directory populated by `matchctl run --metrics-out`.
type Server struct {
	dir    string
	port   int
	logger utils.Logger
	server *http.Server
}

// NewServer builds a server rooted at dir, listening on port once Start
// is called.
func NewServer(dir string, port int, logger utils.Logger) *Server {
	return &Server{dir: dir, port: port, logger: logger}
}

// Start blocks serving until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/phases.csv", s.handlePhasesCSV)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("serving metrics from %s at http://localhost:%d", s.dir, s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(errors.CodeIOError, "serving metrics http", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.dir, "metrics_run.json")
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("no run metrics at %s: %v", path, err), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handlePhasesCSV(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.dir, "metrics_run.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("no phase csv at %s: %v", path, err), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
