// Package adminhttp is the localhost-only admin HTTP server
// (SPEC_FULL §4.6): /status, /metrics, /healthz. It never exposes the
// watchdog over the network and accepts no mutating requests — a
// local introspection aid for cmd/osqueryctl, not a control plane.
package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/pathcl/osquery/internal/watchdog"
)

// Server wraps an http.Server bound to 127.0.0.1.
type Server struct {
	http     *http.Server
	registry *watchdog.Registry
	promReg  *prometheus.Registry
	iterated atomic.Bool
}

// New builds the admin server, registering collector with its own
// Prometheus registry (not the global default, so osqueryd never
// picks up process/go collectors it doesn't intend to expose).
func New(addr string, registry *watchdog.Registry, collector prometheus.Collector) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	s := &Server{registry: registry, promReg: reg}

	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/metrics.txt", s.handlePlaintext).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// MarkIterated records that the control loop completed at least one
// pass; /healthz reports healthy only after this has been called.
func (s *Server) MarkIterated() {
	s.iterated.Store(true)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.registry.TakeSnapshot(time.Now())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handlePlaintext gathers the same metric families /metrics exposes
// but encodes them directly in the classic text format rather than
// negotiating via promhttp.Handler, for scrapers that pipe the
// response straight to a file or a tool that doesn't set Accept.
func (s *Server) handlePlaintext(w http.ResponseWriter, r *http.Request) {
	mfs, err := s.promReg.Gather()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.FmtText))
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.iterated.Load() || s.registry.FatesBound() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListenAndServe starts serving; returns on error or Shutdown.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server, satisfying the
// shutdown.Manager's StopHTTPServer shape.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
