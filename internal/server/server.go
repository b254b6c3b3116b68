// Package server exposes the minimal operational HTTP surface: liveness and
// a status snapshot. The product API is a separate collaborator and does
// not live here.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Server is the ops HTTP server.
type Server struct {
	httpServer *http.Server
	jobNames   func() []string
	startedAt  time.Time
	log        zerolog.Logger
}

// New creates the ops server. jobNames reports the scheduler's registered
// jobs on /status; pass nil when running without a scheduler.
func New(addr string, jobNames func() []string, log zerolog.Logger) *Server {
	s := &Server{
		jobNames:  jobNames,
		startedAt: time.Now().UTC(),
		log:       log.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed
// on clean shutdown like net/http does.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("Ops server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Goroutines    int      `json:"goroutines"`
	MemUsedPct    float64  `json:"memory_used_pct"`
	CPUPct        float64  `json:"cpu_pct"`
	Jobs          []string `json:"jobs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}
	if s.jobNames != nil {
		resp.Jobs = s.jobNames()
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedPct = memStat.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to read memory statistics")
	}

	// A short sample keeps the endpoint responsive for pollers.
	if cpuPct, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPct) > 0 {
		resp.CPUPct = cpuPct[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read CPU percentage")
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
