// Package statusserver exposes the live memory aggregate of a monitored
// run over HTTP.
package statusserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/charmitro/peak-mem/internal/tracker"
	"github.com/charmitro/peak-mem/pkg/model"
)

// Source is the live run state. *tracker.Tracker satisfies it.
type Source interface {
	Current() tracker.Aggregate
	Timeline() []model.TimelinePoint
}

// Server serves /healthz, /status and /timeline.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	version   string
	command   []string

	mu  sync.RWMutex
	pid model.ProcessID
	src Source

	httpServer *http.Server
}

// Option configures optional Server settings.
type Option func(*Server)

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server for command. Run state is served once Attach is
// called.
func New(command []string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "statusserver"),
		startTime: time.Now(),
		version:   "dev",
		command:   command,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Attach binds the server to a running child and its tracker.
func (s *Server) Attach(pid model.ProcessID, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid = pid
	s.src = src
}

func (s *Server) attached() (model.ProcessID, Source) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pid, s.src
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/timeline", s.handleTimeline)
}

// Listen binds addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		s.logger.Info("status server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server failed", "error", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops a server started with Listen.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, middleware.GetReqID(r.Context()), healthResponse{
		Status:    "healthy",
		Version:   s.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

type statusResponse struct {
	Command []string        `json:"command"`
	PID     model.ProcessID `json:"pid"`
	State   string          `json:"state"`
	Elapsed string          `json:"elapsed"`
	tracker.Aggregate
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	pid, src := s.attached()
	if src == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, "NOT_STARTED", "command has not started")
		return
	}
	agg := src.Current()
	state := "running"
	if agg.Finalized {
		state = "finished"
	}
	respondOK(w, reqID, statusResponse{
		Command:   s.command,
		PID:       pid,
		State:     state,
		Elapsed:   time.Since(s.startTime).Round(time.Millisecond).String(),
		Aggregate: agg,
	})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	_, src := s.attached()
	if src == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, "NOT_STARTED", "command has not started")
		return
	}
	points := src.Timeline()
	if points == nil {
		points = []model.TimelinePoint{}
	}
	respondOK(w, reqID, points)
}
