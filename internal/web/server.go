// Package web serves the HTTP API: target management, live stats, stored
// history, the live event stream and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lagmon/internal/events"
	"lagmon/internal/logger"
	"lagmon/internal/models"
)

// Engine is the part of the monitor the API drives
type Engine interface {
	Targets() []models.Target
	Target(id string) (models.Target, bool)
	States() []models.TargetState
	AddTarget(spec models.TargetSpec) (models.Target, error)
	RemoveTarget(id string)
	SetActive(id string, active bool) error
	SetTopology(role models.Role, address string) (bool, error)
	RetentionDays() int
	SetRetentionDays(days int) error
	Subscribe(name string, h events.Handler) *events.Subscription
}

// Options configures a Server. DB and Metrics are optional; without them the
// history routes answer 503 and /metrics is not mounted.
type Options struct {
	Port    int
	Engine  Engine
	DB      models.Database
	Metrics http.Handler
	Logger  logger.Logger
}

// Server handles web requests
type Server struct {
	engine  Engine
	db      models.Database
	metrics http.Handler
	log     logger.Logger
	srv     *http.Server
}

// New creates a new web server
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	s := &Server{
		engine:  opts.Engine,
		db:      opts.DB,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Targets and live state
	mux.HandleFunc("GET /api/targets", s.handleListTargets)
	mux.HandleFunc("POST /api/targets", s.handleAddTarget)
	mux.HandleFunc("DELETE /api/targets/{id}", s.handleRemoveTarget)
	mux.HandleFunc("PUT /api/targets/{id}/active", s.handleSetActive)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.HandleFunc("GET /api/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.handleUpdateConfig)

	// History
	mux.HandleFunc("GET /api/recent", s.handleRecent)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/outages", s.handleOutages)
	mux.HandleFunc("GET /api/heatmap", s.handleHeatmap)
	mux.HandleFunc("GET /api/patterns", s.handlePatterns)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistory)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("Web server starting on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones to finish
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
