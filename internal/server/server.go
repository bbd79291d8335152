/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the dispatcher status API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/elevatord/internal/config"
	"github.com/friendsincode/elevatord/internal/logbuffer"
	"github.com/friendsincode/elevatord/internal/models"
	"github.com/friendsincode/elevatord/internal/strategy"
	"github.com/friendsincode/elevatord/internal/telemetry"
)

// Fleet is the part of the dispatcher the API reads and steers.
type Fleet interface {
	Snapshot() models.FleetSnapshot
	Strategy() strategy.Set
	ChangeStrategy(kind strategy.Kind) error
	RegisterButtonPress(floor int, direction models.Direction) time.Time
	ForceGoToFloor(ctx context.Context, cabinID, floor int) error
	ForceStop(cabinID int) error
	Running() bool
}

// LeaderStatus reports whether this instance is the active dispatcher.
type LeaderStatus interface {
	IsLeader() bool
}

// Server bundles the router and the HTTP server.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	fleet      Fleet
	logBuffer  *logbuffer.Buffer
	leader     LeaderStatus
	closers    []func() error
}

// New builds the status API for fleet. logBuf may be nil, in which case the
// logs endpoint reports it as unavailable.
func New(cfg *config.Config, fleet Fleet, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	if fleet == nil {
		return nil, errors.New("server: fleet is required")
	}
	logger = logger.With().Str("component", "api").Logger()
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("elevatord-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		fleet:     fleet,
		logBuffer: logBuf,
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

// requestLogger logs each request through zerolog at debug level.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// SetLeader makes the health check report standby while another instance
// holds the dispatch lease.
func (s *Server) SetLeader(l LeaderStatus) {
	s.leader = l
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("status API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and runs the registered closers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// DeferClose registers a cleanup hook run by Shutdown.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", telemetry.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/fleet", s.handleFleet)
		r.Get("/strategy", s.handleGetStrategy)
		r.Put("/strategy", s.handlePutStrategy)
		r.Get("/strategies", s.handleStrategies)
		r.Post("/calls", s.handleHallCall)
		r.Post("/cabins/{cabinID}/goto", s.handleForceGoTo)
		r.Post("/cabins/{cabinID}/stop", s.handleForceStop)
		r.Get("/logs", s.handleLogs)
	})
}
