package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/constants"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/metrics"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server exposes the local observability surface: health, sync status, and
// metrics. It never accepts writes; all mutation goes through the engine.
type Server struct {
	router *mux.Router
	logger *logrus.Logger
	engine *service.Engine
	server *http.Server
	port   int
}

func NewServer(cfg *models.Config, engine *service.Engine, logger *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
		engine: engine,
		port:   cfg.Server.Port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/sync", s.handleSync()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(constants.DefaultServerReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(constants.DefaultServerWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(constants.DefaultServerIdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := s.engine.Status()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.WithError(err).Error("Failed to encode status response")
		}
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metrics.GetRegistry().GetAllMetrics()); err != nil {
			s.logger.WithError(err).Error("Failed to encode metrics response")
		}
	}
}

// handleSync triggers a sync pass on demand. A pass already in flight
// reports 409 rather than queueing a second one.
func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.engine.IsSyncing() {
			http.Error(w, "sync already in progress", http.StatusConflict)
			return
		}
		if err := s.engine.SyncNow(r.Context()); err != nil {
			s.logger.WithError(err).Warn("On-demand sync failed")
			http.Error(w, "sync failed", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
