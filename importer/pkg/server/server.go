// Package server exposes the importer's read-only status surface: health,
// metrics and per-import progress. Imports are triggered upstream; nothing
// here mutates state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/statshare/importer/importer/pkg/metastore"
)

type Config struct {
	Logger *slog.Logger
	Store  *metastore.Store
	Addr   string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("metadata store is required")
	}
	if cfg.Addr == "" {
		return errors.New("listen address is required")
	}
	return nil
}

type Server struct {
	log    *slog.Logger
	cfg    Config
	router *chi.Mux
	srv    *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log:    cfg.Logger,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/metrics", promhttp.Handler().ServeHTTP)
	s.router.Get("/imports/{id}", s.handleGetImport)
}

// Handler returns the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.log.Info("status server listening", "addr", s.cfg.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// importStatus is the polled progress view of one import attempt.
type importStatus struct {
	ID               uuid.UUID  `json:"id"`
	DataSetVersionID uuid.UUID  `json:"dataSetVersionId"`
	InstanceID       uuid.UUID  `json:"instanceId"`
	Stage            string     `json:"stage"`
	VersionStatus    string     `json:"versionStatus"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid import id", http.StatusBadRequest)
		return
	}

	imp, err := s.cfg.Store.GetImport(r.Context(), id)
	if errors.Is(err, metastore.ErrNotFound) {
		http.Error(w, "import not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("failed to get import", "import", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	version, err := s.cfg.Store.GetDataSetVersion(r.Context(), imp.DataSetVersionID)
	if err != nil {
		s.log.Error("failed to get data set version", "version", imp.DataSetVersionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(importStatus{
		ID:               imp.ID,
		DataSetVersionID: imp.DataSetVersionID,
		InstanceID:       imp.InstanceID,
		Stage:            imp.Stage,
		VersionStatus:    string(version.Status),
		CompletedAt:      imp.CompletedAt,
	})
}
