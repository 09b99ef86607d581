// Package web exposes the experimentation engine over a JSON HTTP API.
// The engine itself is transport-agnostic; this is just one adapter.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/emiliopalmerini/splitlab/internal/engine"
	"github.com/emiliopalmerini/splitlab/internal/ports"
)

type Server struct {
	engine    *engine.Engine
	flags     *engine.FlagRing
	flagStore ports.FlagStore
	router    *http.ServeMux
	port      int
}

// NewServer creates the API server. flagStore may be nil; recent flags are
// then served from the in-memory ring only.
func NewServer(eng *engine.Engine, flags *engine.FlagRing, flagStore ports.FlagStore, port int) *Server {
	s := &Server{
		engine:    eng,
		flags:     flags,
		flagStore: flagStore,
		router:    http.NewServeMux(),
		port:      port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Experiment management
	s.router.HandleFunc("POST /api/experiments", s.handleRegisterExperiment)
	s.router.HandleFunc("GET /api/experiments", s.handleListExperiments)
	s.router.HandleFunc("GET /api/experiments/{id}", s.handleGetExperiment)
	s.router.HandleFunc("POST /api/experiments/{id}/status", s.handleSetStatus)
	s.router.HandleFunc("GET /api/experiments/{id}/results", s.handleResults)

	// Assignment and tracking
	s.router.HandleFunc("POST /api/assignments", s.handleAssign)
	s.router.HandleFunc("POST /api/conversions", s.handleTrack)

	// Advisory flags and diagnostics
	s.router.HandleFunc("GET /api/flags", s.handleFlags)
	s.router.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)
}

func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting splitlab API at http://localhost:%d", s.port)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
