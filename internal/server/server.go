// Package server exposes the two ingestion endpoints, the health check
// and the metrics handler over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robdanz/tf-cf-dni-list/internal/correlate"
	"github.com/robdanz/tf-cf-dni-list/internal/platform/timeouts"
	"github.com/robdanz/tf-cf-dni-list/internal/telemetry"
)

// Config defines the inputs for the HTTP server.
type Config struct {
	HTTPAddr     string
	IngestSecret string
}

// Server hosts the ingestion HTTP server.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

// NewServer builds a configured ingestion server.
func NewServer(config Config, engine *correlate.Engine, emitter *telemetry.Emitter) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.IngestSecret) == "" {
		return nil, errors.New("ingest secret is required")
	}
	if engine == nil {
		return nil, errors.New("engine is required")
	}

	handler := &handler{
		engine:  engine,
		emitter: emitter,
		secret:  config.IngestSecret,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/logs/errors", handler.requireSecret(handler.handleErrors))
	mux.HandleFunc("/logs/sessions", handler.requireSecret(handler.handleSessions))
	mux.HandleFunc("/healthz", handler.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	return &Server{
		httpAddr:   httpAddr,
		httpServer: httpServer,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
