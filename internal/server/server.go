// Package server exposes the crawl engine over a local HTTP API: starting
// and stopping runs, reading stored results, and streaming crawl events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwtham/folioharvest/internal/crawl"
	"github.com/jwtham/folioharvest/internal/events"
	"github.com/jwtham/folioharvest/internal/logger"
	"github.com/jwtham/folioharvest/internal/store"
)

// Config holds server configuration.
type Config struct {
	Addr string
}

// Server is the HTTP control plane over a set of family crawlers sharing one
// store and event bus.
type Server struct {
	httpServer *http.Server
	crawlers   map[string]*crawl.Crawler
	store      store.Store
	bus        *events.MemoryBus
	log        zerolog.Logger
}

// New wires the handlers for the given family crawlers. Keys of crawlers are
// the family names used in URLs.
func New(cfg Config, crawlers map[string]*crawl.Crawler, st store.Store, bus *events.MemoryBus) *Server {
	s := &Server{
		crawlers: crawlers,
		store:    st,
		bus:      bus,
		log:      logger.For("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/crawl/{family}/start", s.handleCrawlStart)
	mux.HandleFunc("POST /api/crawl/{family}/stop", s.handleCrawlStop)
	mux.HandleFunc("GET /api/crawl/{family}/status", s.handleCrawlStatus)
	mux.HandleFunc("GET /api/items/{family}", s.handleItems)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.withLogging(s.withCORS(mux)),
		ReadTimeout: 30 * time.Second,
		// No write timeout: the SSE stream stays open for the client's
		// whole session.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	s.log.Info().Msg("shutting down")

	for name, c := range s.crawlers {
		if c.Stop() {
			s.log.Info().Str("family", name).Msg("stop requested for active crawl")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// withCORS adds CORS headers so a browser extension popup can call the API.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
