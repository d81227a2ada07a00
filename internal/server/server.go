// Package server provides the HTTP API: the JSON-RPC endpoint the platform
// calls and REST mirrors of the same operations.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/genomesearch/internal/config"
	"github.com/hyperjump/genomesearch/internal/search"
	"go.uber.org/zap"
)

// UserResolver maps a token to a user id.
type UserResolver interface {
	GetUser(ctx context.Context, token string) (string, error)
}

// Server is the HTTP server for the genome search API.
type Server struct {
	engine *search.Engine
	users  UserResolver
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies. A nil users
// resolver passes tokens through to the object store unchecked.
func NewServer(
	engine *search.Engine,
	users UserResolver,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine: engine,
		users:  users,
		config: cfg,
		logger: logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/", s.handleRPC)
		r.Post("/rpc", s.handleRPC)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/search", s.handleSearch)
			r.Post("/search_region", s.handleSearchRegion)
			r.Post("/search_contigs", s.handleSearchContigs)
			r.Get("/status", s.handleStatus)
			r.Get("/indexes", s.handleListIndexes)
			r.Post("/indexes/warm", s.handleWarm)
			r.Delete("/indexes/{key}", s.handleDropIndex)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
