// Package server provides the HTTP API for SoundSift.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/soundsift/internal/config"
	"github.com/hyperjump/soundsift/internal/indexer"
	"github.com/hyperjump/soundsift/internal/search"
	"github.com/hyperjump/soundsift/internal/storage"
	"go.uber.org/zap"
)

// WatchService manages watched library folders.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the SoundSift API.
type Server struct {
	engine        *search.Engine
	indexer       *indexer.Indexer
	store         storage.MetadataStore
	config        *config.ServerConfig
	logger        *zap.Logger
	watch         WatchService   // nil when watching is disabled
	configPath    string         // where watch changes are persisted; empty to skip
	watchConfig   *config.Config // full config, saved when watch directories change
	watchConfigMu sync.Mutex
	server        *http.Server
}

// NewServer creates a server with the given dependencies. watch, configPath and
// watchConfig are optional.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	store storage.MetadataStore,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
	watchConfig *config.Config,
) *Server {
	return &Server{
		engine:      engine,
		indexer:     idx,
		store:       store,
		config:      cfg,
		logger:      logger,
		watch:       watch,
		configPath:  configPath,
		watchConfig: watchConfig,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Indexing a large folder can take minutes; it is not bound by the request timeout.
	r.Post("/api/v1/index/folder", s.handleIndexFolder)
	r.Post("/api/v1/recover", s.handleRecover)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/api/v1/query/text", s.handleQueryText)
		r.Post("/api/v1/query/keyword", s.handleQueryKeyword)
		r.Get("/api/v1/items", s.handleGetItems)
		r.Get("/api/v1/items/slot/{slot}", s.handleGetItemBySlot)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
		r.Get("/health", s.handleHealth)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
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
