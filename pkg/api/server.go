// Package api exposes the price engine query surface over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	oracleapp "github.com/r0zar/amm-price-engine/business/oracle/app"
	pricingapp "github.com/r0zar/amm-price-engine/business/pricing/app"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

// Config holds HTTP server settings.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns standard server settings.
func DefaultConfig(port int) Config {
	return Config{
		Port:            port,
		ReadTimeout:     10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server serves the query API.
type Server struct {
	config Config
	engine *pricingapp.Engine
	oracle *oracleapp.Aggregator
	logger logger.LoggerInterface
	server *http.Server
}

// NewServer creates the API server. Start must be called separately.
func NewServer(cfg Config, engine *pricingapp.Engine, oracle *oracleapp.Aggregator, log logger.LoggerInterface) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{
		config: cfg,
		engine: engine,
		oracle: oracle,
		logger: log,
	}
}

// Router builds the route tree. Exposed so tests can drive the handlers
// without a listening socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/price/{token}", s.handleGetPrice)
		r.Get("/paths/{token}", s.handleGetPaths)
		r.Get("/stats", s.handleGetStats)
		r.Get("/oracle", s.handleGetOracle)
		r.Post("/rebuild", s.handleRebuild)
		r.Post("/oracle/refresh", s.handleOracleRefresh)
	})

	return r
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: s.config.ReadTimeout,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(context.Background(), "api server stopped", "error", err)
		}
	}()

	s.logger.Info(context.Background(), "api server started", "port", s.config.Port)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
