// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mcp-food-resolver/internal/models"
	"mcp-food-resolver/internal/resolver"
)

// Service is the resolution pipeline as seen by the transport layer.
type Service interface {
	ResolveDetailed(ctx context.Context, raw string) (models.ResolutionResult, error)
	ClearCache(ctx context.Context) error
	Invalidate(ctx context.Context, raw string) (bool, error)
	CacheStats() models.CacheStats
	AttributionText() string
	Sources() []models.SourceDescriptor
	ChainTimeout() time.Duration
	WarmCache(ctx context.Context, ids []string) resolver.WarmSummary
}

type Config struct {
	ListenAddr string
	Version    string
	// RequestTimeout bounds a single resolution; zero means no limit
	// beyond the per-provider timeouts. It is raised to the service's
	// ChainTimeout when shorter.
	RequestTimeout time.Duration
}

type FoodResolverServer struct {
	server     *server.Server
	httpServer *http.Server
	service    Service
	config     *Config
	logger     *slog.Logger
}

func NewFoodResolverServer(cfg *Config, svc Service, logger *slog.Logger) (*FoodResolverServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conf := *cfg
	s := &FoodResolverServer{
		service: svc,
		config:  &conf,
		logger:  logger.With("component", "server"),
	}
	if floor := svc.ChainTimeout(); conf.RequestTimeout > 0 && conf.RequestTimeout < floor {
		s.logger.Warn("request timeout shorter than the provider chain, raising it",
			"configured", conf.RequestTimeout, "chain", floor)
		conf.RequestTimeout = floor
	}

	// Create MCP server (without transport, we handle HTTP ourselves)
	mcpServer, err := server.NewServer(
		nil,
		server.WithServerInfo(protocol.Implementation{
			Name:    "food-resolver",
			Version: cfg.Version,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	s.server = mcpServer

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Routes mounts the MCP endpoint and the REST API.
func (s *FoodResolverServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/mcp", s.handleMCP)
	r.Options("/mcp", s.handleMCP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/foods/{identifier}", s.handleGetFood)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleClearCache)
		r.Delete("/cache/{identifier}", s.handleInvalidate)
		r.Post("/cache/warm", s.handleWarmCache)
		r.Get("/attribution", s.handleAttribution)
		r.Get("/sources", s.handleSources)
	})
	return r
}

// Start serves until Shutdown is called.
func (s *FoodResolverServer) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting food resolver server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *FoodResolverServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// resolveContext applies the configured per-request timeout.
func (s *FoodResolverServer) resolveContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.config.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *FoodResolverServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

func (s *FoodResolverServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WarnContext(r.Context(), "failed to encode response", "error", err)
	}
}
