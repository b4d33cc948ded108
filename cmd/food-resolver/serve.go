package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcp-food-resolver/internal/app"
	"mcp-food-resolver/internal/server"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var listen string
	var warmFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP and REST server",
		Long: `Start the HTTP server.

Endpoints:
  POST /mcp                  MCP tool calls (resolve_food, cache_stats, clear_cache, warm_cache, get_attribution)
  GET  /v1/foods/{id}        resolve a barcode or product name
  GET  /v1/cache/stats       cache contents
  DELETE /v1/cache           clear the cache
  POST /v1/cache/warm        resolve a batch ahead of time
  GET  /v1/attribution       attribution notices
  GET  /v1/sources           configured sources in priority order`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}
			logger := cfg.NewLogger(os.Stderr)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := app.New(ctx, cfg, Version, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			srv, err := server.NewFoodResolverServer(&server.Config{
				ListenAddr:     cfg.ListenAddr,
				Version:        Version,
				RequestTimeout: a.Resolver.ChainTimeout(),
			}, a.Resolver, logger)
			if err != nil {
				a.Close(ctx)
				return fmt.Errorf("failed to create server: %w", err)
			}

			if warmFile != "" {
				ids, err := readIdentifiers(warmFile, nil)
				if err != nil {
					a.Close(ctx)
					return err
				}
				go a.Resolver.WarmCache(ctx, ids)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(ctx); err != nil {
					errCh <- err
				}
			}()

			var serveErr error
			select {
			case sig := <-sigCh:
				logger.Info("received shutdown signal", "signal", sig.String())
			case serveErr = <-errCh:
				logger.Error("server error", "error", serveErr)
			}

			logger.Info("shutting down")
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("error during HTTP shutdown", "error", err)
			}
			if err := a.Close(shutdownCtx); err != nil {
				logger.Warn("error during shutdown", "error", err)
			}
			return serveErr
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, 0.0.0.0:8011)")
	cmd.Flags().StringVar(&warmFile, "warm-file", "", "file of identifiers to resolve in the background at start")
	return cmd
}
