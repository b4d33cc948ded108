// cmd/food-resolver/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcp-food-resolver/internal/app"
	"mcp-food-resolver/internal/config"
)

var Version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	backend    string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "food-resolver",
		Short:         "Resolve barcodes and product names into nutrition records",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (default $FOOD_RESOLVER_CONFIG)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.backend, "cache-backend", "", "cache backend: sqlite, postgres, memory")
	flags.StringVar(&opts.dbPath, "db-path", "", "sqlite cache path")

	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(resolveCmd(opts))
	rootCmd.AddCommand(warmCmd(opts))
	rootCmd.AddCommand(statsCmd(opts))
	rootCmd.AddCommand(clearCmd(opts))
	return rootCmd
}

// load reads the configuration and applies flag overrides.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.backend != "" {
		cfg.Cache.Backend = o.backend
	}
	if o.dbPath != "" {
		cfg.Cache.DBPath = o.dbPath
	}
	return cfg, cfg.Validate()
}

// open builds the application for a one-shot command. Logs go to stderr so
// stdout stays machine-readable.
func (o *rootOptions) open(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.New(ctx, cfg, Version, cfg.NewLogger(os.Stderr))
	if err != nil {
		return nil, cfg, err
	}
	return a, cfg, nil
}
