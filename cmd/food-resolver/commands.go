package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func resolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>...",
		Short: "Resolve barcodes or product names and print the results as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			failed := 0
			for _, raw := range args {
				res := a.Resolver.Resolve(ctx, raw)
				if !res.Success {
					failed++
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d identifiers could not be resolved", failed, len(args))
			}
			return nil
		},
	}
}

func warmCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "warm [identifier]...",
		Short: "Resolve identifiers ahead of time to populate the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := readIdentifiers(file, args)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("no identifiers given; pass them as arguments or with --file")
			}

			ctx := cmd.Context()
			a, _, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			summary := a.Resolver.WarmCache(ctx, ids)
			fmt.Fprintf(cmd.OutOrStdout(), "requested %d, resolved %d, failed %d\n",
				summary.Requested, summary.Resolved, summary.Failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one identifier per line ('-' for stdin)")
	return cmd
}

func statsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cfg, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			stats := a.Resolver.CacheStats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:  %s\n", cfg.Cache.Backend)
			fmt.Fprintf(out, "Validity: %s\n", cfg.Cache.Validity)
			fmt.Fprintf(out, "Entries:  %d\n", stats.Size)
			for _, k := range stats.Keys {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		},
	}
}

func clearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if err := a.Resolver.ClearCache(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}

// readIdentifiers merges args with the non-empty, non-comment lines of path.
func readIdentifiers(path string, args []string) ([]string, error) {
	ids := append([]string(nil), args...)
	if path == "" {
		return ids, nil
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open identifier file: %w", err)
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read identifier file: %w", err)
	}
	return ids, nil
}
