// Package main provides the entry point for the farmlog CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0-dev"
	globalJSON bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "farmlog",
		Short:         "Per-entity farming diary storage with structured and semantic search",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&globalJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newInitCmd(),
		newIngestCmd(),
		newWatchCmd(),
		newEntitiesCmd(),
		newEntriesCmd(),
		newAddCmd(),
		newDeleteCmd(),
		newDeleteEntityCmd(),
		newQueryCmd(),
		newSearchCmd(),
		newTablesCmd(),
		newAuditCmd(),
		newProfileCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
