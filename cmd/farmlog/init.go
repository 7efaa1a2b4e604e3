package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/farmlog/internal/application/handlers"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	"github.com/ersonp/farmlog/internal/infrastructure/relationaldb/sqlite"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new farmlog workspace",
		Long:  "Creates a .farmlog directory with default configuration, the storage and source roots, and the SQLite schema.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	handler := handlers.NewInitHandler(func(cfg config.SQLiteConfig) (ports.SecondaryIndex, error) {
		return sqlite.NewRepository(cfg)
	})

	result, err := handler.Handle(cmd.Context(), cwd)
	if err != nil {
		return err
	}

	fmt.Printf("Created %s\n", result.ConfigPath)
	fmt.Printf("Storage root: %s\n", result.StorageRoot)
	fmt.Printf("Source root:  %s\n", result.IngestRoot)
	fmt.Printf("Database:     %s\n", result.SQLitePath)
	fmt.Println("farmlog initialized successfully!")

	return nil
}
