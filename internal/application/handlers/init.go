// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

// IndexOpener opens the secondary index described by cfg.
type IndexOpener func(cfg config.SQLiteConfig) (ports.SecondaryIndex, error)

// InitHandler handles workspace initialization.
type InitHandler struct {
	openIndex IndexOpener
}

// NewInitHandler creates a new init handler. openIndex may be nil, in which
// case no database is created.
func NewInitHandler(openIndex IndexOpener) *InitHandler {
	return &InitHandler{openIndex: openIndex}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath  string
	StorageRoot string
	IngestRoot  string
	SQLitePath  string
}

// Handle writes the default config and creates the storage layout.
func (h *InitHandler) Handle(ctx context.Context, basePath string) (*InitResult, error) {
	if config.Exists(basePath) {
		return nil, fmt.Errorf("farmlog already initialized in %s", basePath)
	}

	if err := config.WriteDefault(basePath); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(basePath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	for _, dir := range []string{cfg.Storage.Root, cfg.Ingest.Root} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	sqliteCfg := config.SQLiteConfig{Path: cfg.SQLitePath()}
	if h.openIndex != nil {
		index, err := h.openIndex(sqliteCfg)
		if err != nil {
			return nil, fmt.Errorf("opening secondary index: %w", err)
		}
		defer index.Close()
		if err := index.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &InitResult{
		ConfigPath:  config.ConfigFilePath(basePath),
		StorageRoot: cfg.Storage.Root,
		IngestRoot:  cfg.Ingest.Root,
		SQLitePath:  sqliteCfg.Path,
	}, nil
}
