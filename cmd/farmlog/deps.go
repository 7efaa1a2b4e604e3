package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ersonp/farmlog/internal/application/handlers"
	"github.com/ersonp/farmlog/internal/domain/services"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	"github.com/ersonp/farmlog/internal/infrastructure/contentstore/filestore"
	"github.com/ersonp/farmlog/internal/infrastructure/embedder"
	"github.com/ersonp/farmlog/internal/infrastructure/logging"
	"github.com/ersonp/farmlog/internal/infrastructure/metrics"
	"github.com/ersonp/farmlog/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/farmlog/internal/infrastructure/similarity"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Ingest  *handlers.IngestHandler
	Diary   *handlers.DiaryHandler
	Query   *handlers.QueryHandler
}

// withDeps loads config and builds dependencies, then calls the provided function.
// It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log, os.Stderr)

	index, err := sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath()})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer index.Close()

	if err := index.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	engine, err := embedder.New(cfg.Embedder)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	simIndex, closer, err := similarity.New(cfg.Similarity, cfg.Qdrant)
	if err != nil {
		return fmt.Errorf("creating similarity index: %w", err)
	}
	defer closeQuietly(closer, logger)

	recorder, err := metrics.New()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	store := filestore.New(cfg.Storage.Root, engine, simIndex, logger)

	resolver := services.NewResolver(index, store, logger)
	queryService := services.NewQueryService(index, store, resolver, logger)
	mutationService := services.NewMutationService(index, store, resolver, recorder, services.MutationOptions{
		IngestRoot: cfg.Ingest.Root,
		ListField:  cfg.Ingest.ListField,
	}, logger)
	ingestionService := services.NewIngestionService(index, store, recorder, logger)

	deps := &Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: recorder,
		Ingest: handlers.NewIngestHandler(ingestionService, cfg.Ingest.Root, services.IngestOptions{
			Extensions:    cfg.Ingest.Extensions,
			ListField:     cfg.Ingest.ListField,
			EntityPattern: cfg.Ingest.EntityPattern,
		}, filepath.Join(cfg.Storage.Root, handlers.LockFile), logger),
		Diary: handlers.NewDiaryHandler(queryService, mutationService),
		Query: handlers.NewQueryHandler(queryService),
	}

	return fn(deps)
}

func closeQuietly(c io.Closer, logger *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("closing similarity index", "err", err)
	}
}
