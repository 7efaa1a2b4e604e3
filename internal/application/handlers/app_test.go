package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/mocks"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/domain/services"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	"github.com/ersonp/farmlog/internal/infrastructure/contentstore/filestore"
	"github.com/ersonp/farmlog/internal/infrastructure/embedder"
	"github.com/ersonp/farmlog/internal/infrastructure/logging"
	"github.com/ersonp/farmlog/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/farmlog/internal/infrastructure/similarity/flat"
)

// app wires the handlers over the real SQLite and file store adapters.
type app struct {
	sourceRoot string
	storeRoot  string
	index      *sqlite.Repository
	store      *filestore.Store
	ingest     *IngestHandler
	diary      *DiaryHandler
	query      *QueryHandler
}

func newApp(t *testing.T) *app {
	t.Helper()
	dir := t.TempDir()
	a := &app{
		sourceRoot: filepath.Join(dir, "source"),
		storeRoot:  filepath.Join(dir, "store"),
	}
	require.NoError(t, os.MkdirAll(a.sourceRoot, 0o755))

	repo, err := sqlite.NewRepository(config.SQLiteConfig{Path: filepath.Join(dir, "metadata.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.EnsureSchema(t.Context()))
	a.index = repo

	engine, err := embedder.NewEngine(&mocks.Embedder{}, 0)
	require.NoError(t, err)

	log := logging.Discard()
	a.store = filestore.New(a.storeRoot, engine, flat.New(), log)

	resolver := services.NewResolver(repo, a.store, log)
	querySvc := services.NewQueryService(repo, a.store, resolver, log)
	mutationSvc := services.NewMutationService(repo, a.store, resolver, ports.NopMetrics{},
		services.MutationOptions{IngestRoot: a.sourceRoot}, log)
	ingestSvc := services.NewIngestionService(repo, a.store, ports.NopMetrics{}, log)

	a.ingest = NewIngestHandler(ingestSvc, a.sourceRoot, services.IngestOptions{},
		filepath.Join(a.storeRoot, LockFile), log)
	a.diary = NewDiaryHandler(querySvc, mutationSvc)
	a.query = NewQueryHandler(querySvc)
	return a
}

func (a *app) writeSource(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(a.sourceRoot, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const taeyongLog = `{"farming_work_log": [
  {"date": "2023-09-22", "time": "08:00", "content": "고추 물주기"},
  {"date": "2023-09-25", "time": "15:30", "content": "배추 수확"}
]}`
