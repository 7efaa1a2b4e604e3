package services

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/mocks"
	"github.com/ersonp/farmlog/internal/infrastructure/logging"
)

type fixture struct {
	root     string
	index    *mocks.SecondaryIndex
	store    *mocks.ContentStore
	metrics  *countingMetrics
	resolver *Resolver
	ingest   *IngestionService
	mutation *MutationService
	query    *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		root:    t.TempDir(),
		index:   mocks.NewSecondaryIndex(),
		store:   mocks.NewContentStore(),
		metrics: newCountingMetrics(),
	}
	log := logging.Discard()
	f.resolver = NewResolver(f.index, f.store, log)
	f.ingest = NewIngestionService(f.index, f.store, f.metrics, log)
	f.mutation = NewMutationService(f.index, f.store, f.resolver, f.metrics, MutationOptions{IngestRoot: f.root}, log)
	f.mutation.now = func() time.Time { return time.Date(2023, 9, 26, 9, 0, 0, 0, time.UTC) }
	f.query = NewQueryService(f.index, f.store, f.resolver, log)
	return f
}

// writeSource writes a source file under the ingest root.
func (f *fixture) writeSource(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) run(t *testing.T) *IngestReport {
	t.Helper()
	return f.ingest.Run(t.Context(), f.root, IngestOptions{})
}

const twoEntries = `{"farming_work_log": [
  {"date": "2023-09-22", "time": "08:00", "content": "고추 물주기"},
  {"date": "2023-09-25", "time": "15:30", "content": "배추 수확"}
]}`

type countingMetrics struct {
	mu        sync.Mutex
	files     map[string]int
	entries   int
	mutations map[string]int
	passes    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{files: map[string]int{}, mutations: map[string]int{}}
}

func (m *countingMetrics) FileScanned(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[outcome]++
}

func (m *countingMetrics) EntriesStored(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries += n
}

func (m *countingMetrics) Mutation(op string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.mutations[op+":ok"]++
	} else {
		m.mutations[op+":error"]++
	}
}

func (m *countingMetrics) IngestDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes++
}
