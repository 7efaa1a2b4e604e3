// Package filestore implements the content store as one directory of flat
// files per entity.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/domain/vector"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

// Embedder produces normalized embedding matrices.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (vector.Matrix, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// Store implements ports.ContentStore on the local file system.
type Store struct {
	root     string
	embedder Embedder
	index    ports.SimilarityIndex
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store rooted at root. index may be nil, in which case
// semantic search always scans the embedding matrix.
func New(root string, embedder Embedder, index ports.SimilarityIndex, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:     root,
		embedder: embedder,
		index:    index,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Root returns the storage root.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the bundle directory of an entity.
func (s *Store) Dir(entityKey string) string {
	return filepath.Join(s.root, config.SanitizeEntityKey(entityKey))
}

// lock serializes writers of one entity within the process.
func (s *Store) lock(entityKey string) func() {
	name := config.SanitizeEntityKey(entityKey)
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Upsert merges entries into the bundle by ID. Existing entries keep their
// position; new ones are appended in input order.
func (s *Store) Upsert(ctx context.Context, entityKey string, entries []entities.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	unlock := s.lock(entityKey)
	defer unlock()

	existing, err := readEntries(s.Dir(entityKey))
	if err != nil {
		if !errors.Is(err, errCorrupt) {
			return err
		}
		s.logger.Warn("entry log unreadable, rebuilding from new entries", "entity", entityKey, "err", err)
		existing = nil
	}
	return s.write(ctx, entityKey, mergeByID(existing, entries))
}

// Replace rewrites the bundle to hold exactly entries.
func (s *Store) Replace(ctx context.Context, entityKey string, entries []entities.Entry) error {
	unlock := s.lock(entityKey)
	defer unlock()

	return s.write(ctx, entityKey, mergeByID(nil, entries))
}

// mergeByID applies updates over base by ID, last write wins.
func mergeByID(base, updates []entities.Entry) []entities.Entry {
	out := make([]entities.Entry, 0, len(base)+len(updates))
	pos := make(map[string]int, len(base)+len(updates))
	for _, list := range [][]entities.Entry{base, updates} {
		for _, e := range list {
			if i, ok := pos[e.ID]; ok {
				out[i] = e
				continue
			}
			pos[e.ID] = len(out)
			out = append(out, e)
		}
	}
	return out
}

// write embeds entries and rewrites the whole bundle. Caller holds the entity lock.
func (s *Store) write(ctx context.Context, entityKey string, list []entities.Entry) error {
	texts := make([]string, len(list))
	ids := make([]string, len(list))
	for i, e := range list {
		texts[i] = e.Content
		ids[i] = e.ID
	}

	m, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding entries: %w", err)
	}
	if m.Rows != len(list) {
		return fmt.Errorf("%w: %d rows for %d entries", entities.ErrEmbeddingShape, m.Rows, len(list))
	}

	b := bundle{
		entries: list,
		ids:     ids,
		matrix:  m,
		meta: Meta{
			EntityKey: entityKey,
			Count:     len(list),
			Dim:       m.Dim,
			Model:     s.embedder.ModelID(),
			UpdatedAt: s.now().UTC(),
		},
	}

	if s.index != nil {
		if m.Rows == 0 || m.IsZero() {
			if err := s.index.Remove(ctx, entityKey); err != nil {
				s.logger.Warn("removing similarity index", "entity", entityKey, "err", err)
			}
		} else {
			artifact, err := s.index.Build(ctx, entityKey, ids, m)
			if err != nil {
				s.logger.Warn("building similarity index, falling back to brute force", "entity", entityKey, "kind", s.index.Kind(), "err", err)
			} else {
				b.artifact = artifact
				b.meta.Similarity = s.index.Kind()
			}
		}
	}

	if err := writeBundle(s.Dir(entityKey), b); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return nil
}

// ListEntities returns the entity keys of bundles present on disk, sorted.
func (s *Store) ListEntities(_ context.Context) ([]string, error) {
	dirs, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing storage root: %w", err)
	}

	var keys []string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, d.Name())
		if !isBundle(dir) {
			continue
		}
		key := d.Name()
		if meta, err := readMeta(dir); err == nil && meta.EntityKey != "" {
			key = meta.EntityKey
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func isBundle(dir string) bool {
	for _, name := range []string{EntriesFile, IDsFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// GetEntries returns the entity's entries in bundle order. A missing or
// unreadable bundle yields no entries.
func (s *Store) GetEntries(_ context.Context, entityKey string) ([]entities.Entry, error) {
	list, err := readEntries(s.Dir(entityKey))
	if err != nil {
		s.logger.Warn("reading entry log", "entity", entityKey, "err", err)
		return nil, nil
	}
	return list, nil
}

// SemanticSearch returns the k entries closest to query, best first. Equal
// scores keep bundle order. Missing or corrupt bundles yield no results.
func (s *Store) SemanticSearch(ctx context.Context, entityKey, query string, k int) ([]entities.ScoredEntry, error) {
	if k <= 0 {
		return nil, nil
	}

	b, err := readBundle(s.Dir(entityKey))
	if err != nil {
		s.logger.Warn("reading bundle for search", "entity", entityKey, "err", err)
		return nil, nil
	}
	if len(b.entries) == 0 {
		return nil, nil
	}

	q, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(q) != b.matrix.Dim {
		s.logger.Warn("query dimension differs from bundle", "entity", entityKey, "query_dim", len(q), "bundle_dim", b.matrix.Dim)
		return nil, nil
	}

	hits, err := s.searchIndex(ctx, entityKey, b, q, k)
	if err != nil {
		return nil, err
	}

	out := make([]entities.ScoredEntry, 0, len(hits))
	for _, h := range hits {
		if h.Row < 0 || h.Row >= len(b.entries) {
			continue
		}
		out = append(out, entities.ScoredEntry{Entry: b.entries[h.Row], Score: h.Score})
	}
	return out, nil
}

// searchIndex uses the similarity index the bundle was built with, falling
// back to a scan of the matrix.
func (s *Store) searchIndex(ctx context.Context, entityKey string, b bundle, q []float32, k int) ([]vector.Hit, error) {
	if s.index != nil && b.meta.Similarity == s.index.Kind() {
		hits, err := s.index.Search(ctx, entityKey, b.artifact, q, k)
		if err == nil {
			return hits, nil
		}
		if !errors.Is(err, entities.ErrNoIndex) {
			s.logger.Warn("similarity index search failed, scanning matrix", "entity", entityKey, "err", err)
		}
	}
	return b.matrix.Search(q, k)
}

// DeleteEntity removes the entity's bundle and any remote index state.
func (s *Store) DeleteEntity(ctx context.Context, entityKey string) error {
	unlock := s.lock(entityKey)
	defer unlock()

	if s.index != nil {
		if err := s.index.Remove(ctx, entityKey); err != nil {
			s.logger.Warn("removing similarity index", "entity", entityKey, "err", err)
		}
	}
	if err := os.RemoveAll(s.Dir(entityKey)); err != nil {
		return fmt.Errorf("removing bundle: %w", err)
	}
	return nil
}
