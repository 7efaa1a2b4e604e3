package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/ports"
)

// DefaultSearchLimit is the default number of results to return.
const DefaultSearchLimit = 10

// DefaultAuditLimit is the default number of audit entries to return.
const DefaultAuditLimit = 50

// QueryService answers structured and semantic queries.
type QueryService struct {
	index    ports.SecondaryIndex
	store    ports.ContentStore
	resolver *Resolver
	logger   *slog.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(index ports.SecondaryIndex, store ports.ContentStore, resolver *Resolver, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{index: index, store: store, resolver: resolver, logger: logger}
}

// Resolve returns the entity key for any of an entity's identifiers.
func (s *QueryService) Resolve(ctx context.Context, ident string) string {
	return s.resolver.Resolve(ctx, ident)
}

// ListEntities returns the entity keys of every stored bundle.
func (s *QueryService) ListEntities(ctx context.Context) ([]string, error) {
	keys, err := s.store.ListEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return keys, nil
}

// GetEntriesForDate returns the entity's indexed entries on date.
func (s *QueryService) GetEntriesForDate(ctx context.Context, entity, date string) ([]entities.Record, error) {
	key := s.resolver.Resolve(ctx, entity)
	if key == "" {
		return nil, nil
	}
	recs, err := s.index.Query(ctx, "entity_key = ? AND date = ?", key, date)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	return recs, nil
}

// GetEntries returns every entry of the entity's bundle.
func (s *QueryService) GetEntries(ctx context.Context, entity string) ([]entities.Entry, error) {
	key := s.resolver.Resolve(ctx, entity)
	if key == "" {
		return nil, nil
	}
	list, err := s.store.GetEntries(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	return list, nil
}

// Query returns records matching a read-only predicate over the records columns.
func (s *QueryService) Query(ctx context.Context, predicate string, args ...any) ([]entities.Record, error) {
	recs, err := s.index.Query(ctx, predicate, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return recs, nil
}

// QueryRows runs a read-only SELECT against the secondary index.
func (s *QueryService) QueryRows(ctx context.Context, statement string, args ...any) ([]map[string]any, error) {
	rows, err := s.index.QueryRows(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	return rows, nil
}

// Search returns the entity's entries closest in meaning to query.
func (s *QueryService) Search(ctx context.Context, entity, query string, limit int) ([]entities.ScoredEntry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	key := s.resolver.Resolve(ctx, entity)
	if key == "" {
		return nil, nil
	}
	hits, err := s.store.SemanticSearch(ctx, key, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching entries: %w", err)
	}
	return hits, nil
}

// Profile returns the entity's stored profile, empty when none exists.
func (s *QueryService) Profile(ctx context.Context, entity string) (entities.Profile, error) {
	key := s.resolver.Resolve(ctx, entity)
	if key == "" {
		return entities.Profile{}, nil
	}
	p, err := s.store.LoadProfile(ctx, key)
	if err != nil {
		return entities.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

// ListTables returns the secondary index table names.
func (s *QueryService) ListTables(ctx context.Context) ([]string, error) {
	tables, err := s.index.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return tables, nil
}

// DumpTables returns every row of every secondary index table.
func (s *QueryService) DumpTables(ctx context.Context) (map[string][]map[string]any, error) {
	dump, err := s.index.DumpTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("dumping tables: %w", err)
	}
	return dump, nil
}

// AuditLog returns recent mutations, newest first. An empty entity returns
// entries for every entity.
func (s *QueryService) AuditLog(ctx context.Context, entity string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	key := ""
	if entity != "" {
		key = s.resolver.Resolve(ctx, entity)
	}
	entries, err := s.index.FindAuditLog(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}
