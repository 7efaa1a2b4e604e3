package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/services"
)

// QueryHandler handles structured and semantic queries.
type QueryHandler struct {
	queryService *services.QueryService
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queryService *services.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
	}
}

// RecordsResult contains records matching a predicate.
type RecordsResult struct {
	Predicate string            `json:"predicate"`
	Records   []entities.Record `json:"records"`
}

// RowsResult contains the rows of a SELECT statement.
type RowsResult struct {
	Statement string           `json:"statement"`
	Rows      []map[string]any `json:"rows"`
}

// SearchResult contains the result of a semantic search.
type SearchResult struct {
	Entity string                 `json:"entity"`
	Query  string                 `json:"query"`
	Hits   []entities.ScoredEntry `json:"hits"`
}

// TablesResult describes the secondary index tables, with their rows when dumped.
type TablesResult struct {
	Tables []string                    `json:"tables"`
	Rows   map[string][]map[string]any `json:"rows,omitempty"`
}

// AuditResult contains audit log entries.
type AuditResult struct {
	Entity  string                `json:"entity,omitempty"`
	Entries []entities.AuditEntry `json:"entries"`
}

// Records returns the records matching a read-only predicate.
func (h *QueryHandler) Records(ctx context.Context, predicate string, args ...any) (*RecordsResult, error) {
	recs, err := h.queryService.Query(ctx, predicate, args...)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []entities.Record{}
	}
	return &RecordsResult{Predicate: predicate, Records: recs}, nil
}

// Rows runs a read-only SELECT statement.
func (h *QueryHandler) Rows(ctx context.Context, statement string, args ...any) (*RowsResult, error) {
	rows, err := h.queryService.QueryRows(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return &RowsResult{Statement: statement, Rows: rows}, nil
}

// Search finds the entity's entries closest in meaning to query.
func (h *QueryHandler) Search(ctx context.Context, entity, query string, limit int) (*SearchResult, error) {
	key := h.queryService.Resolve(ctx, entity)
	hits, err := h.queryService.Search(ctx, key, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", key, err)
	}
	if hits == nil {
		hits = []entities.ScoredEntry{}
	}
	return &SearchResult{Entity: key, Query: query, Hits: hits}, nil
}

// Tables lists the secondary index tables; with dump it includes every row.
func (h *QueryHandler) Tables(ctx context.Context, dump bool) (*TablesResult, error) {
	tables, err := h.queryService.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	result := &TablesResult{Tables: tables}
	if dump {
		rows, err := h.queryService.DumpTables(ctx)
		if err != nil {
			return nil, err
		}
		result.Rows = rows
	}
	return result, nil
}

// Audit returns recent audit log entries.
func (h *QueryHandler) Audit(ctx context.Context, entity string, limit int) (*AuditResult, error) {
	entries, err := h.queryService.AuditLog(ctx, entity, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []entities.AuditEntry{}
	}
	return &AuditResult{Entity: entity, Entries: entries}, nil
}
