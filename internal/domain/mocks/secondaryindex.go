package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

// SecondaryIndex is an in-memory mock implementation of ports.SecondaryIndex.
//
// Query understands predicates of the form "col = ? AND col = ?" over the
// records columns, which is all the services issue.
type SecondaryIndex struct {
	mu      sync.Mutex
	records []entities.Record
	Files   map[string]float64
	Audit   []entities.AuditEntry

	// Rows is returned by QueryRows.
	Rows []map[string]any

	// Err is returned by every call.
	Err error
	// UpsertErr is returned by UpsertRecord for records whose content matches
	// a key of FailContent, or for every record when FailContent is nil.
	UpsertErr   error
	FailContent map[string]bool
	// DeleteErr is returned by DeleteRecordsForDate and DeleteRecordsForEntity.
	DeleteErr error
	// MarkErr is returned by MarkFileProcessed.
	MarkErr error
}

// NewSecondaryIndex creates a new mock SecondaryIndex.
func NewSecondaryIndex() *SecondaryIndex {
	return &SecondaryIndex{Files: make(map[string]float64)}
}

// EnsureSchema returns Err.
func (m *SecondaryIndex) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes nothing.
func (m *SecondaryIndex) Close() error {
	return nil
}

// Ledger methods.

// IsFileProcessed reports whether path is recorded at mtime or later.
func (m *SecondaryIndex) IsFileProcessed(_ context.Context, path string, mtime float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	recorded, ok := m.Files[path]
	return ok && recorded >= mtime, nil
}

// MarkFileProcessed records path at mtime.
func (m *SecondaryIndex) MarkFileProcessed(_ context.Context, path string, mtime float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.Files[path] = mtime
	return nil
}

// ForgetFiles removes ledger rows.
func (m *SecondaryIndex) ForgetFiles(_ context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, p := range paths {
		delete(m.Files, p)
	}
	return nil
}

// Record methods.

// UpsertRecord inserts or replaces the row for (entity_key, id).
func (m *SecondaryIndex) UpsertRecord(_ context.Context, rec entities.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.UpsertErr != nil && (m.FailContent == nil || m.FailContent[rec.Content]) {
		return m.UpsertErr
	}
	for i, r := range m.records {
		if r.EntityKey == rec.EntityKey && r.ID == rec.ID {
			m.records[i] = rec
			return nil
		}
	}
	m.records = append(m.records, rec)
	return nil
}

// Query returns records matching an equality predicate, ordered by date and time.
func (m *SecondaryIndex) Query(_ context.Context, predicate string, args ...any) ([]entities.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	cols, err := parsePredicate(predicate)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("mock: %d placeholders for %d args", len(cols), len(args))
	}

	var out []entities.Record
	for _, r := range m.records {
		if matches(r, cols, args) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func parsePredicate(predicate string) ([]string, error) {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return nil, nil
	}
	var cols []string
	for _, clause := range strings.Split(strings.ReplaceAll(predicate, " and ", " AND "), " AND ") {
		col, rhs, ok := strings.Cut(clause, "=")
		if !ok || strings.TrimSpace(rhs) != "?" {
			return nil, fmt.Errorf("mock: unsupported predicate %q", predicate)
		}
		cols = append(cols, strings.TrimSpace(col))
	}
	return cols, nil
}

func matches(r entities.Record, cols []string, args []any) bool {
	for i, col := range cols {
		want := fmt.Sprint(args[i])
		var got string
		switch col {
		case "entity_key":
			got = r.EntityKey
		case "entity_id":
			got = r.EntityID
		case "entity_name":
			got = r.EntityName
		case "id":
			got = r.ID
		case "date":
			got = r.Date
		case "time":
			got = r.Time
		case "content":
			got = r.Content
		case "filepath":
			got = r.FilePath
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// QueryRows returns Rows.
func (m *SecondaryIndex) QueryRows(_ context.Context, statement string, _ ...any) ([]map[string]any, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	first := strings.ToUpper(strings.Fields(statement + " x")[0])
	if first != "SELECT" && first != "WITH" {
		return nil, entities.ErrReadOnlyQuery
	}
	return m.Rows, nil
}

// FilePathsForDate returns the distinct non-empty source paths of the
// entity's records on date.
func (m *SecondaryIndex) FilePathsForDate(_ context.Context, entityKey, date string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range m.records {
		if r.EntityKey == entityKey && r.Date == date && r.FilePath != "" && !seen[r.FilePath] {
			seen[r.FilePath] = true
			out = append(out, r.FilePath)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteRecordsForDate removes the entity's rows for date.
func (m *SecondaryIndex) DeleteRecordsForDate(_ context.Context, entityKey, date string) (int, error) {
	return m.deleteWhere(func(r entities.Record) bool {
		return r.EntityKey == entityKey && r.Date == date
	})
}

// DeleteRecordsForEntity removes every row of the entity.
func (m *SecondaryIndex) DeleteRecordsForEntity(_ context.Context, entityKey string) (int, error) {
	return m.deleteWhere(func(r entities.Record) bool {
		return r.EntityKey == entityKey
	})
}

func (m *SecondaryIndex) deleteWhere(match func(entities.Record) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	kept := m.records[:0]
	n := 0
	for _, r := range m.records {
		if match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

// LookupEntityKey returns the first entity_key whose column equals value.
func (m *SecondaryIndex) LookupEntityKey(_ context.Context, column, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	for _, r := range m.records {
		if matches(r, []string{column}, []any{value}) {
			return r.EntityKey, nil
		}
	}
	return "", nil
}

// CountRecords returns the number of rows.
func (m *SecondaryIndex) CountRecords(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.records), nil
}

// Records returns a copy of every row.
func (m *SecondaryIndex) Records() []entities.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Record(nil), m.records...)
}

// Introspection methods.

// ListTables returns the fixed table names.
func (m *SecondaryIndex) ListTables(_ context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return []string{"audit_log", "processed_files", "records"}, nil
}

// DumpTables returns the records and ledger rows.
func (m *SecondaryIndex) DumpTables(_ context.Context) (map[string][]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := map[string][]map[string]any{
		"records":         {},
		"processed_files": {},
		"audit_log":       {},
	}
	for _, r := range m.records {
		out["records"] = append(out["records"], map[string]any{
			"entity_key": r.EntityKey, "id": r.ID, "date": r.Date, "time": r.Time,
			"content": r.Content, "filepath": r.FilePath, "mtime": r.MTime,
		})
	}
	for p, mt := range m.Files {
		out["processed_files"] = append(out["processed_files"], map[string]any{"filepath": p, "mtime": mt})
	}
	for _, a := range m.Audit {
		out["audit_log"] = append(out["audit_log"], map[string]any{"id": a.ID, "action": a.Action, "entity_key": a.EntityKey})
	}
	return out, nil
}

// Audit log methods.

// LogAction appends to Audit.
func (m *SecondaryIndex) LogAction(_ context.Context, action, entityKey string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        int64(len(m.Audit) + 1),
		Action:    action,
		EntityKey: entityKey,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// FindAuditLog returns audit entries newest first.
func (m *SecondaryIndex) FindAuditLog(_ context.Context, entityKey string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if entityKey == "" || m.Audit[i].EntityKey == entityKey {
			out = append(out, m.Audit[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Actions returns the logged action names in order.
func (m *SecondaryIndex) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Audit))
	for i, a := range m.Audit {
		out[i] = a.Action
	}
	return out
}

// ErrMock is a generic failure for tests.
var ErrMock = errors.New("mock failure")
