package ports

import (
	"context"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

// SecondaryIndex defines the queryable metadata projection of the content
// store together with the processed-file ledger.
// Implementations serialize all access and are safe for concurrent use.
type SecondaryIndex interface {
	// EnsureSchema creates missing tables and adds missing optional columns.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Ledger operations

	// IsFileProcessed reports whether the ledger holds path with a recorded
	// mtime >= mtime.
	IsFileProcessed(ctx context.Context, path string, mtime float64) (bool, error)

	// MarkFileProcessed upserts the ledger row for path.
	MarkFileProcessed(ctx context.Context, path string, mtime float64) error

	// ForgetFiles removes ledger rows for the given paths.
	ForgetFiles(ctx context.Context, paths []string) error

	// Record operations

	// UpsertRecord inserts or replaces the row for (entity_key, id).
	UpsertRecord(ctx context.Context, rec entities.Record) error

	// Query returns records matching a read-only predicate over the records
	// columns. An empty predicate matches every row.
	Query(ctx context.Context, predicate string, args ...any) ([]entities.Record, error)

	// QueryRows runs a read-only SELECT statement and returns generic rows.
	QueryRows(ctx context.Context, statement string, args ...any) ([]map[string]any, error)

	// FilePathsForDate returns the distinct source paths owning entries of
	// the entity on the given date.
	FilePathsForDate(ctx context.Context, entityKey, date string) ([]string, error)

	// DeleteRecordsForDate removes the entity's rows for date and returns the count removed.
	DeleteRecordsForDate(ctx context.Context, entityKey, date string) (int, error)

	// DeleteRecordsForEntity removes every row of the entity and returns the count removed.
	DeleteRecordsForEntity(ctx context.Context, entityKey string) (int, error)

	// LookupEntityKey returns the first entity_key whose column equals value.
	// column is one of "entity_key", "entity_id", "entity_name".
	LookupEntityKey(ctx context.Context, column, value string) (string, error)

	// CountRecords returns the number of rows in the records table.
	CountRecords(ctx context.Context) (int, error)

	// Introspection

	// ListTables returns the names of all tables.
	ListTables(ctx context.Context) ([]string, error)

	// DumpTables returns every row of every table keyed by table name.
	DumpTables(ctx context.Context) (map[string][]map[string]any, error)

	// Audit log

	// LogAction logs an action to the audit log.
	LogAction(ctx context.Context, action, entityKey string, details map[string]any) error

	// FindAuditLog returns audit entries for an entity, newest first.
	FindAuditLog(ctx context.Context, entityKey string, limit int) ([]entities.AuditEntry, error)
}
