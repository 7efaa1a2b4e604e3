// Package sqlite provides a SQLite implementation of the SecondaryIndex interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// recordColumns are the columns every records table has.
var recordColumns = []string{"entity_key", "id", "date", "time", "content", "filepath", "mtime"}

// optionalColumns are added by migration and tolerated when absent.
var optionalColumns = []string{"entity_id", "entity_name"}

// lookupColumns are the columns LookupEntityKey may match on.
var lookupColumns = map[string]bool{"entity_key": true, "entity_id": true, "entity_name": true}

// Repository implements ports.SecondaryIndex using SQLite.
// A single mutex serializes every operation.
type Repository struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	columns map[string]bool
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One connection: access is serialized anyway and :memory: databases
	// are per-connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{
		db:      db,
		path:    cfg.Path,
		columns: map[string]bool{},
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist and adds
// optional columns missing from older databases.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	schema := `
	-- Entry projection of the content store
	CREATE TABLE IF NOT EXISTS records (
		entity_key TEXT NOT NULL,
		id TEXT NOT NULL,
		date TEXT,
		time TEXT,
		content TEXT,
		filepath TEXT,
		mtime REAL,
		PRIMARY KEY (entity_key, id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_entity_date ON records(entity_key, date);
	CREATE INDEX IF NOT EXISTS idx_records_filepath ON records(filepath);

	-- Processed-file ledger
	CREATE TABLE IF NOT EXISTS processed_files (
		filepath TEXT PRIMARY KEY,
		mtime REAL NOT NULL
	);

	-- Audit log (tracks all mutations)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		entity_key TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_key);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	cols, err := r.tableColumns(ctx, "records")
	if err != nil {
		return err
	}
	for _, col := range optionalColumns {
		if cols[col] {
			continue
		}
		if _, err := r.db.ExecContext(ctx, "ALTER TABLE records ADD COLUMN "+col+" TEXT"); err != nil {
			// Older SQLite builds or read-only files: carry on without the column.
			continue
		}
		cols[col] = true
	}
	r.columns = cols
	return nil
}

// tableColumns returns the column names of a table. Caller holds mu.
func (r *Repository) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// writeColumns returns the record columns present in the table, required first.
func (r *Repository) writeColumns() []string {
	cols := append([]string(nil), recordColumns...)
	for _, col := range optionalColumns {
		if r.columns[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// IsFileProcessed reports whether path was recorded at an mtime >= mtime.
func (r *Repository) IsFileProcessed(ctx context.Context, path string, mtime float64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var recorded float64
	err := r.db.QueryRowContext(ctx, `SELECT mtime FROM processed_files WHERE filepath = ?`, path).Scan(&recorded)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return recorded >= mtime, nil
}

// MarkFileProcessed upserts the ledger row for path.
func (r *Repository) MarkFileProcessed(ctx context.Context, path string, mtime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO processed_files (filepath, mtime) VALUES (?, ?)
		ON CONFLICT(filepath) DO UPDATE SET mtime = excluded.mtime
	`
	if _, err := r.db.ExecContext(ctx, query, path, mtime); err != nil {
		return fmt.Errorf("marking file processed: %w", err)
	}
	return nil
}

// ForgetFiles removes the ledger rows of the given paths.
func (r *Repository) ForgetFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	query := fmt.Sprintf(`DELETE FROM processed_files WHERE filepath IN (%s)`, placeholders(len(paths)))
	if _, err := r.db.ExecContext(ctx, query, toArgs(paths)...); err != nil {
		return fmt.Errorf("forgetting files: %w", err)
	}
	return nil
}

// UpsertRecord inserts or replaces the row for (entity_key, id).
func (r *Repository) UpsertRecord(ctx context.Context, rec entities.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols := r.writeColumns()
	values := map[string]any{
		"entity_key":  rec.EntityKey,
		"id":          rec.ID,
		"date":        rec.Date,
		"time":        rec.Time,
		"content":     rec.Content,
		"filepath":    rec.FilePath,
		"mtime":       rec.MTime,
		"entity_id":   rec.EntityID,
		"entity_name": rec.EntityName,
	}
	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = values[col]
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO records (%s) VALUES (%s)`,
		strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}
	return nil
}

// Query returns records matching a read-only predicate, ordered by date and time.
func (r *Repository) Query(ctx context.Context, predicate string, args ...any) ([]entities.Record, error) {
	if strings.Contains(predicate, ";") {
		return nil, fmt.Errorf("%w: predicate must be a single expression", entities.ErrReadOnlyQuery)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.queryRecords(ctx, predicate, args...)
}

// queryRecords runs the records select. Caller holds mu.
func (r *Repository) queryRecords(ctx context.Context, predicate string, args ...any) ([]entities.Record, error) {
	cols := r.writeColumns()
	query := fmt.Sprintf(`SELECT %s FROM records`, strings.Join(cols, ", "))
	if strings.TrimSpace(predicate) != "" {
		query += " WHERE " + predicate
	}
	query += " ORDER BY date, time, rowid"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []entities.Record
	for rows.Next() {
		var (
			rec                        entities.Record
			date, tm, content, path    sql.NullString
			mtime                      sql.NullFloat64
			entityIDCol, entityNameCol sql.NullString
		)
		dest := []any{&rec.EntityKey, &rec.ID, &date, &tm, &content, &path, &mtime}
		if r.columns["entity_id"] {
			dest = append(dest, &entityIDCol)
		}
		if r.columns["entity_name"] {
			dest = append(dest, &entityNameCol)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		rec.Date, rec.Time, rec.Content = date.String, tm.String, content.String
		rec.FilePath, rec.MTime = path.String, mtime.Float64
		rec.EntityID, rec.EntityName = entities.SplitEntityKey(rec.EntityKey)
		if entityIDCol.Valid {
			rec.EntityID = entityIDCol.String
		}
		if entityNameCol.Valid && entityNameCol.String != "" {
			rec.EntityName = entityNameCol.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// QueryRows runs a read-only SELECT or WITH statement and returns generic rows.
func (r *Repository) QueryRows(ctx context.Context, statement string, args ...any) ([]map[string]any, error) {
	if err := checkReadOnly(statement); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.queryRows(ctx, statement, args...)
}

// queryRows scans every row into a column-keyed map. Caller holds mu.
func (r *Repository) queryRows(ctx context.Context, statement string, args ...any) ([]map[string]any, error) {
	rows, err := r.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// checkReadOnly accepts a single SELECT or WITH statement.
func checkReadOnly(statement string) error {
	s := strings.TrimSpace(statement)
	s = strings.TrimSuffix(s, ";")
	if strings.Contains(s, ";") {
		return fmt.Errorf("%w: multiple statements", entities.ErrReadOnlyQuery)
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty statement", entities.ErrReadOnlyQuery)
	}
	head := strings.ToUpper(fields[0])
	if head != "SELECT" && head != "WITH" {
		return fmt.Errorf("%w: %q", entities.ErrReadOnlyQuery, head)
	}
	return nil
}

// FilePathsForDate returns the distinct source paths owning entries of the
// entity on date.
func (r *Repository) FilePathsForDate(ctx context.Context, entityKey, date string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		SELECT DISTINCT filepath FROM records
		WHERE entity_key = ? AND date = ? AND filepath IS NOT NULL AND filepath != ''
		ORDER BY filepath
	`
	rows, err := r.db.QueryContext(ctx, query, entityKey, date)
	if err != nil {
		return nil, fmt.Errorf("querying file paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning file path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteRecordsForDate removes the entity's rows for date.
func (r *Repository) DeleteRecordsForDate(ctx context.Context, entityKey, date string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE entity_key = ? AND date = ?`, entityKey, date)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteRecordsForEntity removes every row of the entity.
func (r *Repository) DeleteRecordsForEntity(ctx context.Context, entityKey string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE entity_key = ?`, entityKey)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// LookupEntityKey returns the first entity_key whose column equals value,
// or "" when nothing matches.
func (r *Repository) LookupEntityKey(ctx context.Context, column, value string) (string, error) {
	if !lookupColumns[column] {
		return "", fmt.Errorf("unknown lookup column %q", column)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if column != "entity_key" && !r.columns[column] {
		return "", nil
	}

	var key string
	query := fmt.Sprintf(`SELECT entity_key FROM records WHERE %s = ? ORDER BY entity_key LIMIT 1`, column)
	err := r.db.QueryRowContext(ctx, query, value).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up entity: %w", err)
	}
	return key, nil
}

// CountRecords returns the number of rows in the records table.
func (r *Repository) CountRecords(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// ListTables returns the names of all user tables.
func (r *Repository) ListTables(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listTables(ctx)
}

// listTables is ListTables without locking. Caller holds mu.
func (r *Repository) listTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// DumpTables returns every row of every table keyed by table name.
func (r *Repository) DumpTables(ctx context.Context) (map[string][]map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.listTables(ctx)
	if err != nil {
		return nil, err
	}

	dump := make(map[string][]map[string]any, len(tables))
	for _, table := range tables {
		rows, err := r.queryRows(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, strings.ReplaceAll(table, `"`, `""`)))
		if err != nil {
			return nil, fmt.Errorf("dumping %s: %w", table, err)
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		dump[table] = rows
	}
	return dump, nil
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action, entityKey string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var entityKeyStr sql.NullString
	if entityKey != "" {
		entityKeyStr = sql.NullString{String: entityKey, Valid: true}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	query := `INSERT INTO audit_log (action, entity_key, details, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, action, entityKeyStr, detailsJSON, timeNow().UTC()); err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// FindAuditLog returns audit log entries for an entity, newest first.
// An empty entityKey returns entries for every entity.
func (r *Repository) FindAuditLog(ctx context.Context, entityKey string, limit int) ([]entities.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, action, entity_key, details, created_at
		FROM audit_log
		WHERE (? = '' OR entity_key = ?)
		ORDER BY id DESC
		LIMIT ?
	`

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, query, entityKey, entityKey, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]entities.AuditEntry, 0, limit)
	for rows.Next() {
		var entry entities.AuditEntry
		var key, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&key,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.EntityKey = key.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
