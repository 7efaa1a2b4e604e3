package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/fsutil"
	"github.com/ersonp/farmlog/internal/infrastructure/parsers"
)

// DateLayout is the date format used when an entry is added without a date.
const DateLayout = "2006-01-02"

// MutationOptions configures where mutations write source files.
type MutationOptions struct {
	IngestRoot string // Entity folders live under this directory
	ListField  string // Field wrapping entry lists; empty means parsers.DefaultListField
}

// AddEntryInput is one entry to add to an entity's source files.
type AddEntryInput struct {
	Entity         string `json:"entity"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Content        string `json:"content"`
	TargetFilename string `json:"target_filename,omitempty"`
}

// AddEntryResult reports an AddEntry call. Written is true once the source
// file holds the entry, even when a later step failed.
type AddEntryResult struct {
	Entry     entities.Entry `json:"entry"`
	FilePath  string         `json:"file_path"`
	WriteTier string         `json:"write_tier,omitempty"`
	Written   bool           `json:"written"`
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
}

// DeleteResult reports a DeleteEntriesForDate call.
type DeleteResult struct {
	Entity         string   `json:"entity"`
	Date           string   `json:"date"`
	DeletedFiles   []string `json:"deleted_files"`
	RewrittenFiles []string `json:"rewritten_files,omitempty"`
	DeletedRecords int      `json:"deleted_records"`
	Remaining      int      `json:"remaining"`
	OK             bool     `json:"ok"`
	Error          string   `json:"error,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// DeleteEntityResult reports a DeleteEntity call.
type DeleteEntityResult struct {
	Entity         string   `json:"entity"`
	DeletedRecords int      `json:"deleted_records"`
	SourcesRemoved bool     `json:"sources_removed"`
	OK             bool     `json:"ok"`
	Error          string   `json:"error,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// MutationService adds and deletes entries while keeping the source files,
// the content store and the secondary index in agreement.
type MutationService struct {
	index    ports.SecondaryIndex
	store    ports.ContentStore
	resolver *Resolver
	metrics  ports.Metrics
	opts     MutationOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewMutationService creates a new mutation service. metrics may be nil.
func NewMutationService(index ports.SecondaryIndex, store ports.ContentStore, resolver *Resolver, metrics ports.Metrics, opts MutationOptions, logger *slog.Logger) *MutationService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ListField == "" {
		opts.ListField = parsers.DefaultListField
	}
	return &MutationService{
		index:    index,
		store:    store,
		resolver: resolver,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// entityDir returns the source folder of a resolved entity key.
func (s *MutationService) entityDir(key string) string {
	return filepath.Join(s.opts.IngestRoot, key)
}

// AddEntry appends an entry to the entity's source file for its date and
// then stores and indexes it. The file write comes first; a failure in a
// later step is reported but does not undo the write.
func (s *MutationService) AddEntry(ctx context.Context, in AddEntryInput) *AddEntryResult {
	res := &AddEntryResult{}
	var errs stepErrors
	defer func() {
		res.Errors = errs
		res.OK = res.Written && len(errs) == 0
		res.Error = errs.summary()
		s.metrics.Mutation(entities.AuditAddEntry, res.OK)
	}()

	key := s.resolver.Resolve(ctx, in.Entity)
	if err := entities.ValidateEntityKey(key); err != nil {
		errs.add("validate", err)
		return res
	}
	if strings.TrimSpace(in.Content) == "" {
		errs.add("validate", errors.New("content is required"))
		return res
	}
	date := strings.TrimSpace(in.Date)
	if date == "" {
		date = s.now().Format(DateLayout)
	}
	entry := entities.NewEntry(key, date, in.Time, in.Content)
	res.Entry = entry

	dir := s.entityDir(key)
	path, doc, err := s.resolveTarget(dir, date, in.TargetFilename)
	if err != nil {
		errs.add("resolve target", err)
		return res
	}
	res.FilePath = path

	doc = parsers.AppendEntry(doc, s.opts.ListField, map[string]any{
		"date":    entry.Date,
		"time":    entry.Time,
		"content": entry.Content,
	})
	data, err := parsers.EncodeDocument(doc)
	if err != nil {
		errs.add("encode", err)
		return res
	}
	tier, err := fsutil.WriteFile(path, data, 0o644)
	res.WriteTier = string(tier)
	if err != nil {
		errs.add("write file", err)
		return res
	}
	res.Written = true
	if tier == fsutil.TierDirect {
		s.logger.Warn("atomic write failed, wrote file in place", "path", path)
	}

	var mtime float64
	if info, err := os.Stat(path); err != nil {
		errs.add("stat file", err)
	} else {
		mtime = fileMTime(info)
	}

	stored := true
	if err := s.store.Upsert(ctx, key, []entities.Entry{entry}); err != nil {
		stored = false
		s.logger.Warn("storing added entry failed", "entity", key, "id", entry.ID, "err", err)
		errs.add("content store", err)
	}
	if err := s.index.UpsertRecord(ctx, entities.Record{Entry: entry, FilePath: path, MTime: mtime}); err != nil {
		stored = false
		s.logger.Warn("indexing added entry failed", "entity", key, "id", entry.ID, "err", err)
		errs.add("secondary index", err)
	}
	// An unmarked file is picked up again by the next ingestion pass.
	if stored && mtime > 0 {
		errs.add("mark processed", s.index.MarkFileProcessed(ctx, path, mtime))
	}

	s.audit(ctx, entities.AuditAddEntry, key, map[string]any{
		"id": entry.ID, "date": entry.Date, "file": path, "tier": res.WriteTier,
	})
	return res
}

// resolveTarget picks the file an entry for date goes into and returns its
// decoded document, nil for a new file. An explicit target must parse if it
// exists; an automatically chosen one that does not parse gets a fresh
// sibling file instead of being overwritten.
func (s *MutationService) resolveTarget(dir, date, target string) (string, any, error) {
	if target != "" {
		if err := entities.ValidateFilename(target); err != nil {
			return "", nil, err
		}
		if !strings.EqualFold(filepath.Ext(target), ".json") {
			return "", nil, fmt.Errorf("%w: %q is not a JSON file", entities.ErrInvalidFilename, target)
		}
		path := filepath.Join(dir, target)
		doc, err := readDocument(path)
		if err != nil {
			return "", nil, err
		}
		return path, doc, nil
	}

	name := "log_" + date + ".json"
	if err := entities.ValidateFilename(name); err != nil {
		return "", nil, fmt.Errorf("date %q cannot name a file: %w", date, err)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		candidates, err := dateFiles(dir, date)
		if err != nil {
			return "", nil, err
		}
		if len(candidates) > 0 {
			path = candidates[0]
		}
	}

	doc, err := readDocument(path)
	if err == nil {
		return path, doc, nil
	}
	s.logger.Warn("existing log file does not parse, using another one", "path", path, "err", err)
	candidates, _ := dateFiles(dir, date)
	for _, c := range candidates {
		if c == path {
			continue
		}
		if doc, err := readDocument(c); err == nil {
			return c, doc, nil
		}
	}
	for n := 1; ; n++ {
		sibling := filepath.Join(dir, fmt.Sprintf("log_%s_%d.json", date, n))
		if _, err := os.Stat(sibling); errors.Is(err, fs.ErrNotExist) {
			return sibling, nil, nil
		}
	}
}

// readDocument decodes path. A missing file yields a nil document.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := parsers.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// dateFiles returns the files in dir named log_<date>*.json, sorted.
func dateFiles(dir, date string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	prefix := "log_" + date
	var out []string
	for _, d := range des {
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, prefix) || !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// DeleteEntriesForDate removes every entry of the entity dated date from
// the source files, the secondary index and the content store. Every step
// runs even when an earlier one failed.
func (s *MutationService) DeleteEntriesForDate(ctx context.Context, entity, date string) *DeleteResult {
	res := &DeleteResult{Date: date, DeletedFiles: []string{}}
	var errs stepErrors
	defer func() {
		res.Errors = errs
		res.OK = len(errs) == 0
		res.Error = errs.summary()
		s.metrics.Mutation(entities.AuditDeleteDate, res.OK)
	}()

	key := s.resolver.Resolve(ctx, entity)
	res.Entity = key
	if err := entities.ValidateEntityKey(key); err != nil {
		errs.add("validate", err)
		return res
	}
	if strings.TrimSpace(date) == "" {
		errs.add("validate", errors.New("date is required"))
		return res
	}

	indexed, err := s.index.FilePathsForDate(ctx, key, date)
	errs.add("find files", err)

	// Date-named files the index may not know about after an earlier partial failure.
	swept, err := dateFiles(s.entityDir(key), date)
	errs.add("sweep files", err)

	seen := make(map[string]bool)
	var forget []string
	for _, list := range [][]string{indexed, swept} {
		for _, path := range list {
			if seen[path] {
				continue
			}
			seen[path] = true
			deleted, rewritten, err := s.removeDateFromFile(ctx, key, path, date)
			if err != nil {
				s.logger.Warn("removing date from source file failed", "path", path, "err", err)
				errs.add("file "+path, err)
			}
			if deleted {
				res.DeletedFiles = append(res.DeletedFiles, path)
				forget = append(forget, path)
			}
			res.RewrittenFiles = append(res.RewrittenFiles, rewritten...)
		}
	}

	n, err := s.index.DeleteRecordsForDate(ctx, key, date)
	res.DeletedRecords = n
	errs.add("delete records", err)
	if len(forget) > 0 {
		errs.add("forget files", s.index.ForgetFiles(ctx, forget))
	}

	remaining, err := s.rebuild(ctx, key)
	res.Remaining = remaining
	errs.add("rebuild bundle", err)

	s.audit(ctx, entities.AuditDeleteDate, key, map[string]any{
		"date": date, "deleted_files": len(res.DeletedFiles), "deleted_records": n, "remaining": remaining,
	})
	return res
}

// removeDateFromFile drops the date's entries from one source file and
// returns the files it rewrote. A file left without entries is deleted; a
// missing file is not an error. Other dates' entries in a log_<date> file
// are moved to their own date files so the file can be deleted; when they
// cannot be moved the file is rewritten in place instead.
func (s *MutationService) removeDateFromFile(ctx context.Context, key, path, date string) (deleted bool, rewritten []string, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("reading file: %w", err)
	}

	out, remaining, err := parsers.RemoveDate(path, data, s.opts.ListField, date)
	if err != nil {
		// A date-named file that no longer parses belongs to that date only.
		if !isDateFile(path, date) {
			return false, nil, err
		}
		remaining = 0
	}
	if remaining == 0 {
		if err := removeFile(path); err != nil {
			return false, nil, err
		}
		return true, nil, nil
	}

	if isDateFile(path, date) {
		targets, moveErr := s.relocate(ctx, key, path, date, out)
		if moveErr == nil || len(targets) > 0 {
			// The surviving entries are in their own files now.
			if err := removeFile(path); err != nil {
				return false, targets, err
			}
			return true, targets, moveErr
		}
		s.logger.Warn("moving other dates out of log file failed, rewriting in place", "path", path, "err", moveErr)
	}

	if _, err := fsutil.WriteFile(path, out, 0o644); err != nil {
		return false, nil, fmt.Errorf("rewriting file: %w", err)
	}
	// The surviving entries are still indexed; record the new mtime.
	if info, err := os.Stat(path); err == nil {
		if err := s.index.MarkFileProcessed(ctx, path, fileMTime(info)); err != nil {
			return false, []string{path}, fmt.Errorf("marking file processed: %w", err)
		}
	}
	return false, []string{path}, nil
}

// relocate appends the entries held in data to the date files of their own
// dates next to path and points their index records at the new files. It
// returns the written files. Nothing is written unless every entry can be
// moved; a non-nil error with written files means only the index update
// failed, which the next ingestion pass repairs.
func (s *MutationService) relocate(ctx context.Context, key, path, date string, data []byte) ([]string, error) {
	p := parsers.ForFile(path, s.opts.ListField)
	if p == nil {
		return nil, fmt.Errorf("unsupported source format %q", filepath.Ext(path))
	}
	raws, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]entities.Entry)
	for _, raw := range raws {
		e := raw.Entry(key)
		if !raw.Usable() || e.Date == "" || e.Date == date {
			return nil, fmt.Errorf("entry %q has no other date to move to", e.ID)
		}
		groups[e.Date] = append(groups[e.Date], e)
	}

	dir := filepath.Dir(path)
	type planned struct {
		path    string
		data    []byte
		entries []entities.Entry
	}
	var plan []planned
	for _, d := range slices.Sorted(maps.Keys(groups)) {
		target, doc, err := s.resolveTarget(dir, d, "")
		if err != nil {
			return nil, err
		}
		if target == path {
			return nil, fmt.Errorf("no separate file for date %s", d)
		}
		for _, e := range groups[d] {
			doc = parsers.AppendEntry(doc, s.opts.ListField, map[string]any{
				"date": e.Date, "time": e.Time, "content": e.Content,
			})
		}
		encoded, err := parsers.EncodeDocument(doc)
		if err != nil {
			return nil, err
		}
		plan = append(plan, planned{path: target, data: encoded, entries: groups[d]})
	}

	var written []string
	for _, f := range plan {
		if _, err := fsutil.WriteFile(f.path, f.data, 0o644); err != nil {
			// Entries already copied stay in the original too; their ids are unchanged.
			return nil, fmt.Errorf("writing %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}

	var errs []error
	for _, f := range plan {
		info, err := os.Stat(f.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mtime := fileMTime(info)
		indexed := true
		for _, e := range f.entries {
			if err := s.index.UpsertRecord(ctx, entities.Record{Entry: e, FilePath: f.path, MTime: mtime}); err != nil {
				indexed = false
				errs = append(errs, err)
			}
		}
		if indexed {
			if err := s.index.MarkFileProcessed(ctx, f.path, mtime); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return written, fmt.Errorf("indexing moved entries: %w", errors.Join(errs...))
	}
	return written, nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

func isDateFile(path, date string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, "log_"+date) && strings.EqualFold(filepath.Ext(name), ".json")
}

// rebuild replaces the entity's bundle with its surviving index rows.
func (s *MutationService) rebuild(ctx context.Context, key string) (int, error) {
	rows, err := s.index.Query(ctx, "entity_key = ?", key)
	if err != nil {
		// Replacing from a failed query would empty the bundle.
		return 0, fmt.Errorf("reading surviving rows: %w", err)
	}
	list := RebuildEntries(rows)
	if err := s.store.Replace(ctx, key, list); err != nil {
		return len(list), fmt.Errorf("replacing bundle: %w", err)
	}
	s.audit(ctx, entities.AuditRebuild, key, map[string]any{"entries": len(list)})
	return len(list), nil
}

// DeleteEntity removes the entity's bundle and index rows. With
// removeSources the entity's source folder and its ledger rows go too;
// without it the ledger is kept so ingestion does not bring the entity back.
func (s *MutationService) DeleteEntity(ctx context.Context, entity string, removeSources bool) *DeleteEntityResult {
	res := &DeleteEntityResult{}
	var errs stepErrors
	defer func() {
		res.Errors = errs
		res.OK = len(errs) == 0
		res.Error = errs.summary()
		s.metrics.Mutation(entities.AuditDeleteEntity, res.OK)
	}()

	key := s.resolver.Resolve(ctx, entity)
	res.Entity = key
	if err := entities.ValidateEntityKey(key); err != nil {
		errs.add("validate", err)
		return res
	}

	var paths []string
	if removeSources {
		rows, err := s.index.Query(ctx, "entity_key = ?", key)
		errs.add("find files", err)
		seen := make(map[string]bool)
		for _, r := range rows {
			if r.FilePath != "" && !seen[r.FilePath] {
				seen[r.FilePath] = true
				paths = append(paths, r.FilePath)
			}
		}
	}

	errs.add("delete bundle", s.store.DeleteEntity(ctx, key))
	n, err := s.index.DeleteRecordsForEntity(ctx, key)
	res.DeletedRecords = n
	errs.add("delete records", err)

	if removeSources {
		dir := s.entityDir(key)
		if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				paths = append(paths, path)
			}
			return nil
		}); err != nil {
			errs.add("list sources", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			errs.add("remove sources", err)
		} else {
			res.SourcesRemoved = true
		}
		if len(paths) > 0 {
			errs.add("forget files", s.index.ForgetFiles(ctx, paths))
		}
	}

	s.audit(ctx, entities.AuditDeleteEntity, key, map[string]any{
		"deleted_records": n, "sources_removed": removeSources,
	})
	return res
}

// SaveProfile stores the entity's profile next to its bundle.
func (s *MutationService) SaveProfile(ctx context.Context, entity string, p entities.Profile) error {
	key := s.resolver.Resolve(ctx, entity)
	if err := entities.ValidateEntityKey(key); err != nil {
		return err
	}
	if err := s.store.SaveProfile(ctx, key, p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// audit records a mutation; a failure is only logged.
func (s *MutationService) audit(ctx context.Context, action, key string, details map[string]any) {
	if err := s.index.LogAction(ctx, action, key, details); err != nil {
		s.logger.Warn("writing audit log failed", "action", action, "entity", key, "err", err)
	}
}
