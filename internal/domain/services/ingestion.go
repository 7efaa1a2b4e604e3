package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/parsers"
)

// DefaultExtensions are the source file extensions ingested when none are configured.
var DefaultExtensions = []string{".json"}

// IngestOptions controls an ingestion pass.
type IngestOptions struct {
	Extensions    []string // Source file extensions, e.g. ".json"
	ListField     string   // Field wrapping entry lists; empty means parsers.DefaultListField
	EntityPattern string   // Only entity folders containing this substring
}

// FileResult is the outcome of one source file.
type FileResult struct {
	Path    string `json:"path"`
	Entity  string `json:"entity"`
	Outcome string `json:"outcome"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// IngestReport summarizes an ingestion pass.
type IngestReport struct {
	Root          string        `json:"root"`
	Entities      []string      `json:"entities"`
	Files         []FileResult  `json:"files"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Empty         int           `json:"empty"`
	Failed        int           `json:"failed"`
	EntriesStored int           `json:"entries_stored"`
	Duration      time.Duration `json:"duration"`
	OK            bool          `json:"ok"`
	Error         string        `json:"error,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
}

func (r *IngestReport) addFile(f FileResult) {
	r.Files = append(r.Files, f)
	switch f.Outcome {
	case ports.FileProcessed:
		r.Processed++
		r.EntriesStored += f.Entries
	case ports.FileSkipped:
		r.Skipped++
	case ports.FileEmpty:
		r.Empty++
	case ports.FileFailed:
		r.Failed++
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", f.Path, f.Error))
	}
}

// IngestionService walks an ingestion root and feeds new or changed source
// files into the content store and the secondary index.
type IngestionService struct {
	index   ports.SecondaryIndex
	store   ports.ContentStore
	metrics ports.Metrics
	logger  *slog.Logger
}

// NewIngestionService creates a new ingestion service. metrics may be nil.
func NewIngestionService(index ports.SecondaryIndex, store ports.ContentStore, metrics ports.Metrics, logger *slog.Logger) *IngestionService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{index: index, store: store, metrics: metrics, logger: logger}
}

// pendingFile is a parsed source file waiting for its entity to be stored.
type pendingFile struct {
	path    string
	mtime   float64
	entries []entities.Entry
}

// Run ingests every entity folder under root. Failures of single files are
// recorded in the report and never stop the walk. A cancelled ctx stops the
// pass between files; files not yet stored stay unmarked.
func (s *IngestionService) Run(ctx context.Context, root string, opts IngestOptions) *IngestReport {
	start := time.Now()
	report := &IngestReport{Root: root}
	defer func() {
		report.Duration = time.Since(start)
		report.OK = len(report.Errors) == 0
		report.Error = stepErrors(report.Errors).summary()
		s.metrics.IngestDuration(report.Duration)
	}()

	dirs, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("ingest root does not exist yet", "root", root)
		return report
	}
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("reading ingest root: %v", err))
		return report
	}

	exts := normalizeExtensions(opts.Extensions)
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		key := d.Name()
		if opts.EntityPattern != "" && !strings.Contains(key, opts.EntityPattern) {
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("ingestion cancelled: %v", err))
			return report
		}

		report.Entities = append(report.Entities, key)
		if err := s.ingestEntity(ctx, filepath.Join(root, key), key, exts, opts.ListField, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", key, err))
			if ctx.Err() != nil {
				return report
			}
		}
	}

	s.logger.Info("ingestion finished",
		"root", root,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"empty", report.Empty,
		"failed", report.Failed,
		"entries", report.EntriesStored)
	return report
}

// ingestEntity scans one entity folder, then stores the collected entries.
// Only files whose entries reached both stores are marked processed.
func (s *IngestionService) ingestEntity(ctx context.Context, dir, key string, exts map[string]bool, listField string, report *IngestReport) error {
	paths, walkErrs, err := sourceFiles(dir, exts)
	if err != nil {
		return fmt.Errorf("walking entity folder: %w", err)
	}
	for _, we := range walkErrs {
		s.logger.Warn("skipping unreadable path", "entity", key, "path", we.path, "err", we.err)
		s.fail(report, FileResult{Path: we.path, Entity: key}, fmt.Errorf("walking: %w", we.err))
	}

	var pending []pendingFile
	var all []entities.Entry
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingestion cancelled: %w", err)
		}
		p, result := s.scanFile(ctx, path, key, listField)
		if p == nil {
			report.addFile(result)
			s.metrics.FileScanned(result.Outcome)
			continue
		}
		pending = append(pending, *p)
		all = append(all, p.entries...)
	}
	if len(pending) == 0 {
		return nil
	}

	if err := s.store.Upsert(ctx, key, all); err != nil {
		s.logger.Warn("storing entries failed, files will be retried", "entity", key, "err", err)
		for _, p := range pending {
			s.fail(report, FileResult{Path: p.path, Entity: key, Entries: len(p.entries)}, fmt.Errorf("storing entries: %w", err))
		}
		return nil
	}

	for _, p := range pending {
		result := FileResult{Path: p.path, Entity: key, Entries: len(p.entries)}
		var failed int
		for _, e := range p.entries {
			rec := entities.Record{Entry: e, FilePath: p.path, MTime: p.mtime}
			if err := s.index.UpsertRecord(ctx, rec); err != nil {
				failed++
				s.logger.Warn("indexing entry failed", "entity", key, "path", p.path, "id", e.ID, "err", err)
			}
		}
		if failed > 0 {
			s.fail(report, result, fmt.Errorf("indexing %d of %d entries failed", failed, len(p.entries)))
			continue
		}
		if err := s.index.MarkFileProcessed(ctx, p.path, p.mtime); err != nil {
			s.fail(report, result, fmt.Errorf("marking file processed: %w", err))
			continue
		}
		result.Outcome = ports.FileProcessed
		report.addFile(result)
		s.metrics.FileScanned(ports.FileProcessed)
		s.metrics.EntriesStored(len(p.entries))
	}
	return nil
}

// scanFile returns a pending file when the source holds usable entries.
// Otherwise it returns the final result for the file.
func (s *IngestionService) scanFile(ctx context.Context, path, key, listField string) (*pendingFile, FileResult) {
	result := FileResult{Path: path, Entity: key}

	info, err := os.Stat(path)
	if err != nil {
		return nil, s.failed(result, fmt.Errorf("stat: %w", err))
	}
	mtime := fileMTime(info)

	done, err := s.index.IsFileProcessed(ctx, path, mtime)
	if err != nil {
		return nil, s.failed(result, fmt.Errorf("checking ledger: %w", err))
	}
	if done {
		result.Outcome = ports.FileSkipped
		return nil, result
	}

	raws, err := parseFile(path, listField)
	if err != nil {
		// Left unmarked so the next pass retries it.
		s.logger.Warn("parsing source file failed", "path", path, "err", err)
		return nil, s.failed(result, err)
	}

	var list []entities.Entry
	for _, raw := range raws {
		if !raw.Usable() {
			continue
		}
		list = append(list, raw.Entry(key))
	}
	if len(list) == 0 {
		if err := s.index.MarkFileProcessed(ctx, path, mtime); err != nil {
			return nil, s.failed(result, fmt.Errorf("marking file processed: %w", err))
		}
		result.Outcome = ports.FileEmpty
		return nil, result
	}
	return &pendingFile{path: path, mtime: mtime, entries: list}, result
}

func (s *IngestionService) failed(result FileResult, err error) FileResult {
	result.Outcome = ports.FileFailed
	result.Error = err.Error()
	return result
}

func (s *IngestionService) fail(report *IngestReport, result FileResult, err error) {
	result = s.failed(result, err)
	report.addFile(result)
	s.metrics.FileScanned(result.Outcome)
}

func parseFile(path, listField string) ([]parsers.RawEntry, error) {
	p := parsers.ForFile(path, listField)
	if p == nil {
		return nil, fmt.Errorf("unsupported source format %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	raws, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return raws, nil
}

// walkDir is swapped in tests to simulate unreadable subtrees.
var walkDir = filepath.WalkDir

type walkError struct {
	path string
	err  error
}

// sourceFiles returns the candidate files under dir, sorted. Hidden entries
// and temporary files are skipped. A path below dir that cannot be read is
// skipped and reported in walkErrs; only a failure on dir itself is an error.
func sourceFiles(dir string, exts map[string]bool) (out []string, walkErrs []walkError, err error) {
	err = walkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			walkErrs = append(walkErrs, walkError{path: path, err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if exts[strings.ToLower(filepath.Ext(name))] {
			out = append(out, path)
		}
		return nil
	})
	sort.Strings(out)
	return out, walkErrs, err
}

func normalizeExtensions(list []string) map[string]bool {
	if len(list) == 0 {
		list = DefaultExtensions
	}
	return parsers.NormalizeExtensions(list)
}
