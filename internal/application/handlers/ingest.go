package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/services"
)

// LockFile is the name of the cross-process ingestion lock in the storage root.
const LockFile = ".ingest.lock"

// IngestHandler runs ingestion passes. Concurrent calls in one process share
// a single pass; a pass held by another process fails with
// entities.ErrIngestBusy.
type IngestHandler struct {
	service  *services.IngestionService
	root     string
	opts     services.IngestOptions
	lockPath string
	logger   *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	running bool
	last    *services.IngestReport
}

// NewIngestHandler creates a new ingest handler for the ingestion root.
func NewIngestHandler(service *services.IngestionService, root string, opts services.IngestOptions, lockPath string, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		service:  service,
		root:     root,
		opts:     opts,
		lockPath: lockPath,
		logger:   logger,
	}
}

// IngestOutcome is delivered by RunAsync when a pass ends.
type IngestOutcome struct {
	Report *services.IngestReport
	Err    error
}

// Handle runs one ingestion pass, or joins the pass already running.
func (h *IngestHandler) Handle(ctx context.Context) (*services.IngestReport, error) {
	v, err, _ := h.group.Do("ingest", func() (any, error) {
		return h.runLocked(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*services.IngestReport), nil
}

// RunAsync starts a pass in the background and returns at once. The
// channel receives exactly one outcome.
func (h *IngestHandler) RunAsync(ctx context.Context) <-chan IngestOutcome {
	out := make(chan IngestOutcome, 1)
	go func() {
		report, err := h.Handle(ctx)
		if err != nil {
			h.logger.Warn("background ingestion failed", "err", err)
		}
		out <- IngestOutcome{Report: report, Err: err}
		close(out)
	}()
	return out
}

// Running reports whether a pass is in progress in this process.
func (h *IngestHandler) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// LastReport returns the report of the last finished pass, or nil.
func (h *IngestHandler) LastReport() *services.IngestReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *IngestHandler) runLocked(ctx context.Context) (*services.IngestReport, error) {
	if err := os.MkdirAll(filepath.Dir(h.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	lock := flock.New(h.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock: %s)", entities.ErrIngestBusy, h.lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	h.setRunning(true)
	defer h.setRunning(false)

	report := h.service.Run(ctx, h.root, h.opts)

	h.mu.Lock()
	h.last = report
	h.mu.Unlock()
	return report, nil
}

func (h *IngestHandler) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}
