// Package watcher triggers ingestion passes from file system events or a
// cron schedule.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ersonp/farmlog/internal/infrastructure/parsers"
)

// DefaultDebounce is the quiet period after the last event before a trigger fires.
const DefaultDebounce = 2 * time.Second

// Trigger runs one ingestion pass.
type Trigger func(ctx context.Context)

// Watcher watches an ingestion root recursively and fires a debounced
// trigger when source files change.
type Watcher struct {
	root       string
	extensions map[string]bool
	debounce   time.Duration
	logger     *slog.Logger
}

// New creates a watcher for root. Only files with one of extensions cause a
// trigger; no extensions means every file does.
func New(root string, extensions []string, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	exts := parsers.NormalizeExtensions(extensions)
	return &Watcher{root: root, extensions: exts, debounce: debounce, logger: logger}
}

// Run blocks until ctx is done, calling trigger after bursts of relevant
// events. trigger never runs concurrently with itself.
func (w *Watcher) Run(ctx context.Context, trigger Trigger) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}

	d := newDebouncer(w.debounce, func() { trigger(ctx) })
	defer d.stop()

	w.logger.Info("watching ingest root", "root", w.root, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, event) {
				d.notify()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

// handle reports whether event should schedule a trigger.
func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Name == "" {
		return false
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, event.Name); err != nil {
				w.logger.Warn("watching new directory", "path", event.Name, "err", err)
			}
			return true
		}
	}
	return w.relevant(event.Name)
}

func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// debouncer runs fn once after calls to notify stop for the given period.
// Runs of fn never overlap.
type debouncer struct {
	period time.Duration
	fn     func()

	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
	running  sync.Mutex
	inflight sync.WaitGroup
}

func newDebouncer(period time.Duration, fn func()) *debouncer {
	return &debouncer{period: period, fn: fn}
}

func (d *debouncer) notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.period, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	d.running.Lock()
	defer d.running.Unlock()
	d.fn()
}

// stop cancels a pending run and waits for one already started.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.inflight.Wait()
}
