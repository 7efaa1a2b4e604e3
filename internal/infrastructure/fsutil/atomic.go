// Package fsutil provides crash-safe file writes.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Tier names the write strategy that persisted a file.
type Tier string

const (
	// TierAtomic means the data was written to a temp file and renamed over the target.
	TierAtomic Tier = "atomic"
	// TierDirect means the atomic tier failed and the target was written in place.
	TierDirect Tier = "direct"
	// TierNone means neither tier succeeded.
	TierNone Tier = ""
)

// Swappable for tests.
var (
	rename    = os.Rename
	writeFile = os.WriteFile
)

// WriteAtomic writes data to a temp file in the target's directory and
// renames it over path. The temp file is removed on every failure path.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	temp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempName := temp.Name()
	shouldCleanup := true
	defer func() {
		if shouldCleanup {
			_ = os.Remove(tempName)
		}
	}()
	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Sync(); err != nil {
		_ = temp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempName, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := rename(tempName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	shouldCleanup = false
	return nil
}

// WriteFile persists data at path, trying the atomic tier first and falling
// back to a direct write. It returns the tier that succeeded; on failure the
// error carries both causes.
func WriteFile(path string, data []byte, perm os.FileMode) (Tier, error) {
	atomicErr := WriteAtomic(path, data, perm)
	if atomicErr == nil {
		return TierAtomic, nil
	}
	if err := writeFile(path, data, perm); err != nil {
		return TierNone, errors.Join(atomicErr, fmt.Errorf("direct write: %w", err))
	}
	return TierDirect, nil
}

// Batch stages several files in one directory and renames them into place
// together on Commit. Files are visible under their real names only after
// every one of them has been staged.
type Batch struct {
	dir    string
	staged []staged
}

type staged struct {
	temp, target string
}

// NewBatch returns a batch writing into dir.
func NewBatch(dir string) *Batch {
	return &Batch{dir: dir}
}

// Add stages data for the named file.
func (b *Batch) Add(name string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	temp, err := os.CreateTemp(b.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("closing %s: %w", name, err)
	}
	b.staged = append(b.staged, staged{temp: temp.Name(), target: filepath.Join(b.dir, name)})
	return nil
}

// Commit renames every staged file over its target. On the first failure
// the remaining temp files are removed.
func (b *Batch) Commit() error {
	for i, s := range b.staged {
		if err := rename(s.temp, s.target); err != nil {
			b.discard(b.staged[i:])
			b.staged = nil
			return fmt.Errorf("committing %s: %w", filepath.Base(s.target), err)
		}
	}
	b.staged = nil
	return nil
}

// Abort removes every staged temp file.
func (b *Batch) Abort() {
	b.discard(b.staged)
	b.staged = nil
}

func (b *Batch) discard(files []staged) {
	for _, s := range files {
		_ = os.Remove(s.temp)
	}
}
