package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "log_2023-09-25.json")

	require.NoError(t, WriteAtomic(path, []byte(`{"a":1}`), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, WriteAtomic(path, []byte(`{"a":2}`), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	assert.Equal(t, []string{"log_2023-09-25.json"}, listDir(t, filepath.Dir(path)))
}

func TestWriteFile_Tiers(t *testing.T) {
	t.Run("atomic tier", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.json")
		tier, err := WriteFile(path, []byte("x"), 0o644)
		require.NoError(t, err)
		assert.Equal(t, TierAtomic, tier)
	})

	t.Run("falls back to direct write when rename fails", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.json")

		oldRename := rename
		rename = func(string, string) error { return errors.New("rename refused") }
		t.Cleanup(func() { rename = oldRename })

		tier, err := WriteFile(path, []byte("direct"), 0o644)
		require.NoError(t, err)
		assert.Equal(t, TierDirect, tier)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "direct", string(data))
		// Temp file cleaned up.
		assert.Equal(t, []string{"a.json"}, listDir(t, dir))
	})

	t.Run("reports both failures", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.json")

		oldRename, oldWrite := rename, writeFile
		rename = func(string, string) error { return errors.New("rename refused") }
		writeFile = func(string, []byte, os.FileMode) error { return errors.New("disk full") }
		t.Cleanup(func() { rename, writeFile = oldRename, oldWrite })

		tier, err := WriteFile(path, []byte("x"), 0o644)
		require.Error(t, err)
		assert.Equal(t, TierNone, tier)
		assert.Contains(t, err.Error(), "rename refused")
		assert.Contains(t, err.Error(), "disk full")
	})
}

func TestBatch(t *testing.T) {
	t.Run("commit publishes all files", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "bundle")
		b := NewBatch(dir)
		require.NoError(t, b.Add("ids.json", []byte("[]")))
		require.NoError(t, b.Add("entries.jsonl", []byte("")))

		// Nothing visible before commit.
		for _, name := range listDir(t, dir) {
			assert.NotEqual(t, "ids.json", name)
		}

		require.NoError(t, b.Commit())
		assert.ElementsMatch(t, []string{"ids.json", "entries.jsonl"}, listDir(t, dir))
	})

	t.Run("abort removes staged files", func(t *testing.T) {
		dir := t.TempDir()
		b := NewBatch(dir)
		require.NoError(t, b.Add("ids.json", []byte("[]")))
		b.Abort()
		assert.Empty(t, listDir(t, dir))
	})

	t.Run("failed commit cleans up", func(t *testing.T) {
		dir := t.TempDir()
		b := NewBatch(dir)
		require.NoError(t, b.Add("ids.json", []byte("[]")))

		oldRename := rename
		rename = func(string, string) error { return errors.New("rename refused") }
		t.Cleanup(func() { rename = oldRename })

		require.Error(t, b.Commit())
		assert.Empty(t, listDir(t, dir))
	})
}
