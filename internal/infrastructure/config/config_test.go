package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeEntityKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "id and name kept",
			input:    "1_taeyong",
			expected: "1_taeyong",
		},
		{
			name:     "hangul kept",
			input:    "2_김태용",
			expected: "2_김태용",
		},
		{
			name:     "hyphen kept",
			input:    "3_lee-jin",
			expected: "3_lee-jin",
		},
		{
			name:     "separators stripped",
			input:    "../4 park/",
			expected: "4park",
		},
		{
			name:     "empty string returns default",
			input:    "",
			expected: "person",
		},
		{
			name:     "only special chars returns default",
			input:    "!!!",
			expected: "person",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeEntityKey(tt.input))
		})
	}
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "farmlog_1_taeyong", CollectionName("farmlog_", "1_taeyong"))
	assert.Equal(t, "farmlog_person", CollectionName("farmlog_", "/"))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "none", cfg.Embedder.Provider)
	assert.Equal(t, "flat", cfg.Similarity.Kind)
	assert.Equal(t, DefaultListField, cfg.Ingest.ListField)
	assert.Equal(t, []string{".json"}, cfg.Ingest.Extensions)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 2*time.Second, cfg.Ingest.Debounce)
}

func TestConfigDir(t *testing.T) {
	assert.Equal(t, "/home/user/farm/.farmlog", ConfigDir("/home/user/farm"))
}

func TestConfigFilePath(t *testing.T) {
	assert.Equal(t, "/home/user/farm/.farmlog/config.yaml", ConfigFilePath("/home/user/farm"))
}

func TestLoad_MissingConfig(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "farmlog init")
}

func TestWriteDefaultAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FARMLOG_STORAGE_ROOT", "")
	t.Setenv("FARMLOG_INGEST_ROOT", "")

	require.NoError(t, WriteDefault(dir))
	assert.True(t, Exists(dir))
	require.Error(t, WriteDefault(dir), "second init must not overwrite")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data/store"), cfg.Storage.Root)
	assert.Equal(t, filepath.Join(dir, "data/source"), cfg.Ingest.Root)
	assert.Equal(t, filepath.Join(dir, "data/store", "metadata.db"), cfg.SQLitePath())
	assert.Equal(t, 2*time.Second, cfg.Ingest.Debounce)
	assert.Equal(t, 30*time.Second, cfg.Embedder.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))

	t.Setenv("FARMLOG_STORAGE_ROOT", "/srv/store")
	t.Setenv("FARMLOG_INGEST_ROOT", "/srv/source")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_API_KEY", "qd-test")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/store", cfg.Storage.Root)
	assert.Equal(t, "/srv/source", cfg.Ingest.Root)
	assert.Equal(t, "sk-test", cfg.Embedder.APIKey)
	assert.Equal(t, "qd-test", cfg.Qdrant.APIKey)
}

func TestLoad_Dotenv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDefault(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FARMLOG_INGEST_ROOT=/from/dotenv\n"), 0644))

	// Registered so the variable is restored after the test.
	t.Setenv("FARMLOG_INGEST_ROOT", "")
	require.NoError(t, os.Unsetenv("FARMLOG_INGEST_ROOT"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.Ingest.Root)
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FARMLOG_STORAGE_ROOT", "")
	t.Setenv("FARMLOG_INGEST_ROOT", "")

	cfg := Default()
	cfg.Storage.Root = "/abs/store"
	cfg.Similarity.Kind = "ivf"
	cfg.Ingest.Extensions = []string{".json", ".csv"}
	require.NoError(t, Write(dir, cfg))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/abs/store", loaded.Storage.Root)
	assert.Equal(t, "ivf", loaded.Similarity.Kind)
	assert.Equal(t, []string{".json", ".csv"}, loaded.Ingest.Extensions)
}
