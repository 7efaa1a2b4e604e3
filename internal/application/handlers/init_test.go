package handlers

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/mocks"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()

	var opened config.SQLiteConfig
	index := mocks.NewSecondaryIndex()
	handler := NewInitHandler(func(cfg config.SQLiteConfig) (ports.SecondaryIndex, error) {
		opened = cfg
		return index, nil
	})

	result, err := handler.Handle(t.Context(), tmpDir)

	require.NoError(t, err)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.Equal(t, result.SQLitePath, opened.Path)
	assert.True(t, config.Exists(tmpDir))

	for _, dir := range []string{result.StorageRoot, result.IngestRoot} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestInitHandler_Handle_NoIndex(t *testing.T) {
	result, err := NewInitHandler(nil).Handle(t.Context(), t.TempDir())

	require.NoError(t, err)
	assert.NotEmpty(t, result.SQLitePath)
}

func TestInitHandler_Handle_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, config.WriteDefault(tmpDir))

	_, err := NewInitHandler(nil).Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitHandler_Handle_SchemaError(t *testing.T) {
	index := mocks.NewSecondaryIndex()
	index.Err = errors.New("disk full")
	handler := NewInitHandler(func(config.SQLiteConfig) (ports.SecondaryIndex, error) {
		return index, nil
	})

	_, err := handler.Handle(t.Context(), t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating schema")
	assert.Contains(t, err.Error(), "disk full")
}

func TestInitHandler_Handle_OpenError(t *testing.T) {
	handler := NewInitHandler(func(config.SQLiteConfig) (ports.SecondaryIndex, error) {
		return nil, errors.New("permission denied")
	})

	_, err := handler.Handle(t.Context(), t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening secondary index")
}
