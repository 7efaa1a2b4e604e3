package embedder

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/mocks"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEngine_Stub(t *testing.T) {
	e, err := NewEngine(nil, 0)
	require.NoError(t, err)
	assert.False(t, e.Enabled())
	assert.Equal(t, StubModelID, e.ModelID())

	m, err := e.Embed(t.Context(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, 1, m.Dim)
	assert.True(t, m.IsZero())

	q, err := e.EmbedQuery(t.Context(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []float32{0}, q)
}

func TestEngine_NormalizesRows(t *testing.T) {
	backend := &mocks.Embedder{Vectors: map[string][]float32{
		"a":    {3, 4},
		"zero": {0, 0},
	}}
	e, err := NewEngine(backend, 0)
	require.NoError(t, err)

	m, err := e.Embed(t.Context(), []string{"a", "zero"})
	require.NoError(t, err)
	require.Equal(t, 2, m.Rows)
	assert.InDelta(t, 0.6, m.Row(0)[0], 1e-6)
	assert.InDelta(t, 0.8, m.Row(0)[1], 1e-6)
	assert.InDelta(t, 1.0, norm(m.Row(0)), 1e-6)
	// Zero vectors are left as they are.
	assert.Equal(t, []float32{0, 0}, m.Row(1))
	// The backend's slices are not modified.
	assert.Equal(t, []float32{3, 4}, backend.Vectors["a"])
}

func TestEngine_Empty(t *testing.T) {
	e, err := NewEngine(&mocks.Embedder{Dim: 4}, 0)
	require.NoError(t, err)
	m, err := e.Embed(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows)
	assert.Equal(t, 4, m.Dim)
}

func TestEngine_Errors(t *testing.T) {
	t.Run("backend failure propagates", func(t *testing.T) {
		e, err := NewEngine(&mocks.Embedder{Err: errors.New("quota exceeded")}, 0)
		require.NoError(t, err)
		_, err = e.Embed(t.Context(), []string{"a"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("wrong row count", func(t *testing.T) {
		e, err := NewEngine(&mocks.Embedder{Result: [][]float32{{1}}}, 0)
		require.NoError(t, err)
		_, err = e.Embed(t.Context(), []string{"a", "b"})
		require.ErrorIs(t, err, entities.ErrEmbeddingShape)
	})

	t.Run("ragged rows", func(t *testing.T) {
		e, err := NewEngine(&mocks.Embedder{Result: [][]float32{{1, 0}, {1}}}, 0)
		require.NoError(t, err)
		_, err = e.Embed(t.Context(), []string{"a", "b"})
		require.ErrorIs(t, err, entities.ErrEmbeddingShape)
	})

	t.Run("empty vectors", func(t *testing.T) {
		e, err := NewEngine(&mocks.Embedder{Result: [][]float32{{}}}, 0)
		require.NoError(t, err)
		_, err = e.Embed(t.Context(), []string{"a"})
		require.ErrorIs(t, err, entities.ErrEmbeddingShape)
	})
}

func TestEngine_Cache(t *testing.T) {
	backend := &mocks.Embedder{}
	e, err := NewEngine(backend, 16)
	require.NoError(t, err)

	_, err = e.Embed(t.Context(), []string{"물 주기", "수확"})
	require.NoError(t, err)
	_, err = e.EmbedQuery(t.Context(), "수확")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.CallCount())

	_, err = e.Embed(t.Context(), []string{"수확", "제초"})
	require.NoError(t, err)
	require.Equal(t, 2, backend.CallCount())
	assert.Equal(t, []string{"제초"}, backend.Calls[1])
}

func TestEngine_Batches(t *testing.T) {
	backend := &mocks.Embedder{}
	e, err := NewEngine(backend, 0)
	require.NoError(t, err)
	e.batchSize = 2

	m, err := e.Embed(t.Context(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Equal(t, 5, m.Rows)
	assert.Equal(t, 3, backend.CallCount())
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbedderConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: config.EmbedderConfig{Provider: "none"}, wantNil: true},
		{name: "empty", cfg: config.EmbedderConfig{}, wantNil: true},
		{name: "openai", cfg: config.EmbedderConfig{Provider: "openai", APIKey: "k"}},
		{name: "openai without key", cfg: config.EmbedderConfig{Provider: "openai"}, wantErr: true},
		{name: "ollama", cfg: config.EmbedderConfig{Provider: "ollama"}},
		{name: "unknown", cfg: config.EmbedderConfig{Provider: "word2vec"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, b)
			} else {
				assert.NotNil(t, b)
			}
		})
	}
}
