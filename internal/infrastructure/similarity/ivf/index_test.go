package ivf

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/vector"
)

// clusteredMatrix returns normalized rows scattered around a few axes.
func clusteredMatrix(t *testing.T, rows, dim int) (vector.Matrix, []string) {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	data := make([][]float32, rows)
	ids := make([]string, rows)
	for i := range data {
		v := make([]float32, dim)
		v[i%4] = 1
		for d := range v {
			v[d] += float32(rng.Float64()) * 0.1
		}
		data[i] = v
		ids[i] = string(rune('a' + i%26))
	}
	m, err := vector.FromRows(data)
	require.NoError(t, err)
	m.NormalizeRows()
	return m, ids
}

func TestIndex_MatchesExactSearchWhenProbingAll(t *testing.T) {
	m, ids := clusteredMatrix(t, 40, 8)
	idx := New(4, 4)

	artifact, err := idx.Build(t.Context(), "1_taeyong", ids, m)
	require.NoError(t, err)

	q := append([]float32(nil), m.Row(5)...)
	got, err := idx.Search(t.Context(), "1_taeyong", artifact, q, 5)
	require.NoError(t, err)

	want, err := m.Search(q, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIndex_ProbeSubset(t *testing.T) {
	m, ids := clusteredMatrix(t, 40, 8)
	idx := New(4, 1)

	artifact, err := idx.Build(t.Context(), "e", ids, m)
	require.NoError(t, err)

	// The nearest row to itself is found even when probing one cluster.
	hits, err := idx.Search(t.Context(), "e", artifact, m.Row(7), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 7, hits[0].Row)
}

func TestIndex_FewerRowsThanLists(t *testing.T) {
	m, err := vector.FromRows([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	idx := New(16, 4)

	artifact, err := idx.Build(t.Context(), "e", []string{"a", "b"}, m)
	require.NoError(t, err)

	hits, err := idx.Search(t.Context(), "e", artifact, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Row)
}

func TestIndex_Deterministic(t *testing.T) {
	m, ids := clusteredMatrix(t, 30, 6)
	a, err := New(3, 1).Build(t.Context(), "e", ids, m)
	require.NoError(t, err)
	b, err := New(3, 1).Build(t.Context(), "e", ids, m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIndex_Errors(t *testing.T) {
	idx := New(0, 0)
	assert.Equal(t, DefaultNList, idx.nlist)
	assert.Equal(t, DefaultNProbe, idx.nprobe)

	_, err := idx.Search(t.Context(), "e", nil, []float32{1}, 1)
	require.ErrorIs(t, err, entities.ErrNoIndex)

	_, err = idx.Search(t.Context(), "e", []byte("IVF1xxxxxxxxxxxx"), []float32{1}, 1)
	require.Error(t, err)

	m, ids := clusteredMatrix(t, 10, 4)
	artifact, err := idx.Build(t.Context(), "e", ids, m)
	require.NoError(t, err)

	_, err = idx.Search(t.Context(), "e", artifact, []float32{1, 0}, 1)
	require.ErrorIs(t, err, vector.ErrLengthMismatch)

	_, err = idx.Search(t.Context(), "e", artifact[:len(artifact)-4], m.Row(0), 1)
	require.Error(t, err)

	empty, err := idx.Build(t.Context(), "e", nil, vector.Matrix{})
	require.NoError(t, err)
	assert.Nil(t, empty)
}
