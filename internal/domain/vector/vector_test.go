package vector

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRows(t *testing.T) {
	m, err := FromRows([][]float32{{3, 4}, {0, 0}})
	require.NoError(t, err)

	m.NormalizeRows()

	assert.InDelta(t, 0.6, m.Row(0)[0], 1e-6)
	assert.InDelta(t, 0.8, m.Row(0)[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, m.Row(1), "zero row must not be divided by zero")
}

func TestFromRows_Mismatch(t *testing.T) {
	_, err := FromRows([][]float32{{1, 2}, {1}})
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMatrix_IsZero(t *testing.T) {
	assert.True(t, Matrix{}.IsZero())
	assert.True(t, NewMatrix(3, 1).IsZero())

	m := NewMatrix(2, 2)
	m.Data[3] = 0.1
	assert.False(t, m.IsZero())
}

func TestSearch_StableTies(t *testing.T) {
	m, err := FromRows([][]float32{{1, 0}, {0, 1}, {1, 0}, {0.5, 0.5}})
	require.NoError(t, err)

	hits, err := m.Search([]float32{1, 0}, 3)
	require.NoError(t, err)

	require.Len(t, hits, 3)
	assert.Equal(t, 0, hits[0].Row)
	assert.Equal(t, 2, hits[1].Row)
	assert.Equal(t, 3, hits[2].Row)
}

func TestSearch_KLargerThanRows(t *testing.T) {
	m := NewMatrix(2, 1)
	hits, err := m.Search([]float32{0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Row)
	assert.Equal(t, 1, hits[1].Row)
}

func TestSearch_DimMismatch(t *testing.T) {
	m := NewMatrix(2, 3)
	_, err := m.Search([]float32{1}, 1)
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestCodec_RoundTripAndSizeCheck(t *testing.T) {
	m, err := FromRows([][]float32{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, m))
	assert.Equal(t, 24, buf.Len())

	got, err := ReadMatrix(bytes.NewReader(buf.Bytes()), int64(buf.Len()), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = ReadMatrix(bytes.NewReader(buf.Bytes()), int64(buf.Len()), 3, 3)
	assert.Error(t, err)
}
