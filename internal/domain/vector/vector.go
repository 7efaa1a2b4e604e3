// Package vector provides the dense float32 matrix used for embeddings and
// the similarity math shared by the store and the similarity backends.
package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrLengthMismatch indicates two vectors have different dimensions.
var ErrLengthMismatch = errors.New("vector length mismatch")

// Matrix is a row-major Rows x Dim matrix of float32 values.
type Matrix struct {
	Rows int
	Dim  int
	Data []float32
}

// NewMatrix allocates a zeroed rows x dim matrix.
func NewMatrix(rows, dim int) Matrix {
	return Matrix{Rows: rows, Dim: dim, Data: make([]float32, rows*dim)}
}

// FromRows builds a matrix from equally sized rows.
func FromRows(rows [][]float32) (Matrix, error) {
	if len(rows) == 0 {
		return Matrix{}, nil
	}
	dim := len(rows[0])
	m := NewMatrix(len(rows), dim)
	for i, r := range rows {
		if len(r) != dim {
			return Matrix{}, fmt.Errorf("row %d: %w: got %d want %d", i, ErrLengthMismatch, len(r), dim)
		}
		copy(m.Data[i*dim:], r)
	}
	return m, nil
}

// Row returns row i as a slice aliasing the matrix data.
func (m Matrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

// Validate checks that Data holds exactly Rows*Dim values.
func (m Matrix) Validate() error {
	if m.Rows < 0 || m.Dim < 0 || len(m.Data) != m.Rows*m.Dim {
		return fmt.Errorf("%w: %d values for %dx%d", ErrLengthMismatch, len(m.Data), m.Rows, m.Dim)
	}
	return nil
}

// IsZero reports whether every value is zero. An empty matrix is zero.
func (m Matrix) IsZero() bool {
	for _, v := range m.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// NormalizeRows scales every row to unit L2 norm in place.
// Rows with zero norm are left as they are.
func (m Matrix) NormalizeRows() {
	for i := 0; i < m.Rows; i++ {
		NormalizeL2(m.Row(i))
	}
}

// NormalizeL2 scales v to unit L2 norm in place. A zero vector is left as is.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return
	}
	inv := float32(1.0 / n)
	for i := range v {
		v[i] *= inv
	}
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s), nil
}

// Hit is a scored row of a matrix.
type Hit struct {
	Row   int
	Score float32
}

// Scores returns the inner product of q against every row of m.
func (m Matrix) Scores(q []float32) ([]float32, error) {
	if len(q) != m.Dim {
		return nil, fmt.Errorf("%w: query %d, matrix %d", ErrLengthMismatch, len(q), m.Dim)
	}
	out := make([]float32, m.Rows)
	for i := 0; i < m.Rows; i++ {
		s, _ := Dot(m.Row(i), q)
		out[i] = s
	}
	return out, nil
}

// TopK orders hits by descending score and keeps the first k. Equal scores
// keep ascending row order.
func TopK(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
	if k >= 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Search scores every row of m against q and returns the top k hits.
func (m Matrix) Search(q []float32, k int) ([]Hit, error) {
	scores, err := m.Scores(q)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(scores))
	for i, s := range scores {
		hits[i] = Hit{Row: i, Score: s}
	}
	return TopK(hits, k), nil
}
