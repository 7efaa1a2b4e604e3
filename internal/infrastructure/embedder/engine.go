// Package embedder turns text into L2-normalized embedding matrices on top
// of a pluggable backend.
package embedder

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/domain/vector"
)

// StubModelID names the zero-vector backend used when none is configured.
const StubModelID = "none"

// DefaultBatchSize caps the number of texts sent per backend call.
const DefaultBatchSize = 100

// Engine maps texts to normalized vectors. With a nil backend it returns an
// N x 1 zero matrix so callers always get a well-formed shape.
type Engine struct {
	backend   ports.Embedder
	cache     *lru.Cache[string, []float32]
	batchSize int
}

// NewEngine creates an engine over backend, which may be nil. cacheSize <= 0
// disables the per-text cache.
func NewEngine(backend ports.Embedder, cacheSize int) (*Engine, error) {
	e := &Engine{backend: backend, batchSize: DefaultBatchSize}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Enabled reports whether a real backend is configured.
func (e *Engine) Enabled() bool {
	return e.backend != nil
}

// ModelID names the backend model, or StubModelID.
func (e *Engine) ModelID() string {
	if e.backend == nil {
		return StubModelID
	}
	return e.backend.ModelID()
}

// Embed returns one normalized row per text. Backend failures and responses
// of the wrong shape are returned as errors.
func (e *Engine) Embed(ctx context.Context, texts []string) (vector.Matrix, error) {
	if e.backend == nil {
		return vector.NewMatrix(len(texts), 1), nil
	}
	if len(texts) == 0 {
		return vector.Matrix{Dim: e.backend.Dimensions()}, nil
	}

	rows := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if v, ok := e.cached(text); ok {
			rows[i] = v
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += e.batchSize {
		end := min(start+e.batchSize, len(missing))
		batch := make([]string, 0, end-start)
		for _, idx := range missing[start:end] {
			batch = append(batch, texts[idx])
		}

		vecs, err := e.backend.EmbedBatch(ctx, batch)
		if err != nil {
			return vector.Matrix{}, fmt.Errorf("embedding batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return vector.Matrix{}, fmt.Errorf("%w: %d vectors for %d texts", entities.ErrEmbeddingShape, len(vecs), len(batch))
		}
		for j, idx := range missing[start:end] {
			v := append([]float32(nil), vecs[j]...)
			vector.NormalizeL2(v)
			rows[idx] = v
			if e.cache != nil {
				e.cache.Add(texts[idx], v)
			}
		}
	}

	m, err := vector.FromRows(rows)
	if err != nil {
		return vector.Matrix{}, fmt.Errorf("%w: %w", entities.ErrEmbeddingShape, err)
	}
	if m.Dim == 0 {
		return vector.Matrix{}, fmt.Errorf("%w: empty vectors", entities.ErrEmbeddingShape)
	}
	return m, nil
}

// EmbedQuery returns the normalized vector for a single query text.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return m.Row(0), nil
}

func (e *Engine) cached(text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(text)
}
