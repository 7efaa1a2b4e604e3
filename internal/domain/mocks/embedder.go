// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"sync"
)

// Embedder is a mock implementation of ports.Embedder.
//
// Without Vectors or Result it embeds a text as a bag of runes hashed into
// Dim buckets, so texts sharing characters score as similar.
type Embedder struct {
	Dim     int
	Model   string
	Vectors map[string][]float32
	// Result, when set, overrides the result of every call.
	Result [][]float32
	Err    error

	mu    sync.Mutex
	Calls [][]string
}

// EmbedBatch returns the configured embeddings or error.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := m.Vectors[text]; ok {
			result[i] = v
			continue
		}
		result[i] = m.runeVector(text)
	}
	return result, nil
}

// Dimensions returns Dim, defaulting to 8.
func (m *Embedder) Dimensions() int {
	if m.Dim == 0 {
		return 8
	}
	return m.Dim
}

// ModelID returns Model, defaulting to "mock".
func (m *Embedder) ModelID() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}

// CallCount returns the number of EmbedBatch calls.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *Embedder) runeVector(text string) []float32 {
	v := make([]float32, m.Dimensions())
	for _, r := range text {
		v[int(r)%len(v)]++
	}
	return v
}
