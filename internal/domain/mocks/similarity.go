package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/farmlog/internal/domain/vector"
)

// SimilarityIndex is a mock implementation of ports.SimilarityIndex.
type SimilarityIndex struct {
	Name     string
	Artifact []byte
	Hits     []vector.Hit

	BuildErr  error
	SearchErr error
	RemoveErr error

	mu      sync.Mutex
	Builds  []string
	Removes []string
}

// Kind returns Name, defaulting to "mock".
func (m *SimilarityIndex) Kind() string {
	if m.Name == "" {
		return "mock"
	}
	return m.Name
}

// Build records the call and returns Artifact.
func (m *SimilarityIndex) Build(_ context.Context, entityKey string, _ []string, _ vector.Matrix) ([]byte, error) {
	m.mu.Lock()
	m.Builds = append(m.Builds, entityKey)
	m.mu.Unlock()
	if m.BuildErr != nil {
		return nil, m.BuildErr
	}
	return m.Artifact, nil
}

// Search returns Hits.
func (m *SimilarityIndex) Search(_ context.Context, _ string, _ []byte, _ []float32, k int) ([]vector.Hit, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return vector.TopK(append([]vector.Hit(nil), m.Hits...), k), nil
}

// Remove records the call.
func (m *SimilarityIndex) Remove(_ context.Context, entityKey string) error {
	m.mu.Lock()
	m.Removes = append(m.Removes, entityKey)
	m.mu.Unlock()
	return m.RemoveErr
}
