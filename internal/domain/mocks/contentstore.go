package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

// ContentStore is an in-memory mock implementation of ports.ContentStore.
type ContentStore struct {
	mu       sync.Mutex
	Bundles  map[string][]entities.Entry
	Profiles map[string]entities.Profile

	// Hits, when set, is returned by SemanticSearch. Otherwise entries whose
	// content contains the query score 1 in bundle order.
	Hits []entities.ScoredEntry

	Err        error
	UpsertErr  error
	ReplaceErr error

	UpsertCalls  int
	ReplaceCalls int
}

// NewContentStore creates a new mock ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{
		Bundles:  make(map[string][]entities.Entry),
		Profiles: make(map[string]entities.Profile),
	}
}

// Upsert merges entries into the bundle by ID.
func (m *ContentStore) Upsert(_ context.Context, entityKey string, entries []entities.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.Err != nil {
		return m.Err
	}
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if len(entries) == 0 {
		return nil
	}
	list := m.Bundles[entityKey]
	for _, e := range entries {
		replaced := false
		for i := range list {
			if list[i].ID == e.ID {
				list[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, e)
		}
	}
	m.Bundles[entityKey] = list
	return nil
}

// Replace sets the bundle to entries.
func (m *ContentStore) Replace(_ context.Context, entityKey string, entries []entities.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceCalls++
	if m.Err != nil {
		return m.Err
	}
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.Bundles[entityKey] = append([]entities.Entry{}, entries...)
	return nil
}

// ListEntities returns the bundle keys, sorted.
func (m *ContentStore) ListEntities(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	keys := make([]string, 0, len(m.Bundles))
	for k := range m.Bundles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// GetEntries returns a copy of the bundle.
func (m *ContentStore) GetEntries(_ context.Context, entityKey string) ([]entities.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]entities.Entry(nil), m.Bundles[entityKey]...), nil
}

// SemanticSearch returns Hits or substring matches.
func (m *ContentStore) SemanticSearch(_ context.Context, entityKey, query string, k int) ([]entities.ScoredEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Hits != nil {
		return m.Hits, nil
	}
	var out []entities.ScoredEntry
	for _, e := range m.Bundles[entityKey] {
		if len(out) == k {
			break
		}
		if strings.Contains(e.Content, query) {
			out = append(out, entities.ScoredEntry{Entry: e, Score: 1})
		}
	}
	return out, nil
}

// DeleteEntity removes the bundle.
func (m *ContentStore) DeleteEntity(_ context.Context, entityKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Bundles, entityKey)
	delete(m.Profiles, entityKey)
	return nil
}

// LoadProfile returns the stored profile.
func (m *ContentStore) LoadProfile(_ context.Context, entityKey string) (entities.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return entities.Profile{}, m.Err
	}
	return m.Profiles[entityKey], nil
}

// SaveProfile stores the profile.
func (m *ContentStore) SaveProfile(_ context.Context, entityKey string, p entities.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Profiles[entityKey] = p
	return nil
}
