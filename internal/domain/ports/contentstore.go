package ports

import (
	"context"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

// ContentStore defines the durable per-entity storage of entries,
// embeddings and id ordering.
type ContentStore interface {
	// Upsert merges entries into the entity's bundle by ID (last write wins)
	// and rewrites the whole bundle.
	Upsert(ctx context.Context, entityKey string, entries []entities.Entry) error

	// Replace rewrites the entity's bundle to hold exactly entries.
	Replace(ctx context.Context, entityKey string, entries []entities.Entry) error

	// ListEntities returns the entity keys of bundles present on disk.
	ListEntities(ctx context.Context) ([]string, error)

	// GetEntries returns the entity's entries in bundle order.
	GetEntries(ctx context.Context, entityKey string) ([]entities.Entry, error)

	// SemanticSearch returns the k entries closest to query.
	SemanticSearch(ctx context.Context, entityKey, query string, k int) ([]entities.ScoredEntry, error)

	// DeleteEntity removes the entity's bundle.
	DeleteEntity(ctx context.Context, entityKey string) error

	// LoadProfile returns the entity's profile, empty when none is stored.
	LoadProfile(ctx context.Context, entityKey string) (entities.Profile, error)

	// SaveProfile stores the entity's profile.
	SaveProfile(ctx context.Context, entityKey string, p entities.Profile) error
}
