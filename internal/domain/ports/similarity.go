package ports

import (
	"context"

	"github.com/ersonp/farmlog/internal/domain/vector"
)

// SimilarityIndex defines a nearest-neighbor index built per entity from the
// content store's embedding matrix.
//
// Local backends serialize themselves into an artifact that the content
// store writes together with the rest of the bundle. Remote backends return
// a nil artifact and keep their state elsewhere.
type SimilarityIndex interface {
	// Kind names the backend, e.g. "flat", "ivf", "qdrant".
	Kind() string

	// Build indexes m, whose row i belongs to ids[i].
	Build(ctx context.Context, entityKey string, ids []string, m vector.Matrix) ([]byte, error)

	// Search returns up to k hits for q. artifact is the bytes returned by
	// the last Build, or nil when none is stored. Returns entities.ErrNoIndex
	// when the backend has nothing to search.
	Search(ctx context.Context, entityKey string, artifact []byte, q []float32, k int) ([]vector.Hit, error)

	// Remove drops any state the backend keeps for the entity.
	Remove(ctx context.Context, entityKey string) error
}
