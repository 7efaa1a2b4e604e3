// Package ports defines interfaces for external service communication.
package ports

import "context"

// Embedder defines the interface for text embedding backends.
type Embedder interface {
	// EmbedBatch generates one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length, or 0 when unknown until the first call.
	Dimensions() int

	// ModelID identifies the backend and model, e.g. "openai:text-embedding-3-small".
	ModelID() string
}
