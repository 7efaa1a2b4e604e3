// Package ollama provides an Embedder implementation backed by a local
// Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/ersonp/farmlog/internal/infrastructure/config"
)

// DefaultHost is the address of a local Ollama server.
const DefaultHost = "http://localhost:11434"

// DefaultModel is used when no model is configured.
const DefaultModel = "nomic-embed-text"

// Embedder implements the Embedder interface using Ollama's embed endpoint.
type Embedder struct {
	client *api.Client
	model  string
	dim    int
}

// NewEmbedder creates a new Ollama embedder.
func NewEmbedder(cfg config.EmbedderConfig) (*Embedder, error) {
	host := cfg.BaseURL
	if host == "" {
		host = DefaultHost
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama host: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid ollama host %q", host)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &Embedder{
		client: api.NewClient(base, httpClient),
		model:  model,
	}, nil
}

// EmbedBatch generates vector embeddings for multiple texts, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embeddings: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	if len(resp.Embeddings[0]) > 0 {
		e.dim = len(resp.Embeddings[0])
	}

	return resp.Embeddings, nil
}

// Dimensions returns the vector size seen in the last response, or 0 before
// the first call.
func (e *Embedder) Dimensions() int {
	return e.dim
}

// ModelID returns the embedding model name.
func (e *Embedder) ModelID() string {
	return "ollama:" + e.model
}
