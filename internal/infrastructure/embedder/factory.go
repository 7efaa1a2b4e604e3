package embedder

import (
	"fmt"
	"strings"

	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	"github.com/ersonp/farmlog/internal/infrastructure/embedder/ollama"
	"github.com/ersonp/farmlog/internal/infrastructure/embedder/openai"
)

// NewBackend returns the configured embedding backend, or nil for "none".
func NewBackend(cfg config.EmbedderConfig) (ports.Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil
	case "openai":
		e, err := openai.NewEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "ollama":
		e, err := ollama.NewEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

// New builds an Engine from configuration.
func New(cfg config.EmbedderConfig) (*Engine, error) {
	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return NewEngine(backend, cfg.CacheSize)
}
