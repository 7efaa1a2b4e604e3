// Package similarity selects the configured similarity index backend.
package similarity

import (
	"fmt"
	"io"
	"strings"

	"github.com/ersonp/farmlog/internal/domain/ports"
	"github.com/ersonp/farmlog/internal/infrastructure/config"
	"github.com/ersonp/farmlog/internal/infrastructure/similarity/flat"
	"github.com/ersonp/farmlog/internal/infrastructure/similarity/ivf"
	"github.com/ersonp/farmlog/internal/infrastructure/similarity/qdrant"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns the configured backend and a closer for its resources.
// Kind "none" returns a nil index; the store then always searches by brute force.
func New(cfg config.SimilarityConfig, qcfg config.QdrantConfig) (ports.SimilarityIndex, io.Closer, error) {
	switch strings.ToLower(cfg.Kind) {
	case "none":
		return nil, nopCloser{}, nil
	case "", flat.Kind:
		return flat.New(), nopCloser{}, nil
	case ivf.Kind:
		return ivf.New(cfg.NList, cfg.NProbe), nopCloser{}, nil
	case qdrant.Kind:
		idx, err := qdrant.NewIndex(qcfg)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx, nil
	default:
		return nil, nil, fmt.Errorf("unknown similarity index kind %q", cfg.Kind)
	}
}
