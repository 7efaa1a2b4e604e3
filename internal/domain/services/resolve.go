package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/domain/ports"
)

// resolveColumns are tried in order against the secondary index.
var resolveColumns = []string{"entity_key", "entity_id", "entity_name"}

// Resolver maps any of an entity's identifiers to its entity key.
type Resolver struct {
	index  ports.SecondaryIndex
	store  ports.ContentStore
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(index ports.SecondaryIndex, store ports.ContentStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{index: index, store: store, logger: logger}
}

// Resolve returns the entity key for ident. The index is searched by
// entity_key, entity_id and entity_name in that order, then the bundles on
// disk are matched the same way. An unknown ident is returned as is.
func (r *Resolver) Resolve(ctx context.Context, ident string) string {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return ""
	}

	for _, col := range resolveColumns {
		key, err := r.index.LookupEntityKey(ctx, col, ident)
		if err != nil {
			r.logger.Warn("entity lookup failed", "column", col, "ident", ident, "err", err)
			continue
		}
		if key != "" {
			return key
		}
	}

	keys, err := r.store.ListEntities(ctx)
	if err != nil {
		r.logger.Warn("listing bundles for entity lookup", "ident", ident, "err", err)
		return ident
	}
	if key := matchKey(keys, ident); key != "" {
		return key
	}
	return ident
}

// matchKey finds ident among keys as a whole key, then an id, then a name.
func matchKey(keys []string, ident string) string {
	for _, pick := range []func(key string) string{
		func(key string) string { return key },
		func(key string) string { id, _ := entities.SplitEntityKey(key); return id },
		func(key string) string { _, name := entities.SplitEntityKey(key); return name },
	} {
		for _, key := range keys {
			if pick(key) == ident {
				return key
			}
		}
	}
	return ""
}
