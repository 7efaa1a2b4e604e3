package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ersonp/farmlog/internal/domain/entities"
	"github.com/ersonp/farmlog/internal/infrastructure/fsutil"
)

// LoadProfile reads user_config.yaml from the bundle, falling back to the
// "user" key of meta.json. No profile yields an empty one.
func (s *Store) LoadProfile(_ context.Context, entityKey string) (entities.Profile, error) {
	dir := s.Dir(entityKey)

	var p entities.Profile
	data, err := os.ReadFile(filepath.Join(dir, ProfileFile))
	if err == nil {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return entities.Profile{}, fmt.Errorf("parsing profile: %w", err)
		}
		return p, nil
	}
	if !os.IsNotExist(err) {
		return entities.Profile{}, fmt.Errorf("reading profile: %w", err)
	}

	raw, err := readMetaRaw(dir)
	if err != nil {
		s.logger.Warn("reading meta for profile", "entity", entityKey, "err", err)
		return p, nil
	}
	if user, ok := raw["user"]; ok {
		if err := json.Unmarshal(user, &p); err != nil {
			s.logger.Warn("parsing meta user", "entity", entityKey, "err", err)
			return entities.Profile{}, nil
		}
	}
	return p, nil
}

// SaveProfile writes user_config.yaml into the bundle directory.
func (s *Store) SaveProfile(_ context.Context, entityKey string, p entities.Profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	if err := fsutil.WriteAtomic(filepath.Join(s.Dir(entityKey), ProfileFile), data, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
