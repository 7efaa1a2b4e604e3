package entities

import (
	"fmt"
	"strings"
)

// SplitEntityKey parses an entity key of the form "<id>_<name>" into its
// sub-keys. Keys without a separator yield an empty id and the whole key as
// the name.
func SplitEntityKey(key string) (id, name string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ""
	}
	before, after, found := strings.Cut(key, "_")
	if !found {
		return "", key
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// ValidateEntityKey reports whether key can be used as a directory name
// under a storage or ingestion root.
func ValidateEntityKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEntityKey)
	}
	if key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidEntityKey, key)
	}
	return nil
}

// ValidateFilename reports whether name is a bare file name with no
// directory components.
func ValidateFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// Profile holds the per-entity user information kept next to the bundle.
type Profile struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Email        string `json:"email" yaml:"email"`
	FarmID       string `json:"farm_id" yaml:"farm_id"`
	Location     string `json:"location" yaml:"location"`
	LocationName string `json:"location_name" yaml:"location_name"`
}

// IsEmpty reports whether no profile field is set.
func (p Profile) IsEmpty() bool {
	return p == Profile{}
}
