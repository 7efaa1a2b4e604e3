// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for farmlog configuration.
	DefaultConfigDir = ".farmlog"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultEnvFile is the optional dotenv file read before env overrides.
	DefaultEnvFile = ".env"
	// DefaultListField is the JSON field holding work log entries in source files.
	DefaultListField = "farming_work_log"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Ingest     IngestConfig     `yaml:"ingest,omitempty"`
	Embedder   EmbedderConfig   `yaml:"embedder,omitempty"`
	Similarity SimilarityConfig `yaml:"similarity,omitempty"`
	Qdrant     QdrantConfig     `yaml:"qdrant,omitempty"`
	SQLite     SQLiteConfig     `yaml:"sqlite,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty"`
}

// StorageConfig locates the per-entity storage bundles.
type StorageConfig struct {
	Root string `yaml:"root,omitempty"`
}

// IngestConfig controls discovery of source files.
type IngestConfig struct {
	// Root holds one subdirectory per entity key. Mutations write source
	// files into the same tree.
	Root string `yaml:"root,omitempty"`
	// Extensions lists the source file extensions to ingest.
	Extensions []string `yaml:"extensions,omitempty"`
	// ListField is the JSON field that wraps entry lists.
	ListField string `yaml:"list_field,omitempty"`
	// EntityPattern limits ingestion to entity folders containing it.
	EntityPattern string `yaml:"entity_pattern,omitempty"`
	// Schedule is a cron spec for periodic ingestion in watch mode.
	Schedule string `yaml:"schedule,omitempty"`
	// Debounce delays ingestion after file system events in watch mode.
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	// Provider is one of "openai", "ollama" or "none".
	Provider  string        `yaml:"provider,omitempty"`
	Model     string        `yaml:"model,omitempty"`
	APIKey    string        `yaml:"api_key,omitempty"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	CacheSize int           `yaml:"cache_size,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// SimilarityConfig selects the similarity index backend.
type SimilarityConfig struct {
	// Kind is one of "flat", "ivf", "qdrant" or "none".
	Kind   string `yaml:"kind,omitempty"`
	NList  int    `yaml:"nlist,omitempty"`
	NProbe int    `yaml:"nprobe,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host             string `yaml:"host,omitempty"`
	Port             int    `yaml:"port,omitempty"`
	APIKey           string `yaml:"api_key,omitempty"`
	CollectionPrefix string `yaml:"collection_prefix,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite secondary index.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database.
	// Empty means metadata.db under the storage root.
	Path string `yaml:"path,omitempty"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level,omitempty"`
	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Root: "data/store",
		},
		Ingest: IngestConfig{
			Root:       "data/source",
			Extensions: []string{".json"},
			ListField:  DefaultListField,
			Debounce:   2 * time.Second,
		},
		Embedder: EmbedderConfig{
			Provider:  "none",
			CacheSize: 1024,
			Timeout:   30 * time.Second,
		},
		Similarity: SimilarityConfig{
			Kind:   "flat",
			NList:  16,
			NProbe: 4,
		},
		Qdrant: QdrantConfig{
			Host:             "localhost",
			Port:             6334,
			CollectionPrefix: "farmlog_",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the .farmlog directory in the given path.
// Relative storage and ingest roots are resolved against basePath.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'farmlog init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotenv(basePath); err != nil {
		return nil, err
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	cfg.resolvePaths(basePath)

	return cfg, nil
}

// loadDotenv loads basePath/.env into the process environment without
// overriding variables that are already set. A missing file is fine.
func loadDotenv(basePath string) error {
	envFile := filepath.Join(basePath, DefaultEnvFile)
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedder.APIKey == "" {
		c.Embedder.APIKey = key
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && c.Qdrant.APIKey == "" {
		c.Qdrant.APIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Embedder.Provider == "ollama" && c.Embedder.BaseURL == "" {
		c.Embedder.BaseURL = host
	}
	if root := os.Getenv("FARMLOG_STORAGE_ROOT"); root != "" {
		c.Storage.Root = root
	}
	if root := os.Getenv("FARMLOG_INGEST_ROOT"); root != "" {
		c.Ingest.Root = root
	}
}

func (c *Config) resolvePaths(basePath string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || p == ":memory:" {
			return p
		}
		return filepath.Join(basePath, p)
	}
	c.Storage.Root = abs(c.Storage.Root)
	c.Ingest.Root = abs(c.Ingest.Root)
	c.SQLite.Path = abs(c.SQLite.Path)
}

// SQLitePath returns the configured database path, defaulting to
// metadata.db under the storage root.
func (c *Config) SQLitePath() string {
	if c.SQLite.Path != "" {
		return c.SQLite.Path
	}
	return filepath.Join(c.Storage.Root, "metadata.db")
}

// ConfigDir returns the path to the .farmlog config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// SanitizeEntityKey converts an entity key to a directory name for its
// storage bundle. Letters (any script), digits, '_' and '-' are kept.
func SanitizeEntityKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return "person"
	}
	return name
}

// CollectionName returns the Qdrant collection for an entity.
func CollectionName(prefix, entityKey string) string {
	return prefix + SanitizeEntityKey(entityKey)
}
