package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# farmlog configuration

storage:
  root: data/store

ingest:
  root: data/source
  extensions: [".json"]
  list_field: farming_work_log
  # entity_pattern: "_kim"
  # schedule: "@every 10m"
  debounce: 2s

embedder:
  # openai, ollama or none (zero vectors, semantic search degrades to entry order)
  provider: none
  # model: text-embedding-3-small
  # api_key: your-api-key (or set OPENAI_API_KEY env var)
  # base_url: http://localhost:11434 (ollama) or an OpenAI-compatible endpoint
  cache_size: 1024
  timeout: 30s

similarity:
  # flat, ivf, qdrant or none
  kind: flat
  nlist: 16
  nprobe: 4

qdrant:
  host: localhost
  port: 6334
  collection_prefix: farmlog_
  # api_key: your-api-key (for Qdrant Cloud)

# sqlite:
#   path: data/store/metadata.db

log:
  level: info
  format: text

# metrics:
#   addr: ":9090"
`

// WriteDefault creates the .farmlog directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := ConfigDir(basePath)
	configFile := ConfigFilePath(basePath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file.
func Write(basePath string, cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ConfigFilePath(basePath), data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Exists checks if a farmlog config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
