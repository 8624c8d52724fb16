// Package config provides configuration loading for vecstore.
//
// Configuration comes from a YAML file, with defaults applied for
// anything unset and VECSTORE_* environment variables taking precedence
// over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a vector store instance.
type Config struct {
	Debug      bool             `yaml:"debug" env:"VECSTORE_DEBUG"`
	Collection CollectionConfig `yaml:"collection"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
}

// CollectionConfig names the collection and carries its metadata.
type CollectionConfig struct {
	Name string `yaml:"name" env:"VECSTORE_COLLECTION"`
	// Metadata is arbitrary collection-level configuration; the "space"
	// key selects the distance metric (cosine, l2, ip).
	Metadata map[string]any `yaml:"metadata"`
}

// StorageConfig selects the backend. An empty PersistDirectory means an
// ephemeral in-memory backend.
type StorageConfig struct {
	PersistDirectory string `yaml:"persist_directory" env:"VECSTORE_PERSIST_DIRECTORY"`
}

// EmbeddingConfig holds model and encode settings.
type EmbeddingConfig struct {
	ModelName string `yaml:"model_name" env:"VECSTORE_MODEL_NAME"`
	ModelDir  string `yaml:"model_dir" env:"VECSTORE_MODEL_DIR"`
	// Device selects where the model runs: cpu (default), cuda, coreml.
	Device     string `yaml:"device" env:"VECSTORE_DEVICE"`
	BatchSize  int    `yaml:"batch_size" env:"VECSTORE_BATCH_SIZE"`
	Normalize  *bool  `yaml:"normalize" env:"VECSTORE_NORMALIZE"`
	// ShowProgress logs per-batch embedding progress.
	ShowProgress bool `yaml:"show_progress" env:"VECSTORE_SHOW_PROGRESS"`
	Dimensions   int  `yaml:"dimensions" env:"VECSTORE_DIMENSIONS"`
	MaxTokens    int  `yaml:"max_tokens" env:"VECSTORE_MAX_TOKENS"`
	CacheSize    int  `yaml:"cache_size" env:"VECSTORE_CACHE_SIZE"`
	// UseMock replaces the ONNX model with the deterministic mock
	// encoder. Meant for tests and CI.
	UseMock bool `yaml:"use_mock" env:"VECSTORE_USE_MOCK"`
}

// NormalizeOrDefault returns the normalize flag, defaulting to true
// when unset.
func (e *EmbeddingConfig) NormalizeOrDefault() bool {
	if e.Normalize != nil {
		return *e.Normalize
	}
	return true
}

// Default returns a Config with all defaults applied and environment
// overrides parsed, without reading any file.
func Default() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands relative paths against the config
// file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	configDir := filepath.Dir(path)
	cfg.Storage.PersistDirectory = expandPath(cfg.Storage.PersistDirectory, configDir)
	cfg.Embedding.ModelDir = expandPath(cfg.Embedding.ModelDir, configDir)
	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory. Empty paths stay empty.
func expandPath(path, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
