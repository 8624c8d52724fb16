package config

// Default values. The model defaults target all-MiniLM-L6-v2, a small
// general-purpose sentence-embedding model.
const (
	DefaultCollectionName = "openbook"
	DefaultModelName      = "all-MiniLM-L6-v2"
	DefaultModelDir       = "/usr/local/var/vecstore/models"
	DefaultBatchSize      = 32
	DefaultDimensions     = 384
	DefaultMaxTokens      = 256
	DefaultCacheSize      = 10000
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Collection.Name == "" {
		cfg.Collection.Name = DefaultCollectionName
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = DefaultModelName
	}
	if cfg.Embedding.ModelDir == "" {
		cfg.Embedding.ModelDir = DefaultModelDir
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = DefaultBatchSize
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = DefaultMaxTokens
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = DefaultCacheSize
	}
	// Normalize defaults to true when unset (nil).
	if cfg.Embedding.Normalize == nil {
		t := true
		cfg.Embedding.Normalize = &t
	}
}
