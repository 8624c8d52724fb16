// Package vecstore is a local, embeddable vector store for
// retrieval-augmented generation: it turns text into dense vectors
// through a locally loaded embedding model, stores them durably with
// documents and metadata, and answers nearest-neighbor similarity
// queries.
//
// # Quick start
//
//	cfg, err := config.Default()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Storage.PersistDirectory = "./data"
//
//	store, err := vecstore.New(*cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	ctx := context.Background()
//	ids, err := store.AddTexts(ctx,
//	    []string{"cats are mammals", "rust is a language"},
//	    []map[string]any{{"topic": "animals"}, {"topic": "code"}},
//	    nil)
//	...
//	hits, err := store.SimilaritySearch(ctx, "feline pets", 2, vecstore.QueryOptions{})
//
// With Storage.PersistDirectory set the store persists to SQLite under
// that directory; otherwise records live in memory for the lifetime of
// the process.
package vecstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/openbook/vecstore/backend"
	"github.com/openbook/vecstore/backend/memory"
	"github.com/openbook/vecstore/backend/sqlite"
	"github.com/openbook/vecstore/config"
	"github.com/openbook/vecstore/embedding"
)

// Option customizes store construction.
type Option func(*builderOptions)

type builderOptions struct {
	logger   *zap.Logger
	encoder  embedding.Encoder
	registry *embedding.Registry
	client   backend.Client
}

// WithLogger sets the logger for the store and its components. The
// default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *builderOptions) { o.logger = log }
}

// WithEncoder injects a pre-built encoder, bypassing model loading
// entirely.
func WithEncoder(enc embedding.Encoder) Option {
	return func(o *builderOptions) { o.encoder = enc }
}

// WithRegistry injects a shared model registry so multiple stores reuse
// one loaded model per (name, device).
func WithRegistry(reg *embedding.Registry) Option {
	return func(o *builderOptions) { o.registry = reg }
}

// WithClient injects a pre-built backend client, overriding the
// persistent/ephemeral selection from the configuration.
func WithClient(client backend.Client) Option {
	return func(o *builderOptions) { o.client = client }
}

// New composes a ready-to-use Store from cfg: it resolves the embedding
// model, wraps it in an embedding function, selects a persistent SQLite
// backend when Storage.PersistDirectory is set (ephemeral in-memory
// otherwise), and binds the configured collection.
func New(cfg config.Config, opts ...Option) (*Store, error) {
	config.ApplyDefaults(&cfg)
	var o builderOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = zap.NewNop()
	}

	enc, err := resolveEncoder(cfg, &o)
	if err != nil {
		return nil, err
	}
	fn := embedding.NewFunc(enc, embedding.Options{
		BatchSize:    cfg.Embedding.BatchSize,
		Normalize:    cfg.Embedding.NormalizeOrDefault(),
		ShowProgress: cfg.Embedding.ShowProgress,
	}, log)

	client := o.client
	if client == nil {
		if cfg.Storage.PersistDirectory != "" {
			client, err = sqlite.NewClient(cfg.Storage.PersistDirectory, log)
			if err != nil {
				return nil, fmt.Errorf("open persistent backend: %w", err)
			}
		} else {
			client = memory.NewClient(log)
		}
	}

	store, err := NewStore(client, cfg.Collection.Name, cfg.Collection.Metadata, fn.Call, log)
	if err != nil {
		if o.client == nil {
			_ = client.Close()
		}
		return nil, err
	}
	return store, nil
}

func resolveEncoder(cfg config.Config, o *builderOptions) (embedding.Encoder, error) {
	if o.encoder != nil {
		return o.encoder, nil
	}
	if cfg.Embedding.UseMock {
		return embedding.NewMock(cfg.Embedding.Dimensions), nil
	}
	reg := o.registry
	if reg == nil {
		reg = embedding.NewRegistry(embedding.RegistryOptions{
			ModelDir: cfg.Embedding.ModelDir,
			Model: embedding.ModelOptions{
				MaxTokens:  cfg.Embedding.MaxTokens,
				Dimensions: cfg.Embedding.Dimensions,
				CacheSize:  cfg.Embedding.CacheSize,
			},
			Logger: o.logger,
		})
	}
	return reg.Get(cfg.Embedding.ModelName, cfg.Embedding.Device)
}
