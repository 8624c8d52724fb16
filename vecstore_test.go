package vecstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/openbook/vecstore/backend/memory"
	"github.com/openbook/vecstore/backend/sqlite"
	"github.com/openbook/vecstore/config"
	"github.com/openbook/vecstore/embedding"
)

func mockConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Embedding.UseMock = true
	cfg.Embedding.Dimensions = 64
	return *cfg
}

func TestNewEphemeral(t *testing.T) {
	ctx := context.Background()
	store, err := New(mockConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if store.Collection() != config.DefaultCollectionName {
		t.Errorf("collection = %q, want %q", store.Collection(), config.DefaultCollectionName)
	}
	if _, err := store.AddTexts(ctx, []string{"hello vector world"}, nil, nil); err != nil {
		t.Fatal(err)
	}
	hits, err := store.SimilaritySearch(ctx, "hello world", 1, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
}

func TestNewPersistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := mockConfig(t)
	cfg.Storage.PersistDirectory = dir

	store, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddTexts(ctx, []string{"durable little record"}, nil, []string{"r1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, sqlite.DatabaseFile)); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	// Reopening against the same directory sees the record.
	store, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count after reopen = %d, want 1", n)
	}
	hits, err := store.SimilaritySearch(ctx, "durable record", 1, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "r1" {
		t.Errorf("hits = %+v, want [r1]", hits)
	}
}

func TestNewWithEncoder(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Embedding.UseMock = false // the injected encoder wins anyway

	store, err := New(cfg, WithEncoder(embedding.NewMock(32)))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.AddTexts(context.Background(), []string{"injected encoder"}, nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestNewWithClient(t *testing.T) {
	ctx := context.Background()
	client := memory.NewClient(nil)
	cfg := mockConfig(t)
	cfg.Storage.PersistDirectory = "/nonexistent/should/not/be/used"

	store, err := New(cfg, WithClient(client))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.AddTexts(ctx, []string{"via injected client"}, nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestNewWithRegistry(t *testing.T) {
	loader := func(name, path, device string, opts embedding.ModelOptions) (embedding.Encoder, error) {
		return embedding.NewMock(opts.Dimensions), nil
	}
	reg := embedding.NewRegistry(embedding.RegistryOptions{Loader: loader})

	cfg := mockConfig(t)
	cfg.Embedding.UseMock = false
	store, err := New(cfg, WithRegistry(reg))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.AddTexts(context.Background(), []string{"via registry"}, nil, nil); err != nil {
		t.Fatal(err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	// A zero config is usable once mock mode is on: defaults fill in the
	// collection name and encode settings.
	var cfg config.Config
	cfg.Embedding.UseMock = true

	store, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if store.Collection() != config.DefaultCollectionName {
		t.Errorf("collection = %q, want %q", store.Collection(), config.DefaultCollectionName)
	}
}
