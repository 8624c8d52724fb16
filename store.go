package vecstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openbook/vecstore/backend"
)

// IncludeField selects which fields populate query results.
type IncludeField string

const (
	IncludeDocuments IncludeField = "documents"
	IncludeMetadatas IncludeField = "metadatas"
	IncludeDistances IncludeField = "distances"
)

// DefaultInclude is the result shape used when a query sets none.
var DefaultInclude = []IncludeField{IncludeDocuments, IncludeMetadatas, IncludeDistances}

// DefaultNResults is the per-query result count used when a query sets
// none.
const DefaultNResults = 5

// QueryOptions shape a Query call. Zero values mean: DefaultNResults
// results, no filters, DefaultInclude fields.
type QueryOptions struct {
	NResults      int
	Where         map[string]any
	WhereDocument map[string]any
	Include       []IncludeField
}

// Result is a single query hit. Fields excluded by the query's Include
// list stay at their zero values; ID is always set. Distance is
// ascending-better under the collection's metric.
type Result struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// Store owns one named collection inside a storage backend and embeds
// text through its bound embedding function. It is the only component
// that mutates the collection.
type Store struct {
	client   backend.Client
	coll     backend.Collection
	name     string
	metadata map[string]any
	embed    backend.EmbedFunc
	log      *zap.Logger
}

// NewStore binds a store to the named collection inside client,
// creating the collection if needed (get-or-create: an existing
// collection is never an error). The embedding function is bound to the
// collection for implicit query embedding and used directly for
// text ingestion.
func NewStore(client backend.Client, name string, metadata map[string]any, embed backend.EmbedFunc, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	coll, err := client.GetOrCreateCollection(context.Background(), name, metadata, embed)
	if err != nil {
		return nil, wrapBackend("get or create collection", err)
	}
	return &Store{
		client:   client,
		coll:     coll,
		name:     name,
		metadata: metadata,
		embed:    embed,
		log:      log,
	}, nil
}

// Collection returns the collection name.
func (s *Store) Collection() string { return s.name }

// AddTexts embeds texts and inserts them as new records, returning the
// record ids. When ids is nil a fresh random id is generated per text.
// An id that already exists in the collection fails the whole batch
// with backend.ErrDuplicateID; use UpsertTexts to replace. An empty
// texts slice is a no-op.
func (s *Store) AddTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	return s.ingestTexts(ctx, texts, metadatas, ids, s.coll.Add, "add texts")
}

// UpsertTexts embeds texts and inserts them, fully replacing vector,
// document and metadata for ids that already exist. Calling it twice
// with the same ids and texts leaves the collection in the same state
// as calling it once.
func (s *Store) UpsertTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	return s.ingestTexts(ctx, texts, metadatas, ids, s.coll.Upsert, "upsert texts")
}

func (s *Store) ingestTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string, write func(context.Context, backend.AddRequest) error, op string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ids, err := s.resolveIDs(ids, len(texts))
	if err != nil {
		return nil, err
	}
	if err := checkLength("metadatas", len(metadatas), len(texts), metadatas != nil); err != nil {
		return nil, err
	}

	embeddings, err := s.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	req := backend.AddRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Documents:  texts,
		Metadatas:  metadatas,
	}
	if err := write(ctx, req); err != nil {
		return nil, wrapBackend(op, err)
	}
	s.log.Debug("ingested texts",
		zap.String("collection", s.name),
		zap.String("op", op),
		zap.Int("count", len(texts)))
	return ids, nil
}

// AddEmbeddings inserts caller-supplied vectors directly, bypassing the
// embedding function. Documents and metadatas are optional; every
// supplied array must match len(embeddings). Duplicate ids fail the
// batch like AddTexts.
func (s *Store) AddEmbeddings(ctx context.Context, embeddings [][]float32, metadatas []map[string]any, ids []string, documents []string) ([]string, error) {
	if len(embeddings) == 0 {
		return nil, nil
	}
	ids, err := s.resolveIDs(ids, len(embeddings))
	if err != nil {
		return nil, err
	}
	if err := checkLength("metadatas", len(metadatas), len(embeddings), metadatas != nil); err != nil {
		return nil, err
	}
	if err := checkLength("documents", len(documents), len(embeddings), documents != nil); err != nil {
		return nil, err
	}

	req := backend.AddRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Documents:  documents,
		Metadatas:  metadatas,
	}
	if err := s.coll.Add(ctx, req); err != nil {
		return nil, wrapBackend("add embeddings", err)
	}
	return ids, nil
}

// Query embeds each query text through the collection's bound embedding
// function and returns up to NResults nearest records per query,
// ascending by distance, one result list per query text in input order.
// An empty queryTexts is ErrInvalidInput.
func (s *Store) Query(ctx context.Context, queryTexts []string, opts QueryOptions) ([][]Result, error) {
	if len(queryTexts) == 0 {
		return nil, wrapInvalid("query texts must not be empty")
	}
	n := opts.NResults
	if n <= 0 {
		n = DefaultNResults
	}
	matches, err := s.coll.Query(ctx, backend.QueryRequest{
		Texts:         queryTexts,
		NResults:      n,
		Where:         opts.Where,
		WhereDocument: opts.WhereDocument,
	})
	if err != nil {
		return nil, wrapBackend("query", err)
	}

	include := opts.Include
	if include == nil {
		include = DefaultInclude
	}
	results := make([][]Result, len(matches))
	for qi, hits := range matches {
		results[qi] = shapeResults(hits, include)
	}
	return results, nil
}

// SimilaritySearch is the single-query convenience over Query: it
// returns up to k nearest records for one query text. Opts.NResults is
// ignored in favor of k.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int, opts QueryOptions) ([]Result, error) {
	opts.NResults = k
	results, err := s.Query(ctx, []string{query}, opts)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// Delete removes records selected by ids, a metadata predicate, a
// document predicate, or any combination (intersected). A call with no
// selectors at all is rejected with ErrInvalidInput: wiping the
// collection must be spelled Reset, not an empty Delete.
func (s *Store) Delete(ctx context.Context, ids []string, where, whereDocument map[string]any) error {
	if len(ids) == 0 && len(where) == 0 && len(whereDocument) == 0 {
		return wrapInvalid("delete requires at least one selector; use Reset to clear the collection")
	}
	err := s.coll.Delete(ctx, backend.DeleteRequest{
		IDs:           ids,
		Where:         where,
		WhereDocument: whereDocument,
	})
	if err != nil {
		return wrapBackend("delete", err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.coll.Count(ctx)
	if err != nil {
		return 0, wrapBackend("count", err)
	}
	return n, nil
}

// Persist flushes buffered state to durable storage when the backend is
// persistent; for ephemeral backends it is a no-op.
func (s *Store) Persist(ctx context.Context) error {
	p, ok := s.client.(backend.Persister)
	if !ok {
		return nil
	}
	if err := p.Persist(ctx); err != nil {
		return wrapBackend("persist", err)
	}
	return nil
}

// Reset irreversibly drops all records and recreates the collection
// empty with the same name, metadata and embedding function binding.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.name); err != nil {
		return wrapBackend("drop collection", err)
	}
	coll, err := s.client.GetOrCreateCollection(ctx, s.name, s.metadata, s.embed)
	if err != nil {
		return wrapBackend("recreate collection", err)
	}
	s.coll = coll
	s.log.Info("reset collection", zap.String("collection", s.name))
	return nil
}

// Close releases the backend client. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.client.Close()
}

// resolveIDs validates caller-supplied ids or generates one fresh
// random id per record.
func (s *Store) resolveIDs(ids []string, n int) ([]string, error) {
	if ids == nil {
		ids = make([]string, n)
		for i := range ids {
			ids[i] = uuid.NewString()
		}
		return ids, nil
	}
	if err := checkLength("ids", len(ids), n, true); err != nil {
		return nil, err
	}
	return ids, nil
}

func shapeResults(hits []backend.Match, include []IncludeField) []Result {
	var docs, metas, dists bool
	for _, f := range include {
		switch f {
		case IncludeDocuments:
			docs = true
		case IncludeMetadatas:
			metas = true
		case IncludeDistances:
			dists = true
		}
	}
	results := make([]Result, len(hits))
	for i, hit := range hits {
		results[i].ID = hit.ID
		if docs {
			results[i].Document = hit.Document
		}
		if metas {
			results[i].Metadata = hit.Metadata
		}
		if dists {
			results[i].Distance = hit.Distance
		}
	}
	return results
}

func wrapInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
