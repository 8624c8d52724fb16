// Package memory provides an ephemeral, in-process storage backend.
// Records live for the lifetime of the client and are searched by
// brute-force scan, which is exact and fast enough for the small
// collections an ephemeral store is meant for.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/openbook/vecstore/backend"
)

// Client is an in-memory backend client.
type Client struct {
	mu          sync.Mutex
	collections map[string]*Collection
	log         *zap.Logger
}

// NewClient creates an ephemeral backend client. A nil logger disables
// logging.
func NewClient(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		collections: make(map[string]*Collection),
		log:         log,
	}
}

// GetOrCreateCollection returns the named collection, creating it if
// needed. An existing collection keeps its own metadata and metric; the
// embedding function is bound on creation, or on fetch if the collection
// was created without one.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any, embed backend.EmbedFunc) (backend.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if coll, ok := c.collections[name]; ok {
		coll.mu.Lock()
		if coll.embed == nil {
			coll.embed = embed
		}
		coll.mu.Unlock()
		return coll, nil
	}

	metric, err := backend.MetricFromMetadata(metadata)
	if err != nil {
		return nil, err
	}
	distance, err := metric.Distance()
	if err != nil {
		return nil, err
	}
	coll := &Collection{
		name:     name,
		metadata: metadata,
		embed:    embed,
		distance: distance,
		records:  make(map[string]*backend.Record),
	}
	c.collections[name] = coll
	c.log.Debug("created collection", zap.String("name", name), zap.String("space", string(metric)))
	return coll, nil
}

// DeleteCollection drops the named collection and its records.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[name]; !ok {
		return fmt.Errorf("%w: %s", backend.ErrCollectionNotFound, name)
	}
	delete(c.collections, name)
	c.log.Debug("deleted collection", zap.String("name", name))
	return nil
}

// Close discards all collections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collections = make(map[string]*Collection)
	return nil
}

// Collection is an in-memory record container. Insertion order is
// preserved so scans, and therefore equal-distance ties, are
// deterministic.
type Collection struct {
	name     string
	metadata map[string]any
	embed    backend.EmbedFunc
	distance backend.DistanceFunc

	mu         sync.RWMutex
	dimensions int
	ids        []string
	records    map[string]*backend.Record
}

// Add inserts new records. The whole batch is validated, including
// duplicate ids, before anything is stored.
func (c *Collection) Add(ctx context.Context, req backend.AddRequest) error {
	if err := backend.ValidateAdd(req); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		if seen[id] {
			return fmt.Errorf("%w: %s appears twice in batch", backend.ErrDuplicateID, id)
		}
		seen[id] = true
		if _, ok := c.records[id]; ok {
			return fmt.Errorf("%w: %s", backend.ErrDuplicateID, id)
		}
	}
	if err := c.checkDimensions(req.Embeddings); err != nil {
		return err
	}
	for i, id := range req.IDs {
		c.ids = append(c.ids, id)
		c.records[id] = newRecord(id, req, i)
	}
	return nil
}

// Upsert inserts records, replacing vector, document and metadata for
// ids that already exist.
func (c *Collection) Upsert(ctx context.Context, req backend.AddRequest) error {
	if err := backend.ValidateAdd(req); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkDimensions(req.Embeddings); err != nil {
		return err
	}
	for i, id := range req.IDs {
		if _, ok := c.records[id]; !ok {
			c.ids = append(c.ids, id)
		}
		c.records[id] = newRecord(id, req, i)
	}
	return nil
}

// Query embeds the request texts and returns the nearest records per
// query, ascending by distance.
func (c *Collection) Query(ctx context.Context, req backend.QueryRequest) ([][]backend.Match, error) {
	embed := c.embedFunc()
	if embed == nil {
		return nil, backend.ErrNoEmbedFunc
	}
	queries, err := embed(ctx, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make([][]backend.Match, len(queries))
	for qi, query := range queries {
		if c.dimensions > 0 && len(query) != c.dimensions {
			return nil, &backend.DimensionMismatchError{Want: c.dimensions, Got: len(query)}
		}
		matches, err := c.scan(query, req)
		if err != nil {
			return nil, err
		}
		results[qi] = matches
	}
	return results, nil
}

// scan is called with the read lock held.
func (c *Collection) scan(query []float32, req backend.QueryRequest) ([]backend.Match, error) {
	matches := make([]backend.Match, 0, len(c.ids))
	for _, id := range c.ids {
		rec := c.records[id]
		ok, err := backend.MatchesWhere(rec.Metadata, req.Where)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ok, err = backend.MatchesDocument(rec.Document, req.WhereDocument)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		matches = append(matches, backend.Match{
			ID:       rec.ID,
			Document: rec.Document,
			Metadata: rec.Metadata,
			Distance: c.distance(query, rec.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if req.NResults > 0 && len(matches) > req.NResults {
		matches = matches[:req.NResults]
	}
	return matches, nil
}

// Delete removes records selected by ids and/or predicates. A request
// with no selectors is a no-op.
func (c *Collection) Delete(ctx context.Context, req backend.DeleteRequest) error {
	if len(req.IDs) == 0 && len(req.Where) == 0 && len(req.WhereDocument) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := req.IDs
	if len(candidates) == 0 {
		candidates = c.ids
	}
	doomed := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		match, err := backend.MatchesWhere(rec.Metadata, req.Where)
		if err != nil {
			return err
		}
		if !match {
			continue
		}
		match, err = backend.MatchesDocument(rec.Document, req.WhereDocument)
		if err != nil {
			return err
		}
		if match {
			doomed[id] = true
		}
	}
	if len(doomed) == 0 {
		return nil
	}
	kept := c.ids[:0]
	for _, id := range c.ids {
		if doomed[id] {
			delete(c.records, id)
		} else {
			kept = append(kept, id)
		}
	}
	c.ids = kept
	return nil
}

// Count returns the number of records.
func (c *Collection) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids), nil
}

// checkDimensions is called with the write lock held. The first batch
// fixes the collection's dimensionality.
func (c *Collection) checkDimensions(embeddings [][]float32) error {
	if len(embeddings) == 0 {
		return nil
	}
	want := c.dimensions
	if want == 0 {
		want = len(embeddings[0])
	}
	for _, emb := range embeddings {
		if len(emb) != want || want == 0 {
			return &backend.DimensionMismatchError{Want: want, Got: len(emb)}
		}
	}
	c.dimensions = want
	return nil
}

func (c *Collection) embedFunc() backend.EmbedFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embed
}

func newRecord(id string, req backend.AddRequest, i int) *backend.Record {
	rec := &backend.Record{ID: id}
	rec.Embedding = make([]float32, len(req.Embeddings[i]))
	copy(rec.Embedding, req.Embeddings[i])
	if req.Documents != nil {
		rec.Document = req.Documents[i]
	}
	if req.Metadatas != nil {
		rec.Metadata = req.Metadatas[i]
	}
	return rec
}
