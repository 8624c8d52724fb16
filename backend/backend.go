// Package backend defines the storage backend boundary for vecstore.
//
// A backend is a client that manages named collections of vector records
// and a collection handle that supports add, upsert, nearest-neighbor
// query, delete and count. Two implementations ship with this module:
// backend/memory (ephemeral, process-lifetime) and backend/sqlite
// (persistent, directory-backed). Anything satisfying Client and
// Collection is substitutable without changes to the store layer.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// EmbedFunc turns a batch of texts into one vector per text, in order.
// An empty input must yield an empty output without error. Collections
// hold an EmbedFunc so text queries can be embedded without the caller
// ever touching the model.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Client manages collections inside one backend instance.
type Client interface {
	// GetOrCreateCollection returns the collection with the given name,
	// creating it with the supplied metadata and embedding function if it
	// does not exist. Fetching an existing collection never errors on
	// account of it already existing.
	GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any, embed EmbedFunc) (Collection, error)

	// DeleteCollection drops the named collection and all of its records.
	// Returns ErrCollectionNotFound if no such collection exists.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases the client's resources.
	Close() error
}

// Persister is an optional capability of a Client. Persistent backends
// implement it to flush buffered state to durable storage; ephemeral
// backends simply don't implement it.
type Persister interface {
	Persist(ctx context.Context) error
}

// Record is a stored vector with its document and metadata.
type Record struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  map[string]any
}

// AddRequest is a batch of records to insert or upsert. IDs and
// Embeddings are required and must be the same length. Documents and
// Metadatas, when present, must match that length too; the store layer
// validates this before any backend call.
type AddRequest struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []string
	Metadatas  []map[string]any
}

// QueryRequest asks for the NResults nearest records per query text.
// Texts are embedded through the collection's bound EmbedFunc. Where
// filters on record metadata and WhereDocument on document content; both
// are optional.
type QueryRequest struct {
	Texts         []string
	NResults      int
	Where         map[string]any
	WhereDocument map[string]any
}

// Match is a single query hit. Distance is ascending-better under the
// collection's metric.
type Match struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// DeleteRequest selects records to remove: by id, by metadata predicate,
// by document predicate, or any combination (intersected). A request
// with no selectors at all is a no-op at this layer; the store rejects
// it earlier.
type DeleteRequest struct {
	IDs           []string
	Where         map[string]any
	WhereDocument map[string]any
}

// Collection is a handle to one named record container. Implementations
// must apply a batch atomically: a failed Add or Upsert leaves the
// collection unchanged.
type Collection interface {
	// Add inserts new records. A pre-existing id fails the whole batch
	// with ErrDuplicateID.
	Add(ctx context.Context, req AddRequest) error

	// Upsert inserts records, fully replacing vector, document and
	// metadata for ids that already exist.
	Upsert(ctx context.Context, req AddRequest) error

	// Query returns one ascending-distance result list per query text.
	Query(ctx context.Context, req QueryRequest) ([][]Match, error)

	// Delete removes the selected records.
	Delete(ctx context.Context, req DeleteRequest) error

	// Count reports the number of records in the collection.
	Count(ctx context.Context) (int, error)
}

var (
	// ErrCollectionNotFound is returned when an operation names a
	// collection the client does not hold.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDuplicateID is returned by Add when an id already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNoEmbedFunc is returned by Query when text queries arrive at a
	// collection created without an embedding function.
	ErrNoEmbedFunc = errors.New("collection has no embedding function")
)

// DimensionMismatchError indicates a vector whose length disagrees with
// the collection's fixed dimensionality.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: collection expects %d, got %d", e.Want, e.Got)
}

// ValidateAdd checks the internal consistency of an AddRequest: ids and
// embeddings present and of equal length, optional arrays matching.
// Backends call it before touching storage.
func ValidateAdd(req AddRequest) error {
	if len(req.IDs) != len(req.Embeddings) {
		return fmt.Errorf("ids and embeddings length mismatch: %d vs %d", len(req.IDs), len(req.Embeddings))
	}
	if req.Documents != nil && len(req.Documents) != len(req.IDs) {
		return fmt.Errorf("documents length mismatch: %d vs %d", len(req.Documents), len(req.IDs))
	}
	if req.Metadatas != nil && len(req.Metadatas) != len(req.IDs) {
		return fmt.Errorf("metadatas length mismatch: %d vs %d", len(req.Metadatas), len(req.IDs))
	}
	return nil
}
