// Package sqlite provides a persistent storage backend on a single
// SQLite database file. Collections and records survive process
// restarts; the database lives at <dir>/vecstore.db inside the persist
// directory handed to NewClient.
//
// Nearest-neighbor ranking loads the collection's vectors and scans them
// in Go. That keeps the schema plain and the results exact; collections
// in the hundreds of thousands of records are the practical ceiling.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/openbook/vecstore/backend"
)

// DatabaseFile is the file name created inside the persist directory.
const DatabaseFile = "vecstore.db"

// Client is a SQLite-backed backend client.
type Client struct {
	db   *sql.DB
	path string
	log  *zap.Logger
}

// NewClient opens or creates the database under dir and initializes the
// schema. The directory is created if it does not exist. A nil logger
// disables logging.
func NewClient(dir string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir == "" {
		return nil, fmt.Errorf("persist directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create persist directory: %w", err)
	}
	path := filepath.Join(dir, DatabaseFile)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	log.Debug("opened vector database", zap.String("path", path))
	return &Client{db: db, path: path, log: log}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		metadata TEXT,
		dimensions INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS records (
		collection_id INTEGER NOT NULL,
		id TEXT NOT NULL,
		embedding BLOB NOT NULL,
		document TEXT,
		metadata TEXT,
		PRIMARY KEY (collection_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection_id);
	`
	_, err := db.Exec(schema)
	return err
}

// GetOrCreateCollection returns a handle to the named collection,
// inserting its row if missing. The handle binds the given embedding
// function; stored metadata wins over the argument for an existing
// collection.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any, embed backend.EmbedFunc) (backend.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	rowID, stored, err := c.lookupCollection(ctx, name)
	if errors.Is(err, backend.ErrCollectionNotFound) {
		if _, metricErr := backend.MetricFromMetadata(metadata); metricErr != nil {
			return nil, metricErr
		}
		metaJSON, marshalErr := marshalMetadata(metadata)
		if marshalErr != nil {
			return nil, marshalErr
		}
		res, execErr := c.db.ExecContext(ctx,
			"INSERT INTO collections (name, metadata) VALUES (?, ?)", name, metaJSON)
		if execErr != nil {
			return nil, fmt.Errorf("create collection: %w", execErr)
		}
		rowID, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
		stored = metadata
		c.log.Debug("created collection", zap.String("name", name))
	} else if err != nil {
		return nil, err
	}

	metric, err := backend.MetricFromMetadata(stored)
	if err != nil {
		return nil, err
	}
	distance, err := metric.Distance()
	if err != nil {
		return nil, err
	}
	return &Collection{
		client:   c,
		rowID:    rowID,
		name:     name,
		metadata: stored,
		embed:    embed,
		distance: distance,
	}, nil
}

// DeleteCollection drops the named collection and all of its records in
// one transaction.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	rowID, _, err := c.lookupCollection(ctx, name)
	if err != nil {
		return err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection_id = ?", rowID); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", rowID); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Debug("deleted collection", zap.String("name", name))
	return nil
}

// Persist forces a WAL checkpoint so all committed writes reach the
// main database file.
func (c *Client) Persist(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) lookupCollection(ctx context.Context, name string) (int64, map[string]any, error) {
	var rowID int64
	var metaJSON sql.NullString
	err := c.db.QueryRowContext(ctx,
		"SELECT id, metadata FROM collections WHERE name = ?", name).Scan(&rowID, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("%w: %s", backend.ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("lookup collection: %w", err)
	}
	metadata, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return 0, nil, err
	}
	return rowID, metadata, nil
}

// Collection is a handle to one collection's rows.
type Collection struct {
	client   *Client
	rowID    int64
	name     string
	metadata map[string]any
	embed    backend.EmbedFunc
	distance backend.DistanceFunc
}

// Add inserts new records in one transaction; a duplicate id rolls the
// whole batch back with ErrDuplicateID.
func (s *Collection) Add(ctx context.Context, req backend.AddRequest) error {
	return s.write(ctx, req, `
		INSERT INTO records (collection_id, id, embedding, document, metadata)
		VALUES (?, ?, ?, ?, ?)`)
}

// Upsert inserts records, replacing embedding, document and metadata
// for existing ids.
func (s *Collection) Upsert(ctx context.Context, req backend.AddRequest) error {
	return s.write(ctx, req, `
		INSERT INTO records (collection_id, id, embedding, document, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection_id, id) DO UPDATE SET
			embedding = excluded.embedding,
			document = excluded.document,
			metadata = excluded.metadata`)
}

func (s *Collection) write(ctx context.Context, req backend.AddRequest, query string) error {
	if err := backend.ValidateAdd(req); err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return nil
	}
	tx, err := s.client.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.checkDimensions(ctx, tx, req.Embeddings); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range req.IDs {
		var document any
		if req.Documents != nil {
			document = req.Documents[i]
		}
		var metaJSON any
		if req.Metadatas != nil {
			metaJSON, err = marshalMetadata(req.Metadatas[i])
			if err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, s.rowID, id, encodeVector(req.Embeddings[i]), document, metaJSON); err != nil {
			if isConstraintErr(err) {
				return fmt.Errorf("%w: %s", backend.ErrDuplicateID, id)
			}
			return fmt.Errorf("write record %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Query embeds the request texts and scans the collection's rows,
// returning the nearest records per query ascending by distance.
func (s *Collection) Query(ctx context.Context, req backend.QueryRequest) ([][]backend.Match, error) {
	if s.embed == nil {
		return nil, backend.ErrNoEmbedFunc
	}
	queries, err := s.embed(ctx, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}
	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]backend.Match, len(queries))
	for qi, query := range queries {
		matches := make([]backend.Match, 0, len(records))
		for _, rec := range records {
			if len(rec.Embedding) != len(query) {
				return nil, &backend.DimensionMismatchError{Want: len(rec.Embedding), Got: len(query)}
			}
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
				Distance: s.distance(query, rec.Embedding),
			})
		}
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
		if req.NResults > 0 && len(matches) > req.NResults {
			matches = matches[:req.NResults]
		}
		results[qi] = matches
	}
	return results, nil
}

// Delete removes records selected by ids and/or predicates. A request
// with no selectors is a no-op.
func (s *Collection) Delete(ctx context.Context, req backend.DeleteRequest) error {
	if len(req.IDs) == 0 && len(req.Where) == 0 && len(req.WhereDocument) == 0 {
		return nil
	}

	// Fast path: plain deletion by id needs no filter evaluation.
	if len(req.Where) == 0 && len(req.WhereDocument) == 0 {
		return s.deleteIDs(ctx, req.IDs)
	}

	records, err := s.loadRecords(ctx)
	if err != nil {
		return err
	}
	candidates := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		candidates[id] = true
	}
	var doomed []string
	for _, rec := range records {
		if len(candidates) > 0 && !candidates[rec.ID] {
			continue
		}
		ok, err := backend.MatchesWhere(rec.Metadata, req.Where)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ok, err = backend.MatchesDocument(rec.Document, req.WhereDocument)
		if err != nil {
			return err
		}
		if ok {
			doomed = append(doomed, rec.ID)
		}
	}
	return s.deleteIDs(ctx, doomed)
}

func (s *Collection) deleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.client.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, "DELETE FROM records WHERE collection_id = ? AND id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, s.rowID, id); err != nil {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of records in the collection.
func (s *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := s.client.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection_id = ?", s.rowID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *Collection) loadRecords(ctx context.Context) ([]*backend.Record, error) {
	rows, err := s.client.db.QueryContext(ctx,
		"SELECT id, embedding, document, metadata FROM records WHERE collection_id = ? ORDER BY rowid", s.rowID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var records []*backend.Record
	for rows.Next() {
		var (
			id       string
			blob     []byte
			document sql.NullString
			metaJSON sql.NullString
		)
		if err := rows.Scan(&id, &blob, &document, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		metadata, err := unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		records = append(records, &backend.Record{
			ID:        id,
			Embedding: decodeVector(blob),
			Document:  document.String,
			Metadata:  metadata,
		})
	}
	return records, rows.Err()
}

// checkDimensions enforces the collection's fixed dimensionality inside
// the write transaction; the first batch fixes it.
func (s *Collection) checkDimensions(ctx context.Context, tx *sql.Tx, embeddings [][]float32) error {
	var dims int
	err := tx.QueryRowContext(ctx,
		"SELECT dimensions FROM collections WHERE id = ?", s.rowID).Scan(&dims)
	if err != nil {
		return fmt.Errorf("read collection dimensions: %w", err)
	}
	want := dims
	if want == 0 && len(embeddings) > 0 {
		want = len(embeddings[0])
	}
	for _, emb := range embeddings {
		if len(emb) != want || want == 0 {
			return &backend.DimensionMismatchError{Want: want, Got: len(emb)}
		}
	}
	if dims == 0 && want > 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET dimensions = ? WHERE id = ?", want, s.rowID); err != nil {
			return fmt.Errorf("fix collection dimensions: %w", err)
		}
	}
	return nil
}

func isConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func marshalMetadata(metadata map[string]any) (any, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// Vectors are stored as little-endian float32 blobs, 4 bytes per
// component.

func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
