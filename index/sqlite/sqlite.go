// Package sqlite implements passage.Index on pure-Go SQLite with an FTS5
// keyword index and in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/passagedev/passage"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a structured logger. When set, the index emits debug logs
// for every operation including timing and row counts. If not set, no logs
// are emitted.
func WithLogger(l *slog.Logger) Option {
	return func(x *Index) { x.logger = l }
}

// Index implements passage.Index backed by a local SQLite file. Embeddings
// are stored as JSON text; vector search scans them in-process with cosine
// similarity, which is fine for the corpus sizes a single SQLite file holds.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ passage.Index = (*Index)(nil)

// New creates an Index on a local SQLite file at dbPath. A single shared
// connection serializes all goroutines, eliminating SQLITE_BUSY errors from
// concurrent writers.
func New(dbPath string, opts ...Option) *Index {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	x := &Index{db: db, logger: passage.NopLogger()}
	for _, o := range opts {
		o(x)
	}
	x.logger.Debug("sqlite: index opened", "path", dbPath)
	return x
}

// Init creates all required tables.
func (x *Index) Init(ctx context.Context) error {
	start := time.Now()
	x.logger.Debug("sqlite: init started")

	tables := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			generation INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_pos INTEGER NOT NULL,
			end_pos INTEGER NOT NULL,
			embedding TEXT,
			metadata TEXT
		)`,
	}
	for _, ddl := range tables {
		if _, err := x.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, _ = x.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`)

	// FTS5 full-text index for keyword search over chunk retrieval text.
	_, _ = x.db.ExecContext(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(chunk_id UNINDEXED, content)`)

	x.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// StoreDocument records the source document and its current chunk
// generation in a single transaction, replacing any previous generation.
func (x *Index) StoreDocument(ctx context.Context, doc passage.Document, generation int, chunks []passage.Chunk) error {
	start := time.Now()
	x.logger.Debug("sqlite: store document", "id", doc.ID, "title", doc.Title, "generation", generation, "chunks", len(chunks))

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocumentTx(ctx, tx, doc.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, title, source, content, generation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Title, doc.Source, doc.Content, generation, doc.CreatedAt,
	)
	if err != nil {
		x.logger.Error("sqlite: insert document failed", "id", doc.ID, "error", err)
		return fmt.Errorf("insert document: %w", err)
	}
	for _, c := range chunks {
		if err := upsertChunkTx(ctx, tx, c, c.Embedding); err != nil {
			x.logger.Error("sqlite: insert chunk failed", "chunk_id", c.ID, "doc_id", doc.ID, "error", err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		x.logger.Error("sqlite: store document commit failed", "id", doc.ID, "error", err)
		return fmt.Errorf("commit tx: %w", err)
	}
	x.logger.Debug("sqlite: store document ok", "id", doc.ID, "chunks", len(chunks), "duration", time.Since(start))
	return nil
}

// Generation returns the stored chunk generation for a document, or 0 when
// the document is unknown.
func (x *Index) Generation(ctx context.Context, documentID string) (int, error) {
	var gen int
	err := x.db.QueryRowContext(ctx, `SELECT generation FROM documents WHERE id = ?`, documentID).Scan(&gen)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get generation: %w", err)
	}
	return gen, nil
}

// Upsert stores or replaces a chunk and its embedding, keeping the FTS
// index in sync.
func (x *Index) Upsert(ctx context.Context, chunk passage.Chunk, embedding []float32) error {
	start := time.Now()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertChunkTx(ctx, tx, chunk, embedding); err != nil {
		x.logger.Error("sqlite: upsert chunk failed", "chunk_id", chunk.ID, "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	x.logger.Debug("sqlite: upsert chunk ok", "chunk_id", chunk.ID, "duration", time.Since(start))
	return nil
}

func upsertChunkTx(ctx context.Context, tx *sql.Tx, chunk passage.Chunk, embedding []float32) error {
	var embJSON *string
	if len(embedding) > 0 {
		v := serializeEmbedding(embedding)
		embJSON = &v
	}
	var metaJSON *string
	if chunk.Meta != nil {
		data, _ := json.Marshal(chunk.Meta)
		v := string(data)
		metaJSON = &v
	}
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, document_id, content, chunk_index, start_pos, end_pos, embedding, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocumentID, chunk.Content, chunk.ChunkIndex, chunk.Start, chunk.End, embJSON, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}

	// Keep FTS in sync. Keyword search runs over the retrieval text so a
	// prepended summary never matches lexically.
	_, _ = tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE chunk_id = ?`, chunk.ID)
	if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_fts(chunk_id, content) VALUES (?, ?)`, chunk.ID, chunk.RetrievalText()); err != nil {
		return fmt.Errorf("insert chunk fts: %w", err)
	}
	return nil
}

// DeleteDocument removes a document, its chunks, and their FTS entries.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	start := time.Now()
	x.logger.Debug("sqlite: delete document", "id", documentID)

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteDocumentTx(ctx, tx, documentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		x.logger.Error("sqlite: delete document commit failed", "id", documentID, "error", err)
		return err
	}
	x.logger.Debug("sqlite: delete document ok", "id", documentID, "duration", time.Since(start))
	return nil
}

func deleteDocumentTx(ctx context.Context, tx *sql.Tx, documentID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`, documentID)
	if err != nil {
		return fmt.Errorf("delete document fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// QueryVector performs brute-force cosine similarity search over all stored
// embeddings, highest first, ties broken by ascending chunk ID.
func (x *Index) QueryVector(ctx context.Context, embedding []float32, topN int) ([]passage.VectorHit, error) {
	start := time.Now()
	x.logger.Debug("sqlite: query vector", "top_n", topN, "embedding_dim", len(embedding))

	rows, err := x.db.QueryContext(ctx, `SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query vector: %w", err)
	}
	defer rows.Close()

	var hits []passage.VectorHit
	scanned := 0
	for rows.Next() {
		var id, embJSON string
		if err := rows.Scan(&id, &embJSON); err != nil {
			return nil, fmt.Errorf("scan chunk embedding: %w", err)
		}
		scanned++
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		hits = append(hits, passage.VectorHit{ChunkID: id, Score: cosineSimilarity(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if topN > 0 && len(hits) > topN {
		hits = hits[:topN]
	}
	x.logger.Debug("sqlite: query vector ok", "scanned", scanned, "returned", len(hits), "duration", time.Since(start))
	return hits, nil
}

// QueryKeyword performs FTS5 full-text search over chunk retrieval text.
// The raw FTS5 rank (negative, closer to zero is better) is folded into
// [0, 1) so it can be fused with similarity scores.
func (x *Index) QueryKeyword(ctx context.Context, terms []string, topN int) ([]passage.KeywordHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	start := time.Now()
	x.logger.Debug("sqlite: query keyword", "terms", len(terms), "top_n", topN)

	rows, err := x.db.QueryContext(ctx,
		`SELECT chunk_id, rank FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY rank LIMIT ?`,
		matchExpr(terms), topN,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []passage.KeywordHit
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		raw := -rank
		if raw < 0 {
			raw = 0
		}
		hits = append(hits, passage.KeywordHit{ChunkID: id, Score: raw / (raw + 1)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword hits: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	x.logger.Debug("sqlite: query keyword ok", "returned", len(hits), "duration", time.Since(start))
	return hits, nil
}

// matchExpr builds an FTS5 OR query from the terms. Each term is quoted so
// FTS5 operators inside user text are matched literally rather than parsed.
func matchExpr(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		if t == "" {
			continue
		}
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// GetChunks resolves chunk IDs to full records, preserving input order and
// skipping unknown IDs.
func (x *Index) GetChunks(ctx context.Context, ids []string) ([]passage.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	start := time.Now()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		`SELECT id, document_id, content, chunk_index, start_pos, end_pos, embedding, metadata FROM chunks WHERE id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]passage.Chunk, len(ids))
	for rows.Next() {
		var c passage.Chunk
		var embJSON, metaJSON sql.NullString
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex, &c.Start, &c.End, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if embJSON.Valid {
			c.Embedding, _ = deserializeEmbedding(embJSON.String)
		}
		if metaJSON.Valid {
			c.Meta = &passage.ChunkMeta{}
			_ = json.Unmarshal([]byte(metaJSON.String), c.Meta)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	out := make([]passage.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	x.logger.Debug("sqlite: get chunks ok", "requested", len(ids), "returned", len(out), "duration", time.Since(start))
	return out, nil
}

// Count returns the number of stored chunks.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DB returns the underlying *sql.DB.
func (x *Index) DB() *sql.DB {
	return x.db
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	x.logger.Debug("sqlite: closing index")
	err := x.db.Close()
	if err != nil {
		x.logger.Error("sqlite: close failed", "error", err)
	}
	return err
}

// --- Vector math ---

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
