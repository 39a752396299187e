// Package postgres implements passage.Index using PostgreSQL with pgvector
// for native vector similarity search and tsvector for full-text keyword
// search.
//
// Index accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passagedev/passage"
)

// Index implements passage.Index backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance.
type Index struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Index.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, enabling
// better index optimization and catching dimension mismatches at insert
// time. Only affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node). Higher
// values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Higher values improve index quality at the cost of
// slower builds. Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Higher values improve recall at the cost of latency. Default:
// pgvector's 40. Applied during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ passage.Index = (*Index)(nil)

// New creates an Index using an existing pgxpool.Pool. The caller owns the
// pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Index {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Index{pool: pool, cfg: cfg}
}

func (x *Index) vectorType() string {
	if x.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", x.cfg.embeddingDimension)
	}
	return "vector"
}

func (x *Index) hnswWithClause() string {
	var parts []string
	if x.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", x.cfg.hnswM))
	}
	if x.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", x.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, tables, and indexes. Safe to call
// multiple times.
//
// The keyword GIN index covers search_text, which holds the chunk's
// retrieval text: for context-enriched chunks that is the raw span, so a
// prepended summary never matches lexically.
func (x *Index) Init(ctx context.Context) error {
	vtype := x.vectorType()
	hnswWith := x.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			generation INTEGER NOT NULL DEFAULT 1,
			created_at BIGINT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			search_text TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_pos INTEGER NOT NULL,
			end_pos INTEGER NOT NULL,
			embedding %s,
			metadata JSONB
		)`, vtype),
		`CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks(document_id)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),
		`CREATE INDEX IF NOT EXISTS chunks_fts_idx ON chunks USING gin(to_tsvector('english', search_text))`,
	}

	for _, stmt := range stmts {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if x.cfg.hnswEFSearch > 0 {
		if _, err := x.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", x.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}
	return nil
}

// StoreDocument records the source document and its current chunk
// generation in a single transaction, replacing any previous generation.
func (x *Index) StoreDocument(ctx context.Context, doc passage.Document, generation int, chunks []passage.Chunk) error {
	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("postgres: delete old chunks: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, title, source, content, generation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   source = EXCLUDED.source,
		   content = EXCLUDED.content,
		   generation = EXCLUDED.generation,
		   created_at = EXCLUDED.created_at`,
		doc.ID, doc.Title, doc.Source, doc.Content, generation, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert document: %w", err)
	}
	for _, c := range chunks {
		if err := upsertChunk(ctx, tx, c, c.Embedding); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// Generation returns the stored chunk generation for a document, or 0 when
// the document is unknown.
func (x *Index) Generation(ctx context.Context, documentID string) (int, error) {
	var gen int
	err := x.pool.QueryRow(ctx, `SELECT generation FROM documents WHERE id = $1`, documentID).Scan(&gen)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: get generation: %w", err)
	}
	return gen, nil
}

// execer abstracts over *pgxpool.Pool and pgx.Tx for chunk writes.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Upsert stores or replaces a chunk and its embedding.
func (x *Index) Upsert(ctx context.Context, chunk passage.Chunk, embedding []float32) error {
	return upsertChunk(ctx, x.pool, chunk, embedding)
}

func upsertChunk(ctx context.Context, db execer, chunk passage.Chunk, embedding []float32) error {
	var metaJSON *string
	if chunk.Meta != nil {
		data, _ := json.Marshal(chunk.Meta)
		v := string(data)
		metaJSON = &v
	}

	if len(embedding) > 0 {
		_, err := db.Exec(ctx,
			`INSERT INTO chunks (id, document_id, content, search_text, chunk_index, start_pos, end_pos, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9)
			 ON CONFLICT (id) DO UPDATE SET
			   document_id = EXCLUDED.document_id,
			   content = EXCLUDED.content,
			   search_text = EXCLUDED.search_text,
			   chunk_index = EXCLUDED.chunk_index,
			   start_pos = EXCLUDED.start_pos,
			   end_pos = EXCLUDED.end_pos,
			   embedding = EXCLUDED.embedding,
			   metadata = EXCLUDED.metadata`,
			chunk.ID, chunk.DocumentID, chunk.Content, chunk.RetrievalText(),
			chunk.ChunkIndex, chunk.Start, chunk.End, serializeEmbedding(embedding), metaJSON)
		if err != nil {
			return fmt.Errorf("postgres: upsert chunk: %w", err)
		}
		return nil
	}

	_, err := db.Exec(ctx,
		`INSERT INTO chunks (id, document_id, content, search_text, chunk_index, start_pos, end_pos, embedding, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   document_id = EXCLUDED.document_id,
		   content = EXCLUDED.content,
		   search_text = EXCLUDED.search_text,
		   chunk_index = EXCLUDED.chunk_index,
		   start_pos = EXCLUDED.start_pos,
		   end_pos = EXCLUDED.end_pos,
		   embedding = NULL,
		   metadata = EXCLUDED.metadata`,
		chunk.ID, chunk.DocumentID, chunk.Content, chunk.RetrievalText(),
		chunk.ChunkIndex, chunk.Start, chunk.End, metaJSON)
	if err != nil {
		return fmt.Errorf("postgres: upsert chunk: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and all its chunks.
func (x *Index) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("postgres: delete document chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, documentID); err != nil {
		return fmt.Errorf("postgres: delete document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}

// QueryVector runs pgvector cosine similarity search via the HNSW index,
// highest first, ties broken by ascending chunk ID.
func (x *Index) QueryVector(ctx context.Context, embedding []float32, topN int) ([]passage.VectorHit, error) {
	rows, err := x.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1::vector) AS score
		 FROM chunks
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector, id
		 LIMIT $2`,
		serializeEmbedding(embedding), topN)
	if err != nil {
		return nil, fmt.Errorf("postgres: query vector: %w", err)
	}
	defer rows.Close()

	var hits []passage.VectorHit
	for rows.Next() {
		var h passage.VectorHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// QueryKeyword runs full-text search over chunk retrieval text using
// tsvector/tsquery with the GIN index. The raw ts_rank is folded into
// [0, 1) so it can be fused with similarity scores.
func (x *Index) QueryKeyword(ctx context.Context, terms []string, topN int) ([]passage.KeywordHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	rows, err := x.pool.Query(ctx,
		`SELECT id, ts_rank(to_tsvector('english', search_text), plainto_tsquery('english', $1)) AS score
		 FROM chunks
		 WHERE to_tsvector('english', search_text) @@ plainto_tsquery('english', $1)
		 ORDER BY score DESC, id
		 LIMIT $2`,
		strings.Join(terms, " "), topN)
	if err != nil {
		return nil, fmt.Errorf("postgres: keyword search: %w", err)
	}
	defer rows.Close()

	var hits []passage.KeywordHit
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("postgres: scan keyword hit: %w", err)
		}
		if rank < 0 {
			rank = 0
		}
		hits = append(hits, passage.KeywordHit{ChunkID: id, Score: rank / (rank + 1)})
	}
	return hits, rows.Err()
}

// GetChunks resolves chunk IDs to full records, preserving input order and
// skipping unknown IDs.
func (x *Index) GetChunks(ctx context.Context, ids []string) ([]passage.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := x.pool.Query(ctx,
		`SELECT id, document_id, content, chunk_index, start_pos, end_pos, metadata
		 FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]passage.Chunk, len(ids))
	for rows.Next() {
		var c passage.Chunk
		var metaJSON []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex, &c.Start, &c.End, &metaJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		if len(metaJSON) > 0 {
			c.Meta = &passage.ChunkMeta{}
			_ = json.Unmarshal(metaJSON, c.Meta)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate chunks: %w", err)
	}

	out := make([]passage.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count chunks: %w", err)
	}
	return n, nil
}

// serializeEmbedding renders a []float32 as a pgvector literal.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
