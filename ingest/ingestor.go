// Package ingest provides end-to-end document ingestion: extract text from
// raw content, chunk it, embed the chunks in batches, and write them to an
// index. Re-ingesting a document bumps its chunk generation so stale chunk
// IDs from earlier runs are superseded atomically.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	passage "github.com/passagedev/passage"
	"github.com/passagedev/passage/chunk"
	"github.com/passagedev/passage/extract"
	"github.com/passagedev/passage/extract/pdf"
)

// Result holds the outcome of an ingest operation.
type Result struct {
	DocumentID string
	Document   passage.Document
	Generation int
	ChunkCount int
	Strategy   chunk.Strategy
	Pages      []extract.PageMeta
}

// DocumentStore is an optional Index capability: a backend that replaces a
// document's chunks transactionally and remembers the chunk generation it
// holds. The sqlite and postgres indexes implement it.
type DocumentStore interface {
	StoreDocument(ctx context.Context, doc passage.Document, generation int, chunks []passage.Chunk) error
	Generation(ctx context.Context, documentID string) (int, error)
}

// DocumentDeleter is an optional Index capability for removing every chunk
// of a document in one call.
type DocumentDeleter interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

// Ingestor runs the extract, chunk, embed, store pipeline against a single
// index. Safe for concurrent use.
type Ingestor struct {
	index      passage.Index
	engine     *chunk.Engine
	embedding  passage.EmbeddingProvider
	extractors map[extract.ContentType]extract.Extractor
	strategy   chunk.Strategy
	batchSize  int
	logger     *slog.Logger

	// generation fallback for indexes without DocumentStore
	mu          sync.Mutex
	generations map[string]int
}

// NewIngestor creates an Ingestor with sensible defaults: hybrid strategy,
// batches of 64 chunks per Embed call, and extractors for plain text,
// markdown, HTML and PDF.
func NewIngestor(index passage.Index, engine *chunk.Engine, emb passage.EmbeddingProvider, opts ...Option) *Ingestor {
	ing := &Ingestor{
		index:     index,
		engine:    engine,
		embedding: emb,
		extractors: map[extract.ContentType]extract.Extractor{
			extract.TypePlainText: extract.PlainText{},
			extract.TypeHTML:      extract.HTML{},
			extract.TypeMarkdown:  extract.Markdown{},
			extract.TypePDF:       pdf.New(),
		},
		strategy:    chunk.Hybrid,
		batchSize:   64,
		logger:      passage.NopLogger(),
		generations: make(map[string]int),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// IngestText ingests plain text content as a new document.
func (ing *Ingestor) IngestText(ctx context.Context, text, source, title string) (Result, error) {
	doc := passage.Document{
		ID:        passage.NewID(),
		Title:     title,
		Source:    source,
		Content:   text,
		CreatedAt: passage.NowUnix(),
	}
	return ing.ingest(ctx, doc, nil)
}

// IngestFile ingests file content as a new document, detecting the content
// type from the filename extension. Unknown extensions are treated as plain
// text. Extractors that report page metadata (PDF) have it carried into the
// Result and onto per-chunk metadata.
func (ing *Ingestor) IngestFile(ctx context.Context, content []byte, filename string) (Result, error) {
	ct := extract.ContentTypeFromExtension(filepath.Ext(filename))
	extractor, ok := ing.extractors[ct]
	if !ok {
		extractor = extract.PlainText{}
	}

	var (
		text  string
		pages []extract.PageMeta
	)
	if me, ok := extractor.(extract.MetadataExtractor); ok {
		res, err := me.ExtractWithMeta(content)
		if err != nil {
			return Result{}, fmt.Errorf("extract %s: %w", ct, err)
		}
		text, pages = res.Text, res.Pages
	} else {
		var err error
		text, err = extractor.Extract(content)
		if err != nil {
			return Result{}, fmt.Errorf("extract %s: %w", ct, err)
		}
	}

	doc := passage.Document{
		ID:        passage.NewID(),
		Title:     filepath.Base(filename),
		Source:    filename,
		Content:   text,
		CreatedAt: passage.NowUnix(),
	}
	return ing.ingest(ctx, doc, pages)
}

// IngestReader reads all content from r and ingests it, detecting the
// content type from filename.
func (ing *Ingestor) IngestReader(ctx context.Context, r io.Reader, filename string) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read: %w", err)
	}
	return ing.IngestFile(ctx, data, filename)
}

// Reingest chunks and stores doc again under its existing ID, superseding
// any chunks written by earlier ingests of the same document. doc.ID must
// be set; CreatedAt is stamped when zero.
func (ing *Ingestor) Reingest(ctx context.Context, doc passage.Document) (Result, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return Result{}, &passage.InvalidInputError{Msg: "document ID must not be empty"}
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = passage.NowUnix()
	}
	return ing.ingest(ctx, doc, nil)
}

// DeleteDocument removes every chunk of a document from the index, when the
// backend supports it.
func (ing *Ingestor) DeleteDocument(ctx context.Context, documentID string) error {
	del, ok := ing.index.(DocumentDeleter)
	if !ok {
		return fmt.Errorf("index %T does not support document deletion", ing.index)
	}
	ing.mu.Lock()
	delete(ing.generations, documentID)
	ing.mu.Unlock()
	return del.DeleteDocument(ctx, documentID)
}

func (ing *Ingestor) ingest(ctx context.Context, doc passage.Document, pages []extract.PageMeta) (Result, error) {
	gen, err := ing.nextGeneration(ctx, doc.ID)
	if err != nil {
		return Result{}, err
	}

	chunks, err := ing.engine.ChunkGeneration(ctx, doc, ing.strategy, gen)
	if err != nil {
		return Result{}, fmt.Errorf("chunk: %w", err)
	}
	annotatePages(chunks, pages)

	if err := ing.batchEmbed(ctx, chunks); err != nil {
		return Result{}, err
	}

	if err := ing.store(ctx, doc, gen, chunks); err != nil {
		return Result{}, err
	}

	used := ing.strategy
	if len(chunks) > 0 && chunks[0].Meta != nil {
		used = chunk.Strategy(chunks[0].Meta.StrategyUsed)
	}
	ing.logger.Debug("ingest: document stored",
		"id", doc.ID, "generation", gen, "chunks", len(chunks), "strategy_used", string(used))

	return Result{
		DocumentID: doc.ID,
		Document:   doc,
		Generation: gen,
		ChunkCount: len(chunks),
		Strategy:   used,
		Pages:      pages,
	}, nil
}

// nextGeneration returns the generation number for the next write of this
// document. Backed by the index when it tracks generations, otherwise by an
// in-process counter.
func (ing *Ingestor) nextGeneration(ctx context.Context, documentID string) (int, error) {
	if ds, ok := ing.index.(DocumentStore); ok {
		cur, err := ds.Generation(ctx, documentID)
		if err != nil {
			return 0, fmt.Errorf("generation: %w", err)
		}
		return cur + 1, nil
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	ing.generations[documentID]++
	return ing.generations[documentID], nil
}

// store writes the new chunk generation. Backends with StoreDocument get a
// transactional replace; everything else gets delete-then-upsert.
func (ing *Ingestor) store(ctx context.Context, doc passage.Document, generation int, chunks []passage.Chunk) error {
	if ds, ok := ing.index.(DocumentStore); ok {
		if err := ds.StoreDocument(ctx, doc, generation, chunks); err != nil {
			return fmt.Errorf("store document: %w", err)
		}
		return nil
	}
	if del, ok := ing.index.(DocumentDeleter); ok && generation > 1 {
		if err := del.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete previous generation: %w", err)
		}
	}
	for _, c := range chunks {
		if err := ing.index.Upsert(ctx, c, c.Embedding); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// batchEmbed embeds chunk retrieval texts in batches of ing.batchSize.
// Contextual chunks are embedded on their raw span, not the summary prefix.
func (ing *Ingestor) batchEmbed(ctx context.Context, chunks []passage.Chunk) error {
	if ing.embedding == nil || len(chunks) == 0 {
		return nil
	}
	for i := 0; i < len(chunks); i += ing.batchSize {
		end := i + ing.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]
		texts := make([]string, len(batch))
		for j := range batch {
			texts[j] = batch[j].RetrievalText()
		}
		embeddings, err := ing.embedding.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		for j := range batch {
			if j < len(embeddings) {
				chunks[i+j].Embedding = embeddings[j]
			}
		}
	}
	return nil
}

// annotatePages records the page number each chunk starts on. No-op when
// the extractor produced no page metadata.
func annotatePages(chunks []passage.Chunk, pages []extract.PageMeta) {
	if len(pages) == 0 {
		return
	}
	for i := range chunks {
		if chunks[i].Meta == nil {
			continue
		}
		for _, p := range pages {
			if chunks[i].Start >= p.StartByte && chunks[i].Start < p.EndByte {
				chunks[i].Meta.Page = p.PageNumber
				break
			}
		}
	}
}
