// Command passage ingests documents and retrieves ranked passages from a
// local index.
//
// Usage:
//
//	passage ingest <file>...
//	passage query <text>
//	passage stats
//
// Configuration is read from passage.toml (path overridable via
// PASSAGE_CONFIG) with PASSAGE_* env vars taking precedence.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	passage "github.com/passagedev/passage"
	"github.com/passagedev/passage/chunk"
	"github.com/passagedev/passage/embed/openaicompat"
	"github.com/passagedev/passage/index/memory"
	"github.com/passagedev/passage/index/postgres"
	"github.com/passagedev/passage/index/sqlite"
	"github.com/passagedev/passage/ingest"
	"github.com/passagedev/passage/internal/config"
	"github.com/passagedev/passage/observer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load(os.Getenv("PASSAGE_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer shutdown(ctx) //nolint:errcheck
	}

	idx, closeIdx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer closeIdx()

	var embedding passage.EmbeddingProvider = openaicompat.New(
		cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)
	embedding = passage.WithRetry(embedding, passage.RetryLogger(logger))
	if inst != nil {
		embedding = observer.WrapEmbedding(embedding, inst)
	}

	engine, err := chunk.NewEngine(cfg.Core(), chunk.WithEmbedding(embedding), chunk.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}

	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, cfg, idx, engine, embedding, logger, os.Args[2:])
	case "query":
		err = runQuery(ctx, cfg, idx, embedding, inst, os.Args[2:])
	case "stats":
		err = runStats(ctx, idx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: passage <ingest|query|stats> [args]")
}

func openIndex(ctx context.Context, cfg config.Config, logger *slog.Logger) (passage.Index, func(), error) {
	switch cfg.Index.Backend {
	case "sqlite", "":
		idx := sqlite.New(cfg.Index.Path, sqlite.WithLogger(logger))
		if err := idx.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("init sqlite index: %w", err)
		}
		return idx, func() { idx.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Index.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		idx := postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
		if err := idx.Init(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("init postgres index: %w", err)
		}
		return idx, pool.Close, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func runIngest(ctx context.Context, cfg config.Config, idx passage.Index, engine *chunk.Engine, embedding passage.EmbeddingProvider, logger *slog.Logger, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("ingest: no files given")
	}

	ing := ingest.NewIngestor(idx, engine, embedding,
		ingest.WithStrategy(chunk.Strategy(cfg.Chunking.Strategy)),
		ingest.WithLogger(logger))

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		r, err := ing.IngestFile(ctx, content, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Printf("%s: %d chunks (strategy %s, generation %d)\n",
			path, r.ChunkCount, r.Strategy, r.Generation)
	}
	return nil
}

func runQuery(ctx context.Context, cfg config.Config, idx passage.Index, embedding passage.EmbeddingProvider, inst *observer.Instruments, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("query: no query text given")
	}
	query := args[0]

	r, err := passage.NewRetriever(idx, embedding,
		passage.RetrievalStrategy(cfg.Retrieval.Strategy), cfg.Core())
	if err != nil {
		return err
	}

	var res passage.Result
	if inst != nil {
		res, err = observer.WrapRetriever(r, inst).Retrieve(ctx, query)
	} else {
		res, err = r.Retrieve(ctx, query)
	}
	if err != nil {
		return err
	}

	if res.Degraded {
		fmt.Fprintln(os.Stderr, "warning: retrieval degraded, a ranking signal was unavailable")
	}
	for i, c := range res.Candidates {
		fmt.Printf("%d. [%.4f] %s\n", i+1, c.Fused, c.Chunk.ID)
		fmt.Printf("   %s\n", c.Chunk.RetrievalText())
	}
	if len(res.Candidates) == 0 {
		fmt.Println("no matching passages")
	}
	return nil
}

func runStats(ctx context.Context, idx passage.Index) error {
	n, err := idx.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("chunks indexed: %d\n", n)
	return nil
}
