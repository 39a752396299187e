// Package passage turns raw document text into retrievable chunks and ranks
// them against natural-language queries.
//
// It provides two engines. The chunking engine (package chunk) splits a
// document into coherent, size-bounded units under interchangeable
// strategies: recursive (paragraph, then sentence, then word splitting with
// exact overlap), semantic (embedding-similarity boundaries), contextual
// (recursive plus a prepended document summary), and hybrid (deterministic
// auto-selection from document statistics). The retrieval engine
// ([Retriever]) fuses vector-similarity and keyword-match signals over an
// [Index], with optional query expansion.
//
// # Quick start
//
//	cfg := passage.DefaultConfig()
//	engine, _ := chunk.NewEngine(cfg, chunk.WithEmbedding(embedding))
//	chunks, _ := engine.Chunk(ctx, doc, chunk.Recursive)
//
//	idx := memory.New()
//	for _, c := range chunks {
//		idx.Upsert(ctx, c, c.Embedding)
//	}
//
//	retriever, _ := passage.NewRetriever(idx, embedding, passage.RetrieveHybrid, cfg)
//	result, _ := retriever.Retrieve(ctx, "how are chunks scored?")
//
// # Core interfaces
//
//   - [EmbeddingProvider]: text-to-vector embedding (embed/openaicompat, or any fake)
//   - [Index]: vector plus keyword storage (index/memory, index/sqlite, index/postgres)
//   - [Summarizer]: optional document summarization for contextual chunking
//
// Both engines are stateless per call; all state lives in the Index and the
// immutable [Config]. Embedding-dependent strategies degrade to
// dependency-free fallbacks on provider failure, and every fallback is
// recorded in output metadata rather than swallowed.
package passage
