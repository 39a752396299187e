package passage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// RetrievalStrategy selects how a query is matched against the index.
type RetrievalStrategy string

const (
	// RetrieveBasic ranks by vector similarity alone.
	RetrieveBasic RetrievalStrategy = "basic"
	// RetrieveHybrid fuses vector similarity with keyword overlap.
	RetrieveHybrid RetrievalStrategy = "hybrid"
	// RetrieveContextual runs hybrid retrieval over an expanded query while
	// scoring similarity against the original query's embedding.
	RetrieveContextual RetrievalStrategy = "contextual"
)

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a structured logger. When unset, nothing is logged.
func WithLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithSynonyms sets the term-expansion table used by the contextual strategy.
// Keys are lowercase terms, values the related terms to add to the keyword
// lookup surface.
func WithSynonyms(synonyms map[string][]string) RetrieverOption {
	return func(r *Retriever) { r.synonyms = synonyms }
}

// QueryOption configures a single Retrieve call.
type QueryOption func(*queryConfig)

type queryConfig struct {
	contextTerms []string
}

// WithContextTerms supplies prior-turn conversation terms to the contextual
// strategy's query expansion. Ignored by other strategies.
func WithContextTerms(terms ...string) QueryOption {
	return func(q *queryConfig) { q.contextTerms = append(q.contextTerms, terms...) }
}

// Retriever ranks indexed chunks against a query. It is stateless per call:
// all state lives in the Index and the immutable Config, so one Retriever is
// safe for concurrent use.
type Retriever struct {
	index     Index
	embedding EmbeddingProvider
	strategy  RetrievalStrategy
	cfg       Config
	logger    *slog.Logger
	synonyms  map[string][]string
}

// NewRetriever creates a Retriever for the given index and strategy.
// The configuration is validated up front; contradictory values and unknown
// strategy names fail construction rather than being corrected.
func NewRetriever(index Index, embedding EmbeddingProvider, strategy RetrievalStrategy, cfg Config, opts ...RetrieverOption) (*Retriever, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strategy {
	case RetrieveBasic, RetrieveHybrid, RetrieveContextual:
	default:
		return nil, &ConfigError{Field: "retrieval_strategy", Msg: fmt.Sprintf("unknown strategy %q", strategy)}
	}
	r := &Retriever{
		index:     index,
		embedding: embedding,
		strategy:  strategy,
		cfg:       cfg,
		logger:    slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Retrieve runs one query and returns candidates ordered by descending fused
// score, ties broken by ascending chunk ID, at most RetrievalK of them.
// It fails with *InvalidInputError on empty query text and *EmptyIndexError
// when the collection holds no chunks. On cancellation partial results are
// discarded, never returned.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...QueryOption) (Result, error) {
	var qc queryConfig
	for _, o := range opts {
		o(&qc)
	}

	if strings.TrimSpace(query) == "" {
		return Result{}, &InvalidInputError{Msg: "empty query"}
	}

	n, err := r.index.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count chunks: %w", err)
	}
	if n == 0 {
		return Result{}, &EmptyIndexError{}
	}

	start := time.Now()
	var res Result
	switch r.strategy {
	case RetrieveBasic:
		res, err = r.retrieveBasic(ctx, query)
	case RetrieveHybrid:
		res, err = r.retrieveHybrid(ctx, query, Tokenize(query), nil)
	case RetrieveContextual:
		res, err = r.retrieveContextual(ctx, query, qc)
	}
	if err != nil {
		return Result{}, err
	}
	res.Strategy = r.strategy

	r.logger.Debug("retrieve done",
		"strategy", string(r.strategy),
		"candidates", len(res.Candidates),
		"degraded", res.Degraded,
		"duration", time.Since(start))
	return res, nil
}

// retrieveBasic embeds the query and ranks by similarity alone. The keyword
// score stays zero and the fused score equals the similarity score. When the
// embedding provider is unavailable the call degrades to keyword-only
// ranking, recorded via Result.Degraded.
func (r *Retriever) retrieveBasic(ctx context.Context, query string) (Result, error) {
	emb, err := r.embedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("basic retrieval degraded to keyword-only", "err", err)
		return r.retrieveKeywordOnly(ctx, Tokenize(query))
	}

	hits, err := r.index.QueryVector(ctx, emb, r.fetchN())
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var ids []string
	simByID := make(map[string]float64, len(hits))
	for _, h := range hits {
		if h.Score < r.cfg.SimilarityThreshold {
			continue
		}
		ids = append(ids, h.ChunkID)
		simByID[h.ChunkID] = h.Score
	}

	chunks, err := r.index.GetChunks(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("resolve chunks: %w", err)
	}

	cands := make([]ScoredCandidate, 0, len(chunks))
	for _, c := range chunks {
		sim := simByID[c.ID]
		cands = append(cands, ScoredCandidate{Chunk: c, Similarity: sim, Fused: sim})
	}
	return Result{Candidates: r.rankAndTrim(cands)}, nil
}

// retrieveHybrid issues the vector and keyword lookups concurrently, joins
// the two candidate pools, and ranks by the fused score. extraTerms widens
// only the keyword surface (used by the contextual strategy).
func (r *Retriever) retrieveHybrid(ctx context.Context, query string, terms []string, expanded []string) (Result, error) {
	emb, err := r.embedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("hybrid retrieval degraded to keyword-only", "err", err)
		res, kerr := r.retrieveKeywordOnly(ctx, terms)
		res.ExpandedTerms = expanded
		return res, kerr
	}

	fetchN := r.fetchN()
	var (
		khits []KeywordHit
		kerr  error
		done  = make(chan struct{})
	)
	// Both lookups read the same index without mutating it, so they run
	// concurrently and join before fusion.
	go func() {
		defer close(done)
		khits, kerr = r.index.QueryKeyword(ctx, terms, fetchN)
	}()
	vhits, verr := r.index.QueryVector(ctx, emb, fetchN)
	<-done

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	degraded := false
	if verr != nil && kerr != nil {
		return Result{}, fmt.Errorf("vector search: %w", verr)
	}
	if verr != nil {
		// Keyword is the only signal left; the fused-score floor assumes a
		// similarity signal exists and would drop every candidate here.
		r.logger.Warn("vector lookup failed, keyword signal only", "err", verr)
		cands, err := r.keywordCandidates(ctx, khits)
		if err != nil {
			return Result{}, err
		}
		return Result{Candidates: cands, Degraded: true, ExpandedTerms: expanded}, nil
	}
	if kerr != nil {
		r.logger.Warn("keyword lookup failed, vector signal only", "err", kerr)
		khits, degraded = nil, true
	}

	cands, err := r.fuse(ctx, vhits, khits)
	if err != nil {
		return Result{}, err
	}
	return Result{Candidates: cands, Degraded: degraded, ExpandedTerms: expanded}, nil
}

// retrieveContextual expands the query to widen lexical recall, then runs
// hybrid retrieval. Similarity is always scored against the original query's
// embedding so expansion cannot shift the semantic target.
func (r *Retriever) retrieveContextual(ctx context.Context, query string, qc queryConfig) (Result, error) {
	variants := ExpandQuery(query, r.synonyms, qc.contextTerms)

	base := TermSet(query)
	terms := Tokenize(query)
	var expanded []string
	for _, v := range variants {
		for _, t := range Tokenize(v) {
			if _, ok := base[t]; ok {
				continue
			}
			base[t] = struct{}{}
			terms = append(terms, t)
			expanded = append(expanded, t)
		}
	}

	return r.retrieveHybrid(ctx, query, terms, expanded)
}

// retrieveKeywordOnly ranks on the lexical signal alone. Used when the
// embedding provider is unavailable; the fused score carries the keyword
// score unweighted since it is the only signal left.
func (r *Retriever) retrieveKeywordOnly(ctx context.Context, terms []string) (Result, error) {
	khits, err := r.index.QueryKeyword(ctx, terms, r.fetchN())
	if err != nil {
		return Result{}, fmt.Errorf("keyword search: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cands, err := r.keywordCandidates(ctx, khits)
	if err != nil {
		return Result{}, err
	}
	return Result{Candidates: cands, Degraded: true}, nil
}

// keywordCandidates resolves keyword hits into candidates scored on the
// lexical signal alone: the fused score carries the keyword score unweighted
// and no similarity floor applies, since no similarity signal exists.
func (r *Retriever) keywordCandidates(ctx context.Context, khits []KeywordHit) ([]ScoredCandidate, error) {
	ids := make([]string, 0, len(khits))
	kwByID := make(map[string]float64, len(khits))
	for _, h := range khits {
		ids = append(ids, h.ChunkID)
		kwByID[h.ChunkID] = clamp01(h.Score)
	}

	chunks, err := r.index.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	cands := make([]ScoredCandidate, 0, len(chunks))
	for _, c := range chunks {
		kw := kwByID[c.ID]
		cands = append(cands, ScoredCandidate{Chunk: c, Keyword: kw, Fused: kw})
	}
	return r.rankAndTrim(cands), nil
}

// fuse joins the two hit lists into one candidate pool, computes fused
// scores, and applies the threshold rule: a candidate below the similarity
// threshold survives when its fused score clears the floor a zero-keyword
// candidate exactly at the threshold would get. That keeps strong exact-term
// matches from being dropped on weak embedding similarity alone.
func (r *Retriever) fuse(ctx context.Context, vhits []VectorHit, khits []KeywordHit) ([]ScoredCandidate, error) {
	type signals struct {
		sim, kw float64
	}
	pool := make(map[string]*signals)
	for _, h := range vhits {
		pool[h.ChunkID] = &signals{sim: h.Score}
	}
	for _, h := range khits {
		s, ok := pool[h.ChunkID]
		if !ok {
			s = &signals{}
			pool[h.ChunkID] = s
		}
		s.kw = h.Score
	}

	w := r.cfg.FusionWeight
	floor := w * r.cfg.SimilarityThreshold

	ids := make([]string, 0, len(pool))
	for id := range pool {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	keep := make(map[string]ScoredCandidate, len(pool))
	var keepIDs []string
	for _, id := range ids {
		s := pool[id]
		fused := FuseScores(s.sim, s.kw, w)
		if s.sim < r.cfg.SimilarityThreshold && fused < floor {
			continue
		}
		keep[id] = ScoredCandidate{Similarity: s.sim, Keyword: clamp01(s.kw), Fused: fused}
		keepIDs = append(keepIDs, id)
	}

	chunks, err := r.index.GetChunks(ctx, keepIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	cands := make([]ScoredCandidate, 0, len(chunks))
	for _, c := range chunks {
		sc := keep[c.ID]
		sc.Chunk = c
		cands = append(cands, sc)
	}
	return r.rankAndTrim(cands), nil
}

// rankAndTrim orders candidates by descending fused score with a
// deterministic ascending chunk-ID tie-break and trims to RetrievalK.
func (r *Retriever) rankAndTrim(cands []ScoredCandidate) []ScoredCandidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Fused != cands[j].Fused {
			return cands[i].Fused > cands[j].Fused
		}
		return cands[i].Chunk.ID < cands[j].Chunk.ID
	})
	if len(cands) > r.cfg.RetrievalK {
		cands = cands[:r.cfg.RetrievalK]
	}
	return cands
}

func (r *Retriever) fetchN() int {
	n := r.cfg.RetrievalK * r.cfg.Overfetch
	if n < r.cfg.RetrievalK {
		n = r.cfg.RetrievalK
	}
	return n
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.embedding == nil {
		return nil, &ProviderUnavailableError{Provider: "embedding"}
	}
	embs, err := r.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, &ProviderUnavailableError{Provider: r.embedding.Name(), Err: err}
	}
	if len(embs) == 0 {
		return nil, &ProviderUnavailableError{Provider: r.embedding.Name(), Err: fmt.Errorf("no embedding returned")}
	}
	return embs[0], nil
}

// FuseScores combines the two signals: weight*similarity +
// (1-weight)*keyword, both clamped to [0, 1] first.
func FuseScores(similarity, keyword, weight float64) float64 {
	return weight*clamp01(similarity) + (1-weight)*clamp01(keyword)
}

// ExpandQuery derives query variants that widen the lexical match surface
// without changing the semantic target: a question-mark variant, a
// "what is" variant for non-question queries, synonym-table entries for each
// query term, and any caller-supplied conversation-context terms. Pure and
// deterministic given its inputs.
func ExpandQuery(query string, synonyms map[string][]string, contextTerms []string) []string {
	trimmed := strings.TrimSpace(query)
	variants := []string{trimmed}

	if !strings.HasSuffix(trimmed, "?") {
		variants = append(variants, trimmed+"?")
	}
	if !startsWithQuestionWord(trimmed) {
		variants = append(variants, "what is "+trimmed)
	}
	for _, t := range Tokenize(trimmed) {
		variants = append(variants, synonyms[t]...)
	}
	variants = append(variants, contextTerms...)
	return variants
}

var questionWords = []string{"what", "how", "why", "when", "where", "who", "which"}

func startsWithQuestionWord(query string) bool {
	lower := strings.ToLower(query)
	for _, w := range questionWords {
		if strings.HasPrefix(lower, w+" ") || lower == w {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
