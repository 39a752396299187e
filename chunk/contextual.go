package chunk

import (
	"context"
	"strings"

	"github.com/passagedev/passage"
)

const (
	summarySourceProvider  = "summarizer"
	summarySourceHeuristic = "heuristic"
)

// chunkContextual runs the recursive strategy and prepends a short
// document-level summary to every chunk's stored text, so a chunk remains
// interpretable when retrieved in isolation. The original span is kept in
// metadata (RawText) for retrieval scoring; offsets keep referring to the
// raw span.
func (e *Engine) chunkContextual(ctx context.Context, doc passage.Document, generation int) ([]passage.Chunk, error) {
	chunks := e.chunkRecursive(doc, generation)

	summary, source := e.documentSummary(ctx, doc)
	for i := range chunks {
		c := &chunks[i]
		m := c.Meta
		m.Strategy = string(Contextual)
		m.StrategyUsed = string(Contextual)
		m.RawText = c.Content
		m.Summary = summary
		m.SummarySource = source
		c.Content = summary + "\n\n" + c.Content
	}

	e.logger.Debug("contextual chunking done",
		"doc_id", doc.ID, "chunks", len(chunks), "summary_source", source)
	return chunks, nil
}

// documentSummary obtains a short summary of the document: from the
// configured summarizer when available, else the first paragraph as a
// heuristic. The returned source tag is recorded in chunk metadata.
func (e *Engine) documentSummary(ctx context.Context, doc passage.Document) (string, string) {
	if e.summarizer != nil {
		s, err := e.summarizer.Summarize(ctx, truncateAtWord(doc.Content, 16*e.cfg.ChunkSize))
		if err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), summarySourceProvider
		}
		e.logger.Warn("summarizer unavailable, using first paragraph", "doc_id", doc.ID, "err", err)
	}
	return firstParagraph(doc.Content, e.summaryLimit), summarySourceHeuristic
}

// firstParagraph returns the document's first non-empty paragraph, truncated
// to maxBytes at a word boundary.
func firstParagraph(text string, maxBytes int) string {
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			return truncateAtWord(p, maxBytes)
		}
	}
	return ""
}

// truncateAtWord truncates text to maxBytes at the nearest preceding word
// boundary. Returns the original text if maxBytes is 0 or the text fits.
func truncateAtWord(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	if text[maxBytes] == ' ' || text[maxBytes] == '\n' {
		return text[:maxBytes]
	}
	cut := maxBytes
	for cut > 0 && text[cut-1] != ' ' && text[cut-1] != '\n' {
		cut--
	}
	if cut == 0 {
		return text[:maxBytes]
	}
	return strings.TrimSpace(text[:cut])
}
