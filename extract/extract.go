// Package extract converts raw document bytes to the plain text the
// chunking engine operates on.
package extract

import "strings"

// Extractor converts raw content to plain text.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// ExtractResult holds extracted text and optional per-page metadata.
type ExtractResult struct {
	Text  string
	Pages []PageMeta
}

// PageMeta marks the byte range in ExtractResult.Text covered by one page,
// so chunk offsets can be mapped back to page numbers.
type PageMeta struct {
	PageNumber int
	StartByte  int
	EndByte    int
}

// MetadataExtractor is an optional capability for extractors that produce
// structured metadata alongside text.
type MetadataExtractor interface {
	ExtractWithMeta(content []byte) (ExtractResult, error)
}

// ContentType identifies the MIME type of content for extraction.
type ContentType string

const (
	TypePlainText ContentType = "text/plain"
	TypeHTML      ContentType = "text/html"
	TypeMarkdown  ContentType = "text/markdown"
	TypePDF       ContentType = "application/pdf"
)

// ContentTypeFromExtension maps file extensions to content types. The
// extension may carry a leading dot.
func ContentTypeFromExtension(ext string) ContentType {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return TypeMarkdown
	case "html", "htm":
		return TypeHTML
	case "pdf":
		return TypePDF
	default:
		return TypePlainText
	}
}

// For returns the extractor for a content type. Unknown types get the
// plain-text extractor. The PDF extractor lives in the extract/pdf
// subpackage to keep its dependency out of text-only builds.
func For(ct ContentType) Extractor {
	switch ct {
	case TypeMarkdown:
		return Markdown{}
	case TypeHTML:
		return HTML{}
	default:
		return PlainText{}
	}
}

// PlainText returns content as-is.
type PlainText struct{}

func (PlainText) Extract(content []byte) (string, error) {
	return string(content), nil
}

// collapseWhitespace trims lines and caps blank-line runs at one, so
// paragraph boundaries survive extraction without noise.
func collapseWhitespace(text string) string {
	var result strings.Builder
	emptyCount := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if result.Len() > 0 {
				emptyCount++
			}
			continue
		}
		if emptyCount > 0 {
			result.WriteString("\n\n")
		} else if result.Len() > 0 {
			result.WriteByte('\n')
		}
		result.WriteString(trimmed)
		emptyCount = 0
	}
	return strings.TrimSpace(result.String())
}
