// Package pdf extracts text from PDF documents, page by page.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/passagedev/passage/extract"
)

var _ extract.Extractor = (*Extractor)(nil)
var _ extract.MetadataExtractor = (*Extractor)(nil)

// Extractor pulls plain text out of PDF content. Pages that fail to decode
// are skipped rather than failing the whole document.
type Extractor struct{}

// New creates a PDF extractor.
func New() *Extractor { return &Extractor{} }

// Extract returns the document text with pages separated by blank lines.
func (e *Extractor) Extract(content []byte) (string, error) {
	result, err := e.ExtractWithMeta(content)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ExtractWithMeta extracts text page by page, recording the byte range each
// page occupies so chunk offsets can be mapped back to page numbers.
func (e *Extractor) ExtractWithMeta(content []byte) (extract.ExtractResult, error) {
	if len(content) == 0 {
		return extract.ExtractResult{}, fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return extract.ExtractResult{}, fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	var meta []extract.PageMeta
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		start := text.Len()
		text.WriteString(pageText)
		meta = append(meta, extract.PageMeta{
			PageNumber: i,
			StartByte:  start,
			EndByte:    text.Len(),
		})
	}
	return extract.ExtractResult{Text: text.String(), Pages: meta}, nil
}
