package chunk

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span marks the half-open byte range [Start, End) of a source text.
type Span struct {
	Start int
	End   int
}

// --- Paragraph boundaries ---

// paragraphCuts returns candidate split positions at paragraph boundaries:
// the position immediately after each blank-line separator, so the separator
// stays attached to the preceding span and spans tile the text exactly.
func paragraphCuts(text string) []int {
	var cuts []int
	i := 0
	for i+1 < len(text) {
		if text[i] != '\n' || text[i+1] != '\n' {
			i++
			continue
		}
		j := i + 2
		for j < len(text) && text[j] == '\n' {
			j++
		}
		if j < len(text) {
			cuts = append(cuts, j)
		}
		i = j
	}
	return cuts
}

// --- Sentence boundaries ---

// abbreviations that should NOT be treated as sentence boundaries.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true,
}

// isAbbreviation checks if the text ending at the '.' at dotPos is a common
// abbreviation.
func isAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	word := strings.ToLower(text[start:dotPos])
	return abbreviations[word]
}

// isDecimalDot checks if the dot at dotPos is part of a number (3.14, $1.50).
func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	prevByte := text[dotPos-1]
	nextByte := text[dotPos+1]
	return prevByte >= '0' && prevByte <= '9' && nextByte >= '0' && nextByte <= '9'
}

// sentenceCuts returns byte positions suitable for splitting text at
// sentence boundaries, offset by base. Handles ASCII punctuation (.!?) with
// abbreviation and decimal number awareness, plus CJK sentence-ending
// punctuation (。！？).
func sentenceCuts(text string, base int) []int {
	var cuts []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]

		// CJK sentence-ending punctuation is always a boundary after.
		if r == '。' || r == '！' || r == '？' {
			if byteOffsets[i+1] < len(text) {
				cuts = append(cuts, base+byteOffsets[i+1])
			}
			continue
		}

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		dotBytePos := byteOffsets[i]
		if r == '.' && isDecimalDot(text, dotBytePos) {
			continue
		}
		if r == '.' && isAbbreviation(text, dotBytePos) {
			continue
		}

		// Need whitespace after punctuation; the cut lands at the start of
		// the following sentence so spans tile the text.
		if i+1 < n && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			if runes[i+1] == '\n' {
				cuts = append(cuts, base+byteOffsets[i+1])
			} else if i+2 < n && unicode.IsUpper(runes[i+2]) {
				cuts = append(cuts, base+byteOffsets[i+2])
			}
		}
	}
	return cuts
}

// sentenceSpans tiles text into sentence spans: consecutive ranges between
// sentence cuts, covering every byte of the input.
func sentenceSpans(text string) []Span {
	cuts := sentenceCuts(text, 0)
	var spans []Span
	start := 0
	for _, c := range cuts {
		if c <= start || c >= len(text) {
			continue
		}
		spans = append(spans, Span{Start: start, End: c})
		start = c
	}
	if start < len(text) {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// --- Word boundaries ---

// wordCuts returns split positions at the start of each word after the
// first, offset by base.
func wordCuts(text string, base int) []int {
	var cuts []int
	inSpace := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && i > 0 {
			cuts = append(cuts, base+i)
		}
		inSpace = false
	}
	return cuts
}

// --- Recursive cut selection ---

// cutPoints collects candidate split positions for text: paragraph
// boundaries first, sentence boundaries inside oversized paragraphs, word
// boundaries inside oversized sentences. The end of the text is always the
// final cut. A unit is oversized when it exceeds size-overlap, the largest
// span guaranteed to fit a window whose start was stepped back by the
// overlap; this keeps every adjacent cut gap small enough that windowSpans
// never exceeds size, except for whitespace-free tokens, which contribute no
// internal cuts and are never sub-split.
func cutPoints(text string, size, overlap int) []int {
	fit := size - overlap
	cuts := []int{len(text)}
	pcuts := paragraphCuts(text)
	cuts = append(cuts, pcuts...)

	for _, seg := range spansBetween(pcuts, len(text)) {
		if seg.End-seg.Start <= fit {
			continue
		}
		scuts := sentenceCuts(text[seg.Start:seg.End], seg.Start)
		cuts = append(cuts, scuts...)

		for _, sent := range spansBetweenIn(scuts, seg) {
			if sent.End-sent.Start <= fit {
				continue
			}
			cuts = append(cuts, wordCuts(text[sent.Start:sent.End], sent.Start)...)
		}
	}

	sort.Ints(cuts)
	return dedupeInts(cuts)
}

// spansBetween converts sorted cut positions into the tiling spans of
// [0, end).
func spansBetween(cuts []int, end int) []Span {
	return spansBetweenIn(cuts, Span{Start: 0, End: end})
}

// spansBetweenIn converts sorted cut positions into the tiling spans of the
// given outer span. Cuts outside the span are ignored.
func spansBetweenIn(cuts []int, outer Span) []Span {
	var spans []Span
	start := outer.Start
	for _, c := range cuts {
		if c <= start || c >= outer.End {
			continue
		}
		spans = append(spans, Span{Start: start, End: c})
		start = c
	}
	if start < outer.End {
		spans = append(spans, Span{Start: start, End: outer.End})
	}
	return spans
}

func dedupeInts(sorted []int) []int {
	out := sorted[:0]
	prev := -1
	for _, v := range sorted {
		if v == prev || v == 0 {
			continue
		}
		out = append(out, v)
		prev = v
	}
	return out
}

// windowSpans walks the sorted cut positions and greedily fills chunks of up
// to size bytes, stepping each subsequent chunk back by exactly overlap
// bytes from the previous split point. When the next cut is already beyond
// the size budget (an unsplittable oversized token), that cut is taken
// anyway: the token is emitted whole rather than corrupted.
func windowSpans(cuts []int, size, overlap int) []Span {
	if len(cuts) == 0 {
		return nil
	}
	var spans []Span
	s := 0
	i := 0
	for i < len(cuts) {
		c := cuts[i]
		if c <= s+size {
			for i+1 < len(cuts) && cuts[i+1] <= s+size {
				i++
			}
			c = cuts[i]
		}
		spans = append(spans, Span{Start: s, End: c})
		i++
		if i >= len(cuts) {
			break
		}
		s = c - overlap
		if s < 0 {
			s = 0
		}
	}
	return spans
}
