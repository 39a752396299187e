package extract

import (
	"bytes"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
)

var _ Extractor = HTML{}

// HTML extracts article text from an HTML page using readability, which
// drops navigation, ads, and boilerplate. Pages readability cannot parse
// fall back to a plain tag-stripping pass over the whole document.
type HTML struct{}

// placeholder base for resolving relative links; the text output never
// contains URLs so the host does not matter.
var htmlBaseURL = &url.URL{Scheme: "https", Host: "localhost"}

func (HTML) Extract(content []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(content), htmlBaseURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return collapseWhitespace(article.TextContent), nil
	}
	return StripHTML(string(content)), nil
}

// StripHTML removes tags, script and style bodies, and decodes common
// entities. Block-level tags become line breaks so paragraph structure
// survives.
func StripHTML(content string) string {
	var result strings.Builder
	result.Grow(len(content))

	inTag := false
	skipDepth := 0 // inside <script> or <style>
	var tagName strings.Builder
	collectingName := false

	i := 0
	for i < len(content) {
		r, size := utf8.DecodeRuneInString(content[i:])

		if r == '<' {
			inTag = true
			collectingName = true
			tagName.Reset()
			i += size
			continue
		}
		if inTag {
			if collectingName {
				if unicode.IsSpace(r) || r == '>' || (r == '/' && tagName.Len() > 0) {
					collectingName = false
					name := strings.ToLower(tagName.String())
					switch name {
					case "script", "style":
						skipDepth++
					case "/script", "/style":
						if skipDepth > 0 {
							skipDepth--
						}
					}
					if isBlockTag(name) {
						result.WriteByte('\n')
					}
				} else {
					tagName.WriteRune(r)
				}
			}
			if r == '>' {
				inTag = false
			}
			i += size
			continue
		}
		if skipDepth > 0 {
			i += size
			continue
		}

		if r == '&' {
			if decoded, skip := decodeEntity(content, i); skip > 0 {
				result.WriteString(decoded)
				i += skip
				continue
			}
		}
		result.WriteRune(r)
		i += size
	}
	return collapseWhitespace(result.String())
}

func isBlockTag(tag string) bool {
	switch strings.TrimPrefix(tag, "/") {
	case "p", "div", "br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "ul", "ol", "table", "tr", "blockquote", "pre",
		"section", "article", "header", "footer", "nav", "main":
		return true
	}
	return false
}

var namedEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&#39;":  "'",
	"&apos;": "'",
	"&nbsp;": " ",
}

// decodeEntity decodes the entity reference starting at content[start].
// Returns the decoded text and the bytes consumed, or ("", 0) when the
// input is not a recognizable entity.
func decodeEntity(content string, start int) (string, int) {
	end := start + 12
	if end > len(content) {
		end = len(content)
	}
	for j := start + 1; j < end; j++ {
		ch := content[j]
		if ch == ';' {
			entity := content[start : j+1]
			if decoded, ok := namedEntities[entity]; ok {
				return decoded, j - start + 1
			}
			if cp, ok := numericEntity(entity); ok {
				return cp, j - start + 1
			}
			return "", 0
		}
		if !isEntityChar(ch) {
			return "", 0
		}
	}
	return "", 0
}

func numericEntity(entity string) (string, bool) {
	if len(entity) < 4 || entity[1] != '#' {
		return "", false
	}
	inner := entity[2 : len(entity)-1]
	base := 10
	if inner[0] == 'x' || inner[0] == 'X' {
		base = 16
		inner = inner[1:]
	}
	var cp int64
	for _, c := range inner {
		var d int64
		switch {
		case c >= '0' && c <= '9':
			d = int64(c - '0')
		case base == 16 && c >= 'a' && c <= 'f':
			d = int64(c-'a') + 10
		case base == 16 && c >= 'A' && c <= 'F':
			d = int64(c-'A') + 10
		default:
			return "", false
		}
		cp = cp*int64(base) + d
	}
	if cp <= 0 || cp > 0x10FFFF {
		return "", false
	}
	return string(rune(cp)), true
}

func isEntityChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '#'
}
