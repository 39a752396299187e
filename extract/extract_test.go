package extract

import (
	"strings"
	"testing"
)

func TestContentTypeFromExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want ContentType
	}{
		{"md", TypeMarkdown},
		{".markdown", TypeMarkdown},
		{"HTML", TypeHTML},
		{".htm", TypeHTML},
		{"pdf", TypePDF},
		{"txt", TypePlainText},
		{"", TypePlainText},
		{"xyz", TypePlainText},
	}
	for _, tt := range tests {
		if got := ContentTypeFromExtension(tt.ext); got != tt.want {
			t.Errorf("ContentTypeFromExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestPlainTextExtract(t *testing.T) {
	got, err := PlainText{}.Extract([]byte("hello\nworld"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "hello\nworld" {
		t.Errorf("Extract = %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tags removed, blocks break lines",
			in:   "<p>First paragraph.</p><p>Second paragraph.</p>",
			want: "First paragraph.\n\nSecond paragraph.",
		},
		{
			name: "script and style bodies dropped",
			in:   "<p>keep</p><script>var x = 1;</script><style>.a{color:red}</style><p>this</p>",
			want: "keep\n\nthis",
		},
		{
			name: "entities decoded",
			in:   "a &amp; b &lt;c&gt; &#39;d&#x27;",
			want: "a & b <c> 'd'",
		},
		{
			name: "stray ampersand kept",
			in:   "fish & chips",
			want: "fish & chips",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHTMLExtractFallsBackOnFragment(t *testing.T) {
	// A bare fragment has no article for readability to find; the tag
	// stripper must still produce the text.
	got, err := HTML{}.Extract([]byte("<ul><li>one</li><li>two</li></ul>"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "one") || !strings.Contains(got, "two") {
		t.Errorf("Extract = %q, want list items present", got)
	}
}

func TestMarkdownExtract(t *testing.T) {
	src := "# Title\n\nSome **bold** text with a [link](https://example.com).\n\n- item one\n- item two\n\n```\ncode stays\n```\n"
	got, err := Markdown{}.Extract([]byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, want := range []string{"Title", "Some bold text", "link", "item one", "item two", "code stays"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"#", "**", "https://example.com", "```"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("output still contains %q:\n%s", unwanted, got)
		}
	}
}

func TestMarkdownExtractKeepsParagraphBreaks(t *testing.T) {
	src := "First paragraph.\n\nSecond paragraph."
	got, err := Markdown{}.Extract([]byte(src))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "First paragraph.\n\nSecond paragraph.") {
		t.Errorf("paragraph break lost: %q", got)
	}
}

func TestForSelectsExtractor(t *testing.T) {
	if _, ok := For(TypeMarkdown).(Markdown); !ok {
		t.Error("For(markdown) did not return the markdown extractor")
	}
	if _, ok := For(TypeHTML).(HTML); !ok {
		t.Error("For(html) did not return the html extractor")
	}
	if _, ok := For(TypePDF).(PlainText); !ok {
		t.Error("For(pdf) should return plain text; the pdf extractor is registered by its own package")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  a  \n\n\n\n  b  \nc\n\n"
	want := "a\n\nb\nc"
	if got := collapseWhitespace(in); got != want {
		t.Errorf("collapseWhitespace = %q, want %q", got, want)
	}
}
