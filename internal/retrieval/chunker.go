package retrieval

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// candidateSelector lists the elements worth showing to the model. Only the
// outermost match is kept, so a form is one node with its inputs inside.
const candidateSelector = "form, nav, a, button, input, select, textarea, label, " +
	"h1, h2, h3, h4, h5, h6, p, li, td, th, [role], [onclick], [contenteditable]"

var whitespace = regexp.MustCompile(`\s+`)

// Chunk is a piece of page markup indexed for retrieval.
type Chunk struct {
	ID      string
	Content string
	Tags    []string
}

// ChunkHTML splits page markup into chunks of at most size bytes.
func ChunkHTML(html string, size int) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	// Remove noise elements
	doc.Find("script, style, noscript, svg, link, meta, template").Remove()

	b := &chunkBuilder{size: size}
	doc.Find(candidateSelector).Each(func(_ int, sel *goquery.Selection) {
		if sel.ParentsFiltered(candidateSelector).Length() > 0 {
			return
		}
		markup, err := goquery.OuterHtml(sel)
		if err != nil {
			return
		}
		b.add(collapse(markup), goquery.NodeName(sel))
	})

	if len(b.chunks) == 0 && b.cur.Len() == 0 {
		// nothing interactive: fall back to visible text
		text := collapse(doc.Find("body").Text())
		if text == "" {
			return nil, nil
		}
		b.add(text, "body")
	}
	b.flush()
	return b.chunks, nil
}

type chunkBuilder struct {
	size   int
	chunks []Chunk
	cur    strings.Builder
	tags   []string
}

func (b *chunkBuilder) add(markup, tag string) {
	if markup == "" {
		return
	}
	for len(markup) > b.size {
		n := runeBoundary(markup, b.size)
		b.flush()
		b.cur.WriteString(markup[:n])
		b.tags = append(b.tags, tag)
		b.flush()
		markup = markup[n:]
	}
	if b.cur.Len() > 0 && b.cur.Len()+len(markup)+1 > b.size {
		b.flush()
	}
	if b.cur.Len() > 0 {
		b.cur.WriteByte('\n')
	}
	b.cur.WriteString(markup)
	b.tags = appendUnique(b.tags, tag)
}

// runeBoundary returns the largest cut <= n that does not split a rune.
// A single rune wider than n is kept whole.
func runeBoundary(s string, n int) int {
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		return size
	}
	return cut
}

func (b *chunkBuilder) flush() {
	if b.cur.Len() == 0 {
		return
	}
	b.chunks = append(b.chunks, Chunk{
		ID:      fmt.Sprintf("node-%d", len(b.chunks)+1),
		Content: b.cur.String(),
		Tags:    b.tags,
	})
	b.cur.Reset()
	b.tags = nil
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
