package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	lineBreakTag      = regexp.MustCompile(`(?i)<br\s*/?>`)
	paragraphCloseTag = regexp.MustCompile(`(?i)</p\s*>`)
	spaceRun          = regexp.MustCompile(` +`)
	spacedNewline     = regexp.MustCompile(` *\n *`)
	blankLines        = regexp.MustCompile(`\n{3,}`)
)

var blockElements = map[string]bool{
	"p":   true,
	"div": true,
	"h1":  true,
	"h2":  true,
	"h3":  true,
	"h4":  true,
	"h5":  true,
	"h6":  true,
	"li":  true,
}

// invisible drops control characters (TAB, LF and CR are kept for the
// whitespace pass) and zero-width/formatting code points that break rendering.
var invisible = runes.Remove(runes.Predicate(func(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return false
	case r <= 0x1f, r == 0x7f:
		return true
	case r >= 0x200b && r <= 0x200f:
		return true
	case r == 0x2028, r == 0x2029, r == 0xfeff, r == 0x00ad:
		return true
	}
	return false
}))

// Flatten converts an HTML fragment into a single line of plain text.
func Flatten(raw string) string {
	doc := parse(html.UnescapeString(raw))
	if doc == nil {
		return ""
	}

	var b strings.Builder
	walk(doc, &b, false)

	return strings.Join(strings.Fields(strip(b.String())), " ")
}

// WithLineBreaks converts an HTML fragment into plain text, keeping one line
// per block element and at most one blank line between blocks.
func WithLineBreaks(raw string) string {
	decoded := html.UnescapeString(raw)
	decoded = lineBreakTag.ReplaceAllString(decoded, "\n")
	decoded = paragraphCloseTag.ReplaceAllString(decoded, "\n")

	doc := parse(decoded)
	if doc == nil {
		return ""
	}

	var b strings.Builder
	walk(doc, &b, true)

	out := strings.Map(func(r rune) rune {
		if r != '\n' && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, strip(b.String()))

	out = spaceRun.ReplaceAllString(out, " ")
	out = spacedNewline.ReplaceAllString(out, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")

	return strings.TrimSpace(out)
}

func parse(s string) *html.Node {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil
	}
	return doc
}

// walk writes every text node followed by a space. With blocks set, a newline
// follows the content of each block element.
func walk(n *html.Node, b *strings.Builder, blocks bool) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b, blocks)
	}

	if blocks && n.Type == html.ElementNode && blockElements[strings.ToLower(n.Data)] {
		b.WriteByte('\n')
	}
}

func strip(s string) string {
	out, _, err := transform.String(invisible, s)
	if err != nil {
		return s
	}
	return out
}
