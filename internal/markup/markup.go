// Package markup inspects the rich-text fragments stored in segment sources and
// targets: text extraction, inline tag counting and the count primitives used by
// statistics and QA.
package markup

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockAtoms are structural wrappers; they are not counted as inline tags.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Thead: true, atom.Tbody: true, atom.Tfoot: true,
	atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Html: true, atom.Head: true, atom.Body: true,
}

// Strip returns the text content of a fragment with tags removed and entities
// decoded. No separators are inserted between elements.
func Strip(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// IsBlank reports whether a fragment has no visible, non-whitespace text.
func IsBlank(fragment string) bool {
	return strings.TrimSpace(Strip(fragment)) == ""
}

// CountTags counts inline markup spans in the raw fragment: every opening or
// self-closing tag that is not a block-level wrapper.
func CountTags(fragment string) int {
	if !strings.Contains(fragment, "<") {
		return 0
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	n := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return n
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if !blockAtoms[atom.Lookup(name)] {
				n++
			}
		}
	}
}

// Words is the whitespace-split token count of already-stripped text.
func Words(text string) int {
	return len(strings.Fields(text))
}

// Chars is the length of already-stripped text in characters.
func Chars(text string) int {
	return utf8.RuneCountInString(text)
}

// Normalize trims and collapses every whitespace run to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Paragraph wraps plain text as a single escaped paragraph fragment.
func Paragraph(text string) string {
	return "<p>" + html.EscapeString(text) + "</p>"
}
