package docx

import (
	"fmt"
	"html"
	"strings"

	"github.com/catdesk/backend/internal/anchor"
	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
)

// Extract reads the container's paragraphs and returns an anchored HTML
// document with one element per non-empty paragraph, plus the matching draft
// segments numbered from 1. Heading styles become h1..h6.
func Extract(container []byte) (string, []segment.Segment, error) {
	body, err := ReadBody(container)
	if err != nil {
		return "", nil, err
	}
	paras, err := scanParagraphs(body)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	var segs []segment.Segment
	b.WriteString("<html><body>")
	for _, p := range paras {
		text := markup.Normalize(p.text)
		if text == "" {
			continue
		}
		id := int64(len(segs) + 1)
		src := html.EscapeString(text)
		tag := tagFor(p.style)
		fmt.Fprintf(&b, `<%s %s="%d">%s</%s>`, tag, anchor.Attr, id, src, tag)
		segs = append(segs, segment.Segment{ID: id, Source: src, Status: segment.StatusDraft})
	}
	b.WriteString("</body></html>")
	return b.String(), segs, nil
}

func tagFor(style string) string {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if strings.HasPrefix(s, "heading") && len(s) == len("heading")+1 {
		if n := s[len(s)-1]; n >= '1' && n <= '6' {
			return "h" + string(n)
		}
	}
	if s == "title" {
		return "h1"
	}
	return "p"
}
