package subtitle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/catdesk/backend/internal/markup"
	"github.com/catdesk/backend/internal/segment"
)

var timestampRe = regexp.MustCompile(`^(\S+)\s*-->\s*(\S+)`)

// parseCues reads SRT or WebVTT blocks. Blocks without a valid timing line
// are skipped, as are the WEBVTT header and NOTE/STYLE blocks.
func parseCues(content string) []Cue {
	content = strings.TrimPrefix(content, "\ufeff")
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var cues []Cue
	var current *Cue
	skipping := false

	flush := func() {
		if current != nil && current.Text != "" {
			current.Index = len(cues) + 1
			cues = append(cues, *current)
		}
		current = nil
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			skipping = false
			continue
		}
		if skipping {
			continue
		}
		if current == nil && (strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") || line == "STYLE" || line == "REGION") {
			skipping = true
			continue
		}

		if m := timestampRe.FindStringSubmatch(line); m != nil {
			start, ok1 := parseCueTime(m[1])
			end, ok2 := parseCueTime(m[2])
			if !ok1 || !ok2 {
				current = nil
				skipping = true
				continue
			}
			flush()
			current = &Cue{Start: start, End: end}
			continue
		}

		// cue number or VTT cue identifier
		if current == nil {
			continue
		}

		if current.Text != "" {
			current.Text += "\n"
		}
		current.Text += line
	}
	flush()
	return cues
}

// ParseSRT reads SubRip content.
func ParseSRT(content string) []Cue { return parseCues(content) }

// effectiveText is the stripped target, or the stripped source when the
// target has no text.
func effectiveText(s segment.Segment) string {
	if t := strings.TrimSpace(markup.Strip(s.Target)); t != "" {
		return t
	}
	return strings.TrimSpace(markup.Strip(s.Source))
}

// ExportSRT renders timed segments as SubRip. Segments lacking either
// timestamp or any text are skipped without consuming an index.
func ExportSRT(segs []segment.Segment) string {
	return export(segs, ',', "")
}

func export(segs []segment.Segment, sep byte, header string) string {
	var sb strings.Builder
	sb.WriteString(header)
	n := 0
	for _, s := range segs {
		if !s.Timed() {
			continue
		}
		text := effectiveText(s)
		if text == "" {
			continue
		}
		n++
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", n, formatTime(*s.StartTime, sep), formatTime(*s.EndTime, sep), text)
	}
	return sb.String()
}
