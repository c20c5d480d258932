package subtitle

import "github.com/catdesk/backend/internal/segment"

// ParseVTT parses WebVTT content into subtitle cues.
func ParseVTT(content string) []Cue { return parseCues(content) }

// ExportVTT renders timed segments as WebVTT using the SRT selection rules.
func ExportVTT(segs []segment.Segment) string {
	return export(segs, '.', "WEBVTT\n\n")
}
