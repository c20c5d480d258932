package subtitle

import (
	"html"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/catdesk/backend/internal/segment"
)

// Cue is a single timed text entry.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Text  string  `json:"text"`
}

// readingRate is the characters per second used to estimate a duration.
const readingRate = 15

// minDuration is the shortest estimated duration, in seconds.
const minDuration = 2

func estimateEnd(start float64, text string) float64 {
	return start + math.Max(minDuration, float64(utf8.RuneCountInString(text))/readingRate)
}

// CuesToSegments seeds one draft segment per cue, numbered from 1. Cues whose
// end is not after their start get an estimated end.
func CuesToSegments(cues []Cue) []segment.Segment {
	segs := make([]segment.Segment, 0, len(cues))
	for i, c := range cues {
		text := strings.Join(strings.Fields(c.Text), " ")
		start, end := c.Start, c.End
		if end <= start {
			end = estimateEnd(start, text)
		}
		segs = append(segs, segment.Segment{
			ID:        int64(i + 1),
			Source:    html.EscapeString(text),
			Status:    segment.StatusDraft,
			StartTime: &start,
			EndTime:   &end,
		})
	}
	return segs
}
