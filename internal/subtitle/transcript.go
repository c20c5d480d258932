package subtitle

import (
	"regexp"
	"strconv"
	"strings"
)

var chunkRe = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)

// ParseTranscript reads a transcript in which a line holding only mm:ss
// starts a chunk and the following lines are its text. A chunk ends where the
// next one starts; the last is given an estimated duration. Lines before the
// first timestamp and chunks without text are dropped.
func ParseTranscript(text string) []Cue {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var chunks []Cue
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if m := chunkRe.FindStringSubmatch(line); m != nil {
			mm, _ := strconv.Atoi(m[1])
			ss, _ := strconv.Atoi(m[2])
			chunks = append(chunks, Cue{Start: float64(mm*60 + ss)})
			continue
		}
		if line == "" || len(chunks) == 0 {
			continue
		}
		c := &chunks[len(chunks)-1]
		if c.Text != "" {
			c.Text += " "
		}
		c.Text += line
	}

	for i := range chunks {
		if i+1 < len(chunks) {
			chunks[i].End = chunks[i+1].Start
		}
		if i+1 == len(chunks) || chunks[i].End <= chunks[i].Start {
			chunks[i].End = estimateEnd(chunks[i].Start, chunks[i].Text)
		}
	}

	cues := chunks[:0]
	for _, c := range chunks {
		if c.Text == "" {
			continue
		}
		c.Index = len(cues) + 1
		cues = append(cues, c)
	}
	return cues
}
