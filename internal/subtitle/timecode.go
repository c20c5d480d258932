// Package subtitle converts between timed segments and subtitle or transcript
// text.
package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/catdesk/backend/internal/caterr"
)

var timeRe = regexp.MustCompile(`^(\d{2,}):([0-5]\d):([0-5]\d),(\d{3})$`)

// cueTimeRe is the looser form found in SRT and VTT files: optional hours
// and either separator.
var cueTimeRe = regexp.MustCompile(`^(?:(\d+):)?([0-5]?\d):([0-5]\d)[.,](\d{3})$`)

// FormatTime renders seconds as HH:MM:SS,mmm. Negative or non-finite input
// renders as zero.
func FormatTime(sec float64) string {
	return formatTime(sec, ',')
}

func formatTime(sec float64, sep byte) string {
	if sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		sec = 0
	}
	total := int64(math.Round(sec * 1000))
	h := total / 3600000
	total %= 3600000
	m := total / 60000
	total %= 60000
	s := total / 1000
	ms := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms)
}

// ParseTime is the inverse of FormatTime. Malformed input yields NaN and an
// InvalidTimeFormat error naming the raw value.
func ParseTime(s string) (float64, error) {
	m := timeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return math.NaN(), caterr.Field(caterr.ErrInvalidTimeFormat, "subtitle.ParseTime", "time", s)
	}
	return seconds(m[1], m[2], m[3], m[4]), nil
}

// ParseTimeOr parses s and falls back to prev when s is malformed.
func ParseTimeOr(s string, prev float64) float64 {
	v, err := ParseTime(s)
	if err != nil {
		return prev
	}
	return v
}

func parseCueTime(s string) (float64, bool) {
	m := cueTimeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	return seconds(m[1], m[2], m[3], m[4]), true
}

func seconds(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	mil, _ := strconv.Atoi(ms)
	return float64(hh*3600+mm*60+ss) + float64(mil)/1000
}
