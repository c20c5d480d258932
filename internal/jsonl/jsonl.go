// Package jsonl reads and writes one JSON object per line.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/catdesk/backend/internal/caterr"
)

const maxLine = 16 << 20

// Decode reads every non-blank line of r as a T. Blank input gives an empty,
// non-nil slice. A bad line fails the whole read with its line number.
func Decode[T any](r io.Reader) ([]T, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	out := make([]T, 0)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, &caterr.Error{
				Kind:  caterr.ErrInvalidInput,
				Op:    "jsonl.Decode",
				Field: fmt.Sprintf("line %d", n),
				Value: string(line),
				Err:   err,
			}
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return out, nil
}

// Encode writes items separated by newlines. No newline follows the last.
func Encode[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	for i, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode item %d: %w", i, err)
		}
		if i > 0 {
			bw.WriteByte('\n')
		}
		bw.Write(data)
	}
	return bw.Flush()
}
