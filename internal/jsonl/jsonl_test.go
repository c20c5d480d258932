package jsonl

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/catdesk/backend/internal/caterr"
)

type pair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	in := "{\"source\":\"a\",\"target\":\"b\"}\n\n  \n{\"target\":\"d\",\"source\":\"c\"}"
	got, err := Decode[pair](strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[1].Source != "c" || got[1].Target != "d" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode[pair](strings.NewReader(""))
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v %v", got, err)
	}
}

func TestDecodeReportsLine(t *testing.T) {
	_, err := Decode[pair](strings.NewReader("{\"source\":\"a\"}\n{broken"))
	var ce *caterr.Error
	if !errors.As(err, &ce) || ce.Field != "line 2" {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestEncodeNoTrailingNewline(t *testing.T) {
	var buf bytes.Buffer
	items := []pair{{"a", "b"}, {"c", "d"}}
	if err := Encode(&buf, items); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.HasSuffix(buf.String(), "\n") || strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("unexpected layout %q", buf.String())
	}
	back, err := Decode[pair](&buf)
	if err != nil || len(back) != 2 || back[1] != items[1] {
		t.Fatalf("round trip: %v %+v", err, back)
	}
}
