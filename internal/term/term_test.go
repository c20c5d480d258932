package term

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFile(t *testing.T) {
	in := `{"source":"invoice","target":"számla","definition":"billing document"}
{"source":"  ","target":"x"}
{"id":"fixed","source":"tax","target":"adó"}`
	terms, err := ParseFile(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %+v", terms)
	}
	if terms[0].ID == "" || terms[1].ID != "fixed" {
		t.Fatalf("ids not assigned as expected: %+v", terms)
	}

	var buf bytes.Buffer
	if err := WriteFile(&buf, terms); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ParseFile(&buf)
	if err != nil || len(back) != 2 || back[0] != terms[0] {
		t.Fatalf("round trip: %v %+v", err, back)
	}
}

func TestOccurs(t *testing.T) {
	if !Occurs("The Invoice is due", "invoice") {
		t.Fatalf("case-insensitive match expected")
	}
	if Occurs("receipt", "invoice") {
		t.Fatalf("unexpected match")
	}
}
