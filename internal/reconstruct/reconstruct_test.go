package reconstruct

import (
	"strings"
	"testing"

	"github.com/catdesk/backend/internal/anchor"
	"github.com/catdesk/backend/internal/segment"
)

const source = `<html><body>` +
	`<h1 data-segment-id="1">Title</h1>` +
	`<p data-segment-id="2">First <b>para</b></p>` +
	`<p data-segment-id="3">Second</p>` +
	`</body></html>`

func mustTree(t *testing.T) *anchor.Tree {
	t.Helper()
	tree, err := anchor.Parse(source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tree
}

func segs() []segment.Segment {
	return []segment.Segment{
		{ID: 1, Source: "Title", Target: "<h1>Cím</h1>"},
		{ID: 2, Source: "First <b>para</b>", Target: "<p>Első <b>bekezdés</b></p>"},
		{ID: 3, Source: "Second", Target: ""},
		{ID: 9, Source: "Orphan", Target: "Árva"},
	}
}

func TestReconstructPreview(t *testing.T) {
	tree := mustTree(t)
	out, missing, err := HTML(tree, segs(), ModePreview)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	want := `<h1>Cím</h1><p>Első <b>bekezdés</b></p><p data-segment-id="3" class="needs-translation">Second</p>`
	if out != want {
		t.Fatalf("preview mismatch\n got: %s\nwant: %s", out, want)
	}
	if len(missing) != 1 || missing[0] != 9 {
		t.Fatalf("expected segment 9 missing, got %v", missing)
	}
}

func TestReconstructExportStripsAnchors(t *testing.T) {
	out, _, err := HTML(mustTree(t), segs(), ModeExport)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if strings.Contains(out, anchor.Attr) {
		t.Fatalf("anchor attribute left in export: %s", out)
	}
	if !strings.Contains(out, `<p class="needs-translation">Second</p>`) {
		t.Fatalf("untranslated node not kept: %s", out)
	}
}

func TestReconstructIsIdempotentAndPure(t *testing.T) {
	tree := mustTree(t)
	before, _ := tree.Render()
	a, err := Reconstruct(tree, segs(), Options{})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := Reconstruct(tree, segs(), Options{})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	ra, _ := a.Tree.Render()
	rb, _ := b.Tree.Render()
	if ra != rb {
		t.Fatalf("not idempotent:\n%s\n%s", ra, rb)
	}
	after, _ := tree.Render()
	if before != after {
		t.Fatalf("input tree mutated")
	}
}

func TestPlainTextTargetKeepsElement(t *testing.T) {
	out, _, err := HTML(mustTree(t), []segment.Segment{{ID: 3, Source: "Second", Target: "Második"}}, ModeExport)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if !strings.Contains(out, "<p>Második</p>") {
		t.Fatalf("plain target should fill the anchor element: %s", out)
	}
}

func TestFallback(t *testing.T) {
	out, missing, err := HTML(nil, []segment.Segment{
		{ID: 1, Source: "One", Target: "Egy"},
		{ID: 2, Source: "<b>Two</b>", Target: " "},
	}, ModePreview)
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if missing != nil {
		t.Fatalf("fallback reports no missing anchors")
	}
	want := `<div class="segment">Egy</div><div class="segment"><b>Two</b></div>`
	if out != want {
		t.Fatalf("fallback mismatch\n got: %s\nwant: %s", out, want)
	}
}
