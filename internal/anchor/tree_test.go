package anchor

import (
	"strings"
	"testing"
)

const doc = `<html><body><h1 data-segment-id="1">Title</h1><p data-segment-id="2">Body <b>text</b></p><p>Loose</p></body></html>`

func TestParseIndexAndFind(t *testing.T) {
	tree, err := Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	idx := tree.Index()
	if len(idx) != 2 {
		t.Fatalf("expected 2 anchors, got %v", idx)
	}
	n, ok := tree.Find("2")
	if !ok || tree.Node(n).Data != "p" {
		t.Fatalf("find 2: %v %v", n, ok)
	}
	if _, ok := tree.Find("3"); ok {
		t.Fatalf("3 must not exist")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tree, _ := Parse(doc)
	before, _ := tree.RenderBody()
	c := tree.Clone()
	n, _ := c.Find("1")
	c.RemoveAttr(n, Attr)
	c.AddClass(n, "x")
	after, _ := tree.RenderBody()
	if before != after {
		t.Fatalf("clone mutation leaked:\n%s\n%s", before, after)
	}
	out, _ := c.RenderBody()
	if !strings.Contains(out, `<h1 class="x">Title</h1>`) {
		t.Fatalf("clone not mutated: %s", out)
	}
}

func TestGraftAndReplace(t *testing.T) {
	tree, _ := Parse(doc)
	frag, err := ParseFragment(`<h1>Cím</h1><p>ignored</p>`)
	if err != nil {
		t.Fatalf("fragment: %v", err)
	}
	top := frag.Children(frag.Root())
	if len(top) != 2 {
		t.Fatalf("expected 2 top-level nodes, got %d", len(top))
	}
	n, _ := tree.Find("1")
	tree.Replace(n, tree.Graft(frag, top[0]))
	out, _ := tree.RenderBody()
	if !strings.HasPrefix(out, "<h1>Cím</h1><p") {
		t.Fatalf("unexpected render: %s", out)
	}
	if _, ok := tree.Find("1"); ok {
		t.Fatalf("replaced anchor must be unreachable")
	}
}

func TestStripAttrAndAddClassIdempotent(t *testing.T) {
	tree, _ := Parse(doc)
	n, _ := tree.Find("2")
	tree.AddClass(n, NeedsTranslationClass)
	tree.AddClass(n, NeedsTranslationClass)
	if v, _ := tree.AttrValue(n, "class"); v != NeedsTranslationClass {
		t.Fatalf("class duplicated: %q", v)
	}
	tree.StripAttr(Attr)
	if len(tree.Index()) != 0 {
		t.Fatalf("anchors remain after strip")
	}
}

func TestAppendElement(t *testing.T) {
	tree := NewFragment()
	div := tree.AppendElement(tree.Root(), "div")
	frag, _ := ParseFragment("hello")
	tree.SetChildren(div, []int{tree.Graft(frag, frag.Children(frag.Root())[0])})
	out, _ := tree.RenderBody()
	if out != "<div>hello</div>" {
		t.Fatalf("unexpected render %q", out)
	}
}
