// Package anchor holds the parsed original document. Nodes live in an arena and
// reference each other by index, so a whole tree is cloned by copying slices
// and reconstruction never has to touch the caller's copy.
package anchor

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr is the attribute linking a node to a segment id.
const Attr = "data-segment-id"

// NeedsTranslationClass marks source nodes whose segment has no target yet.
const NeedsTranslationClass = "needs-translation"

// None is the index used for "no node".
const None = -1

// Node is one arena entry.
type Node struct {
	Type     html.NodeType
	Data     string
	Attr     []html.Attribute
	Parent   int
	Children []int
}

// Tree is an arena-backed document tree. Nodes detached by Replace stay in
// the arena but are no longer reachable from the root.
type Tree struct {
	nodes []Node
	root  int
}

// Parse parses a complete HTML document.
func Parse(src string) (*Tree, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	t := &Tree{}
	t.root = t.adopt(doc, None)
	return t, nil
}

// ParseFragment parses an HTML fragment in body context. The fragment's
// top-level nodes become the children of a document root.
func ParseFragment(src string) (*Tree, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	t := NewFragment()
	for _, n := range nodes {
		t.nodes[t.root].Children = append(t.nodes[t.root].Children, t.adopt(n, t.root))
	}
	return t, nil
}

// NewFragment returns an empty tree holding only a document root.
func NewFragment() *Tree {
	t := &Tree{}
	t.nodes = append(t.nodes, Node{Type: html.DocumentNode, Parent: None})
	t.root = 0
	return t
}

func (t *Tree) adopt(n *html.Node, parent int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Type:   n.Type,
		Data:   n.Data,
		Attr:   append([]html.Attribute(nil), n.Attr...),
		Parent: parent,
	})
	var kids []int
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		kids = append(kids, t.adopt(c, idx))
	}
	t.nodes[idx].Children = kids
	return idx
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{root: t.root, nodes: make([]Node, len(t.nodes))}
	for i, n := range t.nodes {
		n.Attr = append([]html.Attribute(nil), n.Attr...)
		n.Children = append([]int(nil), n.Children...)
		out.nodes[i] = n
	}
	return out
}

// Root returns the index of the document root.
func (t *Tree) Root() int { return t.root }

// Node returns the node at i.
func (t *Tree) Node(i int) Node { return t.nodes[i] }

// Children returns the child indexes of i.
func (t *Tree) Children(i int) []int { return t.nodes[i].Children }

// Walk visits reachable nodes in document order until fn returns false.
func (t *Tree) Walk(fn func(i int) bool) {
	stack := []int{t.root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(i) {
			return
		}
		kids := t.nodes[i].Children
		for k := len(kids) - 1; k >= 0; k-- {
			stack = append(stack, kids[k])
		}
	}
}

// Index maps anchor ids to the first reachable node carrying them.
func (t *Tree) Index() map[string]int {
	idx := make(map[string]int)
	t.Walk(func(i int) bool {
		if v, ok := t.AttrValue(i, Attr); ok {
			if _, seen := idx[v]; !seen {
				idx[v] = i
			}
		}
		return true
	})
	return idx
}

// Find returns the node anchored to id.
func (t *Tree) Find(id string) (int, bool) {
	found := None
	t.Walk(func(i int) bool {
		if v, ok := t.AttrValue(i, Attr); ok && v == id {
			found = i
			return false
		}
		return true
	})
	return found, found != None
}

// AttrValue returns the value of attribute key on node i.
func (t *Tree) AttrValue(i int, key string) (string, bool) {
	if t.nodes[i].Type != html.ElementNode {
		return "", false
	}
	for _, a := range t.nodes[i].Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces attribute key on node i.
func (t *Tree) SetAttr(i int, key, val string) {
	n := &t.nodes[i]
	for k := range n.Attr {
		if n.Attr[k].Namespace == "" && n.Attr[k].Key == key {
			n.Attr[k].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key from node i.
func (t *Tree) RemoveAttr(i int, key string) {
	n := &t.nodes[i]
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// StripAttr removes key from every reachable node.
func (t *Tree) StripAttr(key string) {
	t.Walk(func(i int) bool {
		if t.nodes[i].Type == html.ElementNode {
			t.RemoveAttr(i, key)
		}
		return true
	})
}

// AddClass appends class to node i unless already present.
func (t *Tree) AddClass(i int, class string) {
	cur, _ := t.AttrValue(i, "class")
	for _, c := range strings.Fields(cur) {
		if c == class {
			return
		}
	}
	t.SetAttr(i, "class", strings.TrimSpace(cur+" "+class))
}

// AppendElement adds a new element as the last child of parent.
func (t *Tree) AppendElement(parent int, tag string, attrs ...html.Attribute) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Type:   html.ElementNode,
		Data:   tag,
		Attr:   append([]html.Attribute(nil), attrs...),
		Parent: parent,
	})
	t.nodes[parent].Children = append(t.nodes[parent].Children, idx)
	return idx
}

// Graft copies the subtree rooted at srcIdx of src into t, detached, and
// returns its new index.
func (t *Tree) Graft(src *Tree, srcIdx int) int {
	n := src.nodes[srcIdx]
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Type:   n.Type,
		Data:   n.Data,
		Attr:   append([]html.Attribute(nil), n.Attr...),
		Parent: None,
	})
	kids := make([]int, 0, len(n.Children))
	for _, c := range n.Children {
		k := t.Graft(src, c)
		t.nodes[k].Parent = idx
		kids = append(kids, k)
	}
	t.nodes[idx].Children = kids
	return idx
}

// Replace puts node with in the position of node i. i becomes detached.
func (t *Tree) Replace(i, with int) {
	p := t.nodes[i].Parent
	t.nodes[with].Parent = p
	t.nodes[i].Parent = None
	if p == None {
		if t.root == i {
			t.root = with
		}
		return
	}
	kids := t.nodes[p].Children
	for k, c := range kids {
		if c == i {
			kids[k] = with
			return
		}
	}
}

// SetChildren replaces the children of node i.
func (t *Tree) SetChildren(i int, kids []int) {
	for _, c := range t.nodes[i].Children {
		t.nodes[c].Parent = None
	}
	t.nodes[i].Children = append([]int(nil), kids...)
	for _, c := range kids {
		t.nodes[c].Parent = i
	}
}

// Body returns the body element, or the root when the tree has none.
func (t *Tree) Body() int {
	body := t.root
	t.Walk(func(i int) bool {
		if t.nodes[i].Type == html.ElementNode && t.nodes[i].Data == "body" {
			body = i
			return false
		}
		return true
	})
	return body
}

// IsElement reports whether node i is an element.
func (t *Tree) IsElement(i int) bool { return t.nodes[i].Type == html.ElementNode }

// IsBlankText reports whether node i is a whitespace-only text node.
func (t *Tree) IsBlankText(i int) bool {
	n := t.nodes[i]
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// Render serializes the whole tree.
func (t *Tree) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, t.toHTML(t.root)); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}

// RenderBody serializes the children of the body element.
func (t *Tree) RenderBody() (string, error) {
	var buf bytes.Buffer
	for _, c := range t.nodes[t.Body()].Children {
		if err := html.Render(&buf, t.toHTML(c)); err != nil {
			return "", fmt.Errorf("render: %w", err)
		}
	}
	return buf.String(), nil
}

// HTMLNode converts the subtree at i into an x/net/html node.
func (t *Tree) HTMLNode(i int) *html.Node { return t.toHTML(i) }

func (t *Tree) toHTML(i int) *html.Node {
	n := t.nodes[i]
	out := &html.Node{
		Type: n.Type,
		Data: n.Data,
		Attr: append([]html.Attribute(nil), n.Attr...),
	}
	if n.Type == html.ElementNode {
		out.DataAtom = atom.Lookup([]byte(n.Data))
	}
	for _, c := range n.Children {
		out.AppendChild(t.toHTML(c))
	}
	return out
}
