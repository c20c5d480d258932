package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/catdesk/backend/internal/reconstruct"
)

// DefaultMaxImageWidth is the widest an embedded image is drawn, in pixels.
const DefaultMaxImageWidth = 600

const (
	relImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	svgExt   = "{96DAC541-7B7A-43D3-8B79-37D633B846F1}"
)

const documentOpen = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
	`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
	` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
	` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
	` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
	` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"` +
	` xmlns:asvg="http://schemas.microsoft.com/office/drawing/2016/SVG/main"><w:body>`

const documentClose = `</w:body></w:document>`

// Rebuild regenerates the document body from the reconstructed tree.
// Headings, list items, tables and inline formatting are mapped onto Word
// paragraphs and runs; the original section properties are kept.
type Rebuild struct {
	MaxImageWidth int
}

func NewRebuild(maxImageWidth int) *Rebuild {
	if maxImageWidth <= 0 {
		maxImageWidth = DefaultMaxImageWidth
	}
	return &Rebuild{MaxImageWidth: maxImageWidth}
}

func (r *Rebuild) Name() string { return StrategyRebuild }

func (r *Rebuild) Export(container []byte, in Input) (Output, error) {
	orig, err := ReadBody(container)
	if err != nil {
		return Output{}, err
	}
	res, err := reconstruct.Reconstruct(in.Tree, in.Segments, reconstruct.Options{Mode: reconstruct.ModeExport})
	if err != nil {
		return Output{}, err
	}

	b := &builder{maxWidth: r.MaxImageWidth}
	b.buf.WriteString(documentOpen)
	b.blocks(res.Tree.HTMLNode(res.Tree.Body()), "")
	b.buf.Write(sectPr(orig))
	b.buf.WriteString(documentClose)

	data, err := r.repack(container, b)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Missing: res.Missing}, nil
}

// repack writes the rebuilt body and any new image parts into the container.
func (r *Rebuild) repack(container []byte, b *builder) ([]byte, error) {
	replace := map[string][]byte{BodyEntry: b.buf.Bytes()}
	if len(b.media) == 0 {
		return Repack(container, replace, nil)
	}

	rels, err := ReadEntry(container, RelsEntry)
	if err != nil {
		return nil, err
	}
	types, err := ReadEntry(container, ContentTypesEntry)
	if err != nil {
		return nil, err
	}
	replace[RelsEntry] = b.addRelationships(rels)
	replace[ContentTypesEntry] = b.addContentTypes(types)
	parts := make([]Part, len(b.media))
	for i, m := range b.media {
		parts[i] = Part{Name: "word/" + m.target, Data: m.data}
	}
	return Repack(container, replace, parts)
}

// sectPr returns the last section properties element of the body, if any.
func sectPr(body []byte) []byte {
	start := bytes.LastIndex(body, []byte("<w:sectPr"))
	if start < 0 {
		return nil
	}
	closing := []byte("</w:sectPr>")
	end := bytes.LastIndex(body, closing)
	if end < start {
		if gt := bytes.Index(body[start:], []byte("/>")); gt >= 0 {
			return body[start : start+gt+2]
		}
		return nil
	}
	return body[start : end+len(closing)]
}

type media struct {
	id     string
	target string
	mime   string
	ext    string
	data   []byte
}

type runStyle struct {
	bold, italic, underline bool
	vert                    string
}

type builder struct {
	buf      bytes.Buffer
	maxWidth int
	media    []media
	drawings int
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Main: true, atom.Blockquote: true,
	atom.Pre: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Ul: true, atom.Ol: true, atom.Li: true,
	atom.Table: true, atom.Body: true,
}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && blockAtoms[n.DataAtom]
}

// blocks emits the children of n. Runs of inline content between block
// children become their own paragraph.
func (b *builder) blocks(n *html.Node, style string) {
	var pending []*html.Node
	flush := func() {
		if hasContent(pending) {
			b.paragraph(style, "", pending)
		}
		pending = nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !isBlock(c) {
			pending = append(pending, c)
			continue
		}
		flush()
		b.block(c)
	}
	flush()
}

func (b *builder) block(n *html.Node) {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		b.paragraph("Heading"+n.Data[1:], "", children(n))
	case atom.P:
		b.paragraph("", "", children(n))
	case atom.Ul, atom.Ol:
		b.list(n)
	case atom.Li:
		b.paragraph("ListParagraph", "• ", inlineChildren(n))
		b.nested(n)
	case atom.Table:
		b.table(n)
	default:
		if hasBlockChild(n) {
			b.blocks(n, "")
			return
		}
		b.paragraph("", "", children(n))
	}
}

func (b *builder) list(n *html.Node) {
	ordered := n.DataAtom == atom.Ol
	num := 1
	if v := nodeAttr(n, "start"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			num = s
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom != atom.Li {
			b.block(c)
			continue
		}
		prefix := "• "
		if ordered {
			prefix = strconv.Itoa(num) + ". "
			num++
		}
		b.paragraph("ListParagraph", prefix, inlineChildren(c))
		b.nested(c)
	}
}

// nested emits block children of a list item after the item itself.
func (b *builder) nested(li *html.Node) {
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			b.block(c)
		}
	}
}

func (b *builder) table(n *html.Node) {
	b.buf.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/></w:tblPr>`)
	var rows func(*html.Node)
	rows = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			switch c.DataAtom {
			case atom.Thead, atom.Tbody, atom.Tfoot:
				rows(c)
			case atom.Tr:
				b.row(c)
			}
		}
	}
	rows(n)
	b.buf.WriteString(`</w:tbl>`)
}

func (b *builder) row(tr *html.Node) {
	b.buf.WriteString(`<w:tr>`)
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom != atom.Td && c.DataAtom != atom.Th {
			continue
		}
		b.buf.WriteString(`<w:tc><w:tcPr><w:tcW w:w="0" w:type="auto"/></w:tcPr>`)
		mark := b.buf.Len()
		b.blocks(c, "")
		if b.buf.Len() == mark {
			// a cell must hold at least one paragraph
			b.buf.WriteString(`<w:p/>`)
		}
		b.buf.WriteString(`</w:tc>`)
	}
	b.buf.WriteString(`</w:tr>`)
}

func (b *builder) paragraph(style, prefix string, nodes []*html.Node) {
	b.buf.WriteString(`<w:p>`)
	if style != "" {
		fmt.Fprintf(&b.buf, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	if prefix != "" {
		b.text(prefix, runStyle{})
	}
	for _, n := range nodes {
		b.inline(n, runStyle{})
	}
	b.buf.WriteString(`</w:p>`)
}

func (b *builder) inline(n *html.Node, st runStyle) {
	switch n.Type {
	case html.TextNode:
		b.text(collapse(n.Data), st)
		return
	case html.ElementNode:
	default:
		return
	}
	switch n.DataAtom {
	case atom.Strong, atom.B:
		st.bold = true
	case atom.Em, atom.I:
		st.italic = true
	case atom.U:
		st.underline = true
	case atom.Sup:
		st.vert = "superscript"
	case atom.Sub:
		st.vert = "subscript"
	case atom.Br:
		b.buf.WriteString(`<w:r><w:br/></w:r>`)
		return
	case atom.Img:
		b.image(n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.inline(c, st)
	}
}

func (b *builder) text(s string, st runStyle) {
	if s == "" {
		return
	}
	b.buf.WriteString(`<w:r>`)
	if st != (runStyle{}) {
		b.buf.WriteString(`<w:rPr>`)
		if st.bold {
			b.buf.WriteString(`<w:b/>`)
		}
		if st.italic {
			b.buf.WriteString(`<w:i/>`)
		}
		if st.underline {
			b.buf.WriteString(`<w:u w:val="single"/>`)
		}
		if st.vert != "" {
			fmt.Fprintf(&b.buf, `<w:vertAlign w:val="%s"/>`, st.vert)
		}
		b.buf.WriteString(`</w:rPr>`)
	}
	b.buf.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(&b.buf, []byte(s))
	b.buf.WriteString(`</w:t></w:r>`)
}

func (b *builder) addMedia(ext, mime string, data []byte) media {
	n := len(b.media) + 1
	m := media{
		id:     fmt.Sprintf("rIdCatImg%d", n),
		target: fmt.Sprintf("media/catdesk_image%d.%s", n, ext),
		mime:   mime,
		ext:    ext,
		data:   data,
	}
	b.media = append(b.media, m)
	return m
}

func (b *builder) image(n *html.Node) {
	pic, ok := decodeDataURI(nodeAttr(n, "src"))
	if !ok {
		return
	}
	w, h := scale(pic.width, pic.height, b.maxWidth)
	cx, cy := w*emuPerPixel, h*emuPerPixel

	var blip string
	if pic.ext == "svg" {
		fallback := b.addMedia("png", "image/png", placeholder())
		vector := b.addMedia("svg", pic.mime, pic.data)
		blip = fmt.Sprintf(`<a:blip r:embed="%s"><a:extLst><a:ext uri="%s"><asvg:svgBlip r:embed="%s"/></a:ext></a:extLst></a:blip>`,
			fallback.id, svgExt, vector.id)
	} else {
		m := b.addMedia(pic.ext, pic.mime, pic.data)
		blip = fmt.Sprintf(`<a:blip r:embed="%s"/>`, m.id)
	}

	b.drawings++
	id := b.drawings
	fmt.Fprintf(&b.buf, `<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="Picture %d"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill>%s<a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>`+
		`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic>`+
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		cx, cy, id, id, id, id, blip, cx, cy)
}

func (b *builder) addRelationships(rels []byte) []byte {
	var add bytes.Buffer
	for _, m := range b.media {
		fmt.Fprintf(&add, `<Relationship Id="%s" Type="%s" Target="%s"/>`, m.id, relImage, m.target)
	}
	return insertBefore(rels, "</Relationships>", add.Bytes())
}

func (b *builder) addContentTypes(types []byte) []byte {
	var add bytes.Buffer
	seen := make(map[string]bool)
	lower := strings.ToLower(string(types))
	for _, m := range b.media {
		if seen[m.ext] || strings.Contains(lower, `extension="`+m.ext+`"`) {
			continue
		}
		seen[m.ext] = true
		fmt.Fprintf(&add, `<Default Extension="%s" ContentType="%s"/>`, m.ext, m.mime)
	}
	return insertBefore(types, "</Types>", add.Bytes())
}

func insertBefore(doc []byte, closing string, add []byte) []byte {
	i := bytes.LastIndex(doc, []byte(closing))
	if i < 0 || len(add) == 0 {
		return doc
	}
	out := make([]byte, 0, len(doc)+len(add))
	out = append(out, doc[:i]...)
	out = append(out, add...)
	return append(out, doc[i:]...)
}

func children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

func inlineChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !isBlock(c) {
			out = append(out, c)
		}
	}
	return out
}

func hasBlockChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) {
			return true
		}
	}
	return false
}

func hasContent(nodes []*html.Node) bool {
	for _, n := range nodes {
		switch {
		case n.Type == html.TextNode && strings.TrimSpace(n.Data) != "":
			return true
		case n.Type == html.ElementNode:
			return true
		}
	}
	return false
}

func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collapse folds HTML whitespace the way a browser renders it.
func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

var (
	_ Strategy = (*Rebuild)(nil)
	_ Strategy = Patch{}
)
