package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/catdesk/backend/internal/caterr"
)

// textRun is the byte range of one w:t element's content inside the body.
type textRun struct {
	start, end int
	closed     bool // <w:t/> has no content range to write into
}

type paragraph struct {
	style string
	text  string
	runs  []textRun
}

// scanParagraphs lists the body's paragraphs in document order. Text runs
// belong to the innermost open paragraph.
func scanParagraphs(body []byte) ([]paragraph, error) {
	d := xml.NewDecoder(bytes.NewReader(body))
	var (
		paras []paragraph
		texts []string
		stack []int
		inT   bool
		run   textRun
	)
	for {
		prev := int(d.InputOffset())
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, caterr.New(caterr.ErrInvalidFileType, "docx.scan", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != "w" {
				continue
			}
			switch t.Name.Local {
			case "p":
				stack = append(stack, len(paras))
				paras = append(paras, paragraph{})
				texts = append(texts, "")
			case "pStyle":
				if len(stack) > 0 {
					paras[stack[len(stack)-1]].style = attr(t, "val")
				}
			case "t":
				if len(stack) == 0 {
					continue
				}
				end := int(d.InputOffset())
				run = textRun{start: end, closed: bytes.HasSuffix(body[prev:end], []byte("/>"))}
				inT = true
			}
		case xml.EndElement:
			if t.Name.Space != "w" {
				continue
			}
			switch t.Name.Local {
			case "p":
				if len(stack) == 0 {
					continue
				}
				i := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				paras[i].text = texts[i]
			case "t":
				if !inT {
					continue
				}
				inT = false
				run.end = prev
				if run.closed {
					run.end = run.start
				}
				i := stack[len(stack)-1]
				paras[i].runs = append(paras[i].runs, run)
			}
		case xml.CharData:
			if inT && len(stack) > 0 {
				texts[stack[len(stack)-1]] += string(t)
			}
		}
	}
	return paras, nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
