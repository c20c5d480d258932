package docx

import (
	"bytes"
	"encoding/xml"
	"sort"

	"github.com/catdesk/backend/internal/markup"
)

// Patch overwrites paragraph text in place. Each segment with a target
// claims the first unused paragraph whose normalized text equals its
// normalized source; the paragraph's first text run receives the target and
// later runs are emptied. Markup outside the touched runs stays verbatim.
// Segments with a target that claim no paragraph are reported missing.
type Patch struct{}

func (Patch) Name() string { return StrategyPatch }

type splice struct {
	start, end int
	text       string
}

func (Patch) Export(container []byte, in Input) (Output, error) {
	body, err := ReadBody(container)
	if err != nil {
		return Output{}, err
	}
	paras, err := scanParagraphs(body)
	if err != nil {
		return Output{}, err
	}

	queues := make(map[string][]int)
	for i, p := range paras {
		key := markup.Normalize(p.text)
		if key == "" {
			continue
		}
		queues[key] = append(queues[key], i)
	}

	var edits []splice
	var missing []int64
	for _, s := range in.Segments {
		if markup.IsBlank(s.Target) {
			continue
		}
		key := markup.Normalize(markup.Strip(s.Source))
		q := queues[key]
		if len(q) == 0 {
			missing = append(missing, s.ID)
			continue
		}
		queues[key] = q[1:]
		edits = append(edits, patchParagraph(paras[q[0]], markup.Normalize(markup.Strip(s.Target)))...)
	}
	if len(edits) > 0 {
		body = applySplices(body, edits)
	}
	data, err := Repack(container, map[string][]byte{BodyEntry: body}, nil)
	if err != nil {
		return Output{}, err
	}
	return Output{Data: data, Missing: missing}, nil
}

func patchParagraph(p paragraph, text string) []splice {
	var out []splice
	written := false
	for _, r := range p.runs {
		if r.closed {
			continue
		}
		if !written {
			out = append(out, splice{start: r.start, end: r.end, text: text})
			written = true
			continue
		}
		out = append(out, splice{start: r.start, end: r.end})
	}
	return out
}

func applySplices(body []byte, edits []splice) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var buf bytes.Buffer
	pos := 0
	for _, e := range edits {
		buf.Write(body[pos:e.start])
		_ = xml.EscapeText(&buf, []byte(e.text))
		pos = e.end
	}
	buf.Write(body[pos:])
	return buf.Bytes()
}
