package docx

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"strings"
	"sync"
)

const emuPerPixel = 9525

type picture struct {
	ext    string
	mime   string
	data   []byte
	width  int
	height int
}

// decodeDataURI reads an inline base64 image. ok is false for anything that
// is not a base64 data URI of a supported type.
func decodeDataURI(src string) (picture, bool) {
	if !strings.HasPrefix(src, "data:") {
		return picture{}, false
	}
	meta, payload, found := strings.Cut(src[len("data:"):], ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return picture{}, false
	}
	mime := strings.TrimSuffix(meta, ";base64")
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return picture{}, false
	}
	p := picture{mime: mime, data: data}
	switch mime {
	case "image/png":
		p.ext = "png"
	case "image/jpeg", "image/jpg":
		p.ext, p.mime = "jpeg", "image/jpeg"
	case "image/gif":
		p.ext = "gif"
	case "image/svg+xml":
		p.ext = "svg"
		p.width, p.height = svgSize(data)
		return p, true
	default:
		return picture{}, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return picture{}, false
	}
	p.width, p.height = cfg.Width, cfg.Height
	return p, true
}

// svgSize reads width/height from the root element, falling back to the
// viewBox and finally to 300x150.
func svgSize(data []byte) (int, int) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return 300, 150
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		w, h := px(attr(se, "width")), px(attr(se, "height"))
		if w > 0 && h > 0 {
			return w, h
		}
		if vb := strings.Fields(strings.ReplaceAll(attr(se, "viewBox"), ",", " ")); len(vb) == 4 {
			vw, _ := strconv.ParseFloat(vb[2], 64)
			vh, _ := strconv.ParseFloat(vb[3], 64)
			if vw > 0 && vh > 0 {
				return int(vw), int(vh)
			}
		}
		return 300, 150
	}
}

func px(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return int(f)
}

// scale fits w x h into maxWidth keeping the aspect ratio.
func scale(w, h, maxWidth int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxWidth, maxWidth / 2
	}
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		w = maxWidth
		if h < 1 {
			h = 1
		}
	}
	return w, h
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// placeholder is a transparent 1x1 PNG used as the raster fallback for SVG.
func placeholder() []byte {
	placeholderOnce.Do(func() {
		var buf bytes.Buffer
		_ = png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
		placeholderPNG = buf.Bytes()
	})
	return placeholderPNG
}
