// Package docx reads and writes Word containers. Only the main body entry is
// ever interpreted; every other part is copied through with its compressed
// bytes untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/catdesk/backend/internal/caterr"
)

const (
	BodyEntry         = "word/document.xml"
	RelsEntry         = "word/_rels/document.xml.rels"
	ContentTypesEntry = "[Content_Types].xml"
)

// Part is a named zip entry.
type Part struct {
	Name string
	Data []byte
}

func open(container []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(container), int64(len(container)))
	if err != nil {
		return nil, caterr.New(caterr.ErrInvalidFileType, "docx.open", err)
	}
	return zr, nil
}

func find(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

// ReadEntry returns the uncompressed content of one entry.
func ReadEntry(container []byte, name string) ([]byte, error) {
	zr, err := open(container)
	if err != nil {
		return nil, err
	}
	f := find(zr, name)
	if f == nil {
		return nil, caterr.Field(caterr.ErrZipEntryMissing, "docx.ReadEntry", "entry", name)
	}
	return readFile(f)
}

// ReadBody returns the main document body.
func ReadBody(container []byte) ([]byte, error) {
	return ReadEntry(container, BodyEntry)
}

// Repack writes a new container in which the entries named in replace get
// new content and extra parts are appended. Entries in replace must already
// exist. Everything else is copied raw.
func Repack(container []byte, replace map[string][]byte, extra []Part) ([]byte, error) {
	zr, err := open(container)
	if err != nil {
		return nil, err
	}
	for name := range replace {
		if find(zr, name) == nil {
			return nil, caterr.Field(caterr.ErrZipEntryMissing, "docx.Repack", "entry", name)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		if data, ok := replace[f.Name]; ok {
			w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
			if err != nil {
				return nil, fmt.Errorf("create %s: %w", f.Name, err)
			}
			if _, err := w.Write(data); err != nil {
				return nil, fmt.Errorf("write %s: %w", f.Name, err)
			}
			continue
		}
		if err := copyRaw(zw, f); err != nil {
			return nil, err
		}
	}
	for _, p := range extra {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.Name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.Name, err)
		}
		if _, err := w.Write(p.Data); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close container: %w", err)
	}
	return buf.Bytes(), nil
}

func copyRaw(zw *zip.Writer, f *zip.File) error {
	hdr := f.FileHeader
	w, err := zw.CreateRaw(&hdr)
	if err != nil {
		return fmt.Errorf("create raw %s: %w", f.Name, err)
	}
	r, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("open raw %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}
