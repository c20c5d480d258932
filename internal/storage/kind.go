package storage

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/catdesk/backend/internal/caterr"
)

// Kind is the detected format of an upload.
type Kind string

const (
	KindProject    Kind = "project"
	KindDOCX       Kind = "docx"
	KindSRT        Kind = "srt"
	KindVTT        Kind = "vtt"
	KindTranscript Kind = "transcript"
)

var extensions = map[string]Kind{
	".json":    KindProject,
	".catdesk": KindProject,
	".docx":    KindDOCX,
	".srt":     KindSRT,
	".vtt":     KindVTT,
	".txt":     KindTranscript,
}

var zipMagic = []byte("PK\x03\x04")

// DetectKind decides the format from the file name, checking the content
// where the extension alone could lie.
func DetectKind(name string, data []byte) (Kind, error) {
	kind, ok := extensions[strings.ToLower(filepath.Ext(name))]
	head := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\ufeff")), " \t\r\n")
	switch {
	case !ok:
		return "", caterr.Field(caterr.ErrInvalidFileType, "storage.DetectKind", "name", name)
	case kind == KindDOCX && !bytes.HasPrefix(data, zipMagic):
		return "", caterr.Field(caterr.ErrInvalidFileType, "storage.DetectKind", "content", name)
	case kind == KindProject && !bytes.HasPrefix(head, []byte("{")):
		return "", caterr.Field(caterr.ErrInvalidFileType, "storage.DetectKind", "content", name)
	case kind == KindTranscript && bytes.HasPrefix(head, []byte("WEBVTT")):
		return KindVTT, nil
	}
	return kind, nil
}
