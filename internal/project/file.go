// Package project reads and writes the portable project file.
package project

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/catdesk/backend/internal/anchor"
	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/segment"
)

// AppName identifies files written by this application.
const AppName = "catdesk"

// CurrentVersion is written into new files.
const CurrentVersion = "1"

// DefaultModel fills settings.model in files that predate it.
const DefaultModel = "default"

// Meta describes the project.
type Meta struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name"`
	SourceLanguage string    `json:"sourceLanguage,omitempty"`
	TargetLanguage string    `json:"targetLanguage,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}

// Data holds the segment list. Fields not listed here, such as the retired
// termBase, are dropped on load.
type Data struct {
	Segments []segment.Segment `json:"segments"`
}

// Settings are per-project options for the external intelligence provider.
type Settings struct {
	Prompts map[string]string `json:"prompts"`
	Model   string            `json:"model"`
}

// SourceFile is the original upload embedded as base64.
type SourceFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Bytes decodes the embedded content.
func (s SourceFile) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s.Content)
	if err != nil {
		return nil, caterr.New(caterr.ErrMalformedProjectFile, "project.SourceFile", err)
	}
	return b, nil
}

// File is the whole project file. Session and source-control state are kept
// opaque.
type File struct {
	Version             string            `json:"version"`
	AppName             string            `json:"appName"`
	Project             Meta              `json:"project"`
	Data                Data              `json:"data"`
	Session             json.RawMessage   `json:"session,omitempty"`
	Settings            Settings          `json:"settings"`
	SourceControl       json.RawMessage   `json:"sourceControl,omitempty"`
	SourceFile          *SourceFile       `json:"sourceFile,omitempty"`
	SourceDocumentHTML  string            `json:"sourceDocumentHtml,omitempty"`
	TranslationMemories []json.RawMessage `json:"translationMemories"`
	TermDatabases       []json.RawMessage `json:"termDatabases"`
}

// New creates a file for freshly imported content.
func New(meta Meta, segs []segment.Segment, sourceHTML string, source *SourceFile) *File {
	f := &File{
		Version:            CurrentVersion,
		AppName:            AppName,
		Project:            meta,
		Data:               Data{Segments: segs},
		SourceFile:         source,
		SourceDocumentHTML: sourceHTML,
	}
	f.fillDefaults()
	return f
}

// EmbedSource wraps raw bytes as a SourceFile.
func EmbedSource(name string, data []byte) *SourceFile {
	return &SourceFile{Name: name, Content: base64.StdEncoding.EncodeToString(data)}
}

const op = "project.Load"

// Load parses and validates a project file. Structural problems are reported
// as MalformedProjectFile with the offending field; a foreign appName as
// UnsupportedProjectVersion.
func Load(r io.Reader) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, caterr.New(caterr.ErrMalformedProjectFile, op, err)
	}
	for _, key := range []string{"version", "appName", "project", "data"} {
		if _, ok := top[key]; !ok {
			return nil, caterr.Field(caterr.ErrMalformedProjectFile, op, key, "")
		}
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(top["data"], &data); err != nil {
		return nil, &caterr.Error{Kind: caterr.ErrMalformedProjectFile, Op: op, Field: "data", Err: err}
	}
	if _, ok := data["segments"]; !ok {
		return nil, caterr.Field(caterr.ErrMalformedProjectFile, op, "data.segments", "")
	}
	var app string
	if err := json.Unmarshal(top["appName"], &app); err != nil || app != AppName {
		return nil, caterr.Field(caterr.ErrUnsupportedProjectVersion, op, "appName", string(top["appName"]))
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, caterr.New(caterr.ErrMalformedProjectFile, op, err)
	}
	if err := validate(f.Data.Segments); err != nil {
		return nil, err
	}
	f.fillDefaults()
	return &f, nil
}

func validate(segs []segment.Segment) error {
	seen := make(map[int64]bool, len(segs))
	for i, s := range segs {
		if seen[s.ID] {
			return caterr.Field(caterr.ErrMalformedProjectFile, op, fmt.Sprintf("data.segments[%d].id", i), fmt.Sprint(s.ID))
		}
		seen[s.ID] = true
		if !s.Status.Valid() {
			return caterr.Field(caterr.ErrMalformedProjectFile, op, fmt.Sprintf("data.segments[%d].status", i), string(s.Status))
		}
		if s.Timed() && *s.StartTime >= *s.EndTime {
			return caterr.Field(caterr.ErrMalformedProjectFile, op, fmt.Sprintf("data.segments[%d].startTime", i),
				fmt.Sprintf("%v >= %v", *s.StartTime, *s.EndTime))
		}
	}
	return nil
}

func (f *File) fillDefaults() {
	if f.Version == "" {
		f.Version = CurrentVersion
	}
	if f.TranslationMemories == nil {
		f.TranslationMemories = []json.RawMessage{}
	}
	if f.TermDatabases == nil {
		f.TermDatabases = []json.RawMessage{}
	}
	if f.Settings.Model == "" {
		f.Settings.Model = DefaultModel
	}
	if f.Settings.Prompts == nil {
		f.Settings.Prompts = map[string]string{}
	}
	if f.Data.Segments == nil {
		f.Data.Segments = []segment.Segment{}
	}
}

// Save writes the file as indented JSON.
func Save(w io.Writer, f *File) error {
	out := *f
	out.AppName = AppName
	out.fillDefaults()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode project file: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Document builds the editable segment document.
func (f *File) Document() (*segment.Document, error) {
	return segment.NewDocument(f.Data.Segments)
}

// Tree parses the stored source document. It returns nil when the project
// has none, as subtitle projects do.
func (f *File) Tree() (*anchor.Tree, error) {
	if f.SourceDocumentHTML == "" {
		return nil, nil
	}
	return anchor.Parse(f.SourceDocumentHTML)
}
