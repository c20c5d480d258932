package editor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/catdesk/backend/internal/auth"
	"github.com/catdesk/backend/internal/caterr"
	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/docx"
	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/job"
	"github.com/catdesk/backend/internal/project"
	"github.com/catdesk/backend/internal/segment"
	"github.com/catdesk/backend/internal/storage"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc      *Service
	db       *db.Database
	rec      *recorder
	owner    Actor
	tr       Actor
	pr       Actor
	stranger Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	database, err := db.NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	files, err := storage.NewStore(filepath.Join(dir, "sources"), filepath.Join(dir, "exports"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	rec := &recorder{}
	f := &fixture{
		svc: New(database, files, rec, Options{DocxStrategy: docx.StrategyRebuild, MaxImageWidth: 600}),
		db:  database,
		rec: rec,
	}
	user := func(name string) Actor {
		hash, _ := auth.HashPassword("pw")
		id, err := database.CreateUser(name, hash, models.RoleUser)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		return Actor{ID: id, Name: name}
	}
	f.owner, f.tr, f.pr, f.stranger = user("olga"), user("tom"), user("pia"), user("sam")
	return f
}

const srt = "1\n00:00:01,000 --> 00:00:03,000\nHello  world\n\n2\n00:00:04,000 --> 00:00:06,000\nSecond line\n\n3\n00:00:07,000 --> 00:00:09,000\nThird\n"

// importSRT creates a subtitle project with tom as translator and pia as
// first proofreader.
func (f *fixture) importSRT(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.ImportProject(ctx, f.owner, ImportRequest{FileName: "talk.srt", Data: []byte(srt), TargetLanguage: "hu"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := f.svc.AddMember(ctx, f.owner, p.ID, f.tr.ID, segment.RoleTranslator); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.AddMember(ctx, f.owner, p.ID, f.pr.ID, segment.RoleProofreader1); err != nil {
		t.Fatal(err)
	}
	return p.ID
}

func ptr(s string) *string { return &s }

func TestImportSRT(t *testing.T) {
	f := newFixture(t)
	pid := f.importSRT(t)
	p, err := f.svc.Project(context.Background(), f.owner, pid)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "talk" || p.Kind != string(storage.KindSRT) {
		t.Fatalf("unexpected project: %+v", p)
	}
	segs, err := f.svc.Segments(context.Background(), f.tr, pid)
	if err != nil || len(segs) != 3 {
		t.Fatalf("segments: %d %v", len(segs), err)
	}
	if segs[0].Source != "Hello world" || *segs[0].StartTime != 1 || *segs[0].EndTime != 3 {
		t.Fatalf("first segment: %+v", segs[0])
	}
}

func TestImportRejectsUnknownFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ImportProject(context.Background(), f.owner, ImportRequest{FileName: "x.pdf", Data: []byte("%PDF")})
	if !errors.Is(err, caterr.ErrInvalidFileType) {
		t.Fatalf("expected invalid file type, got %v", err)
	}
}

func TestPermissionMatrix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	seg, err := f.svc.UpdateSegment(ctx, f.tr, pid, 1, segment.Patch{Target: ptr("Helló világ")})
	if err != nil {
		t.Fatalf("translator edit on draft: %v", err)
	}
	if seg.LastModifiedBy != "tom" || !seg.IsDirty {
		t.Fatalf("edit not recorded: %+v", seg)
	}
	if _, err := f.svc.UpdateSegment(ctx, f.pr, pid, 1, segment.Patch{Target: ptr("x")}); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("proofreader edited a draft: %v", err)
	}
	if _, err := f.svc.UpdateSegment(ctx, f.stranger, pid, 1, segment.Patch{Target: ptr("x")}); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("non-member edited: %v", err)
	}
	st := segment.StatusFinalized
	if _, err := f.svc.UpdateSegment(ctx, f.owner, pid, 1, segment.Patch{Status: &st}); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("status patch accepted: %v", err)
	}
	if _, err := f.svc.UpdateSegment(ctx, f.tr, pid, 42, segment.Patch{Target: ptr("x")}); !errors.Is(err, caterr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	stored, _ := f.svc.Segment(ctx, f.owner, pid, 1)
	if stored.Target != "Helló világ" {
		t.Fatalf("edit not persisted: %q", stored.Target)
	}
	got := f.rec.types()
	if len(got) != 1 || got[0] != events.SegmentUpdated {
		t.Fatalf("events: %v", got)
	}
}

func TestWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	if _, err := f.svc.ApplyAction(ctx, f.tr, pid, 2, "confirm"); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("draft left without evaluation: %v", err)
	}
	if _, err := f.svc.ApplyAction(ctx, f.tr, pid, 2, "publish"); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("unknown action: %v", err)
	}
	f.svc.UpdateSegment(ctx, f.tr, pid, 2, segment.Patch{Target: ptr("Második sor")})
	if _, err := f.svc.ApplyAction(ctx, f.pr, pid, 2, "approve_p1"); !errors.Is(err, caterr.ErrInvalidTransition) && !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("approved an unevaluated draft: %v", err)
	}
	seg, applied, err := f.svc.RecordEvaluation(ctx, f.tr, pid, 2, segment.Evaluation{Rating: 5}, nil)
	if err != nil || !applied || seg.Status != segment.StatusTranslated {
		t.Fatalf("evaluation: %+v %v %v", seg, applied, err)
	}
	if seg.TranslatorTarget == nil || *seg.TranslatorTarget != "Második sor" {
		t.Fatalf("translator snapshot missing: %+v", seg)
	}
	if _, err := f.svc.UpdateSegment(ctx, f.tr, pid, 2, segment.Patch{Target: ptr("x")}); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("translator edited a translated segment: %v", err)
	}
	if _, err := f.svc.ApplyAction(ctx, f.tr, pid, 2, "approve_p1"); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("translator approved: %v", err)
	}
	seg, err = f.svc.ApplyAction(ctx, f.pr, pid, 2, "approve_p1")
	if err != nil || seg.Status != segment.StatusApprovedByP1 {
		t.Fatalf("approve: %+v %v", seg, err)
	}
	seg, err = f.svc.ApplyAction(ctx, f.owner, pid, 2, "finalize")
	if err != nil || seg.Status != segment.StatusFinalized {
		t.Fatalf("finalize: %+v %v", seg, err)
	}
	if _, err := f.svc.UpdateSegment(ctx, f.owner, pid, 2, segment.Patch{Target: ptr("x")}); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("finalized segment edited: %v", err)
	}
	if _, err := f.svc.AddComment(ctx, f.pr, pid, 2, "late note"); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("comment on finalized segment: %v", err)
	}
}

func TestCommentsAndEvaluation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	c, err := f.svc.AddComment(ctx, f.pr, pid, 1, "  check the name ")
	if err != nil || c.Text != "check the name" || c.Author != "pia" {
		t.Fatalf("comment: %+v %v", c, err)
	}
	seg, err := f.svc.ResolveComment(ctx, f.owner, pid, 1, c.ID)
	if err != nil || len(seg.Comments) != 1 || !seg.Comments[0].IsResolved {
		t.Fatalf("resolve: %+v %v", seg.Comments, err)
	}
	if _, err := f.svc.ResolveComment(ctx, f.owner, pid, 1, "nope"); !errors.Is(err, caterr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	before := len(f.rec.types())
	_, applied, err := f.svc.RecordEvaluation(ctx, f.tr, pid, 1, segment.Evaluation{Rating: 4}, nil)
	if err != nil || applied {
		t.Fatalf("evaluation of blank target applied: %v %v", applied, err)
	}
	if n := len(f.rec.types()); n != before {
		t.Fatalf("skipped evaluation published %d events", n-before)
	}
	if stored, _ := f.svc.Segment(ctx, f.owner, pid, 1); stored.LastModifiedBy != "" {
		t.Fatalf("skipped evaluation stamped %q", stored.LastModifiedBy)
	}
	f.svc.UpdateSegment(ctx, f.tr, pid, 1, segment.Patch{Target: ptr("Helló világ")})
	seg, applied, err = f.svc.RecordEvaluation(ctx, f.tr, pid, 1, segment.Evaluation{Rating: 4, Feedback: "ok"}, nil)
	if err != nil || !applied || seg.Evaluation == nil || seg.IsDirty {
		t.Fatalf("evaluation: %+v %v %v", seg, applied, err)
	}
	if _, _, err := f.svc.RecordEvaluation(ctx, f.tr, pid, 1, segment.Evaluation{Rating: 9}, nil); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("out of range rating: %v", err)
	}
}

func TestUpdateRejectsWorkflowFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	if _, err := f.svc.AddComment(ctx, f.pr, pid, 1, "keep me"); err != nil {
		t.Fatal(err)
	}
	clean := false
	src := segment.SourceTM100
	forged := []segment.Patch{
		{Target: ptr("x"), Evaluation: &segment.Evaluation{Rating: 0}},
		{Target: ptr("x"), ClearEvaluation: true},
		{Target: ptr("x"), IsDirty: &clean},
		{Target: ptr("x"), TranslatorTarget: ptr("forged")},
		{Target: ptr("x"), TranslationSource: &src},
		{Target: ptr("x"), TargetErrors: []segment.TargetError{{Error: "e"}}},
		{Target: ptr("x"), LastModifiedBy: ptr("someone")},
		{Target: ptr("x"), Comments: []segment.Comment{}},
	}
	for i, p := range forged {
		if _, err := f.svc.UpdateSegment(ctx, f.tr, pid, 1, p); !errors.Is(err, caterr.ErrInvalidInput) {
			t.Fatalf("patch %d accepted: %v", i, err)
		}
	}
	seg, _ := f.svc.Segment(ctx, f.owner, pid, 1)
	if seg.Target != "" || seg.Evaluation != nil || seg.TranslatorTarget != nil || len(seg.Comments) != 1 {
		t.Fatalf("segment changed by rejected patches: %+v", seg)
	}

	start, end := 1.25, 2.5
	seg, err := f.svc.UpdateSegment(ctx, f.tr, pid, 1, segment.Patch{
		Source:    ptr("Hello world!"),
		Target:    ptr("Helló világ!"),
		StartTime: &start,
		EndTime:   &end,
	})
	if err != nil || seg.Source != "Hello world!" || *seg.StartTime != 1.25 {
		t.Fatalf("content edit: %+v %v", seg, err)
	}
}

func TestUpdateTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	seg, err := f.svc.UpdateTimes(ctx, f.tr, pid, 1, "00:00:01,500", "")
	if err != nil || *seg.StartTime != 1.5 || *seg.EndTime != 3 {
		t.Fatalf("times: %+v %v", seg, err)
	}
	seg, err = f.svc.UpdateTimes(ctx, f.tr, pid, 1, "garbage", "00:00:01,000")
	if err != nil {
		t.Fatal(err)
	}
	if *seg.StartTime != 1.5 || *seg.EndTime != 3 {
		t.Fatalf("invalid times not reverted: %v %v", *seg.StartTime, *seg.EndTime)
	}
}

func TestJoinSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	segs, err := f.svc.Join(ctx, f.tr, pid, 1, 2)
	if err != nil || len(segs) != 2 {
		t.Fatalf("join: %d %v", len(segs), err)
	}
	if *segs[0].EndTime != 6 {
		t.Fatalf("joined end time: %v", *segs[0].EndTime)
	}
	if _, err := f.svc.Join(ctx, f.tr, pid, 3, 1); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("joined non-adjacent segments: %v", err)
	}
	ids, err := f.svc.Split(ctx, f.tr, pid, 1, []string{"Hello world", "Second line"}, nil)
	if err != nil || len(ids) != 2 || ids[0] != 1 {
		t.Fatalf("split: %v %v", ids, err)
	}
	stored, _ := f.svc.Segments(ctx, f.owner, pid)
	if len(stored) != 3 || stored[1].ID != ids[1] {
		t.Fatalf("split not persisted: %+v", stored)
	}
	if got := f.rec.types(); got[len(got)-1] != events.SegmentsChanged {
		t.Fatalf("events: %v", got)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)
	f.svc.UpdateSegment(ctx, f.tr, pid, 3, segment.Patch{Target: ptr("<p>Harmadik</p>")})

	hits, err := f.svc.Search(ctx, f.pr, pid, "SECOND", "")
	if err != nil || len(hits) != 1 || hits[0].SegmentID != 2 {
		t.Fatalf("source search: %+v %v", hits, err)
	}
	if hits, _ := f.svc.Search(ctx, f.pr, pid, "harm", "source"); len(hits) != 0 {
		t.Fatalf("field filter ignored: %+v", hits)
	}
	if hits, _ := f.svc.Search(ctx, f.pr, pid, "harm", "target"); len(hits) != 1 {
		t.Fatalf("target search: %+v", hits)
	}
	if _, err := f.svc.Search(ctx, f.stranger, pid, "x", ""); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("stranger searched: %v", err)
	}
}

func TestQAFix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)
	f.svc.UpdateSegment(ctx, f.tr, pid, 1, segment.Patch{Target: ptr("<p>Helló  világ </p>")})

	issues, err := f.svc.RunQA(ctx, f.tr, pid, nil)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, is := range issues {
		if is.SegmentID == 1 && is.SuggestedFix != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("spacing issue missing: %+v", issues)
	}
	if _, err := f.svc.RunQA(ctx, f.tr, pid, []string{"bogus"}); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("unknown rule accepted: %v", err)
	}

	seg, err := f.svc.ApplyQAFix(ctx, f.tr, pid, 1)
	if err != nil || seg.Target != "<p>Helló világ</p>" {
		t.Fatalf("fix: %q %v", seg.Target, err)
	}
	if _, err := f.svc.ApplyQAFix(ctx, f.tr, pid, 1); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("second fix: %v", err)
	}
}

func TestResourcesAndPrefill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	terms := `{"source":"world","target":"világ"}` + "\n" + `{"source":"","target":"skip"}` + "\n"
	if n, err := f.svc.ImportTerms(ctx, f.owner, pid, strings.NewReader(terms)); err != nil || n != 1 {
		t.Fatalf("terms: %d %v", n, err)
	}
	if _, err := f.svc.ImportTerms(ctx, f.tr, pid, strings.NewReader(terms)); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("translator imported terms: %v", err)
	}

	units := `{"source":"Second line","target":"Második sor"}` + "\n" + `{"source":"Third","target":"Harmadik"}` + "\n"
	if n, err := f.svc.ImportUnits(ctx, f.owner, pid, strings.NewReader(units)); err != nil || n != 2 {
		t.Fatalf("units: %d %v", n, err)
	}
	f.svc.UpdateSegment(ctx, f.tr, pid, 3, segment.Patch{Target: ptr("Kézi")})

	filled, err := f.svc.PrefillFromTM(ctx, f.owner, pid)
	if err != nil || len(filled) != 1 || filled[0] != 2 {
		t.Fatalf("prefill: %v %v", filled, err)
	}
	seg, _ := f.svc.Segment(ctx, f.owner, pid, 2)
	if seg.Target != "Második sor" || seg.TranslationSource != segment.SourceTM100 {
		t.Fatalf("prefilled segment: %+v", seg)
	}

	report, err := f.svc.Analysis(ctx, f.owner, pid)
	if err != nil || len(report.Rows) == 0 {
		t.Fatalf("analysis: %+v %v", report, err)
	}
	counts, err := f.svc.Counts(ctx, f.tr, pid)
	if err != nil || counts.Rows[0].Segments != 3 {
		t.Fatalf("counts: %+v %v", counts, err)
	}
}

func TestSubtitleExports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)
	f.svc.UpdateSegment(ctx, f.tr, pid, 1, segment.Patch{Target: ptr("Helló világ")})

	art, err := f.svc.Export(ctx, f.pr, pid, FormatSRT, "")
	if err != nil {
		t.Fatal(err)
	}
	out := string(art.Data)
	if art.Name != "talk.hu.srt" || !strings.HasPrefix(out, "1\n00:00:01,000 --> 00:00:03,000\nHelló világ\n") {
		t.Fatalf("srt %q:\n%s", art.Name, out)
	}
	art, err = f.svc.Export(ctx, f.pr, pid, FormatVTT, "")
	if err != nil || !strings.HasPrefix(string(art.Data), "WEBVTT") {
		t.Fatalf("vtt: %v", err)
	}
	if _, err := f.svc.Export(ctx, f.pr, pid, "pdf", ""); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("unknown format: %v", err)
	}
	if _, err := f.svc.Export(ctx, f.pr, pid, FormatDOCX, ""); !errors.Is(err, caterr.ErrInvalidFileType) {
		t.Fatalf("docx export of subtitles: %v", err)
	}
	html, _, err := f.svc.Preview(ctx, f.pr, pid)
	if err != nil || !strings.Contains(html, "Helló világ") {
		t.Fatalf("preview: %q %v", html, err)
	}
}

func docxFixture(t *testing.T) []byte {
	t.Helper()
	entries := []struct{ name, data string }{
		{docx.ContentTypesEntry, `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/></Types>`},
		{docx.RelsEntry, `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`},
		{docx.BodyEntry, `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Invoice</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Pay within 30 days.</w:t></w:r></w:p>` +
			`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`},
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, e.data)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDocxRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.ImportProject(ctx, f.owner, ImportRequest{FileName: "invoice.docx", Data: docxFixture(t), TargetLanguage: "de"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	segs, _ := f.svc.Segments(ctx, f.owner, p.ID)
	if len(segs) != 2 || p.SourceHTML == "" {
		t.Fatalf("docx import: %+v", segs)
	}
	f.svc.UpdateSegment(ctx, f.owner, p.ID, segs[0].ID, segment.Patch{Target: ptr("<h1>Rechnung</h1>")})
	// The edited source no longer matches its paragraph text.
	if _, err := f.svc.UpdateSegment(ctx, f.owner, p.ID, segs[1].ID, segment.Patch{
		Source: ptr("Pay within 14 days."),
		Target: ptr("Zahlbar in 14 Tagen."),
	}); err != nil {
		t.Fatal(err)
	}

	for _, strategy := range []string{"", docx.StrategyPatch} {
		art, err := f.svc.ExportDOCX(ctx, f.owner, p.ID, strategy)
		if err != nil {
			t.Fatalf("export %q: %v", strategy, err)
		}
		if strategy == docx.StrategyPatch {
			if len(art.Missing) != 1 || art.Missing[0] != segs[1].ID {
				t.Fatalf("patch missing = %v, want [%d]", art.Missing, segs[1].ID)
			}
		} else if len(art.Missing) != 0 {
			t.Fatalf("rebuild missing = %v", art.Missing)
		}
		body, err := docx.ReadBody(art.Data)
		if err != nil || !bytes.Contains(body, []byte("Rechnung")) {
			t.Fatalf("strategy %q lost the translation: %v", strategy, err)
		}
		if art.Name != "invoice.de.docx" {
			t.Fatalf("name: %q", art.Name)
		}
	}
	if _, err := f.svc.ExportDOCX(ctx, f.owner, p.ID, "magic"); !errors.Is(err, caterr.ErrInvalidInput) {
		t.Fatalf("unknown strategy: %v", err)
	}

	art, err := f.svc.ExportProjectFile(ctx, f.owner, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	file, err := project.Load(bytes.NewReader(art.Data))
	if err != nil {
		t.Fatalf("exported project file does not load: %v", err)
	}
	if file.SourceFile == nil || file.SourceFile.Name != "invoice.docx" || len(file.Data.Segments) != 2 {
		t.Fatalf("project file: %+v", file.Project)
	}

	again, err := f.svc.ImportProject(ctx, f.tr, ImportRequest{FileName: "invoice.catdesk.json", Data: art.Data})
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if again.Kind != string(storage.KindDOCX) || again.TargetLanguage != "de" {
		t.Fatalf("reimported project: %+v", again)
	}
	if _, err := f.svc.ExportDOCX(ctx, f.tr, again.ID, ""); err != nil {
		t.Fatalf("reimported project cannot export docx: %v", err)
	}
}

func TestImportSeedsModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tc := range []struct{ model, want string }{
		{"m-large", "m-large"},
		{"  ", project.DefaultModel},
	} {
		p, err := f.svc.ImportProject(ctx, f.owner, ImportRequest{FileName: "talk.srt", Data: []byte(srt), Model: tc.model})
		if err != nil {
			t.Fatal(err)
		}
		art, err := f.svc.ExportProjectFile(ctx, f.owner, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		file, err := project.Load(bytes.NewReader(art.Data))
		if err != nil {
			t.Fatal(err)
		}
		if file.Settings.Model != tc.want {
			t.Fatalf("model %q: got %q", tc.model, file.Settings.Model)
		}
	}
}

func TestExportJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	q := job.NewJobQueue(f.db.DB())
	defer q.Stop()
	var mu sync.Mutex
	var progress []float64
	q.OnUpdate(func(j *job.Job) {
		mu.Lock()
		progress = append(progress, j.Progress)
		mu.Unlock()
	})
	f.svc.RegisterJobs(q)
	q.Start()

	if _, err := f.svc.EnqueueExport(ctx, f.stranger, pid, job.ExportParams{Format: FormatSRT}); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("stranger enqueued: %v", err)
	}
	j, err := f.svc.EnqueueExport(ctx, f.tr, pid, job.ExportParams{Format: FormatSRT})
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		cur, err := q.GetJob(j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if cur.Status.Finished() {
			if cur.Status != job.StatusCompleted {
				t.Fatalf("job ended %s: %s", cur.Status, cur.Error)
			}
			j = cur
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if j.Progress != 1 {
		t.Fatalf("completed job progress = %v", j.Progress)
	}
	mu.Lock()
	for _, p := range progress {
		if p < 0 || p > 1 {
			t.Fatalf("progress outside [0, 1]: %v", progress)
		}
	}
	mu.Unlock()

	path, name, err := f.svc.ExportArtifact(ctx, f.pr, j.ID)
	if err != nil || name != "talk.hu.srt" {
		t.Fatalf("artifact: %q %v", name, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	if list, _ := f.svc.Exports(ctx, f.pr, pid); len(list) != 1 {
		t.Fatalf("exports: %+v", list)
	}
	f.svc.CleanupJob(j)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("artifact not removed: %v", err)
	}
}

func TestDeleteProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pid := f.importSRT(t)

	if err := f.svc.DeleteProject(ctx, f.tr, pid); !errors.Is(err, caterr.ErrForbidden) {
		t.Fatalf("translator deleted project: %v", err)
	}
	if err := f.svc.DeleteProject(ctx, f.owner, pid); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Project(ctx, f.owner, pid); !errors.Is(err, caterr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := f.rec.types(); got[len(got)-1] != events.ProjectDeleted {
		t.Fatalf("events: %v", got)
	}
}
