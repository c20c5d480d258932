package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/editor"
)

// AnalysisHandler serves the read-only views computed from the segments:
// QA, statistics and the preview.
type AnalysisHandler struct {
	svc *editor.Service
	db  *db.Database
}

func NewAnalysisHandler(svc *editor.Service, database *db.Database) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, db: database}
}

func splitRules(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// QA runs the checks named in ?rules=, or the configured set.
func (h *AnalysisHandler) QA(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	rules := r.URL.Query().Get("rules")
	if rules == "" {
		rules = h.db.GetSetting("qa_rules", "")
	}
	issues, err := h.svc.RunQA(r.Context(), a, chi.URLParam(r, "id"), splitRules(rules))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, issues, http.StatusOK)
}

func (h *AnalysisHandler) Fix(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "segmentID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid segment ID", http.StatusBadRequest)
		return
	}
	seg, err := h.svc.ApplyQAFix(r.Context(), a, chi.URLParam(r, "id"), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, seg, http.StatusOK)
}

func (h *AnalysisHandler) Counts(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	report, err := h.svc.Counts(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, report, http.StatusOK)
}

func (h *AnalysisHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	report, err := h.svc.Analysis(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, report, http.StatusOK)
}

func (h *AnalysisHandler) Preview(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	html, missing, err := h.svc.Preview(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if missing == nil {
		missing = []int64{}
	}
	jsonResponse(w, map[string]interface{}{"html": html, "missing": missing}, http.StatusOK)
}
