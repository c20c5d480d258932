package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/segment"
)

type SegmentHandler struct {
	svc *editor.Service
}

func NewSegmentHandler(svc *editor.Service) *SegmentHandler {
	return &SegmentHandler{svc: svc}
}

// segmentParams reads the project and segment ids of the route.
func segmentParams(w http.ResponseWriter, r *http.Request) (editor.Actor, string, int64, bool) {
	a, _ := actor(r)
	id, err := strconv.ParseInt(chi.URLParam(r, "segmentID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid segment ID", http.StatusBadRequest)
		return a, "", 0, false
	}
	return a, chi.URLParam(r, "id"), id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *SegmentHandler) List(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	segs, err := h.svc.Segments(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if segs == nil {
		segs = []segment.Segment{}
	}
	jsonResponse(w, segs, http.StatusOK)
}

func (h *SegmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	seg, err := h.svc.Segment(r.Context(), a, pid, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, seg, http.StatusOK)
}

// Update applies a partial segment edit. Status changes use Action.
func (h *SegmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	var p segment.Patch
	if !decode(w, r, &p) {
		return
	}
	seg, err := h.svc.UpdateSegment(r.Context(), a, pid, id, p)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, seg, http.StatusOK)
}

// Times sets cue times from HH:MM:SS,mmm strings.
func (h *SegmentHandler) Times(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if !decode(w, r, &req) {
		return
	}
	seg, err := h.svc.UpdateTimes(r.Context(), a, pid, id, req.Start, req.End)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, seg, http.StatusOK)
}

func (h *SegmentHandler) Action(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}
	seg, err := h.svc.ApplyAction(r.Context(), a, pid, id, req.Action)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, seg, http.StatusOK)
}

// Evaluation records an assessment from the intelligence provider.
func (h *SegmentHandler) Evaluation(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Evaluation segment.Evaluation    `json:"evaluation"`
		Errors     []segment.TargetError `json:"errors"`
	}
	if !decode(w, r, &req) {
		return
	}
	seg, applied, err := h.svc.RecordEvaluation(r.Context(), a, pid, id, req.Evaluation, req.Errors)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"segment": seg, "applied": applied}, http.StatusOK)
}

func (h *SegmentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.AddComment(r.Context(), a, pid, id, req.Text)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, c, http.StatusCreated)
}

func (h *SegmentHandler) ResolveComment(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	seg, err := h.svc.ResolveComment(r.Context(), a, pid, id, chi.URLParam(r, "commentID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, seg, http.StatusOK)
}

func (h *SegmentHandler) Join(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	var req struct {
		First  int64 `json:"first"`
		Second int64 `json:"second"`
	}
	if !decode(w, r, &req) {
		return
	}
	segs, err := h.svc.Join(r.Context(), a, chi.URLParam(r, "id"), req.First, req.Second)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, segs, http.StatusOK)
}

func (h *SegmentHandler) Split(w http.ResponseWriter, r *http.Request) {
	a, pid, id, ok := segmentParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Sources []string `json:"sources"`
		Targets []string `json:"targets"`
	}
	if !decode(w, r, &req) {
		return
	}
	ids, err := h.svc.Split(r.Context(), a, pid, id, req.Sources, req.Targets)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, map[string][]int64{"ids": ids}, http.StatusOK)
}

// Search is the concordance lookup: ?q=text&field=source|target
func (h *SegmentHandler) Search(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	q := r.URL.Query()
	hits, err := h.svc.Search(r.Context(), a, chi.URLParam(r, "id"), q.Get("q"), q.Get("field"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, hits, http.StatusOK)
}
