package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/editor"
)

// ResourceHandler imports terminology and translation-memory data. Request
// bodies are line-delimited JSON.
type ResourceHandler struct {
	svc *editor.Service
}

func NewResourceHandler(svc *editor.Service) *ResourceHandler {
	return &ResourceHandler{svc: svc}
}

type importFunc func(ctx context.Context, a editor.Actor, projectID string, r io.Reader) (int, error)

func (h *ResourceHandler) load(fn importFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, _ := actor(r)
		r.Body = http.MaxBytesReader(w, r.Body, MaxUpload)
		n, err := fn(r.Context(), a, chi.URLParam(r, "id"), r.Body)
		if err != nil {
			fail(w, r, err)
			return
		}
		jsonResponse(w, map[string]int{"imported": n}, http.StatusOK)
	}
}

func (h *ResourceHandler) ImportTerms() http.HandlerFunc { return h.load(h.svc.ImportTerms) }
func (h *ResourceHandler) ImportMatches() http.HandlerFunc { return h.load(h.svc.ImportMatches) }
func (h *ResourceHandler) ImportUnits() http.HandlerFunc { return h.load(h.svc.ImportUnits) }

func (h *ResourceHandler) Terms(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	terms, err := h.svc.Terms(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, terms, http.StatusOK)
}

func (h *ResourceHandler) Prefill(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	ids, err := h.svc.PrefillFromTM(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, map[string][]int64{"filled": ids}, http.StatusOK)
}
