package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/job"
)

type ExportHandler struct {
	svc *editor.Service
}

func NewExportHandler(svc *editor.Service) *ExportHandler {
	return &ExportHandler{svc: svc}
}

// Download renders an export synchronously: /export/{format}?strategy=patch.
// Segments that could not be placed are listed in X-Missing-Segments.
func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	art, err := h.svc.Export(r.Context(), a, chi.URLParam(r, "id"), chi.URLParam(r, "format"), r.URL.Query().Get("strategy"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if len(art.Missing) > 0 {
		ids := make([]string, len(art.Missing))
		for i, id := range art.Missing {
			ids[i] = strconv.FormatInt(id, 10)
		}
		w.Header().Set("X-Missing-Segments", strings.Join(ids, ","))
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", attachment(art.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}

// Enqueue starts a background export and returns the job.
func (h *ExportHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	var params job.ExportParams
	if !decode(w, r, &params) {
		return
	}
	j, err := h.svc.EnqueueExport(r.Context(), a, chi.URLParam(r, "id"), params)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, j, http.StatusAccepted)
}

func (h *ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	files, err := h.svc.Exports(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, files, http.StatusOK)
}
