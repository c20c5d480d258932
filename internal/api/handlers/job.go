package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/job"
)

type JobHandler struct {
	queue *job.JobQueue
	svc   *editor.Service
}

func NewJobHandler(queue *job.JobQueue, svc *editor.Service) *JobHandler {
	return &JobHandler{queue: queue, svc: svc}
}

// ListJobs returns the jobs of a project, or every job for admins when no
// project is given
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(r)
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	projectID := r.URL.Query().Get("project")
	var jobs []*job.Job
	var err error
	switch {
	case projectID != "":
		jobs, err = h.svc.Jobs(r.Context(), a, projectID)
	case a.Admin:
		jobs, err = h.queue.ListJobs("")
	default:
		jsonError(w, "project is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*job.Job{}
	}
	jsonResponse(w, jobs, http.StatusOK)
}

// GetJob returns a single job by ID
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	j, err := h.svc.Job(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, j, http.StatusOK)
}

// CancelJob cancels a pending or running job
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	j, err := h.svc.Job(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.queue.CancelJob(j.ID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryJob re-queues a failed or cancelled job
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	j, err := h.svc.Job(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.queue.RetryJob(j.ID); err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, map[string]string{"status": "retrying"}, http.StatusOK)
}

// Download serves the artifact of a completed export job
func (h *JobHandler) Download(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	path, name, err := h.svc.ExportArtifact(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", attachment(name))
	http.ServeFile(w, r, path)
}
