package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/segment"
)

// MaxUpload bounds imported files.
const MaxUpload = 64 << 20

type ProjectHandler struct {
	svc *editor.Service
	db  *db.Database
}

func NewProjectHandler(svc *editor.Service, database *db.Database) *ProjectHandler {
	return &ProjectHandler{svc: svc, db: database}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	projects, err := h.svc.ListProjects(r.Context(), a)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, projects, http.StatusOK)
}

// Import creates a project from a multipart upload (field "file"). Missing
// languages fall back to the configured defaults.
func (h *ProjectHandler) Import(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	r.Body = http.MaxBytesReader(w, r.Body, MaxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "upload too large or unreadable", http.StatusBadRequest)
		return
	}

	req := editor.ImportRequest{
		FileName:       header.Filename,
		Name:           r.FormValue("name"),
		SourceLanguage: r.FormValue("sourceLanguage"),
		TargetLanguage: r.FormValue("targetLanguage"),
		Model:          h.db.GetSetting("provider_model", ""),
		Data:           data,
	}
	if req.SourceLanguage == "" {
		req.SourceLanguage = h.db.GetSetting("default_source_language", "")
	}
	if req.TargetLanguage == "" {
		req.TargetLanguage = h.db.GetSetting("default_target_language", "")
	}
	p, err := h.svc.ImportProject(r.Context(), a, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, p, http.StatusCreated)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	id := chi.URLParam(r, "id")
	p, err := h.svc.Project(r.Context(), a, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	roles, err := h.svc.Roles(r.Context(), a, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"project": p, "roles": roles}, http.StatusOK)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	var u editor.ProjectUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), a, chi.URLParam(r, "id"), u)
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, p, http.StatusOK)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	if err := h.svc.DeleteProject(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	members, err := h.svc.Members(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, members, http.StatusOK)
}

type memberRequest struct {
	UserID int64        `json:"userId"`
	Role   segment.Role `json:"role"`
}

func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.svc.AddMember(r.Context(), a, chi.URLParam(r, "id"), req.UserID, req.Role); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	role := segment.Role(chi.URLParam(r, "role"))
	if err := h.svc.RemoveMember(r.Context(), a, chi.URLParam(r, "id"), userID, role); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func attachment(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}
