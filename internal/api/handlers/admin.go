package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/api/middleware"
	"github.com/catdesk/backend/internal/auth"
	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/db/models"
)

var startTime = time.Now()

// AdminHandler manages accounts and exposes server state. Project roles are
// managed per project; this only deals with the global admin/user role.
type AdminHandler struct {
	db      *db.Database
	limiter *middleware.RateLimiter
}

func NewAdminHandler(db *db.Database, limiter *middleware.RateLimiter) *AdminHandler {
	return &AdminHandler{db: db, limiter: limiter}
}

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleUser
}

// target loads the user named by the {id} route parameter.
func (h *AdminHandler) target(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid user ID", http.StatusBadRequest)
		return nil, false
	}
	u, err := h.db.GetUserByID(id)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return nil, false
	}
	return u, true
}

// keepsAdmin reports whether removing admin rights from u leaves at least
// one admin. It writes the error response when it does not.
func (h *AdminHandler) keepsAdmin(w http.ResponseWriter, r *http.Request, u *models.User, what string) bool {
	if u.Role != models.RoleAdmin {
		return true
	}
	n, err := h.db.CountAdmins()
	if err != nil {
		fail(w, r, err)
		return false
	}
	if n <= 1 {
		jsonError(w, "cannot "+what+" the last admin", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.ListUsers()
	if err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, users, http.StatusOK)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	if !validRole(req.Role) {
		jsonError(w, "role must be admin or user", http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	id, err := h.db.CreateUser(req.Username, hash, req.Role)
	if err != nil {
		jsonError(w, "username already taken", http.StatusConflict)
		return
	}
	log.WithFields(map[string]interface{}{"user": req.Username, "role": req.Role}).Info("user created")
	jsonResponse(w, map[string]interface{}{"id": id, "username": req.Username, "role": req.Role}, http.StatusCreated)
}

// UpdateUser changes the role and, when given, the password.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	var req userRequest
	if !decode(w, r, &req) {
		return
	}
	role := u.Role
	if req.Role != "" {
		if !validRole(req.Role) {
			jsonError(w, "role must be admin or user", http.StatusBadRequest)
			return
		}
		role = req.Role
	}
	if role != models.RoleAdmin && !h.keepsAdmin(w, r, u, "demote") {
		return
	}

	var hash string
	if req.Password != "" {
		var err error
		if hash, err = auth.HashPassword(req.Password); err != nil {
			fail(w, r, err)
			return
		}
	}
	if err := h.db.UpdateUser(u.ID, role, hash); err != nil {
		fail(w, r, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"id": u.ID, "username": u.Username, "role": role}, http.StatusOK)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	u, ok := h.target(w, r)
	if !ok {
		return
	}
	if c := middleware.GetClaims(r); c != nil && c.UserID == u.ID {
		jsonError(w, "cannot delete yourself", http.StatusBadRequest)
		return
	}
	if !h.keepsAdmin(w, r, u, "delete") {
		return
	}
	if err := h.db.DeleteUser(u.ID); err != nil {
		fail(w, r, err)
		return
	}
	log.WithField("user", u.Username).Info("user deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.limiter.Status(), http.StatusOK)
}

func (h *AdminHandler) ClearRateLimits(w http.ResponseWriter, r *http.Request) {
	h.limiter.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// DashboardStats reports process health and object counts.
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	users, _ := h.db.ListUsers()
	projects, _ := h.db.ListProjects(r.Context(), 0, true)

	jsonResponse(w, map[string]interface{}{
		"system": map[string]interface{}{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": int(time.Since(startTime).Seconds()),
			"mem_alloc":      mem.Alloc,
			"mem_sys":        mem.Sys,
		},
		"user_count":    len(users),
		"project_count": len(projects),
	}, http.StatusOK)
}
