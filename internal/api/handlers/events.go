package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/events"
)

// EventsHandler upgrades project members to the live event stream.
type EventsHandler struct {
	svc *editor.Service
	hub *events.Hub
}

func NewEventsHandler(svc *editor.Service, hub *events.Hub) *EventsHandler {
	return &EventsHandler{svc: svc, hub: hub}
}

func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	a, _ := actor(r)
	id := chi.URLParam(r, "id")
	if _, err := h.svc.Project(r.Context(), a, id); err != nil {
		fail(w, r, err)
		return
	}
	h.hub.Serve(w, r, id)
}
