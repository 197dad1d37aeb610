package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/resumiro/internal/apperror"
	"github.com/sakif/resumiro/internal/auth"
	"github.com/sakif/resumiro/internal/model"
)

const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000
)

// EventSource is the slice of the facade the feed needs.
type EventSource interface {
	Events(ctx context.Context, afterSeq int64, limit int) ([]model.Event, error)
	HasRole(ctx context.Context, principal string, role model.Role) (bool, error)
}

// EventsHandler serves the audit log to external indexers. Indexers poll
// with the last seq they processed:
//
//	GET /api/events?after=120&limit=500
type EventsHandler struct {
	source EventSource
	logger *slog.Logger
}

func NewEventsHandler(source EventSource, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{source: source, logger: logger}
}

// EventsPage is the response body. Next is the cursor for the following
// request; it equals the request's after when there is nothing new.
type EventsPage struct {
	Events []model.Event `json:"events"`
	Next   int64         `json:"next"`
}

// HandleList requires an authenticated platform admin (see auth.RequireAuth).
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	isAdmin, err := h.source.HasRole(r.Context(), principal, model.RoleAdmin)
	if err != nil {
		h.logger.Error("checking feed access", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if !isAdmin {
		writeError(w, apperror.Unauthorized(principal, model.RoleAdmin.String()))
		return
	}

	after, err := queryInt(r, "after", 0)
	if err != nil || after < 0 {
		writeError(w, apperror.ValidationFailed("after", "after must be a non-negative integer"))
		return
	}
	limit, err := queryInt(r, "limit", DefaultEventLimit)
	if err != nil || limit <= 0 {
		writeError(w, apperror.ValidationFailed("limit", "limit must be a positive integer"))
		return
	}
	limit = min(limit, MaxEventLimit)

	events, err := h.source.Events(r.Context(), after, int(limit))
	if err != nil {
		h.logger.Error("listing events", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, EventsPage{Events: events, Next: next})
}

func queryInt(r *http.Request, key string, def int64) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
