package audithandler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ppewatch/internal/domain/audit"
	"ppewatch/internal/requestctx"
	"ppewatch/internal/transport/http/api"
	"ppewatch/internal/transport/http/middleware"
	"ppewatch/internal/transport/http/shared"
)

const maxExportRows = 10000

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/events", h.handleListEvents)
		r.Get("/events/export", h.handleExportEvents)
	})
}

var origins = []requestctx.Origin{requestctx.OriginAPI, requestctx.OriginAutoEscalation, requestctx.OriginSystem}

// filterFrom writes a validation error and returns false for an unknown
// origin.
func filterFrom(w http.ResponseWriter, r *http.Request) (audit.Filter, bool) {
	q := r.URL.Query()
	v := shared.NewValidator()
	origin := shared.OneOf(v, "origin", q.Get("origin"), origins)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return audit.Filter{}, false
	}
	return audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		Origin:     string(origin),
	}, true
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFrom(w, r)
	if !ok {
		return
	}
	page := shared.ParsePage(r, 100, 500)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"
	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}

	events, err := h.Service.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	w.Header().Set(shared.TotalCountHeader, strconv.Itoa(total))
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFrom(w, r)
	if !ok {
		return
	}
	events, err := h.Service.List(r.Context(), filter, false, maxExportRows, 0)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "action", "entity_type", "entity_id", "request_id", "origin", "created_at"}); err != nil {
		slog.Warn("audit export header failed", "err", err)
	}
	for _, evt := range events {
		if err := writer.Write([]string{evt.ID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.Origin, evt.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
			slog.Warn("audit export row failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("audit export flush failed", "err", err)
	}
}
