package reprimandshandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ppewatch/internal/domain/reprimand"
	"ppewatch/internal/transport/http/api"
	"ppewatch/internal/transport/http/middleware"
	"ppewatch/internal/transport/http/shared"
)

type Handler struct {
	Service     *reprimand.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *reprimand.Service, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reprimands", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.With(middleware.Idempotent(h.Idempotency)).Post("/", h.handleIssue)
		r.Get("/stats", h.handleStats)
		r.Get("/retraining-types", h.handleRetrainingTypes)
		r.Get("/{reprimandID}", h.handleGet)
		r.Get("/{reprimandID}/notice", h.handleNotice)
		r.Post("/{reprimandID}/acknowledge", h.handleAcknowledge)
		r.Post("/{reprimandID}/retraining", h.handleAssignRetraining)
		r.Post("/{reprimandID}/retraining/complete", h.handleCompleteRetraining)
		r.Post("/{reprimandID}/resolve", h.handleResolve)
	})
}

// writeError maps reprimand errors onto HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, reprimand.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), reqID)
	case errors.Is(err, reprimand.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), reqID)
	case errors.Is(err, reprimand.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "reprimand not found", reqID)
	case errors.Is(err, reprimand.ErrPersistenceWrite):
		w.Header().Set("Retry-After", "1")
		api.Fail(w, http.StatusServiceUnavailable, "persistence_failed", "reprimand could not be saved, retry", reqID)
	default:
		slog.Warn("reprimand request failed", "err", err, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "reprimand request failed", reqID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	status := shared.OneOf(v, "status", q.Get("status"), reprimand.AllStatuses)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	list, err := h.Service.List(r.Context(), reprimand.ListFilter{
		Status:     status,
		EmployeeID: strings.TrimSpace(q.Get("employeeId")),
	})
	if err != nil {
		writeError(w, r, err, "reprimand_list_failed")
		return
	}
	page := shared.ParsePage(r, 100, 500)
	api.Success(w, shared.Window(w, page, list), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var payload reprimand.IssueInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	created, err := h.Service.Issue(r.Context(), payload)
	if err != nil {
		writeError(w, r, err, "reprimand_issue_failed")
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, "reprimand_stats_failed")
		return
	}
	api.Success(w, stats, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRetrainingTypes(w http.ResponseWriter, r *http.Request) {
	api.Success(w, reprimand.RetrainingCatalog(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Get(r.Context(), chi.URLParam(r, "reprimandID"))
	if err != nil {
		writeError(w, r, err, "reprimand_get_failed")
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleNotice(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Get(r.Context(), chi.URLParam(r, "reprimandID"))
	if err != nil {
		writeError(w, r, err, "reprimand_get_failed")
		return
	}
	var buf bytes.Buffer
	if err := reprimand.WriteNotice(&buf, rep); err != nil {
		slog.Warn("reprimand notice render failed", "reprimandId", rep.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "notice_failed", "failed to render notice", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=reprimand-"+rep.ID+".pdf")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("reprimand notice write failed", "err", err)
	}
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Acknowledge(r.Context(), chi.URLParam(r, "reprimandID"))
	if err != nil {
		writeError(w, r, err, "reprimand_update_failed")
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignRetraining(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("type", payload.Type)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	rep, err := h.Service.AssignRetraining(r.Context(), chi.URLParam(r, "reprimandID"), reprimand.RetrainingType(strings.TrimSpace(payload.Type)))
	if err != nil {
		writeError(w, r, err, "reprimand_update_failed")
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCompleteRetraining(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.CompleteRetraining(r.Context(), chi.URLParam(r, "reprimandID"))
	if err != nil {
		writeError(w, r, err, "reprimand_update_failed")
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Resolve(r.Context(), chi.URLParam(r, "reprimandID"))
	if err != nil {
		writeError(w, r, err, "reprimand_update_failed")
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}
