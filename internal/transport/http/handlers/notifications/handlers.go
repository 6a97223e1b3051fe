package notificationshandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ppewatch/internal/domain/notifications"
	"ppewatch/internal/platform/jobs"
	"ppewatch/internal/transport/http/api"
	"ppewatch/internal/transport/http/middleware"
	"ppewatch/internal/transport/http/shared"
)

type Handler struct {
	Service *notifications.Service
	Jobs    *jobs.Service
}

func NewHandler(service *notifications.Service, jobsSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/settings", h.handleSettings)
		r.Put("/settings", h.handleUpdateSettings)
		r.Post("/digest", h.handleSendDigest)
		r.Get("/digest/runs", h.handleDigestRuns)
	})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.GetSettings(r.Context())
	if err != nil {
		slog.Warn("notification settings load failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to load settings", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var payload notifications.Settings
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	settings, err := h.Service.UpdateSettings(r.Context(), payload)
	if errors.Is(err, notifications.ErrInvalidSettings) {
		api.Fail(w, http.StatusBadRequest, "invalid_settings", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Warn("notification settings save failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to update settings", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, settings, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSendDigest(w http.ResponseWriter, r *http.Request) {
	result, err := h.Jobs.SendDigestNow(r.Context())
	switch {
	case errors.Is(err, notifications.ErrDisabled):
		api.Fail(w, http.StatusConflict, "digest_disabled", err.Error(), middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, notifications.ErrNoContacts):
		api.Fail(w, http.StatusConflict, "no_contacts", err.Error(), middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		slog.Warn("digest send failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "digest_failed", "failed to send digest", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDigestRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 20, 100)
	runs, err := h.Jobs.ListRuns(r.Context(), jobs.JobDigest, page.Limit)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "digest_runs_failed", "failed to list digest runs", middleware.GetRequestID(r.Context()))
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}
