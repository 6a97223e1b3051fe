package compliancehandler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/domain/monitor"
	"ppewatch/internal/transport/http/api"
	"ppewatch/internal/transport/http/middleware"
	"ppewatch/internal/transport/http/shared"
)

const (
	defaultDays      = 7
	maxDays          = 366
	maxContractBytes = 4 << 20
)

// ViewSource exposes the live compliance view. *monitor.Monitor satisfies it.
type ViewSource interface {
	View() monitor.View
	Status() monitor.Status
}

type Handler struct {
	Views ViewSource
	Now   func() time.Time
}

func NewHandler(views ViewSource) *Handler {
	return &Handler{Views: views, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/compliance", func(r chi.Router) {
		r.Get("/events", h.handleEvents)
		r.Get("/summary", h.handleSummary)
		r.Get("/daily", h.handleDaily)
		r.Get("/hourly", h.handleHourly)
		r.Get("/patterns", h.handlePatterns)
		r.Get("/timeslots", h.handleTimeSlots)
		r.Get("/status", h.handleStatus)
		r.Get("/export", h.handleExport)
		r.Post("/contract/validate", h.handleValidateContract)
	})
}

// filteredEvents applies the search, direction and date range query
// parameters. It writes the error response and returns false on bad input.
func (h *Handler) filteredEvents(w http.ResponseWriter, r *http.Request, events []compliance.Event) ([]compliance.Event, bool) {
	q := r.URL.Query()
	v := shared.NewValidator()

	direction, ok := compliance.ParseDirectionFilter(q.Get("direction"))
	if !ok {
		v.Add("direction", "must be one of all, entry, exit, unknown")
	}
	from, to := v.DateRange(q, "from", "to")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return nil, false
	}

	out := compliance.Filter(events, compliance.FilterOptions{Search: q.Get("search"), Direction: direction})
	if from.IsZero() && to.IsZero() {
		return out, true
	}
	ranged := out[:0:0]
	for _, e := range out {
		if !e.ValidTimestamp {
			continue
		}
		if !from.IsZero() && e.At.Before(from) {
			continue
		}
		if !to.IsZero() && !e.At.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		ranged = append(ranged, e)
	}
	return ranged, true
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	view := h.Views.View()
	events, ok := h.filteredEvents(w, r, view.Events)
	if !ok {
		return
	}
	page := shared.ParsePage(r, 100, 1000)
	api.Success(w, shared.Window(w, page, events), middleware.GetRequestID(r.Context()))
}

type summaryResponse struct {
	compliance.Summary
	Connectivity monitor.Status `json:"connectivity"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	view := h.Views.View()
	summary := view.Summary
	if hasFilter(r) {
		events, ok := h.filteredEvents(w, r, view.Events)
		if !ok {
			return
		}
		summary = compliance.Summarize(events)
	}
	api.Success(w, summaryResponse{Summary: summary, Connectivity: view.Status}, middleware.GetRequestID(r.Context()))
}

func hasFilter(r *http.Request) bool {
	q := r.URL.Query()
	for _, key := range []string{"search", "direction", "from", "to"} {
		if q.Get(key) != "" {
			return true
		}
	}
	return false
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	days := defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDays {
			api.Fail(w, http.StatusBadRequest, "invalid_days", fmt.Sprintf("days must be between 1 and %d", maxDays), middleware.GetRequestID(r.Context()))
			return
		}
		days = n
	}
	view := h.Views.View()
	api.Success(w, compliance.LastDays(view.Summary.Daily, days), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHourly(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Views.View().Summary.Hourly, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePatterns(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Views.View().Summary.Patterns, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTimeSlots(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Views.View().Summary.TimeSlots, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Views.Status(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	events, ok := h.filteredEvents(w, r, h.Views.View().Events)
	if !ok {
		return
	}
	filename := fmt.Sprintf("ppe-compliance-%s.csv", h.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	if err := WriteCSV(w, events); err != nil {
		slog.Warn("compliance export failed", "err", err)
	}
}

func (h *Handler) handleValidateContract(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxContractBytes))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "could not read request payload", middleware.GetRequestID(r.Context()))
		return
	}
	report, err := compliance.ValidateContract(raw)
	if errors.Is(err, compliance.ErrInvalidPayload) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "payload must be a JSON object keyed by timestamp", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "contract_check_failed", "failed to validate payload", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}
