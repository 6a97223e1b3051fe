package employeeshandler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ppewatch/internal/domain/ledger"
	"ppewatch/internal/domain/monitor"
	"ppewatch/internal/transport/http/api"
	"ppewatch/internal/transport/http/middleware"
)

type ViewSource interface {
	View() monitor.View
}

type Handler struct {
	Views ViewSource
}

func NewHandler(views ViewSource) *Handler {
	return &Handler{Views: views}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/ledger", h.handleLedger)
		r.Get("/high-risk", h.handleHighRisk)
		r.Get("/{employeeID}", h.handleEmployee)
	})
}

func threshold(w http.ResponseWriter, r *http.Request, fallback int) (int, bool) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_threshold", "threshold must be a positive integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return n, true
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	view := h.Views.View()
	t, ok := threshold(w, r, view.Threshold)
	if !ok {
		return
	}
	api.Success(w, view.Ledger.Entries(t), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleHighRisk(w http.ResponseWriter, r *http.Request) {
	view := h.Views.View()
	t, ok := threshold(w, r, view.Threshold)
	if !ok {
		return
	}
	out := view.HighRisk(t)
	if out == nil {
		out = []ledger.Record{}
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

type employeeResponse struct {
	ledger.Record
	Events     int `json:"events"`
	Reprimands int `json:"reprimands"`
}

func (h *Handler) handleEmployee(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "employeeID"))
	view := h.Views.View()

	resp := employeeResponse{Record: ledger.Record{EmployeeID: id}}
	if rec, ok := view.Ledger[id]; ok {
		rec.HighRisk = rec.TotalViolations >= view.Threshold
		resp.Record = rec
	}
	for _, e := range view.Events {
		if e.EmployeeID == id {
			resp.Events++
		}
	}
	for _, rep := range view.Reprimands {
		if rep.EmployeeID == id {
			resp.Reprimands++
		}
	}
	if resp.Events == 0 && resp.Reprimands == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, resp, middleware.GetRequestID(r.Context()))
}
