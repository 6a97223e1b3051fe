package shared

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"ppewatch/internal/transport/http/api"
)

// FieldIssue names one rejected query or body field.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects every issue in a request so a single validation_error
// response can list all of them.
type Validator struct {
	issues []FieldIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

// DateRange reads optional whole-day bounds from q. Both bounds are
// inclusive; an inverted range flags both fields.
func (v *Validator) DateRange(q url.Values, fromField, toField string) (from, to time.Time) {
	from = v.date(fromField, q.Get(fromField))
	to = v.date(toField, q.Get(toField))
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		v.Add(fromField, "must be on or before "+toField)
		v.Add(toField, "must be on or after "+fromField)
	}
	return from, to
}

func (v *Validator) date(field, raw string) time.Time {
	parsed, err := ParseDate(raw)
	if err != nil {
		v.Add(field, "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		return time.Time{}
	}
	return parsed
}

// Reject writes the collected issues, sorted by field, and reports whether
// the request was rejected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.issues) == 0 {
		return false
	}
	issues := slices.Clone(v.issues)
	slices.SortStableFunc(issues, func(a, b FieldIssue) int {
		return strings.Compare(a.Field, b.Field)
	})
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
	return true
}

// OneOf matches raw case-insensitively against allowed. An empty value
// yields the zero value without an issue.
func OneOf[T ~string](v *Validator, field, raw string, allowed []T) T {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, candidate := range allowed {
		if strings.EqualFold(raw, string(candidate)) {
			return candidate
		}
	}
	names := make([]string, len(allowed))
	for i, candidate := range allowed {
		names[i] = string(candidate)
	}
	v.Add(field, "must be one of "+strings.Join(names, ", "))
	return ""
}
