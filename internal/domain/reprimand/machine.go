package reprimand

import (
	"strings"
	"time"

	"ppewatch/internal/domain/compliance"
)

// SeverityFor maps the number of distinct violations to a severity.
func SeverityFor(violations int) Severity {
	switch {
	case violations >= 3:
		return SeverityHigh
	case violations == 2:
		return SeverityMedium
	}
	return SeverityLow
}

func DefaultNotes(violations []compliance.Equipment) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = string(v)
	}
	return notesPrefix + strings.Join(parts, ", ")
}

// NewReprimand validates input and builds a pending record without an id.
func NewReprimand(input IssueInput, now time.Time) (Reprimand, error) {
	employeeID := strings.TrimSpace(input.EmployeeID)
	if employeeID == "" {
		return Reprimand{}, invalidInput("employee id is required")
	}
	violations, err := normalizeViolations(input.Violations)
	if err != nil {
		return Reprimand{}, err
	}
	notes := strings.TrimSpace(input.Notes)
	if notes == "" {
		notes = DefaultNotes(violations)
	}
	return Reprimand{
		EmployeeID: employeeID,
		IssuedAt:   now,
		Violations: violations,
		Severity:   SeverityFor(len(violations)),
		Status:     StatusPending,
		Notes:      notes,
		UpdatedAt:  now,
	}, nil
}

// normalizeViolations deduplicates labels and returns them in canonical order.
func normalizeViolations(labels []string) ([]compliance.Equipment, error) {
	seen := map[compliance.Equipment]bool{}
	for _, label := range labels {
		item, ok := compliance.ParseEquipment(strings.TrimSpace(label))
		if !ok {
			return nil, invalidInput("unknown equipment " + label)
		}
		seen[item] = true
	}
	if len(seen) == 0 {
		return nil, invalidInput("at least one violation is required")
	}
	out := make([]compliance.Equipment, 0, len(seen))
	for _, item := range compliance.AllEquipment {
		if seen[item] {
			out = append(out, item)
		}
	}
	return out, nil
}

// Apply runs one transition. It never modifies r; on error the returned
// record is the zero value.
func Apply(r Reprimand, action Action, now time.Time) (Reprimand, error) {
	next := r.Clone()
	switch action.Kind {
	case ActionAcknowledge:
		if r.Status != StatusPending {
			return Reprimand{}, invalidTransition(r.Status, action.Kind)
		}
		next.Status = StatusAcknowledged
	case ActionAssignRetraining:
		if r.Status != StatusPending && r.Status != StatusAcknowledged {
			return Reprimand{}, invalidTransition(r.Status, action.Kind)
		}
		if _, ok := LookupRetraining(action.RetrainingType); !ok {
			return Reprimand{}, invalidInput("unknown retraining type " + string(action.RetrainingType))
		}
		next.Status = StatusRetraining
		next.Retraining = &Retraining{Type: action.RetrainingType, AssignedAt: now}
	case ActionCompleteRetraining:
		if r.Status != StatusRetraining || r.Retraining == nil {
			return Reprimand{}, invalidTransition(r.Status, action.Kind)
		}
		next.Status = StatusResolved
		next.Retraining.Completed = true
	case ActionResolve:
		if r.Status != StatusPending && r.Status != StatusAcknowledged {
			return Reprimand{}, invalidTransition(r.Status, action.Kind)
		}
		next.Status = StatusResolved
		next.Retraining = nil
	default:
		return Reprimand{}, invalidTransition(r.Status, action.Kind)
	}
	next.UpdatedAt = now
	return next, nil
}

func ComputeStats(list []Reprimand) Stats {
	stats := Stats{Total: len(list)}
	employees := map[string]bool{}
	for _, r := range list {
		employees[r.EmployeeID] = true
		switch r.Status {
		case StatusPending:
			stats.Pending++
		case StatusAcknowledged:
			stats.Acknowledged++
		case StatusRetraining:
			stats.Retraining++
		case StatusResolved:
			stats.Resolved++
		}
		if r.Severity == SeverityHigh {
			stats.HighSeverity++
		}
	}
	stats.Employees = len(employees)
	return stats
}
