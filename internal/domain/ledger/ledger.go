// Package ledger derives per-employee violation history from an event window
// and the current reprimand collection.
package ledger

import (
	"sort"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/domain/reprimand"
)

const DefaultThreshold = 3

type Record struct {
	EmployeeID        string                 `json:"employeeId"`
	TotalViolations   int                    `json:"totalViolations"`
	ViolationTypes    []compliance.Equipment `json:"violationTypes"`
	PendingReprimands int                    `json:"pendingReprimands"`
	OpenReprimands    int                    `json:"openReprimands"`
	HighRisk          bool                   `json:"highRisk"`
}

// Ledger is keyed by employee id. It only contains employees with at least
// one violation in the window.
type Ledger map[string]Record

// Build counts violations per employee and cross references pending
// reprimands. HighRisk is evaluated against DefaultThreshold.
func Build(events []compliance.Event, reprimands []reprimand.Reprimand) Ledger {
	seen := map[string]map[compliance.Equipment]bool{}
	out := Ledger{}
	for _, e := range events {
		missing := e.Missing()
		if len(missing) == 0 {
			continue
		}
		rec := out[e.EmployeeID]
		rec.EmployeeID = e.EmployeeID
		rec.TotalViolations++
		if seen[e.EmployeeID] == nil {
			seen[e.EmployeeID] = map[compliance.Equipment]bool{}
		}
		for _, item := range missing {
			seen[e.EmployeeID][item] = true
		}
		out[e.EmployeeID] = rec
	}

	for id, rec := range out {
		rec.ViolationTypes = make([]compliance.Equipment, 0, len(seen[id]))
		for _, item := range compliance.AllEquipment {
			if seen[id][item] {
				rec.ViolationTypes = append(rec.ViolationTypes, item)
			}
		}
		rec.HighRisk = rec.TotalViolations >= DefaultThreshold
		out[id] = rec
	}

	for _, r := range reprimands {
		rec, ok := out[r.EmployeeID]
		if !ok {
			continue
		}
		if r.Status == reprimand.StatusPending {
			rec.PendingReprimands++
		}
		if r.Status != reprimand.StatusResolved {
			rec.OpenReprimands++
		}
		out[r.EmployeeID] = rec
	}
	return out
}

// Entries lists every record with HighRisk evaluated against threshold,
// ordered by total violations descending then employee id ascending.
func (l Ledger) Entries(threshold int) []Record {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	out := make([]Record, 0, len(l))
	for _, rec := range l {
		rec.HighRisk = rec.TotalViolations >= threshold
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalViolations != out[j].TotalViolations {
			return out[i].TotalViolations > out[j].TotalViolations
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out
}

// HighRisk returns the employees at or above threshold in Entries order.
func HighRisk(l Ledger, threshold int) []Record {
	var out []Record
	for _, rec := range l.Entries(threshold) {
		if rec.HighRisk {
			out = append(out, rec)
		}
	}
	return out
}
