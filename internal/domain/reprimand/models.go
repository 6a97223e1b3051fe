package reprimand

import (
	"time"

	"ppewatch/internal/domain/compliance"
)

type Retraining struct {
	Type       RetrainingType `json:"type"`
	AssignedAt time.Time      `json:"assignedAt"`
	Completed  bool           `json:"completed"`
}

type Reprimand struct {
	ID         string                 `json:"id"`
	EmployeeID string                 `json:"employeeId"`
	IssuedAt   time.Time              `json:"issuedAt"`
	Violations []compliance.Equipment `json:"violations"`
	Severity   Severity               `json:"severity"`
	Status     Status                 `json:"status"`
	Notes      string                 `json:"notes"`
	Retraining *Retraining            `json:"retraining,omitempty"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Clone returns a copy that shares no memory with r.
func (r Reprimand) Clone() Reprimand {
	out := r
	if r.Violations != nil {
		out.Violations = append([]compliance.Equipment(nil), r.Violations...)
	}
	if r.Retraining != nil {
		retraining := *r.Retraining
		out.Retraining = &retraining
	}
	return out
}

func (r Reprimand) Open() bool {
	return r.Status != StatusResolved
}

type IssueInput struct {
	EmployeeID string   `json:"employeeId"`
	Violations []string `json:"violations"`
	Notes      string   `json:"notes"`
}

type Action struct {
	Kind           ActionKind
	RetrainingType RetrainingType
}

func Acknowledge() Action        { return Action{Kind: ActionAcknowledge} }
func CompleteRetraining() Action { return Action{Kind: ActionCompleteRetraining} }
func Resolve() Action            { return Action{Kind: ActionResolve} }

func AssignRetraining(t RetrainingType) Action {
	return Action{Kind: ActionAssignRetraining, RetrainingType: t}
}

// Patch is the full set of mutable fields written by a transition.
type Patch struct {
	Status     Status
	Retraining *Retraining
	UpdatedAt  time.Time
}

func PatchFrom(r Reprimand) Patch {
	return Patch{Status: r.Status, Retraining: r.Clone().Retraining, UpdatedAt: r.UpdatedAt}
}

// Apply writes the patch onto r.
func (p Patch) Apply(r Reprimand) Reprimand {
	out := r.Clone()
	out.Status = p.Status
	out.Retraining = nil
	if p.Retraining != nil {
		retraining := *p.Retraining
		out.Retraining = &retraining
	}
	out.UpdatedAt = p.UpdatedAt
	return out
}

type Stats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Acknowledged int `json:"acknowledged"`
	Retraining   int `json:"retraining"`
	Resolved     int `json:"resolved"`
	HighSeverity int `json:"highSeverity"`
	Employees    int `json:"employees"`
}
