package reprimand

import "time"

type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusRetraining   Status = "retraining"
	StatusResolved     Status = "resolved"
)

var AllStatuses = []Status{StatusPending, StatusAcknowledged, StatusRetraining, StatusResolved}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type RetrainingType string

const (
	RetrainingSafetyBriefing      RetrainingType = "safety_briefing"
	RetrainingPPETraining         RetrainingType = "ppe_training"
	RetrainingComprehensiveSafety RetrainingType = "comprehensive_safety"
	RetrainingSupervisorMeeting   RetrainingType = "supervisor_meeting"
)

type RetrainingInfo struct {
	Type     RetrainingType `json:"type"`
	Label    string         `json:"label"`
	Duration time.Duration  `json:"-"`
	Minutes  int            `json:"durationMinutes,omitempty"`
}

var retrainingCatalog = []RetrainingInfo{
	{Type: RetrainingSafetyBriefing, Label: "Safety Briefing", Duration: time.Hour},
	{Type: RetrainingPPETraining, Label: "PPE Training", Duration: 2 * time.Hour},
	{Type: RetrainingComprehensiveSafety, Label: "Comprehensive Safety Course", Duration: 4 * time.Hour},
	{Type: RetrainingSupervisorMeeting, Label: "Supervisor Meeting"},
}

// RetrainingCatalog lists the supported retraining types. A zero Duration
// means the session has no fixed length.
func RetrainingCatalog() []RetrainingInfo {
	out := make([]RetrainingInfo, len(retrainingCatalog))
	for i, info := range retrainingCatalog {
		info.Minutes = int(info.Duration.Minutes())
		out[i] = info
	}
	return out
}

func LookupRetraining(t RetrainingType) (RetrainingInfo, bool) {
	for _, info := range RetrainingCatalog() {
		if info.Type == t {
			return info, true
		}
	}
	return RetrainingInfo{}, false
}

type ActionKind string

const (
	ActionIssue              ActionKind = "issue"
	ActionAcknowledge        ActionKind = "acknowledge"
	ActionAssignRetraining   ActionKind = "assign_retraining"
	ActionCompleteRetraining ActionKind = "complete_retraining"
	ActionResolve            ActionKind = "resolve"
)

var transitionActions = []ActionKind{ActionAcknowledge, ActionAssignRetraining, ActionCompleteRetraining, ActionResolve}

const notesPrefix = "PPE violations detected: "
