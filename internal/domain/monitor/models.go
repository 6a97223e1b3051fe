package monitor

import (
	"time"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/domain/ledger"
	"ppewatch/internal/domain/reprimand"
)

type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

const (
	DefaultRetryInterval = time.Second
	maxRetryInterval     = 30 * time.Second
)

type Config struct {
	Path         string
	Retention    int
	Threshold    int
	AutoEscalate bool
	// RetryInterval is the first delay before retrying a failed event
	// subscription. It doubles up to 30s.
	RetryInterval time.Duration
}

// Status describes the event feed.
type Status struct {
	State      State                     `json:"state"`
	Connected  bool                      `json:"connected"`
	LastError  string                    `json:"lastError,omitempty"`
	LastUpdate *time.Time                `json:"lastUpdate,omitempty"`
	Deliveries int                       `json:"deliveries"`
	Malformed  int                       `json:"malformed"`
	Skipped    int                       `json:"skipped"`
	Schemas    map[compliance.Schema]int `json:"schemas"`
}

// View is an immutable copy of the monitor's working set.
type View struct {
	Events     []compliance.Event
	Summary    compliance.Summary
	Ledger     ledger.Ledger
	Reprimands []reprimand.Reprimand
	Status     Status
	Threshold  int
}

func (v View) HighRisk(threshold int) []ledger.Record {
	if threshold <= 0 {
		threshold = v.Threshold
	}
	return ledger.HighRisk(v.Ledger, threshold)
}
