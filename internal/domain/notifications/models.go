package notifications

import (
	"time"

	"ppewatch/internal/domain/compliance"
	"ppewatch/internal/domain/ledger"
	"ppewatch/internal/domain/reprimand"
)

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Settings struct {
	Enabled     bool      `json:"enabled"`
	Frequency   Frequency `json:"frequency"`
	CustomValue int       `json:"customValue"`
	CustomUnit  Unit      `json:"customUnit"`
	Contacts    []Contact `json:"contacts"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultSettings mirrors a fresh install: disabled, daily digest.
func DefaultSettings() Settings {
	return Settings{
		Frequency:   FrequencyDaily,
		CustomValue: 1,
		CustomUnit:  UnitHours,
		Contacts:    []Contact{},
	}
}

// DigestData is the compliance state a digest reports on.
type DigestData struct {
	Summary    compliance.Summary `json:"summary"`
	HighRisk   []ledger.Record    `json:"highRisk"`
	Reprimands reprimand.Stats    `json:"reprimands"`
	Connected  bool               `json:"connected"`
}

type DigestResult struct {
	Subject    string    `json:"subject"`
	Recipients int       `json:"recipients"`
	Failed     int       `json:"failed"`
	SentAt     time.Time `json:"sentAt"`
}
