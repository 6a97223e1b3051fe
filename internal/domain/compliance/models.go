package compliance

import (
	"fmt"
	"time"
)

// Event is one normalized PPE observation. Events are never mutated after
// normalization.
type Event struct {
	ID             string     `json:"id"`
	Timestamp      string     `json:"timestamp"`
	At             time.Time  `json:"-"`
	ValidTimestamp bool       `json:"validTimestamp"`
	EmployeeID     string     `json:"employeeId"`
	Hardhat        bool       `json:"hardhat"`
	Vest           bool       `json:"vest"`
	Gloves         bool       `json:"gloves"`
	Direction      Direction  `json:"direction"`
	Door           DoorStatus `json:"door"`
	Schema         Schema     `json:"schema"`
}

func (e Event) Wearing(item Equipment) bool {
	switch item {
	case Hardhat:
		return e.Hardhat
	case Vest:
		return e.Vest
	case Gloves:
		return e.Gloves
	}
	return false
}

func (e Event) Compliant() bool {
	return e.Hardhat && e.Vest && e.Gloves
}

func (e Event) Violation() bool {
	return !e.Compliant()
}

// Missing lists the absent equipment in canonical order.
func (e Event) Missing() []Equipment {
	var out []Equipment
	for _, item := range AllEquipment {
		if !e.Wearing(item) {
			out = append(out, item)
		}
	}
	return out
}

// Hour is the wall-clock hour, only defined for valid timestamps.
func (e Event) Hour() (int, bool) {
	if !e.ValidTimestamp {
		return 0, false
	}
	return e.At.Hour(), true
}

// Date is the calendar date part of the canonical timestamp.
func (e Event) Date() (string, bool) {
	if !e.ValidTimestamp {
		return "", false
	}
	return e.At.Format(dateLayout), true
}

// Result is the outcome of normalizing one snapshot.
type Result struct {
	Events    []Event                `json:"events"`
	Malformed int                    `json:"malformed"`
	Skipped   int                    `json:"skipped"`
	Schemas   map[Schema]int         `json:"schemas"`
	Issues    []*MalformedEntryError `json:"-"`
}

// MalformedEntryError describes an entry that was kept with coerced fields.
type MalformedEntryError struct {
	Key    string
	Reason string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed entry %q: %s", e.Key, e.Reason)
}

type DirectionCounts struct {
	Entry   int `json:"entry"`
	Exit    int `json:"exit"`
	Unknown int `json:"unknown"`
}

type DateGroup struct {
	Date           string  `json:"date"`
	Events         []Event `json:"-"`
	Total          int     `json:"total"`
	Compliant      int     `json:"compliant"`
	Violations     int     `json:"violations"`
	ComplianceRate float64 `json:"complianceRate"`
}

type PatternStat struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type HourBucket struct {
	Hour    int `json:"hour"`
	Entries int `json:"entries"`
	Exits   int `json:"exits"`
	Total   int `json:"total"`
}

type SlotStat struct {
	Compliance float64 `json:"compliance"`
	Total      int     `json:"total"`
	Violations int     `json:"violations"`
}

type EquipmentRates struct {
	Hardhat float64 `json:"hardhat"`
	Vest    float64 `json:"vest"`
	Gloves  float64 `json:"gloves"`
}

type FilterOptions struct {
	Search    string
	Direction Direction
}

// Summary bundles every dashboard metric for one event window.
type Summary struct {
	Total          int                    `json:"total"`
	Compliant      int                    `json:"compliant"`
	Violations     int                    `json:"violations"`
	ComplianceRate float64                `json:"complianceRate"`
	Directions     DirectionCounts        `json:"directions"`
	Equipment      EquipmentRates         `json:"equipment"`
	Patterns       map[string]PatternStat `json:"patterns"`
	Hourly         []HourBucket           `json:"hourly"`
	TimeSlots      map[Slot]SlotStat      `json:"timeSlots"`
	Daily          []DateGroup            `json:"daily"`
	LatestAt       string                 `json:"latestAt,omitempty"`
}
