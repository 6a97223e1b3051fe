package notifications

import "time"

type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyCustom   Frequency = "custom"
)

type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
)

const (
	// realtimeThrottle bounds realtime digests to one per window.
	realtimeThrottle = time.Minute

	maxContacts = 50
)
