package compliance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// IsTimestampKey reports whether a snapshot key names an observation rather
// than producer metadata. The rule is a single check: the key contains the
// time-of-day separator ':'.
func IsTimestampKey(key string) bool {
	return strings.Contains(key, ":")
}

// Normalize converts a raw snapshot into events sorted newest first and keeps
// at most limit of them. A limit <= 0 keeps everything.
func Normalize(raw map[string]any, limit int) Result {
	result := Result{Events: []Event{}, Schemas: map[Schema]int{}}
	for key, value := range raw {
		entry, ok := value.(map[string]any)
		if !IsTimestampKey(key) || !ok || entry == nil {
			result.Skipped++
			continue
		}
		event, issue := normalizeEntry(key, entry)
		if issue != nil {
			result.Malformed++
			result.Issues = append(result.Issues, issue)
		}
		result.Schemas[event.Schema]++
		result.Events = append(result.Events, event)
	}

	SortEvents(result.Events)
	if limit > 0 && len(result.Events) > limit {
		result.Events = result.Events[:limit]
	}
	return result
}

// SortEvents orders valid timestamps descending with ties broken by key
// descending. Invalid timestamps follow, by key descending.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.ValidTimestamp != b.ValidTimestamp {
			return a.ValidTimestamp
		}
		if a.ValidTimestamp && !a.At.Equal(b.At) {
			return a.At.After(b.At)
		}
		return a.ID > b.ID
	})
}

func normalizeEntry(key string, entry map[string]any) (Event, *MalformedEntryError) {
	event := Event{
		ID:         key,
		Timestamp:  key,
		EmployeeID: employeeID(entry),
		Hardhat:    ppeFlag(lookup(entry, "hardhat", "Hardhat")),
		Vest:       ppeFlag(lookup(entry, "vest", "Vest")),
		Gloves:     ppeFlag(lookup(entry, "gloves", "Gloves")),
		Direction:  direction(entry),
		Door:       door(entry),
		Schema:     DetectSchema(entry),
	}

	at, err := ParseTimestamp(key)
	if err != nil {
		return event, &MalformedEntryError{Key: key, Reason: "unparseable timestamp"}
	}
	event.At = at
	event.ValidTimestamp = true
	event.Timestamp = at.Format(CanonicalLayout)
	return event, nil
}

// ParseTimestamp accepts the layouts producers have emitted over time.
// Zone-less layouts are read as UTC wall-clock time.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", value)
}

func lookup(entry map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if value, ok := entry[key]; ok && value != nil {
			return value, true
		}
	}
	return nil, false
}

// ppeFlag accepts only 1 and "1". Anything else, including true, "true"
// and a missing field, is false.
func ppeFlag(value any, ok bool) bool {
	if !ok {
		return false
	}
	switch v := value.(type) {
	case float64:
		return v == 1
	case float32:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	case int32:
		return v == 1
	case string:
		return strings.TrimSpace(v) == "1"
	}
	return false
}

// sensorOn reads door and proximity sensors, which some producers report
// as booleans.
func sensorOn(value any, ok bool) bool {
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		s := strings.TrimSpace(v)
		return s == "1" || strings.EqualFold(s, "true")
	}
	return ppeFlag(value, ok)
}

func employeeID(entry map[string]any) string {
	value, ok := lookup(entry, employeeKeys...)
	if !ok {
		return UnknownEmployee
	}
	var id string
	switch v := value.(type) {
	case string:
		id = strings.TrimSpace(v)
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		id = strconv.Itoa(v)
	case int64:
		id = strconv.FormatInt(v, 10)
	default:
		id = strings.TrimSpace(fmt.Sprint(v))
	}
	if id == "" {
		return UnknownEmployee
	}
	return id
}

// direction prefers an explicit label, then the front/back trigger pair.
func direction(entry map[string]any) Direction {
	if value, ok := lookup(entry, directionKeys...); ok {
		if label, isString := value.(string); isString {
			switch strings.ToLower(strings.TrimSpace(label)) {
			case "entry", "in", "enter":
				return DirectionEntry
			case "exit", "out", "leave":
				return DirectionExit
			}
		}
	}

	front, hasFront := lookup(entry, frontKeys...)
	back, hasBack := lookup(entry, backKeys...)
	if !hasFront && !hasBack {
		return DirectionUnknown
	}
	frontOn := sensorOn(front, hasFront)
	backOn := sensorOn(back, hasBack)
	switch {
	case frontOn && !backOn:
		return DirectionEntry
	case backOn && !frontOn:
		return DirectionExit
	}
	return DirectionUnknown
}

func door(entry map[string]any) DoorStatus {
	value, ok := lookup(entry, doorKeys...)
	if !ok {
		return DoorUnknown
	}
	if label, isString := value.(string); isString {
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "open", "opened", "1":
			return DoorOpen
		case "closed", "close", "0":
			return DoorClosed
		}
		return DoorUnknown
	}
	if sensorOn(value, true) {
		return DoorOpen
	}
	switch v := value.(type) {
	case float64:
		if v == 0 {
			return DoorClosed
		}
	case int:
		if v == 0 {
			return DoorClosed
		}
	case bool:
		return DoorClosed
	}
	return DoorUnknown
}
