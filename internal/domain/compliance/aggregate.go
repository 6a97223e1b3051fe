package compliance

import (
	"sort"
	"strings"
)

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// ComplianceRate is the percentage of events with all equipment worn.
// An empty window yields 0.
func ComplianceRate(events []Event) float64 {
	return percent(countCompliant(events), len(events))
}

func countCompliant(events []Event) int {
	compliant := 0
	for _, e := range events {
		if e.Compliant() {
			compliant++
		}
	}
	return compliant
}

func EntryExitCounts(events []Event) DirectionCounts {
	var counts DirectionCounts
	for _, e := range events {
		switch e.Direction {
		case DirectionEntry:
			counts.Entry++
		case DirectionExit:
			counts.Exit++
		default:
			counts.Unknown++
		}
	}
	return counts
}

// GroupByCalendarDate buckets valid events by date, oldest date first.
func GroupByCalendarDate(events []Event) []DateGroup {
	index := map[string]int{}
	var groups []DateGroup
	for _, e := range events {
		date, ok := e.Date()
		if !ok {
			continue
		}
		pos, seen := index[date]
		if !seen {
			pos = len(groups)
			index[date] = pos
			groups = append(groups, DateGroup{Date: date})
		}
		g := &groups[pos]
		g.Events = append(g.Events, e)
		g.Total++
		if e.Compliant() {
			g.Compliant++
		} else {
			g.Violations++
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date < groups[j].Date })
	for i := range groups {
		groups[i].ComplianceRate = percent(groups[i].Compliant, groups[i].Total)
	}
	return groups
}

// LastDays keeps the n most recent date groups. n <= 0 keeps all.
func LastDays(groups []DateGroup, n int) []DateGroup {
	if n <= 0 || n >= len(groups) {
		return groups
	}
	return groups[len(groups)-n:]
}

// PatternLabel names a set of missing equipment, e.g. "Hardhat Only" or
// "Vest + Gloves".
func PatternLabel(missing []Equipment) string {
	if len(missing) == 1 {
		return string(missing[0]) + " Only"
	}
	parts := make([]string, len(missing))
	for i, item := range missing {
		parts[i] = string(item)
	}
	return strings.Join(parts, " + ")
}

// ViolationPatternHistogram counts each distinct combination of missing
// equipment. Percentages are relative to all events, compliant ones included.
func ViolationPatternHistogram(events []Event) map[string]PatternStat {
	counts := map[string]int{}
	for _, e := range events {
		missing := e.Missing()
		if len(missing) == 0 {
			continue
		}
		counts[PatternLabel(missing)]++
	}
	out := make(map[string]PatternStat, len(counts))
	for label, count := range counts {
		out[label] = PatternStat{Count: count, Percentage: percent(count, len(events))}
	}
	return out
}

// HourlyActivity returns one bucket per hour that has events, ascending.
func HourlyActivity(events []Event) []HourBucket {
	byHour := map[int]*HourBucket{}
	for _, e := range events {
		hour, ok := e.Hour()
		if !ok {
			continue
		}
		bucket, exists := byHour[hour]
		if !exists {
			bucket = &HourBucket{Hour: hour}
			byHour[hour] = bucket
		}
		bucket.Total++
		switch e.Direction {
		case DirectionEntry:
			bucket.Entries++
		case DirectionExit:
			bucket.Exits++
		}
	}
	out := make([]HourBucket, 0, len(byHour))
	for _, bucket := range byHour {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// SlotFor maps an hour onto the half-open slots [6,12) [12,18) [18,24) [0,6).
func SlotFor(hour int) Slot {
	switch {
	case hour >= 6 && hour < 12:
		return SlotMorning
	case hour >= 12 && hour < 18:
		return SlotAfternoon
	case hour >= 18 && hour < 24:
		return SlotEvening
	}
	return SlotNight
}

// TimeSlotCompliance always reports all four slots.
func TimeSlotCompliance(events []Event) map[Slot]SlotStat {
	compliant := map[Slot]int{}
	out := make(map[Slot]SlotStat, len(AllSlots))
	for _, slot := range AllSlots {
		out[slot] = SlotStat{}
	}
	for _, e := range events {
		hour, ok := e.Hour()
		if !ok {
			continue
		}
		slot := SlotFor(hour)
		stat := out[slot]
		stat.Total++
		if e.Compliant() {
			compliant[slot]++
		} else {
			stat.Violations++
		}
		out[slot] = stat
	}
	for slot, stat := range out {
		stat.Compliance = percent(compliant[slot], stat.Total)
		out[slot] = stat
	}
	return out
}

func EquipmentCompliance(events []Event) EquipmentRates {
	var hardhat, vest, gloves int
	for _, e := range events {
		if e.Hardhat {
			hardhat++
		}
		if e.Vest {
			vest++
		}
		if e.Gloves {
			gloves++
		}
	}
	return EquipmentRates{
		Hardhat: percent(hardhat, len(events)),
		Vest:    percent(vest, len(events)),
		Gloves:  percent(gloves, len(events)),
	}
}

// Filter applies a case-insensitive search over employee id and timestamp
// plus an optional direction. Order is preserved.
func Filter(events []Event, opts FilterOptions) []Event {
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if opts.Direction != "" && e.Direction != opts.Direction {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.EmployeeID), search) &&
			!strings.Contains(strings.ToLower(e.Timestamp), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ParseDirectionFilter maps a query value onto a Direction; "" and "all"
// mean no filter.
func ParseDirectionFilter(value string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return "", true
	case "entry":
		return DirectionEntry, true
	case "exit":
		return DirectionExit, true
	case "unknown":
		return DirectionUnknown, true
	}
	return "", false
}

func Summarize(events []Event) Summary {
	compliant := countCompliant(events)
	summary := Summary{
		Total:          len(events),
		Compliant:      compliant,
		Violations:     len(events) - compliant,
		ComplianceRate: percent(compliant, len(events)),
		Directions:     EntryExitCounts(events),
		Equipment:      EquipmentCompliance(events),
		Patterns:       ViolationPatternHistogram(events),
		Hourly:         HourlyActivity(events),
		TimeSlots:      TimeSlotCompliance(events),
		Daily:          GroupByCalendarDate(events),
	}
	var latest *Event
	for i := range events {
		if events[i].ValidTimestamp && (latest == nil || events[i].At.After(latest.At)) {
			latest = &events[i]
		}
	}
	if latest != nil {
		summary.LatestAt = latest.Timestamp
	}
	return summary
}
