package notifications

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// NormalizeSettings trims input, fills defaults and validates.
func NormalizeSettings(in Settings) (Settings, error) {
	out := in
	out.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(in.Frequency))))
	if out.Frequency == "" {
		out.Frequency = FrequencyDaily
	}
	switch out.Frequency {
	case FrequencyRealtime, FrequencyHourly, FrequencyDaily:
	case FrequencyCustom:
		if in.CustomValue <= 0 {
			return Settings{}, fmt.Errorf("%w: customValue must be positive", ErrInvalidSettings)
		}
		out.CustomUnit = Unit(strings.ToLower(strings.TrimSpace(string(in.CustomUnit))))
		if out.CustomUnit != UnitMinutes && out.CustomUnit != UnitHours {
			return Settings{}, fmt.Errorf("%w: customUnit must be minutes or hours", ErrInvalidSettings)
		}
	default:
		return Settings{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSettings, in.Frequency)
	}
	if out.CustomValue <= 0 {
		out.CustomValue = 1
	}
	if out.CustomUnit == "" {
		out.CustomUnit = UnitHours
	}

	if len(in.Contacts) > maxContacts {
		return Settings{}, fmt.Errorf("%w: at most %d contacts", ErrInvalidSettings, maxContacts)
	}
	seen := map[string]bool{}
	out.Contacts = make([]Contact, 0, len(in.Contacts))
	for _, c := range in.Contacts {
		name := strings.TrimSpace(c.Name)
		email := strings.TrimSpace(c.Email)
		if name == "" {
			return Settings{}, fmt.Errorf("%w: contact name is required", ErrInvalidSettings)
		}
		if !ValidEmail(email) {
			return Settings{}, fmt.Errorf("%w: invalid email %q", ErrInvalidSettings, email)
		}
		key := strings.ToLower(email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Contacts = append(out.Contacts, Contact{Name: name, Email: email})
	}
	return out, nil
}

// Interval is the spacing between scheduled digests. Realtime digests are
// event driven and report the throttle window instead.
func (s Settings) Interval() time.Duration {
	switch s.Frequency {
	case FrequencyRealtime:
		return realtimeThrottle
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyCustom:
		unit := time.Hour
		if s.CustomUnit == UnitMinutes {
			unit = time.Minute
		}
		return time.Duration(max(s.CustomValue, 1)) * unit
	}
	return 24 * time.Hour
}

// Due reports whether a scheduled digest should go out at now.
func (s Settings) Due(now, lastSent time.Time) bool {
	if !s.Enabled || s.Frequency == FrequencyRealtime || len(s.Contacts) == 0 {
		return false
	}
	return lastSent.IsZero() || !now.Before(lastSent.Add(s.Interval()))
}

// BuildDigest renders the plain-text email for data.
func BuildDigest(data DigestData, now time.Time) (string, string) {
	sum := data.Summary
	subject := fmt.Sprintf("PPE compliance digest: %.1f%% compliant (%d events)", sum.ComplianceRate, sum.Total)

	var b strings.Builder
	fmt.Fprintf(&b, "PPE compliance digest generated %s\n\n", now.Format("2006-01-02 15:04 MST"))
	if !data.Connected {
		b.WriteString("WARNING: the live data feed is currently unreachable; figures may be stale.\n\n")
	}
	fmt.Fprintf(&b, "Events: %d (compliant %d, violations %d)\n", sum.Total, sum.Compliant, sum.Violations)
	fmt.Fprintf(&b, "Compliance rate: %.1f%%\n", sum.ComplianceRate)
	fmt.Fprintf(&b, "Entries: %d  Exits: %d  Unknown: %d\n", sum.Directions.Entry, sum.Directions.Exit, sum.Directions.Unknown)
	fmt.Fprintf(&b, "Hardhat %.1f%%  Vest %.1f%%  Gloves %.1f%%\n", sum.Equipment.Hardhat, sum.Equipment.Vest, sum.Equipment.Gloves)
	if sum.LatestAt != "" {
		fmt.Fprintf(&b, "Latest observation: %s\n", sum.LatestAt)
	}

	if len(data.HighRisk) > 0 {
		b.WriteString("\nHigh-risk employees:\n")
		for _, rec := range data.HighRisk {
			types := make([]string, len(rec.ViolationTypes))
			for i, v := range rec.ViolationTypes {
				types[i] = string(v)
			}
			fmt.Fprintf(&b, "- %s: %d violations (%s), %d pending reprimands\n",
				rec.EmployeeID, rec.TotalViolations, strings.Join(types, ", "), rec.PendingReprimands)
		}
	}

	r := data.Reprimands
	fmt.Fprintf(&b, "\nReprimands: %d total, %d pending, %d in retraining, %d resolved, %d high severity\n",
		r.Total, r.Pending, r.Retraining, r.Resolved, r.HighSeverity)
	return subject, b.String()
}
