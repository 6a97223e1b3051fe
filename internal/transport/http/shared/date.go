package shared

import (
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ParseDate reads a query date filter. Event timestamps carry no zone, so
// results are normalized to UTC to compare with them.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	var lastErr error
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
