package formsnapshot

import (
	"strings"
	"time"
)

// timeLayouts are the formats produced by date and datetime-local controls
// and by JSON encoders.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a form timestamp. Values without a zone are read as UTC
// wall-clock time.
func ParseTime(s string) (time.Time, bool) {
	return ParseTimeIn(s, time.UTC)
}

// ParseTimeIn parses a form timestamp, reading values without a zone in loc.
func ParseTimeIn(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time returns the value of key as a timestamp read in loc, or nil when it
// is empty or not a recognised format.
func (s Snapshot) Time(key string, loc *time.Location) *time.Time {
	t, ok := ParseTimeIn(s.String(key), loc)
	if !ok {
		return nil
	}
	return &t
}
