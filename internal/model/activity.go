package model

import (
	"fmt"
	"strings"
	"time"
)

// Activity is a single start/stop execution record logged against an
// assignment. The ID is a decimal integer of up to 19 digits and is
// carried as text end-to-end: parsing it through a float64-based decoder
// silently truncates anything above 2^53.
type Activity struct {
	ID        string   `json:"id"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	GPSTrack  string   `json:"gps_track,omitempty"`
	Photos    []string `json:"photos,omitempty"`
	Final     bool     `json:"final,omitempty"`
}

// Ended reports whether the activity has a usable end timestamp.
func (a Activity) Ended() bool {
	return EndedTimestamp(a.EndDate)
}

// endFieldAliases is the fixed set of field names upstream sources have
// been observed to use for an activity's end timestamp. The upstream
// schema never settled on one spelling, so the ended predicate consults
// all of them. Tagged lookup only: no reflection-based field scanning.
var endFieldAliases = []string{"end_date", "endDate", "ACTIVITY_END", "activity_end", "end"}

// ActivityEnded evaluates the ended predicate against a raw decoded
// activity object. Every known alias is checked: a placeholder under one
// alias does not mask a real end timestamp under another.
func ActivityEnded(fields map[string]any) bool {
	for _, alias := range endFieldAliases {
		if ts, ok := fields[alias].(string); ok && EndedTimestamp(ts) {
			return true
		}
	}
	return false
}

// EndTimestamp returns the end timestamp of a raw decoded activity
// object, consulting every known alias in order. A non-string value
// under an alias is ignored rather than treated as an end timestamp.
func EndTimestamp(fields map[string]any) (string, bool) {
	for _, alias := range endFieldAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		switch ts := v.(type) {
		case string:
			if ts != "" {
				return ts, true
			}
		case fmt.Stringer:
			if s := ts.String(); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// timestampLayouts are the accepted textual timestamp forms, most
// specific first. Field devices report "YYYY-MM-DD HH:mm"; older
// worksheet exports use the DD/MM/YYYY convention.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// EndedTimestamp reports whether s is a present, non-empty timestamp
// that parses to a valid calendar date after year 1900. Placeholder
// values like "0000-00-00" fail the parse and count as not ended.
func EndedTimestamp(s string) bool {
	t, ok := ParseTimestamp(s)
	return ok && t.Year() > 1900
}

// ParseTimestamp parses s against the accepted layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
