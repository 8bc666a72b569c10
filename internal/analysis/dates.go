package analysis

import (
	"math"
	"strings"
	"time"

	"issueboard/internal/domain"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e12

// Epochs outside years 1..9999 are not dates.
const (
	minEpochSeconds = -62135596800 // 0001-01-01T00:00:00Z
	maxEpochSeconds = 253402300799 // 9999-12-31T23:59:59Z
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04:05",
	"2006-1-2T15:04:05",
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05Z",
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// ParseDate converts a datasheet value into a timestamp. Numbers are Unix
// epochs (milliseconds above 1e12); strings only go through the date
// layouts, then ISO 8601. Strings without an offset are read in loc.
func ParseDate(v domain.Value, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch v.Kind {
	case domain.KindNumber:
		return fromEpoch(v.Num, loc)
	case domain.KindString:
		return parseDateString(strings.TrimSpace(v.Str), loc)
	default:
		return parseDateString(domain.CoerceText(v), loc)
	}
}

// ParseDateText is ParseDate for already stringified input.
func ParseDateText(s string, loc *time.Location) (time.Time, bool) {
	return ParseDate(domain.String(s), loc)
}

func parseDateString(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	iso := s
	if strings.HasSuffix(iso, "Z") {
		iso = strings.TrimSuffix(iso, "Z") + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, iso, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func fromEpoch(n float64, loc *time.Location) (time.Time, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, false
	}
	if math.Abs(n) > epochMillisThreshold {
		n /= 1000
	}
	if n < minEpochSeconds || n > maxEpochSeconds {
		return time.Time{}, false
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).In(loc), true
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
