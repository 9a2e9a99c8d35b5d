// ABOUTME: Human-readable date/time extraction from invitation subjects and bodies
// ABOUTME: A small set of patterns: ISO, month-name, and US numeric dates with optional times
package detect

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})(?:[T ](\d{1,2}):(\d{2}))?`)

	monthDatePattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})` +
		`(?:,?\s+(?:at\s+|@\s*)?(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m\.?)?)?`)

	usDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})/(\d{1,2})/(\d{4})(?:,?\s+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*([ap]\.?m\.?)?)?`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ExtractDateTime returns the first date (and time, when present) found in
// text. Times without minutes or an am/pm marker are ignored.
func ExtractDateTime(text string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		year, month, day := atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])
		hour, minute := -1, 0
		if m[4] != "" {
			hour, minute = atoi(m[4]), atoi(m[5])
		}
		if t, ok := buildTime(year, month, day, hour, minute, loc); ok {
			return t, true
		}
	}

	if m := monthDatePattern.FindStringSubmatch(text); m != nil {
		month := monthIndex[strings.ToLower(m[1])]
		hour, minute := clockFrom(m[4], m[5], m[6])
		if t, ok := buildTime(atoi(m[3]), month, atoi(m[2]), hour, minute, loc); ok {
			return t, true
		}
	}

	if m := usDatePattern.FindStringSubmatch(text); m != nil {
		hour, minute := clockFrom(m[4], m[5], m[6])
		if t, ok := buildTime(atoi(m[3]), time.Month(atoi(m[1])), atoi(m[2]), hour, minute, loc); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// clockFrom converts matched hour/minute/meridiem groups; -1 means no time.
func clockFrom(h, m, meridiem string) (int, int) {
	if h == "" || (m == "" && meridiem == "") {
		return -1, 0
	}
	hour, minute := atoi(h), 0
	if m != "" {
		minute = atoi(m)
	}
	switch strings.ToLower(strings.ReplaceAll(meridiem, ".", "")) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute
}

func buildTime(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour < 0 {
		hour, minute = 0, 0
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	// Reject normalized dates like Feb 31
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
