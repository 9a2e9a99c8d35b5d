// ABOUTME: Minimal iCalendar reader for invitation attachments
// ABOUTME: Unfolds content lines and extracts UID, DTSTART, attendees, and organizer
package detect

import (
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/harperreed/leadsync/models"
)

// ICSEvent is the subset of a VEVENT the attachment detector needs.
type ICSEvent struct {
	UID       string
	Start     *time.Time
	AllDay    bool
	Attendees []string
	Organizer string
}

// Involves reports whether the address is an attendee or the organizer.
func (e *ICSEvent) Involves(email string) bool {
	email = models.NormalizeEmail(email)
	if email == "" {
		return false
	}
	if e.Organizer == email {
		return true
	}
	for _, a := range e.Attendees {
		if a == email {
			return true
		}
	}
	return false
}

// UnfoldICS joins folded content lines (CRLF followed by a space or tab).
func UnfoldICS(data string) []string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")

	var out []string
	for _, line := range strings.Split(data, "\n") {
		if len(out) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			out[len(out)-1] += line[1:]
			continue
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ParseICS returns the VEVENTs found in data. Floating times are read in loc.
func ParseICS(data []byte, loc *time.Location) []*ICSEvent {
	if loc == nil {
		loc = time.UTC
	}

	var events []*ICSEvent
	var cur *ICSEvent
	for _, line := range UnfoldICS(string(data)) {
		name, params, value := splitContentLine(line)
		switch {
		case name == "BEGIN" && strings.EqualFold(value, "VEVENT"):
			cur = &ICSEvent{}
		case name == "END" && strings.EqualFold(value, "VEVENT"):
			if cur != nil {
				events = append(events, cur)
			}
			cur = nil
		case cur == nil:
			continue
		case name == "UID":
			cur.UID = strings.TrimSpace(value)
		case name == "DTSTART":
			if t, allDay, ok := parseICSTime(value, params, loc); ok {
				cur.Start = &t
				cur.AllDay = allDay
			}
		case name == "ATTENDEE":
			if addr := mailtoAddress(value); addr != "" {
				cur.Attendees = append(cur.Attendees, addr)
			}
		case name == "ORGANIZER":
			cur.Organizer = mailtoAddress(value)
		}
	}
	return events
}

// splitContentLine splits "NAME;P1=a;P2=b:value" into its parts.
func splitContentLine(line string) (string, map[string]string, string) {
	head, value := line, ""
	inQuote := false
	for i, r := range line {
		if r == '"' {
			inQuote = !inQuote
		}
		if r == ':' && !inQuote {
			head, value = line[:i], line[i+1:]
			break
		}
	}

	parts := strings.Split(head, ";")
	name := strings.ToUpper(strings.TrimSpace(parts[0]))
	params := make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		if k, v, ok := strings.Cut(p, "="); ok {
			params[strings.ToUpper(k)] = strings.Trim(v, `"`)
		}
	}
	return name, params, value
}

func mailtoAddress(value string) string {
	v := strings.TrimSpace(value)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	if !strings.Contains(v, "@") {
		return ""
	}
	return models.NormalizeEmail(v)
}

// parseICSTime handles UTC, TZID-qualified, floating, and all-day DTSTART values.
func parseICSTime(value string, params map[string]string, loc *time.Location) (time.Time, bool, bool) {
	value = strings.TrimSpace(value)

	if strings.EqualFold(params["VALUE"], "DATE") || len(value) == 8 {
		t, err := time.ParseInLocation("20060102", value, loc)
		return t, true, err == nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t, false, err == nil
	}

	if tzid := params["TZID"]; tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", value, loc)
	return t, false, err == nil
}
