// ABOUTME: Scheduling-link URL recognition
// ABOUTME: Maps Calendly, Cal.com, SavvyCal and similar booking URLs to stable tokens
package detect

import (
	"net/url"
	"regexp"
	"strings"
)

var schedulingLinkPattern = regexp.MustCompile(`(?i)https?://(?:[a-z0-9-]+\.)*(?:` +
	`calendly\.com|cal\.com|savvycal\.com|acuityscheduling\.com|tidycal\.com|youcanbook\.me|zcal\.co|` +
	`meetings\.hubspot\.com|calendar\.app\.google|calendar\.google\.com/calendar/appointments)` +
	`[^\s"'<>()\[\]]*`)

// tokenParams are query parameters that identify one booking.
var tokenParams = []string{"id", "uuid", "invitee", "invitee_uuid", "appointmentType", "booking"}

// SchedulingLinks returns the stable tokens of every scheduling URL in text,
// in order of appearance and without duplicates.
func SchedulingLinks(text string) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, raw := range schedulingLinkPattern.FindAllString(text, -1) {
		tok := LinkToken(raw)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// LinkToken canonicalizes a scheduling URL: lowercased host and path without
// a trailing slash, plus any booking-identifying query parameter.
func LinkToken(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), ".,;:!?")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	tok := host + strings.TrimRight(strings.ToLower(u.Path), "/")

	q := u.Query()
	for _, p := range tokenParams {
		if v := q.Get(p); v != "" {
			tok += "?" + p + "=" + v
			break
		}
	}
	return tok
}
