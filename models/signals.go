// ABOUTME: Boundary types for external signal sources
// ABOUTME: Mail messages, attachments, and calendar events as seen by the detectors
package models

import (
	"strings"
	"time"
)

// Message is one mail message from the mailbox being watched.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	SentAt      time.Time    `json:"sent_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// FromAddress returns the normalized sender address.
func (m *Message) FromAddress() string {
	return NormalizeEmail(m.From)
}

// Mentions reports whether the address appears in the subject or body.
func (m *Message) Mentions(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	return ContainsAddress(m.Subject, email) || ContainsAddress(m.Body, email)
}

// ContainsAddress reports whether text holds email as a whole address, so
// jane@example.com does not match mary.jane@example.com or jane@example.com.au.
func ContainsAddress(text, email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	text = strings.ToLower(text)
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], email)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(email)
		if (start == 0 || !isLocalPartByte(text[start-1])) && addressEndsAt(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func isLocalPartByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte(".!#$%&'*+-/=?^_`{|}~", c) >= 0
}

func isDomainByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// addressEndsAt reports whether the domain stops at end. A trailing dot is
// sentence punctuation unless a domain label follows it.
func addressEndsAt(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	c := text[end]
	if isDomainByte(c) || c == '@' {
		return false
	}
	if c == '.' {
		return end+1 >= len(text) || !isDomainByte(text[end+1])
	}
	return true
}

// Attachment is a file part of a message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// IsCalendar reports whether the attachment is an iCalendar payload.
func (a *Attachment) IsCalendar() bool {
	return strings.EqualFold(a.ContentType, "text/calendar") ||
		strings.EqualFold(a.ContentType, "application/ics") ||
		strings.HasSuffix(strings.ToLower(a.Filename), ".ics")
}

// CalendarEvent is one event from the owner's calendar.
type CalendarEvent struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary,omitempty"`
	Attendees []string  `json:"attendees"`
	Start     time.Time `json:"start"`
}

// HasAttendee reports whether email is on the attendee list.
func (e *CalendarEvent) HasAttendee(email string) bool {
	email = NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, a := range e.Attendees {
		if NormalizeEmail(a) == email {
			return true
		}
	}
	return false
}
