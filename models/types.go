// ABOUTME: Data models for lead follow-up tracking
// ABOUTME: Defines Lead, MatchMethod, CompletionStatus, and store update inputs/results
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SummaryUnavailable is stored when no synopsis could be produced.
const SummaryUnavailable = "Summary unavailable"

// Lead is one prospective client, keyed by contact address.
type Lead struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	PreferredDay  string    `json:"preferred_day,omitempty"`
	PreferredTime string    `json:"preferred_time,omitempty"`
	Services      []string  `json:"services,omitempty"`
	Message       string    `json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ThreadID      string    `json:"thread_id,omitempty"`

	QuestionnaireAnswered bool        `json:"questionnaire_answered"`
	AppointmentScheduled  bool        `json:"appointment_scheduled"`
	FollowedUp            bool        `json:"followed_up"`
	MatchMethod           MatchMethod `json:"match_method,omitempty"`
	ReminderSentAt        *time.Time  `json:"reminder_sent_at,omitempty"`

	Summary     string    `json:"summary,omitempty"`
	RawReply    string    `json:"raw_response,omitempty"`
	ParsedReply *FieldMap `json:"parsed_response,omitempty"`

	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	ScheduledEventID string     `json:"scheduled_event_id,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the idempotency key for the lead: its lowercased address.
func (l *Lead) Key() string {
	return NormalizeEmail(l.Email)
}

// Status derives the completion status from the two independent flags.
func (l *Lead) Status() CompletionStatus {
	switch {
	case l.QuestionnaireAnswered && l.AppointmentScheduled:
		return StatusFullyComplete
	case l.QuestionnaireAnswered:
		return StatusQuestionnaireOnly
	case l.AppointmentScheduled:
		return StatusScheduledOnly
	default:
		return StatusNotStarted
	}
}

// Resolved reports whether both the questionnaire and the appointment are done.
func (l *Lead) Resolved() bool {
	return l.Status() == StatusFullyComplete
}

// NormalizeEmail converts an address to its comparison form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CompletionStatus is computed from a lead's flags, never stored on its own.
type CompletionStatus string

const (
	StatusNotStarted        CompletionStatus = "not_started"
	StatusQuestionnaireOnly CompletionStatus = "questionnaire_only"
	StatusScheduledOnly     CompletionStatus = "scheduled_only"
	StatusFullyComplete     CompletionStatus = "fully_complete"
)

// ParseCompletionStatus accepts the persisted/CLI spelling of a status.
func ParseCompletionStatus(s string) (CompletionStatus, bool) {
	switch CompletionStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusNotStarted:
		return StatusNotStarted, true
	case StatusQuestionnaireOnly:
		return StatusQuestionnaireOnly, true
	case StatusScheduledOnly:
		return StatusScheduledOnly, true
	case StatusFullyComplete:
		return StatusFullyComplete, true
	}
	return "", false
}

// MatchMethod records which strategy produced the most recent signal.
type MatchMethod string

// Ordered from most to least trustworthy.
const (
	MatchCalendarAPI      MatchMethod = "calendar_api"
	MatchThreadContinuity MatchMethod = "thread_continuity"
	MatchBroadSearch      MatchMethod = "broad_search"
	MatchICSAttachment    MatchMethod = "ics_attachment"
	MatchInviteSubject    MatchMethod = "invite_subject"
	MatchSchedulingLink   MatchMethod = "scheduling_link"
)

var methodPriority = map[MatchMethod]int{
	MatchCalendarAPI:      1,
	MatchThreadContinuity: 2,
	MatchBroadSearch:      3,
	MatchICSAttachment:    4,
	MatchInviteSubject:    4,
	MatchSchedulingLink:   4,
}

// Valid reports whether m is one of the known methods.
func (m MatchMethod) Valid() bool {
	_, ok := methodPriority[m]
	return ok
}

// Priority returns the detector rank of m; lower is more trustworthy.
// Unknown methods rank last.
func (m MatchMethod) Priority() int {
	if p, ok := methodPriority[m]; ok {
		return p
	}
	return len(methodPriority) + 1
}

// IsBooking reports whether the method confirms scheduling rather than a reply.
func (m MatchMethod) IsBooking() bool {
	switch m {
	case MatchCalendarAPI, MatchICSAttachment, MatchInviteSubject, MatchSchedulingLink:
		return true
	}
	return false
}

// QuestionnaireUpdate is the payload of a questionnaire response upsert.
type QuestionnaireUpdate struct {
	Fields      *FieldMap
	CleanedText string
	Summary     string
	Method      MatchMethod
}

// BookingUpdate is the payload of a booking upsert. At least one of
// ScheduledAt or EventID must be set.
type BookingUpdate struct {
	ScheduledAt *time.Time
	EventID     string
	Method      MatchMethod
}

// HasEvidence reports whether the update carries a time or an event id.
func (b BookingUpdate) HasEvidence() bool {
	return b.ScheduledAt != nil || strings.TrimSpace(b.EventID) != ""
}

// UpdateResult describes the outcome of an idempotent upsert.
type UpdateResult struct {
	Lead    *Lead            `json:"lead"`
	Changed bool             `json:"changed"`
	Status  CompletionStatus `json:"status"`
}

// HasSummary reports whether the lead carries a real synopsis.
func (l *Lead) HasSummary() bool {
	s := strings.TrimSpace(l.Summary)
	return s != "" && !strings.EqualFold(s, SummaryUnavailable)
}

// PassRun is the audit row of one reconciliation pass.
type PassRun struct {
	ID            string     `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Status        string     `json:"status"`
	Processed     int        `json:"processed"`
	Matched       int        `json:"matched"`
	RemindersSent int        `json:"reminders_sent"`
	Errors        int        `json:"errors"`
	Skipped       int        `json:"skipped"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// Pass run states.
const (
	PassRunning  = "running"
	PassComplete = "complete"
	PassFailed   = "failed"
)
