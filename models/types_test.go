// ABOUTME: Tests for lead data models
// ABOUTME: Validates completion status, match method ranking, and ordered field maps
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadStatus(t *testing.T) {
	tests := []struct {
		name          string
		questionnaire bool
		scheduled     bool
		want          CompletionStatus
	}{
		{"neither", false, false, StatusNotStarted},
		{"questionnaire only", true, false, StatusQuestionnaireOnly},
		{"scheduled only", false, true, StatusScheduledOnly},
		{"both", true, true, StatusFullyComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := &Lead{QuestionnaireAnswered: tt.questionnaire, AppointmentScheduled: tt.scheduled}
			assert.Equal(t, tt.want, lead.Status())
			assert.Equal(t, tt.want == StatusFullyComplete, lead.Resolved())
		})
	}
}

func TestLeadKeyIsLowercased(t *testing.T) {
	lead := &Lead{Email: "  Jane.Doe@Example.COM "}
	assert.Equal(t, "jane.doe@example.com", lead.Key())
}

func TestMatchMethodPriority(t *testing.T) {
	assert.Less(t, MatchCalendarAPI.Priority(), MatchThreadContinuity.Priority())
	assert.Less(t, MatchThreadContinuity.Priority(), MatchBroadSearch.Priority())
	assert.Less(t, MatchBroadSearch.Priority(), MatchSchedulingLink.Priority())
	assert.Greater(t, MatchMethod("carrier_pigeon").Priority(), MatchSchedulingLink.Priority())

	assert.True(t, MatchCalendarAPI.IsBooking())
	assert.True(t, MatchICSAttachment.IsBooking())
	assert.False(t, MatchBroadSearch.IsBooking())
	assert.False(t, MatchMethod("").Valid())
}

func TestParseCompletionStatus(t *testing.T) {
	s, ok := ParseCompletionStatus("Scheduled_Only")
	require.True(t, ok)
	assert.Equal(t, StatusScheduledOnly, s)

	_, ok = ParseCompletionStatus("done")
	assert.False(t, ok)
}

func TestBookingUpdateEvidence(t *testing.T) {
	at := time.Now()
	assert.False(t, BookingUpdate{}.HasEvidence())
	assert.False(t, BookingUpdate{EventID: "  "}.HasEvidence())
	assert.True(t, BookingUpdate{EventID: "evt-1"}.HasEvidence())
	assert.True(t, BookingUpdate{ScheduledAt: &at}.HasEvidence())
}

func TestFieldMapKeepsInsertionOrder(t *testing.T) {
	m := NewFieldMap()
	m.Set("service interest", "Estate Planning")
	m.SetList("documents", []string{"will", "trust"})
	m.Set("budget", "$2k")
	m.Set("service interest", "Probate")

	assert.Equal(t, []string{"service interest", "documents", "budget"}, m.Keys())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"service interest":"Probate","documents":["will","trust"],"budget":"$2k"}`, string(data))

	decoded := NewFieldMap()
	require.NoError(t, json.Unmarshal([]byte(`{"z":"1","a":["x"],"m":"2"}`), decoded))
	assert.Equal(t, []string{"z", "a", "m"}, decoded.Keys())

	v, ok := decoded.Get("a")
	require.True(t, ok)
	assert.True(t, v.IsList)
	assert.Equal(t, "x", v.String())
}

func TestFieldMapRejectsNonStringValues(t *testing.T) {
	decoded := NewFieldMap()
	err := json.Unmarshal([]byte(`{"count": 3}`), decoded)
	assert.Error(t, err)
}

func TestCalendarEventHasAttendee(t *testing.T) {
	ev := &CalendarEvent{Attendees: []string{"owner@firm.com", "Jane@Example.com"}}
	assert.True(t, ev.HasAttendee("jane@example.com"))
	assert.False(t, ev.HasAttendee("bob@example.com"))
	assert.False(t, ev.HasAttendee(""))
}

func TestContainsAddress(t *testing.T) {
	tests := []struct {
		text  string
		email string
		want  bool
	}{
		{"Invitee: jane@example.com", "jane@example.com", true},
		{"Invitee: Jane@Example.COM", "jane@example.com", true},
		{"(jane@example.com)", "jane@example.com", true},
		{"<jane@example.com>", "jane@example.com", true},
		{"mailto:jane@example.com", "jane@example.com", true},
		{"write to jane@example.com.", "jane@example.com", true},
		{"mary.jane@example.com", "jane@example.com", false},
		{"joann@x.com", "ann@x.com", false},
		{"mary.jane@example.com then jane@example.com", "jane@example.com", true},
		{"jane@example.com.au", "jane@example.com", false},
		{"jane@example.community", "jane@example.com", false},
		{"jane@example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsAddress(tt.text, tt.email))
		})
	}
}

func TestMessageMentionsWholeAddress(t *testing.T) {
	msg := &Message{Subject: "Booked", Body: "Invitee: mary.jane@example.com"}
	assert.False(t, msg.Mentions("jane@example.com"))
	assert.True(t, msg.Mentions("Mary.Jane@example.com"))
}
