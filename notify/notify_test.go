// ABOUTME: Tests for notification rendering and notifier construction
// ABOUTME: Checks every template variant renders with the expected content
package notify

import (
	"context"
	"testing"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantFor(t *testing.T) {
	tests := []struct {
		name string
		lead models.Lead
		want ReminderVariant
	}{
		{"neither", models.Lead{}, ReminderGeneric},
		{"answered", models.Lead{QuestionnaireAnswered: true}, ReminderSchedule},
		{"scheduled", models.Lead{AppointmentScheduled: true}, ReminderQuestionnaire},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VariantFor(&tt.lead))
		})
	}
}

func TestRenderReminder(t *testing.T) {
	data := ReminderData{
		Name:           "Jane",
		BusinessName:   "Reed Law",
		OwnerEmail:     "owner@reedlaw.com",
		SchedulingLink: "https://calendly.com/reedlaw/consult",
		Questions:      []string{"What is your marital status?", "Do you own real estate?"},
	}

	subject, body, err := RenderReminder(ReminderSchedule, data)
	require.NoError(t, err)
	assert.Equal(t, "Next step: book your consultation | Reed Law", subject)
	assert.Contains(t, body, "Hi Jane,")
	assert.Contains(t, body, "https://calendly.com/reedlaw/consult")
	assert.Contains(t, body, "Reed Law\nowner@reedlaw.com")

	_, body, err = RenderReminder(ReminderQuestionnaire, data)
	require.NoError(t, err)
	assert.Contains(t, body, "1. What is your marital status?\n2. Do you own real estate?")

	data.SchedulingLink = ""
	data.Name = ""
	_, body, err = RenderReminder(ReminderGeneric, data)
	require.NoError(t, err)
	assert.Contains(t, body, "Hi there,")
	assert.Contains(t, body, "let us know a few times")

	_, _, err = RenderReminder("bogus", data)
	assert.Error(t, err)
}

func TestRenderThankYou(t *testing.T) {
	_, body, err := RenderThankYou(ThankYouData{Name: "Jane", SchedulingLink: "https://cal.com/reed"})
	require.NoError(t, err)
	assert.Contains(t, body, "https://cal.com/reed")
	assert.Contains(t, body, "Our office")

	_, body, err = RenderThankYou(ThankYouData{Name: "Jane", SchedulingLink: "https://cal.com/reed", Scheduled: true})
	require.NoError(t, err)
	assert.NotContains(t, body, "https://cal.com/reed")
}

func TestRenderOperatorMessages(t *testing.T) {
	fields := models.NewFieldMap()
	fields.Set("service interest", "Estate Planning")

	subject, body, err := RenderOperatorResponse(OperatorResponseData{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Status:  models.StatusQuestionnaireOnly,
		Method:  models.MatchThreadContinuity,
		Summary: "Jane wants a will.",
		Fields:  FieldsOf(fields),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lead update: Jane Doe (questionnaire_only)", subject)
	assert.Contains(t, body, "Jane Doe <jane@example.com>")
	assert.Contains(t, body, "Matched by: thread_continuity")
	assert.Contains(t, body, "- service interest: Estate Planning")

	subject, body, err = RenderOperatorAlert(OperatorAlertData{Kind: "reminder", Email: "jane@example.com", Error: "connection refused"})
	require.NoError(t, err)
	assert.Equal(t, "Send failed: reminder email to jane@example.com", subject)
	assert.Contains(t, body, "Error: connection refused")
}

func TestNewSMTPNotifierValidation(t *testing.T) {
	_, err := NewSMTPNotifier(SMTPConfig{FromEmail: "a@b.com"})
	assert.Error(t, err)
	_, err = NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com"})
	assert.Error(t, err)

	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", FromEmail: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, 587, n.cfg.Port)
}

func TestSMTPNotifierRejectsBadRecipient(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", FromEmail: "office@example.com", FromName: "Office"})
	require.NoError(t, err)

	err = n.Send(context.Background(), "not an address", "hi", "body")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotification))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), "a@b.com", "s", "b"))
}
