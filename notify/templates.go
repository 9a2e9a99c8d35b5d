// ABOUTME: Plain-text email templates for lead and operator notifications
// ABOUTME: Reminder variants, thank-you, operator digest and operator alert
package notify

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/harperreed/leadsync/models"
)

//go:embed templates/*.txt
var templateFS embed.FS

// ReminderVariant selects the reminder wording from a lead's partial state.
type ReminderVariant string

const (
	ReminderSchedule      ReminderVariant = "schedule"
	ReminderQuestionnaire ReminderVariant = "questionnaire"
	ReminderGeneric       ReminderVariant = "generic"
)

// VariantFor picks the reminder for a lead that is not fully complete.
func VariantFor(lead *models.Lead) ReminderVariant {
	switch {
	case lead.QuestionnaireAnswered && !lead.AppointmentScheduled:
		return ReminderSchedule
	case lead.AppointmentScheduled && !lead.QuestionnaireAnswered:
		return ReminderQuestionnaire
	default:
		return ReminderGeneric
	}
}

// ReminderData fills a reminder template.
type ReminderData struct {
	Name           string
	BusinessName   string
	OwnerEmail     string
	SchedulingLink string
	Questions      []string
}

// ThankYouData fills the thank-you template.
type ThankYouData struct {
	Name           string
	BusinessName   string
	OwnerEmail     string
	SchedulingLink string
	Scheduled      bool
}

// Field is one question/answer pair in the operator digest.
type Field struct {
	Key   string
	Value string
}

// OperatorResponseData fills the operator digest sent when a lead responds.
type OperatorResponseData struct {
	Name        string
	Email       string
	Status      models.CompletionStatus
	Method      models.MatchMethod
	ScheduledAt string
	Services    string
	Summary     string
	Fields      []Field
}

// OperatorAlertData fills the alert sent when a lead email fails.
type OperatorAlertData struct {
	Kind  string
	Email string
	Error string
}

// FieldsOf flattens a field map for the digest template.
func FieldsOf(m *models.FieldMap) []Field {
	var out []Field
	m.Each(func(k string, v models.FieldValue) {
		out = append(out, Field{Key: k, Value: v.String()})
	})
	return out
}

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

func render(name string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.txt", "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// RenderReminder returns the subject and body of a reminder.
func RenderReminder(variant ReminderVariant, data ReminderData) (string, string, error) {
	var name, subject string
	switch variant {
	case ReminderSchedule:
		name, subject = "reminder_schedule.txt", subjectReminderSchedule
	case ReminderQuestionnaire:
		name, subject = "reminder_questionnaire.txt", subjectReminderQuestionnaire
	case ReminderGeneric:
		name, subject = "reminder_generic.txt", subjectReminderGeneric
	default:
		return "", "", fmt.Errorf("unknown reminder variant %q", variant)
	}
	if data.Name == "" {
		data.Name = "there"
	}
	body, err := render(name, data)
	if err != nil {
		return "", "", err
	}
	return withBusiness(subject, data.BusinessName), body, nil
}

// RenderThankYou returns the subject and body of the thank-you email.
func RenderThankYou(data ThankYouData) (string, string, error) {
	if data.Name == "" {
		data.Name = "there"
	}
	body, err := render("thank_you.txt", data)
	if err != nil {
		return "", "", err
	}
	return withBusiness(subjectThankYou, data.BusinessName), body, nil
}

// RenderOperatorResponse returns the operator digest for a lead response.
func RenderOperatorResponse(data OperatorResponseData) (string, string, error) {
	body, err := render("operator_response.txt", data)
	if err != nil {
		return "", "", err
	}
	who := data.Name
	if who == "" {
		who = data.Email
	}
	return fmt.Sprintf(subjectOperatorResponseFmt, who, data.Status), body, nil
}

// RenderOperatorAlert returns the operator alert for a failed send.
func RenderOperatorAlert(data OperatorAlertData) (string, string, error) {
	body, err := render("operator_alert.txt", data)
	if err != nil {
		return "", "", err
	}
	return fmt.Sprintf(subjectOperatorAlertFmt, data.Kind, data.Email), body, nil
}

func withBusiness(subject, business string) string {
	if business == "" {
		return subject
	}
	return subject + " | " + business
}
