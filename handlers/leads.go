// ABOUTME: Lead MCP tool handlers for administrative tooling
// ABOUTME: Implements get_lead, list_leads, record_questionnaire_response, record_booking, and reconcile_pass
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/reconcile"
)

// LeadStore is the read side of the record store.
type LeadStore interface {
	Get(ctx context.Context, email string) (*models.Lead, error)
	List(ctx context.Context) ([]*models.Lead, error)
	ListByStatus(ctx context.Context, status models.CompletionStatus) ([]*models.Lead, error)
}

// Reconciler runs passes and the idempotent upserts.
type Reconciler interface {
	ReconcilePass(ctx context.Context) (reconcile.Stats, error)
	RecordQuestionnaireResponse(ctx context.Context, email string, fields *models.FieldMap, cleanedText, summary string, method models.MatchMethod) (*models.UpdateResult, error)
	RecordBooking(ctx context.Context, email string, scheduledAt *time.Time, eventID string, method models.MatchMethod) (*models.UpdateResult, error)
}

type LeadHandlers struct {
	store  LeadStore
	engine Reconciler
}

func NewLeadHandlers(store LeadStore, engine Reconciler) *LeadHandlers {
	return &LeadHandlers{store: store, engine: engine}
}

type FieldOutput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type LeadOutput struct {
	ID                    string        `json:"id"`
	Email                 string        `json:"email"`
	Name                  string        `json:"name,omitempty"`
	Phone                 string        `json:"phone,omitempty"`
	Services              []string      `json:"services,omitempty"`
	Status                string        `json:"status"`
	QuestionnaireAnswered bool          `json:"questionnaire_answered"`
	AppointmentScheduled  bool          `json:"appointment_scheduled"`
	FollowedUp            bool          `json:"followed_up"`
	MatchMethod           string        `json:"match_method,omitempty"`
	Summary               string        `json:"summary,omitempty"`
	Fields                []FieldOutput `json:"fields,omitempty"`
	ScheduledAt           *string       `json:"scheduled_at,omitempty"`
	ScheduledEventID      string        `json:"scheduled_event_id,omitempty"`
	ReminderSentAt        *string       `json:"reminder_sent_at,omitempty"`
	CreatedAt             string        `json:"created_at"`
	UpdatedAt             string        `json:"updated_at"`
}

type GetLeadInput struct {
	Email string `json:"email" jsonschema:"Lead email address (required)"`
}

func (h *LeadHandlers) GetLead(ctx context.Context, request *mcp.CallToolRequest, input GetLeadInput) (*mcp.CallToolResult, LeadOutput, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, LeadOutput{}, fmt.Errorf("email is required")
	}

	lead, err := h.store.Get(ctx, input.Email)
	if err != nil {
		return nil, LeadOutput{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return nil, leadToOutput(lead), nil
}

type ListLeadsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter by status: not_started, questionnaire_only, scheduled_only, fully_complete"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50)"`
}

type ListLeadsOutput struct {
	Leads []LeadOutput `json:"leads"`
	Total int          `json:"total"`
}

func (h *LeadHandlers) ListLeads(ctx context.Context, request *mcp.CallToolRequest, input ListLeadsInput) (*mcp.CallToolResult, ListLeadsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		leads []*models.Lead
		err   error
	)
	if input.Status != "" {
		status, ok := models.ParseCompletionStatus(input.Status)
		if !ok {
			return nil, ListLeadsOutput{}, fmt.Errorf("invalid status %q", input.Status)
		}
		leads, err = h.store.ListByStatus(ctx, status)
	} else {
		leads, err = h.store.List(ctx)
	}
	if err != nil {
		return nil, ListLeadsOutput{}, fmt.Errorf("failed to list leads: %w", err)
	}

	out := ListLeadsOutput{Leads: []LeadOutput{}, Total: len(leads)}
	for i, lead := range leads {
		if i == limit {
			break
		}
		out.Leads = append(out.Leads, leadToOutput(lead))
	}
	return nil, out, nil
}

type FieldInput struct {
	Question string   `json:"question" jsonschema:"Question title"`
	Answer   string   `json:"answer,omitempty" jsonschema:"Single answer"`
	Answers  []string `json:"answers,omitempty" jsonschema:"List answer, used instead of answer"`
}

type RecordResponseInput struct {
	Email       string       `json:"email" jsonschema:"Lead email address (required)"`
	Fields      []FieldInput `json:"fields,omitempty" jsonschema:"Questionnaire answers in order"`
	CleanedText string       `json:"cleaned_text,omitempty" jsonschema:"Reply text with quotes and signatures removed"`
	Summary     string       `json:"summary,omitempty" jsonschema:"Synopsis; generated when omitted"`
	MatchMethod string       `json:"match_method,omitempty" jsonschema:"Signal that found the reply, e.g. thread_continuity"`
}

type UpdateOutput struct {
	Changed bool       `json:"changed"`
	Status  string     `json:"status"`
	Lead    LeadOutput `json:"lead"`
}

func (h *LeadHandlers) RecordQuestionnaireResponse(ctx context.Context, request *mcp.CallToolRequest, input RecordResponseInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, UpdateOutput{}, fmt.Errorf("email is required")
	}

	var fields *models.FieldMap
	if len(input.Fields) > 0 {
		fields = models.NewFieldMap()
		for _, f := range input.Fields {
			if strings.TrimSpace(f.Question) == "" {
				return nil, UpdateOutput{}, fmt.Errorf("field question is required")
			}
			if len(f.Answers) > 0 {
				fields.SetList(f.Question, f.Answers)
			} else {
				fields.Set(f.Question, f.Answer)
			}
		}
	}

	res, err := h.engine.RecordQuestionnaireResponse(ctx, input.Email, fields, input.CleanedText, input.Summary, models.MatchMethod(input.MatchMethod))
	if err != nil {
		return nil, UpdateOutput{}, fmt.Errorf("failed to record response: %w", err)
	}
	return nil, updateToOutput(res), nil
}

type RecordBookingInput struct {
	Email       string `json:"email" jsonschema:"Lead email address (required)"`
	ScheduledAt string `json:"scheduled_at,omitempty" jsonschema:"Appointment time in RFC 3339"`
	EventID     string `json:"event_id,omitempty" jsonschema:"Calendar event id"`
	MatchMethod string `json:"match_method,omitempty" jsonschema:"Signal that found the booking, e.g. calendar_api"`
}

func (h *LeadHandlers) RecordBooking(ctx context.Context, request *mcp.CallToolRequest, input RecordBookingInput) (*mcp.CallToolResult, UpdateOutput, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, UpdateOutput{}, fmt.Errorf("email is required")
	}

	var at *time.Time
	if input.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, input.ScheduledAt)
		if err != nil {
			return nil, UpdateOutput{}, fmt.Errorf("invalid scheduled_at: %w", err)
		}
		at = &t
	}

	res, err := h.engine.RecordBooking(ctx, input.Email, at, input.EventID, models.MatchMethod(input.MatchMethod))
	if err != nil {
		return nil, UpdateOutput{}, fmt.Errorf("failed to record booking: %w", err)
	}
	return nil, updateToOutput(res), nil
}

type ReconcilePassInput struct{}

func (h *LeadHandlers) ReconcilePass(ctx context.Context, request *mcp.CallToolRequest, input ReconcilePassInput) (*mcp.CallToolResult, reconcile.Stats, error) {
	stats, err := h.engine.ReconcilePass(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("reconcile pass failed: %w", err)
	}
	return nil, stats, nil
}

func leadToOutput(lead *models.Lead) LeadOutput {
	out := LeadOutput{
		ID:                    lead.ID.String(),
		Email:                 lead.Email,
		Name:                  lead.Name,
		Phone:                 lead.Phone,
		Services:              lead.Services,
		Status:                string(lead.Status()),
		QuestionnaireAnswered: lead.QuestionnaireAnswered,
		AppointmentScheduled:  lead.AppointmentScheduled,
		FollowedUp:            lead.FollowedUp,
		MatchMethod:           string(lead.MatchMethod),
		Summary:               lead.Summary,
		ScheduledEventID:      lead.ScheduledEventID,
		CreatedAt:             lead.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             lead.UpdatedAt.Format(time.RFC3339),
	}
	lead.ParsedReply.Each(func(key string, value models.FieldValue) {
		out.Fields = append(out.Fields, FieldOutput{Question: key, Answer: value.String()})
	})
	if lead.ScheduledAt != nil {
		s := lead.ScheduledAt.Format(time.RFC3339)
		out.ScheduledAt = &s
	}
	if lead.ReminderSentAt != nil {
		s := lead.ReminderSentAt.Format(time.RFC3339)
		out.ReminderSentAt = &s
	}
	return out
}

func updateToOutput(res *models.UpdateResult) UpdateOutput {
	return UpdateOutput{
		Changed: res.Changed,
		Status:  string(res.Status),
		Lead:    leadToOutput(res.Lead),
	}
}
