// ABOUTME: MCP prompt handlers for operator follow-up work
// ABOUTME: Builds lead-summary and follow-up-pipeline prompts from stored records
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/models"
)

type PromptHandlers struct {
	store LeadStore
	now   func() time.Time
}

func NewPromptHandlers(store LeadStore) *PromptHandlers {
	return &PromptHandlers{store: store, now: time.Now}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "lead-summary":
		return h.getLeadSummaryPrompt(ctx, request.Params.Arguments)
	case "follow-up-pipeline":
		return h.getPipelinePrompt(ctx)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) getLeadSummaryPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	email, ok := args["email"]
	if !ok || strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("email is required")
	}

	lead, err := h.store.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Please prepare a consultation brief for this lead:\n\n")
	fmt.Fprintf(&promptText, "Email: %s\n", lead.Email)
	if lead.Name != "" {
		fmt.Fprintf(&promptText, "Name: %s\n", lead.Name)
	}
	if len(lead.Services) > 0 {
		fmt.Fprintf(&promptText, "Services: %s\n", strings.Join(lead.Services, ", "))
	}
	fmt.Fprintf(&promptText, "Status: %s\n", lead.Status())
	if lead.ScheduledAt != nil {
		fmt.Fprintf(&promptText, "Appointment: %s\n", lead.ScheduledAt.Format(time.RFC1123))
	}
	if lead.Message != "" {
		fmt.Fprintf(&promptText, "\nIntake message:\n%s\n", lead.Message)
	}
	if lead.ParsedReply.Len() > 0 {
		promptText.WriteString("\nQuestionnaire answers:\n")
		lead.ParsedReply.Each(func(key string, value models.FieldValue) {
			fmt.Fprintf(&promptText, "  - %s: %s\n", key, value.String())
		})
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. A short summary of what the lead needs")
	promptText.WriteString("\n2. Questions still open before the consultation")
	promptText.WriteString("\n3. Documents the lead should bring")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Consultation brief for %s", lead.Email),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *PromptHandlers) getPipelinePrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	leads, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	counts := make(map[models.CompletionStatus]int)
	var stalled []*models.Lead
	for _, lead := range leads {
		counts[lead.Status()]++
		if !lead.Resolved() && lead.ReminderSentAt != nil {
			stalled = append(stalled, lead)
		}
	}

	var promptText strings.Builder
	promptText.WriteString("Please review the lead follow-up pipeline:\n\n")
	fmt.Fprintf(&promptText, "Total Leads: %d\n", len(leads))
	for _, status := range []models.CompletionStatus{
		models.StatusNotStarted,
		models.StatusQuestionnaireOnly,
		models.StatusScheduledOnly,
		models.StatusFullyComplete,
	} {
		fmt.Fprintf(&promptText, "  - %s: %d\n", status, counts[status])
	}

	if len(stalled) > 0 {
		promptText.WriteString("\nReminded but still open:\n")
		for _, lead := range stalled {
			days := int(h.now().Sub(lead.CreatedAt).Hours() / 24)
			fmt.Fprintf(&promptText, "  - %s (%s, %d days old)\n", lead.Email, lead.Status(), days)
		}
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. Leads that need a personal call")
	promptText.WriteString("\n2. Patterns in where leads stall")
	promptText.WriteString("\n3. Suggestions for the reminder wording")

	return &mcp.GetPromptResult{
		Description: "Lead follow-up pipeline review",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
