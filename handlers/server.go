// ABOUTME: MCP server assembly for administrative tooling
// ABOUTME: Registers lead tools, leads:// resources, and operator prompts
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds the admin MCP server.
func NewServer(version string, store LeadStore, engine Reconciler, passes PassHistory) *mcp.Server {
	leadHandlers := NewLeadHandlers(store, engine)
	resourceHandlers := NewResourceHandlers(store, passes)
	promptHandlers := NewPromptHandlers(store)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadsync",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_lead",
		Description: "Get one lead by email address, including completion flags and parsed answers",
	}, leadHandlers.GetLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_leads",
		Description: "List leads, optionally filtered by completion status",
	}, leadHandlers.ListLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_questionnaire_response",
		Description: "Mark a lead's questionnaire answered with parsed fields and summary. Idempotent",
	}, leadHandlers.RecordQuestionnaireResponse)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_booking",
		Description: "Mark a lead's appointment scheduled. Needs scheduled_at or event_id. Idempotent",
	}, leadHandlers.RecordBooking)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reconcile_pass",
		Description: "Run one reconciliation pass over all open leads and return its counters",
	}, leadHandlers.ReconcilePass)

	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "leads",
		Name:        "leads",
		Description: "All lead records",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResource(&mcp.Resource{
		URI:         resourceScheme + "passes",
		Name:        "passes",
		Description: "Recent reconciliation passes, newest first",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "leads/{email}",
		Name:        "lead",
		Description: "One lead record by email address",
		MIMEType:    "application/json",
	}, resourceHandlers.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "lead-summary",
		Description: "Consultation brief for one lead",
		Arguments: []*mcp.PromptArgument{
			{Name: "email", Description: "Lead email address", Required: true},
		},
	}, promptHandlers.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "follow-up-pipeline",
		Description: "Review where leads stall in the follow-up pipeline",
	}, promptHandlers.GetPrompt)

	return server
}
