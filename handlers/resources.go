// ABOUTME: MCP resource handlers exposing lead records and pass history
// ABOUTME: Read-only JSON views under the leads:// URI scheme
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadsync/models"
)

const resourceScheme = "leads://"

// PassHistory lists recent reconciliation passes.
type PassHistory interface {
	RecentPasses(ctx context.Context, limit int) ([]*models.PassRun, error)
}

type ResourceHandlers struct {
	store  LeadStore
	passes PassHistory
}

func NewResourceHandlers(store LeadStore, passes PassHistory) *ResourceHandlers {
	return &ResourceHandlers{store: store, passes: passes}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, resourceScheme), "/", 2)
	switch parts[0] {
	case "leads":
		if len(parts) == 1 || parts[1] == "" {
			return h.readAllLeads(ctx, uri)
		}
		email, err := url.PathUnescape(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid lead address: %w", err)
		}
		return h.readLead(ctx, uri, email)
	case "passes":
		return h.readPasses(ctx, uri)
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readAllLeads(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	leads, err := h.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leads: %w", err)
	}

	out := make([]LeadOutput, 0, len(leads))
	for _, lead := range leads {
		out = append(out, leadToOutput(lead))
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readLead(ctx context.Context, uri, email string) (*mcp.ReadResourceResult, error) {
	lead, err := h.store.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	return jsonResource(uri, leadToOutput(lead))
}

func (h *ResourceHandlers) readPasses(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	runs, err := h.passes.RecentPasses(ctx, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch passes: %w", err)
	}
	if runs == nil {
		runs = []*models.PassRun{}
	}
	return jsonResource(uri, runs)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
