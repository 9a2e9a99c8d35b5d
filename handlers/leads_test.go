// ABOUTME: Tests for lead MCP tool, resource, and prompt handlers
// ABOUTME: Runs against a real SQLite store and an in-memory MCP session
package handlers

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/notify"
	"github.com/harperreed/leadsync/reconcile"
	"github.com/harperreed/leadsync/retry"
)

type fixture struct {
	ctx    context.Context
	leads  *db.LeadRepository
	passes *db.PassRepository
	engine *reconcile.Engine
}

var created = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	sqlDB, err := db.OpenDatabase(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	clock := func() time.Time { return created.Add(time.Hour) }
	f := &fixture{
		ctx:    context.Background(),
		leads:  db.NewLeadRepository(sqlDB, db.WithClock(clock)),
		passes: db.NewPassRepository(sqlDB),
	}

	lockRetry := retry.DefaultLock()
	lockRetry.Sleep = retry.NoSleep
	f.engine, err = reconcile.New(reconcile.Config{
		StoreIdentity: "test",
		LockRetry:     lockRetry,
	}, reconcile.Deps{
		Store:    f.leads,
		Locker:   db.NewRunLockRepository(sqlDB),
		Passes:   f.passes,
		Notifier: notify.LogNotifier{},
	}, reconcile.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, f.leads.Create(f.ctx, &models.Lead{
		Email:     "Jane@Example.com",
		Name:      "Jane Doe",
		Services:  []string{"Estate Planning"},
		CreatedAt: created,
	}))
	require.NoError(t, f.leads.Create(f.ctx, &models.Lead{
		Email:     "bob@example.com",
		CreatedAt: created.Add(time.Minute),
	}))
	return f
}

func TestGetLeadHandler(t *testing.T) {
	f := setupFixture(t)
	h := NewLeadHandlers(f.leads, f.engine)

	_, out, err := h.GetLead(f.ctx, nil, GetLeadInput{Email: "JANE@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", out.Email)
	assert.Equal(t, "not_started", out.Status)
	assert.Equal(t, []string{"Estate Planning"}, out.Services)

	_, _, err = h.GetLead(f.ctx, nil, GetLeadInput{})
	assert.Error(t, err)

	_, _, err = h.GetLead(f.ctx, nil, GetLeadInput{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, db.ErrLeadNotFound)
}

func TestListLeadsHandler(t *testing.T) {
	f := setupFixture(t)
	h := NewLeadHandlers(f.leads, f.engine)

	_, out, err := h.ListLeads(f.ctx, nil, ListLeadsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	require.Len(t, out.Leads, 2)
	assert.Equal(t, "jane@example.com", out.Leads[0].Email)

	_, out, err = h.ListLeads(f.ctx, nil, ListLeadsInput{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Len(t, out.Leads, 1)

	_, out, err = h.ListLeads(f.ctx, nil, ListLeadsInput{Status: "fully_complete"})
	require.NoError(t, err)
	assert.Empty(t, out.Leads)

	_, _, err = h.ListLeads(f.ctx, nil, ListLeadsInput{Status: "lost"})
	assert.Error(t, err)
}

func TestRecordQuestionnaireResponseHandler(t *testing.T) {
	f := setupFixture(t)
	h := NewLeadHandlers(f.leads, f.engine)

	input := RecordResponseInput{
		Email: "jane@example.com",
		Fields: []FieldInput{
			{Question: "Service interest", Answer: "Estate Planning"},
			{Question: "Documents", Answers: []string{"will", "deed"}},
		},
		CleanedText: "Service interest: Estate Planning",
		Summary:     "Jane wants an estate plan.",
		MatchMethod: "thread_continuity",
	}

	_, out, err := h.RecordQuestionnaireResponse(f.ctx, nil, input)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "questionnaire_only", out.Status)
	assert.Equal(t, "Jane wants an estate plan.", out.Lead.Summary)
	assert.Equal(t, []FieldOutput{
		{Question: "Service interest", Answer: "Estate Planning"},
		{Question: "Documents", Answer: "will, deed"},
	}, out.Lead.Fields)

	_, again, err := h.RecordQuestionnaireResponse(f.ctx, nil, input)
	require.NoError(t, err)
	assert.False(t, again.Changed)

	_, _, err = h.RecordQuestionnaireResponse(f.ctx, nil, RecordResponseInput{Email: "jane@example.com", MatchMethod: "carrier_pigeon"})
	assert.Error(t, err)
}

func TestRecordBookingHandler(t *testing.T) {
	f := setupFixture(t)
	h := NewLeadHandlers(f.leads, f.engine)

	_, out, err := h.RecordBooking(f.ctx, nil, RecordBookingInput{
		Email:       "jane@example.com",
		ScheduledAt: "2026-03-05T14:00:00Z",
		MatchMethod: "calendar_api",
	})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "scheduled_only", out.Status)
	require.NotNil(t, out.Lead.ScheduledAt)
	assert.Equal(t, "2026-03-05T14:00:00Z", *out.Lead.ScheduledAt)

	_, _, err = h.RecordBooking(f.ctx, nil, RecordBookingInput{Email: "jane@example.com", ScheduledAt: "next tuesday"})
	assert.Error(t, err)

	_, _, err = h.RecordBooking(f.ctx, nil, RecordBookingInput{Email: "bob@example.com"})
	assert.Error(t, err)
}

func TestReconcilePassHandler(t *testing.T) {
	f := setupFixture(t)
	h := NewLeadHandlers(f.leads, f.engine)

	_, stats, err := h.ReconcilePass(f.ctx, nil, ReconcilePassInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 0, stats.RemindersSent)
	assert.NotEmpty(t, stats.PassID)

	runs, err := f.passes.RecentPasses(f.ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, stats.PassID, runs[0].ID)
}

func TestReadResource(t *testing.T) {
	f := setupFixture(t)
	h := NewResourceHandlers(f.leads, f.passes)

	read := func(uri string) (*mcp.ReadResourceResult, error) {
		return h.ReadResource(f.ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}})
	}

	res, err := read("leads://leads")
	require.NoError(t, err)
	var all []LeadOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &all))
	assert.Len(t, all, 2)

	res, err = read("leads://leads/jane%40example.com")
	require.NoError(t, err)
	var one LeadOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &one))
	assert.Equal(t, "Jane Doe", one.Name)

	res, err = read("leads://passes")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", res.Contents[0].Text)

	_, err = read("crm://contacts")
	assert.Error(t, err)
	_, err = read("leads://deals")
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	f := setupFixture(t)
	h := NewPromptHandlers(f.leads)

	get := func(name string, args map[string]string) (*mcp.GetPromptResult, error) {
		return h.GetPrompt(f.ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: name, Arguments: args}})
	}

	res, err := get("lead-summary", map[string]string{"email": "jane@example.com"})
	require.NoError(t, err)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Name: Jane Doe")
	assert.Contains(t, text, "Services: Estate Planning")

	_, err = get("lead-summary", nil)
	assert.Error(t, err)

	res, err = get("follow-up-pipeline", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(*mcp.TextContent).Text, "Total Leads: 2")

	_, err = get("nope", nil)
	assert.Error(t, err)
}

func TestServerOverInMemoryTransport(t *testing.T) {
	f := setupFixture(t)
	server := NewServer("test", f.leads, f.engine, f.passes)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_lead",
		Arguments: map[string]any{"email": "bob@example.com"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)

	var lead LeadOutput
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &lead))
	assert.Equal(t, "bob@example.com", lead.Email)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "get_lead",
		Arguments: map[string]any{"email": "nobody@example.com"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
