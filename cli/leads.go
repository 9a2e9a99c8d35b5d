// ABOUTME: Lead management CLI commands
// ABOUTME: Lists, shows, and adds leads and records questionnaire answers and bookings by hand
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadsync/models"
)

// LeadsListCommand lists leads, optionally filtered by status.
func LeadsListCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (not_started/questionnaire_only/scheduled_only/fully_complete)")
	limit := fs.Int("limit", 50, "Maximum number of leads to show")
	_ = fs.Parse(args)

	ctx := context.Background()

	var (
		leads []*models.Lead
		err   error
	)
	if *status != "" {
		s, ok := models.ParseCompletionStatus(*status)
		if !ok {
			return fmt.Errorf("invalid status %q", *status)
		}
		leads, err = app.Leads.ListByStatus(ctx, s)
	} else {
		leads, err = app.Leads.List(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}

	if *limit > 0 && len(leads) > *limit {
		leads = leads[:*limit]
	}
	printLeadTable(app.Out, leads)
	return nil
}

func printLeadTable(out io.Writer, leads []*models.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EMAIL\tNAME\tSTATUS\tMETHOD\tCREATED\tREMINDED")
	_, _ = fmt.Fprintln(w, "-----\t----\t------\t------\t-------\t--------")

	for _, lead := range leads {
		reminded := "-"
		if lead.ReminderSentAt != nil {
			reminded = lead.ReminderSentAt.Format("2006-01-02")
		}
		method := string(lead.MatchMethod)
		if method == "" {
			method = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			lead.Email, lead.Name, lead.Status(), method,
			lead.CreatedAt.Format("2006-01-02"), reminded)
	}
	_ = w.Flush()
}

// LeadsShowCommand prints one lead in full.
func LeadsShowCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	email := fs.String("email", "", "Lead email address (required)")
	_ = fs.Parse(args)

	if *email == "" && fs.NArg() > 0 {
		*email = fs.Arg(0)
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	lead, err := app.Leads.Get(context.Background(), *email)
	if err != nil {
		return fmt.Errorf("failed to get lead: %w", err)
	}
	printLead(app.Out, lead)
	return nil
}

func printLead(out io.Writer, lead *models.Lead) {
	_, _ = fmt.Fprintf(out, "%s <%s>\n", displayOr(lead.Name, "(no name)"), lead.Email)
	_, _ = fmt.Fprintf(out, "  Status:     %s\n", lead.Status())
	_, _ = fmt.Fprintf(out, "  Created:    %s\n", lead.CreatedAt.Format(time.RFC3339))
	if lead.Phone != "" {
		_, _ = fmt.Fprintf(out, "  Phone:      %s\n", lead.Phone)
	}
	if len(lead.Services) > 0 {
		_, _ = fmt.Fprintf(out, "  Services:   %s\n", strings.Join(lead.Services, ", "))
	}
	if lead.PreferredDay != "" || lead.PreferredTime != "" {
		_, _ = fmt.Fprintf(out, "  Preferred:  %s\n", strings.TrimSpace(lead.PreferredDay+" "+lead.PreferredTime))
	}
	if lead.MatchMethod != "" {
		_, _ = fmt.Fprintf(out, "  Matched by: %s\n", lead.MatchMethod)
	}
	if lead.ScheduledAt != nil {
		_, _ = fmt.Fprintf(out, "  Scheduled:  %s\n", lead.ScheduledAt.Format(time.RFC3339))
	}
	if lead.ScheduledEventID != "" {
		_, _ = fmt.Fprintf(out, "  Event:      %s\n", lead.ScheduledEventID)
	}
	if lead.ReminderSentAt != nil {
		_, _ = fmt.Fprintf(out, "  Reminded:   %s\n", lead.ReminderSentAt.Format(time.RFC3339))
	}
	if lead.Summary != "" {
		_, _ = fmt.Fprintf(out, "\nSummary:\n  %s\n", lead.Summary)
	}
	if lead.ParsedReply.Len() > 0 {
		_, _ = fmt.Fprintln(out, "\nAnswers:")
		lead.ParsedReply.Each(func(key string, value models.FieldValue) {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", key, value.String())
		})
	}
}

func displayOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// LeadsAddCommand inserts a lead, as the intake form would.
func LeadsAddCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	email := fs.String("email", "", "Lead email address (required)")
	name := fs.String("name", "", "Full name")
	phone := fs.String("phone", "", "Phone number")
	day := fs.String("day", "", "Preferred day")
	timeOfDay := fs.String("time", "", "Preferred time")
	services := fs.String("services", "", "Comma-separated service categories")
	message := fs.String("message", "", "Intake message")
	threadID := fs.String("thread-id", "", "Mail thread of the intake confirmation")
	_ = fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	lead := &models.Lead{
		Email:         *email,
		Name:          *name,
		Phone:         *phone,
		PreferredDay:  *day,
		PreferredTime: *timeOfDay,
		Services:      splitList(*services),
		Message:       *message,
		ThreadID:      *threadID,
	}
	if err := app.Leads.Create(context.Background(), lead); err != nil {
		return fmt.Errorf("failed to add lead: %w", err)
	}

	_, _ = fmt.Fprintf(app.Out, "✓ Added lead %s (%s)\n", lead.Email, lead.ID)
	return nil
}

// RecordResponseCommand marks a lead's questionnaire answered.
func RecordResponseCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("record-response", flag.ExitOnError)
	email := fs.String("email", "", "Lead email address (required)")
	var fields fieldFlags
	fs.Var(&fields, "field", "Answer as \"question=answer\"; repeat a question for a list answer")
	summary := fs.String("summary", "", "Synopsis; generated when omitted")
	text := fs.String("text", "", "Cleaned reply text")
	method := fs.String("method", "", "Signal that found the reply")
	_ = fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	fieldMap, err := fields.FieldMap()
	if err != nil {
		return err
	}

	res, err := app.Engine.RecordQuestionnaireResponse(context.Background(), *email, fieldMap, *text, *summary, models.MatchMethod(*method))
	if err != nil {
		return fmt.Errorf("failed to record response: %w", err)
	}
	printUpdate(app.Out, res)
	return nil
}

// RecordBookingCommand marks a lead's appointment scheduled.
func RecordBookingCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("record-booking", flag.ExitOnError)
	email := fs.String("email", "", "Lead email address (required)")
	at := fs.String("at", "", "Appointment time in RFC 3339")
	eventID := fs.String("event-id", "", "Calendar event id")
	method := fs.String("method", "", "Signal that found the booking")
	_ = fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	var scheduledAt *time.Time
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		scheduledAt = &t
	}

	res, err := app.Engine.RecordBooking(context.Background(), *email, scheduledAt, *eventID, models.MatchMethod(*method))
	if err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}
	printUpdate(app.Out, res)
	return nil
}

func printUpdate(out io.Writer, res *models.UpdateResult) {
	if res.Changed {
		_, _ = fmt.Fprintf(out, "✓ Updated %s: %s\n", res.Lead.Email, res.Status)
		return
	}
	_, _ = fmt.Fprintf(out, "No change for %s: %s\n", res.Lead.Email, res.Status)
}

// fieldFlags collects repeated --field question=answer flags in order.
type fieldFlags []string

func (f *fieldFlags) String() string {
	return strings.Join(*f, ", ")
}

func (f *fieldFlags) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("field %q must look like question=answer", value)
	}
	*f = append(*f, value)
	return nil
}

// FieldMap builds the answers. A question given more than once becomes a
// list answer. No flags yields nil so existing answers are left alone.
func (f fieldFlags) FieldMap() (*models.FieldMap, error) {
	if len(f) == 0 {
		return nil, nil
	}

	var order []string
	answers := make(map[string][]string)
	for _, pair := range f {
		key, value, _ := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("field %q has an empty question", pair)
		}
		if _, seen := answers[key]; !seen {
			order = append(order, key)
		}
		answers[key] = append(answers[key], strings.TrimSpace(value))
	}

	fields := models.NewFieldMap()
	for _, key := range order {
		if vals := answers[key]; len(vals) > 1 {
			fields.SetList(key, vals)
		} else {
			fields.Set(key, vals[0])
		}
	}
	return fields, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
