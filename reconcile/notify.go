// ABOUTME: Outgoing mail side effects of a pass: thank-you, operator digests, reminders
// ABOUTME: Reminders are stamped before sending so a lead is reminded at most once
package reconcile

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/notify"
	"github.com/harperreed/leadsync/questionnaire"
	"github.com/harperreed/leadsync/summarize"
)

const (
	kindThankYou = "thank-you"
	kindDigest   = "digest"
	kindReminder = "reminder"
)

// onAnswered thanks the lead and tells the operator. It returns the number
// of failed sends.
func (e *Engine) onAnswered(ctx context.Context, ps *passState, logger *slog.Logger, lead *models.Lead) int {
	failures := 0
	name := e.displayName(lead)

	if ps.once(lead.Key(), kindThankYou) {
		subject, body, err := notify.RenderThankYou(notify.ThankYouData{
			Name:           name,
			BusinessName:   e.cfg.BusinessName,
			OwnerEmail:     e.cfg.OwnerEmail,
			SchedulingLink: e.cfg.SchedulingLink,
			Scheduled:      lead.AppointmentScheduled,
		})
		if err == nil {
			err = e.notifier.Send(ctx, lead.Email, subject, body)
		}
		if err != nil {
			failures++
			logger.Error("failed to send thank-you", "error", err)
			e.alertOperator(ctx, logger, kindThankYou, lead.Email, err)
		}
	}

	failures += e.sendDigest(ctx, ps, logger, lead, name)
	return failures
}

// onCompleted tells the operator that a booking completed the lead.
func (e *Engine) onCompleted(ctx context.Context, ps *passState, logger *slog.Logger, lead *models.Lead) int {
	return e.sendDigest(ctx, ps, logger, lead, e.displayName(lead))
}

func (e *Engine) sendDigest(ctx context.Context, ps *passState, logger *slog.Logger, lead *models.Lead, name string) int {
	if e.cfg.OperatorEmail == "" || !ps.once(lead.Key(), kindDigest) {
		return 0
	}

	data := notify.OperatorResponseData{
		Name:     name,
		Email:    lead.Email,
		Status:   lead.Status(),
		Method:   lead.MatchMethod,
		Services: strings.Join(lead.Services, ", "),
		Summary:  lead.Summary,
		Fields:   notify.FieldsOf(lead.ParsedReply),
	}
	if lead.ScheduledAt != nil {
		data.ScheduledAt = lead.ScheduledAt.Format(time.RFC1123)
	}
	if data.Summary == "" {
		data.Summary = models.SummaryUnavailable
	}

	subject, body, err := notify.RenderOperatorResponse(data)
	if err == nil {
		err = e.notifier.Send(ctx, e.cfg.OperatorEmail, subject, body)
	}
	if err != nil {
		logger.Error("failed to send operator digest", "error", err)
		return 1
	}
	return 0
}

// maybeRemind sends the one reminder a stalled lead gets. It returns whether
// a reminder went out and how many sends failed.
func (e *Engine) maybeRemind(ctx context.Context, ps *passState, logger *slog.Logger, lead *models.Lead) (bool, int, error) {
	if lead.ReminderSentAt != nil || lead.Resolved() {
		return false, 0, nil
	}
	if e.now().Sub(lead.CreatedAt) < e.cfg.ReminderAfter {
		return false, 0, nil
	}
	if !ps.once(lead.Key(), kindReminder) {
		return false, 0, nil
	}

	marked, err := e.store.MarkReminderSent(ctx, lead.Key(), e.now())
	if err != nil {
		return false, 0, err
	}
	if !marked {
		logger.Debug("reminder already recorded")
		return false, 0, nil
	}

	variant := notify.VariantFor(lead)
	data := notify.ReminderData{
		Name:           e.displayName(lead),
		BusinessName:   e.cfg.BusinessName,
		OwnerEmail:     e.cfg.OwnerEmail,
		SchedulingLink: e.cfg.SchedulingLink,
	}
	if variant == notify.ReminderQuestionnaire {
		data.Questions = questionnaire.QuestionsFor(e.templates, lead.Services)
	}

	subject, body, err := notify.RenderReminder(variant, data)
	if err == nil {
		err = e.notifier.Send(ctx, lead.Email, subject, body)
	}
	if err != nil {
		logger.Error("failed to send reminder", "variant", variant, "error", err)
		e.alertOperator(ctx, logger, kindReminder, lead.Email, err)
		return false, 1, nil
	}

	logger.Info("reminder sent", "variant", variant)
	return true, 0, nil
}

// alertOperator reports an undelivered lead email.
func (e *Engine) alertOperator(ctx context.Context, logger *slog.Logger, kind, to string, cause error) {
	if e.cfg.OperatorEmail == "" {
		return
	}
	subject, body, err := notify.RenderOperatorAlert(notify.OperatorAlertData{
		Kind:  kind,
		Email: to,
		Error: cause.Error(),
	})
	if err == nil {
		err = e.notifier.Send(ctx, e.cfg.OperatorEmail, subject, body)
	}
	if err != nil {
		logger.Error("failed to alert operator", "kind", kind, "error", err)
	}
}

func (e *Engine) displayName(lead *models.Lead) string {
	return summarize.ResolveName(lead, lead.ParsedReply, lead.RawReply)
}
