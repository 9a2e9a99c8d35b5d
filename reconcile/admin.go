// ABOUTME: Idempotent upserts exposed to administrative tooling
// ABOUTME: Manual questionnaire and booking records go through the same store rules as a pass
package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/summarize"
)

// RecordQuestionnaireResponse marks a lead's questionnaire answered. An
// empty summary is generated from the text and fields on first answer.
func (e *Engine) RecordQuestionnaireResponse(ctx context.Context, email string, fields *models.FieldMap, cleanedText, summary string, method models.MatchMethod) (*models.UpdateResult, error) {
	if method != "" && !method.Valid() {
		return nil, apperr.Validation("record questionnaire response", "unknown match method "+string(method))
	}

	lead, err := e.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary) == "" && !lead.HasSummary() {
		name := summarize.ResolveName(lead, fields, cleanedText)
		summary = e.summarizer.Summarize(ctx, cleanedText, fields, name)
	}

	return e.store.RecordQuestionnaireResponse(ctx, email, models.QuestionnaireUpdate{
		Fields:      fields,
		CleanedText: strings.TrimSpace(cleanedText),
		Summary:     strings.TrimSpace(summary),
		Method:      method,
	})
}

// RecordBooking marks a lead's appointment scheduled.
func (e *Engine) RecordBooking(ctx context.Context, email string, scheduledAt *time.Time, eventID string, method models.MatchMethod) (*models.UpdateResult, error) {
	if method != "" && !method.Valid() {
		return nil, apperr.Validation("record booking", "unknown match method "+string(method))
	}
	return e.store.RecordBooking(ctx, email, models.BookingUpdate{
		ScheduledAt: scheduledAt,
		EventID:     eventID,
		Method:      method,
	})
}
