// ABOUTME: Lead record store backed by the leads table
// ABOUTME: Point lookup, full scan, and versioned idempotent flag upserts
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/models"
	"github.com/mattn/go-sqlite3"
	"github.com/nyaruka/phonenumbers"
)

var (
	ErrLeadNotFound    = errors.New("lead not found")
	ErrDuplicateLead   = errors.New("lead already exists")
	ErrVersionConflict = errors.New("lead was modified concurrently")
)

const leadColumns = `id, email, name, phone, preferred_day, preferred_time, services, message,
	created_at, thread_id, followed_up, questionnaire_answered, appointment_scheduled,
	match_method, reminder_sent_at, summary, raw_response, parsed_response,
	scheduled_at, scheduled_event_id, version, updated_at`

var validate = validator.New()

// LeadRepository is the durable store of lead records.
type LeadRepository struct {
	db          *sql.DB
	now         func() time.Time
	phoneRegion string
}

// LeadOption configures a LeadRepository.
type LeadOption func(*LeadRepository)

// WithClock overrides the time source used for updated_at and defaults.
func WithClock(now func() time.Time) LeadOption {
	return func(r *LeadRepository) { r.now = now }
}

// WithPhoneRegion sets the region used to normalize national phone numbers.
func WithPhoneRegion(region string) LeadOption {
	return func(r *LeadRepository) { r.phoneRegion = strings.ToUpper(region) }
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *sql.DB, opts ...LeadOption) *LeadRepository {
	r := &LeadRepository{db: db, now: time.Now, phoneRegion: "US"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new lead. The address is stored lowercased.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead == nil {
		return apperr.Validation("create lead", "lead is required")
	}
	lead.Email = models.NormalizeEmail(lead.Email)
	if err := validate.Var(lead.Email, "required,email"); err != nil {
		return apperr.Validation("create lead", fmt.Sprintf("invalid email %q", lead.Email))
	}

	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	now := r.now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = now
	lead.Version = 1
	lead.Phone = NormalizePhone(lead.Phone, r.phoneRegion)
	lead.FollowedUp = lead.QuestionnaireAnswered && lead.AppointmentScheduled

	services, err := json.Marshal(nonNil(lead.Services))
	if err != nil {
		return err
	}
	parsed, err := marshalFields(lead.ParsedReply)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		lead.ID.String(),
		lead.Email,
		strings.TrimSpace(lead.Name),
		lead.Phone,
		lead.PreferredDay,
		lead.PreferredTime,
		string(services),
		lead.Message,
		lead.CreatedAt,
		lead.ThreadID,
		lead.FollowedUp,
		lead.QuestionnaireAnswered,
		lead.AppointmentScheduled,
		string(lead.MatchMethod),
		nullTime(lead.ReminderSentAt),
		lead.Summary,
		lead.RawReply,
		parsed,
		nullTime(lead.ScheduledAt),
		lead.ScheduledEventID,
		lead.Version,
		lead.UpdatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: %s", ErrDuplicateLead, lead.Email)
		}
		return apperr.Persistence("create lead", err)
	}
	return nil
}

// Get retrieves a lead by address, case-insensitively.
func (r *LeadRepository) Get(ctx context.Context, email string) (*models.Lead, error) {
	return getLead(ctx, r.db, email)
}

func getLead(ctx context.Context, q querier, email string) (*models.Lead, error) {
	row := q.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ?`, models.NormalizeEmail(email))
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// List returns every lead, oldest first.
func (r *LeadRepository) List(ctx context.Context) ([]*models.Lead, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// ListByStatus returns the leads whose derived status equals status.
func (r *LeadRepository) ListByStatus(ctx context.Context, status models.CompletionStatus) ([]*models.Lead, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Lead
	for _, lead := range all {
		if lead.Status() == status {
			out = append(out, lead)
		}
	}
	return out, nil
}

// RecordQuestionnaireResponse marks the questionnaire answered. The summary
// is written once, when the flag first flips. On an already answered lead
// only empty fields are filled in, so repeating a call changes nothing.
func (r *LeadRepository) RecordQuestionnaireResponse(ctx context.Context, email string, upd models.QuestionnaireUpdate) (*models.UpdateResult, error) {
	return r.update(ctx, "record questionnaire response", email, func(lead *models.Lead) bool {
		if !lead.QuestionnaireAnswered {
			lead.QuestionnaireAnswered = true
			lead.Summary = upd.Summary
			lead.RawReply = upd.CleanedText
			if upd.Fields.Len() > 0 {
				lead.ParsedReply = upd.Fields
			}
			if upd.Method.Valid() {
				lead.MatchMethod = upd.Method
			}
			return true
		}

		changed := false
		if lead.ParsedReply.Len() == 0 && upd.Fields.Len() > 0 {
			lead.ParsedReply = upd.Fields
			changed = true
		}
		if strings.TrimSpace(lead.RawReply) == "" && strings.TrimSpace(upd.CleanedText) != "" {
			lead.RawReply = upd.CleanedText
			changed = true
		}
		incoming := models.Lead{Summary: upd.Summary}
		if !lead.HasSummary() && incoming.HasSummary() {
			lead.Summary = upd.Summary
			changed = true
		}
		if changed && upd.Method.Valid() {
			lead.MatchMethod = upd.Method
		}
		return changed
	})
}

// RecordBooking marks the appointment scheduled. At least one of the
// scheduled time or the event id is required.
func (r *LeadRepository) RecordBooking(ctx context.Context, email string, upd models.BookingUpdate) (*models.UpdateResult, error) {
	if !upd.HasEvidence() {
		return nil, apperr.Validation("record booking", "scheduled time or event id is required")
	}

	return r.update(ctx, "record booking", email, func(lead *models.Lead) bool {
		changed := false
		if !lead.AppointmentScheduled {
			lead.AppointmentScheduled = true
			changed = true
		}
		if lead.ScheduledAt == nil && upd.ScheduledAt != nil {
			at := upd.ScheduledAt.UTC()
			lead.ScheduledAt = &at
			changed = true
		}
		if lead.ScheduledEventID == "" && strings.TrimSpace(upd.EventID) != "" {
			lead.ScheduledEventID = strings.TrimSpace(upd.EventID)
			changed = true
		}
		if changed && upd.Method.Valid() {
			lead.MatchMethod = upd.Method
		}
		return changed
	})
}

// update loads the lead inside a transaction, applies mutate, and writes it
// back guarded by the version read. Flags are only ever raised.
func (r *LeadRepository) update(ctx context.Context, op, email string, mutate func(*models.Lead) bool) (*models.UpdateResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	defer func() { _ = tx.Rollback() }()

	lead, err := getLead(ctx, tx, email)
	if errors.Is(err, ErrLeadNotFound) {
		return nil, apperr.NotFound(op, "no lead for "+models.NormalizeEmail(email))
	}
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	if !mutate(lead) {
		return &models.UpdateResult{Lead: lead, Changed: false, Status: lead.Status()}, nil
	}

	prevVersion := lead.Version
	lead.FollowedUp = lead.QuestionnaireAnswered && lead.AppointmentScheduled
	lead.Version++
	lead.UpdatedAt = r.now().UTC()

	parsed, err := marshalFields(lead.ParsedReply)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE leads SET
			followed_up = ?,
			questionnaire_answered = MAX(questionnaire_answered, ?),
			appointment_scheduled = MAX(appointment_scheduled, ?),
			match_method = ?,
			summary = ?,
			raw_response = ?,
			parsed_response = ?,
			scheduled_at = ?,
			scheduled_event_id = ?,
			version = ?,
			updated_at = ?
		WHERE id = ? AND version = ?
	`,
		lead.FollowedUp,
		lead.QuestionnaireAnswered,
		lead.AppointmentScheduled,
		string(lead.MatchMethod),
		lead.Summary,
		lead.RawReply,
		parsed,
		nullTime(lead.ScheduledAt),
		lead.ScheduledEventID,
		lead.Version,
		lead.UpdatedAt,
		lead.ID.String(),
		prevVersion,
	)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Persistence(op, ErrVersionConflict)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Persistence(op, err)
	}

	return &models.UpdateResult{Lead: lead, Changed: true, Status: lead.Status()}, nil
}

// MarkReminderSent stamps reminder_sent_at if it is still null. It reports
// false when a reminder was already recorded.
func (r *LeadRepository) MarkReminderSent(ctx context.Context, email string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET reminder_sent_at = ?, version = version + 1, updated_at = ?
		WHERE email = ? AND reminder_sent_at IS NULL
	`, at.UTC(), r.now().UTC(), models.NormalizeEmail(email))
	if err != nil {
		return false, apperr.Persistence("mark reminder sent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Persistence("mark reminder sent", err)
	}
	return n == 1, nil
}

// BackfillSummary replaces an empty or unavailable summary on an answered lead.
func (r *LeadRepository) BackfillSummary(ctx context.Context, email, summary string) (bool, error) {
	if strings.TrimSpace(summary) == "" || strings.EqualFold(strings.TrimSpace(summary), models.SummaryUnavailable) {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET summary = ?, version = version + 1, updated_at = ?
		WHERE email = ? AND questionnaire_answered = 1
			AND (summary = '' OR summary = ? COLLATE NOCASE)
	`, summary, r.now().UTC(), models.NormalizeEmail(email), models.SummaryUnavailable)
	if err != nil {
		return false, apperr.Persistence("backfill summary", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Persistence("backfill summary", err)
	}
	return n == 1, nil
}

// Delete removes a lead, used when resolved records are archived.
func (r *LeadRepository) Delete(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE email = ?`, models.NormalizeEmail(email))
	if err != nil {
		return apperr.Persistence("delete lead", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		lead           models.Lead
		id             string
		services       string
		method         string
		reminderSentAt sql.NullTime
		parsed         sql.NullString
		scheduledAt    sql.NullTime
	)

	err := row.Scan(
		&id,
		&lead.Email,
		&lead.Name,
		&lead.Phone,
		&lead.PreferredDay,
		&lead.PreferredTime,
		&services,
		&lead.Message,
		&lead.CreatedAt,
		&lead.ThreadID,
		&lead.FollowedUp,
		&lead.QuestionnaireAnswered,
		&lead.AppointmentScheduled,
		&method,
		&reminderSentAt,
		&lead.Summary,
		&lead.RawReply,
		&parsed,
		&scheduledAt,
		&lead.ScheduledEventID,
		&lead.Version,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid lead id %q: %w", id, err)
	}
	lead.MatchMethod = models.MatchMethod(method)
	if services != "" {
		if err := json.Unmarshal([]byte(services), &lead.Services); err != nil {
			return nil, fmt.Errorf("invalid services for %s: %w", lead.Email, err)
		}
	}
	if reminderSentAt.Valid {
		t := reminderSentAt.Time
		lead.ReminderSentAt = &t
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		lead.ScheduledAt = &t
	}
	if parsed.Valid && parsed.String != "" && parsed.String != "null" {
		fields := models.NewFieldMap()
		if err := json.Unmarshal([]byte(parsed.String), fields); err != nil {
			return nil, fmt.Errorf("invalid parsed response for %s: %w", lead.Email, err)
		}
		lead.ParsedReply = fields
	}

	return &lead, nil
}

// NormalizePhone formats a phone number to E.164. If parsing fails it
// returns the trimmed input.
func NormalizePhone(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}
	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func marshalFields(fields *models.FieldMap) (sql.NullString, error) {
	if fields.Len() == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
