// ABOUTME: Per-lead reconciliation: detector chains, merge order, and persisted transitions
// ABOUTME: Booking and reply chains run concurrently; writes happen lowest priority first
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/detect"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/summarize"
)

// outcome is what happened to one lead during a pass.
type outcome struct {
	skipped  bool
	matched  bool
	reminded bool
	// softErrors counts recovered failures such as undelivered mail.
	softErrors int
}

// write is one pending store update produced by a match.
type write struct {
	method models.MatchMethod
	apply  func(ctx context.Context) error
}

func (e *Engine) processLead(ctx context.Context, ps *passState, lead *models.Lead) (outcome, error) {
	var out outcome
	key := lead.Key()
	logger := ps.logger.With("lead", key)

	e.backfillSummary(ctx, logger, lead)

	if lead.Resolved() {
		out.skipped = true
		return out, nil
	}

	booking, reply, err := e.detect(ctx, logger, lead)
	if err != nil {
		return out, err
	}
	out.matched = booking != nil || reply != nil

	if !out.matched {
		sent, soft, err := e.maybeRemind(ctx, ps, logger, lead)
		out.reminded = sent
		out.softErrors += soft
		return out, err
	}

	var (
		writes       []write
		final        = lead
		firstAnswer  bool
		firstBooking bool
	)

	if reply != nil {
		upd, ok := e.questionnaireUpdate(ctx, logger, lead, reply)
		if ok {
			writes = append(writes, write{method: reply.Method, apply: func(ctx context.Context) error {
				res, err := e.store.RecordQuestionnaireResponse(ctx, key, upd)
				if err != nil {
					return err
				}
				final = res.Lead
				firstAnswer = res.Changed && !lead.QuestionnaireAnswered
				return nil
			}})
		}
	}
	if booking != nil {
		upd := bookingUpdate(booking)
		writes = append(writes, write{method: booking.Method, apply: func(ctx context.Context) error {
			res, err := e.store.RecordBooking(ctx, key, upd)
			if err != nil {
				return err
			}
			final = res.Lead
			firstBooking = res.Changed && !lead.AppointmentScheduled
			return nil
		}})
	}

	// The last write owns match_method, so the most trustworthy signal wins.
	sort.SliceStable(writes, func(i, j int) bool {
		return writes[i].method.Priority() > writes[j].method.Priority()
	})
	for _, w := range writes {
		if err := w.apply(ctx); err != nil {
			return out, err
		}
	}

	if firstAnswer {
		logger.Info("questionnaire answered", "method", reply.Method, "status", final.Status())
		out.softErrors += e.onAnswered(ctx, ps, logger, final)
	}
	if firstBooking {
		logger.Info("appointment scheduled", "method", booking.Method, "status", final.Status())
		if final.Resolved() {
			out.softErrors += e.onCompleted(ctx, ps, logger, final)
		}
	}
	return out, nil
}

// detect runs the chains for the dimensions still open on the lead.
func (e *Engine) detect(ctx context.Context, logger *slog.Logger, lead *models.Lead) (*detect.Match, *detect.Match, error) {
	w := detect.WindowFor(lead, e.cfg.BookingWindow)
	onErr := func(d detect.Detector, err error) {
		err = apperr.Detector(d.Name(), err)
		logger.Warn("detector failed, treating as no match", "detector", d.Name(), "error", err)
	}

	var booking, reply *detect.Match
	var g errgroup.Group
	if !lead.AppointmentScheduled && len(e.booking) > 0 {
		g.Go(guard(func() {
			booking, _ = detect.FirstMatch(ctx, e.booking, lead, w, onErr)
		}))
	}
	if !lead.QuestionnaireAnswered && len(e.reply) > 0 {
		g.Go(guard(func() {
			reply, _ = detect.FirstMatch(ctx, e.reply, lead, w, onErr)
		}))
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return booking, reply, nil
}

// guard converts a panic in a detector goroutine into an error.
func guard(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in detector chain: %v", r)
			}
		}()
		fn()
		return nil
	}
}

// questionnaireUpdate parses and summarizes reply content. A reply with no
// content still counts as answered. It reports false when the reply had
// content but nothing survived parsing.
func (e *Engine) questionnaireUpdate(ctx context.Context, logger *slog.Logger, lead *models.Lead, m *detect.Match) (models.QuestionnaireUpdate, bool) {
	if !m.HasContent() {
		logger.Debug("reply detected without content", "method", m.Method)
		return models.QuestionnaireUpdate{Summary: models.SummaryUnavailable, Method: m.Method}, true
	}

	res := e.parser.Parse(ctx, m.Content, lead.Services)
	if !res.Success() {
		logger.Debug("reply detected but nothing parsed", "method", m.Method)
		return models.QuestionnaireUpdate{}, false
	}

	name := summarize.ResolveName(lead, res.Fields, m.Content)
	return models.QuestionnaireUpdate{
		Fields:      res.Fields,
		CleanedText: res.CleanedText,
		Summary:     e.summarizer.Summarize(ctx, m.Content, res.Fields, name),
		Method:      m.Method,
	}, true
}

func bookingUpdate(m *detect.Match) models.BookingUpdate {
	upd := models.BookingUpdate{
		ScheduledAt: m.EventTime,
		EventID:     m.EventID,
		Method:      m.Method,
	}
	if !upd.HasEvidence() && m.MessageID != "" {
		upd.EventID = "msg:" + m.MessageID
	}
	return upd
}

// backfillSummary regenerates a missing summary for an answered lead.
func (e *Engine) backfillSummary(ctx context.Context, logger *slog.Logger, lead *models.Lead) {
	if !lead.QuestionnaireAnswered || lead.HasSummary() || strings.TrimSpace(lead.RawReply) == "" {
		return
	}
	if !e.summarizer.Enabled() {
		return
	}

	name := summarize.ResolveName(lead, lead.ParsedReply, lead.RawReply)
	summary := e.summarizer.Summarize(ctx, lead.RawReply, lead.ParsedReply, name)
	ok, err := e.store.BackfillSummary(ctx, lead.Key(), summary)
	if err != nil {
		logger.Error("failed to backfill summary", "error", err)
		return
	}
	if ok {
		lead.Summary = summary
		logger.Info("summary backfilled")
	}
}
