// ABOUTME: Reconciliation driver: one lock-protected sweep over unresolved leads
// ABOUTME: Runs detectors, persists completion flags, and sends at most one reminder per lead
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/detect"
	"github.com/harperreed/leadsync/lock"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/notify"
	"github.com/harperreed/leadsync/parser"
	"github.com/harperreed/leadsync/questionnaire"
	"github.com/harperreed/leadsync/retry"
	"github.com/harperreed/leadsync/summarize"
)

// Defaults applied by New when the config leaves them zero.
const (
	DefaultReminderAfter = 24 * time.Hour
	DefaultLockTTL       = 10 * time.Minute
	releaseTimeout       = 5 * time.Second
)

// Store is the record store the driver reads and writes.
type Store interface {
	List(ctx context.Context) ([]*models.Lead, error)
	Get(ctx context.Context, email string) (*models.Lead, error)
	RecordQuestionnaireResponse(ctx context.Context, email string, upd models.QuestionnaireUpdate) (*models.UpdateResult, error)
	RecordBooking(ctx context.Context, email string, upd models.BookingUpdate) (*models.UpdateResult, error)
	MarkReminderSent(ctx context.Context, email string, at time.Time) (bool, error)
	BackfillSummary(ctx context.Context, email, summary string) (bool, error)
}

// PassLog records the outcome of each pass.
type PassLog interface {
	StartPass(ctx context.Context, id string, startedAt time.Time) error
	FinishPass(ctx context.Context, run *models.PassRun) error
}

// Config is the immutable driver configuration.
type Config struct {
	// StoreIdentity namespaces the run lock.
	StoreIdentity  string
	OwnerEmail     string
	OperatorEmail  string
	BusinessName   string
	SchedulingLink string
	ReminderAfter  time.Duration
	BookingWindow  time.Duration
	LockTTL        time.Duration
	LockRetry      retry.Policy
}

// Deps are the collaborators of the driver. Detectors are given in
// priority order, most trustworthy first.
type Deps struct {
	Store      Store
	Locker     lock.Locker
	Passes     PassLog
	Detectors  []detect.Detector
	Parser     *parser.Parser
	Summarizer *summarize.Summarizer
	Templates  questionnaire.Source
	Notifier   notify.Notifier
}

// Stats summarizes one pass.
type Stats struct {
	PassID        string `json:"pass_id"`
	Processed     int    `json:"processed"`
	Matched       int    `json:"matched"`
	RemindersSent int    `json:"reminders_sent"`
	Errors        int    `json:"errors"`
	Skipped       int    `json:"skipped"`
}

// Engine is the reconciliation driver.
type Engine struct {
	cfg        Config
	store      Store
	locker     lock.Locker
	passes     PassLog
	booking    []detect.Detector
	reply      []detect.Detector
	parser     *parser.Parser
	summarizer *summarize.Summarizer
	templates  questionnaire.Source
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPassIDs overrides pass id generation.
func WithPassIDs(next func() string) Option {
	return func(e *Engine) { e.newID = next }
}

// New builds a driver.
func New(cfg Config, deps Deps, opts ...Option) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Locker == nil {
		return nil, errors.New("locker is required")
	}
	if cfg.ReminderAfter <= 0 {
		cfg.ReminderAfter = DefaultReminderAfter
	}
	if cfg.BookingWindow <= 0 {
		cfg.BookingWindow = detect.DefaultBookingWindow
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.LockRetry.Attempts == 0 {
		cfg.LockRetry = retry.DefaultLock()
	}
	if cfg.StoreIdentity == "" {
		cfg.StoreIdentity = "default"
	}

	e := &Engine{
		cfg:        cfg,
		store:      deps.Store,
		locker:     deps.Locker,
		passes:     deps.Passes,
		parser:     deps.Parser,
		summarizer: deps.Summarizer,
		templates:  deps.Templates,
		notifier:   deps.Notifier,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, d := range deps.Detectors {
		if d.Dimension() == detect.Booking {
			e.booking = append(e.booking, d)
		} else {
			e.reply = append(e.reply, d)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		e.parser = parser.New(nil, e.templates, parser.WithLogger(e.logger))
	}
	if e.summarizer == nil {
		e.summarizer = summarize.New(nil, summarize.WithLogger(e.logger))
	}
	if e.notifier == nil {
		e.notifier = notify.LogNotifier{Logger: e.logger}
	}
	if e.newID == nil {
		e.newID = func() string {
			return ulid.MustNew(ulid.Timestamp(e.now()), ulid.DefaultEntropy()).String()
		}
	}
	return e, nil
}

// LockName is the name of the run lock guarding passes over this store.
func (e *Engine) LockName() string {
	return "reconcile:" + e.cfg.StoreIdentity
}

// passState is the per-pass bookkeeping shared across records.
type passState struct {
	id     string
	logger *slog.Logger
	lease  *lock.Lease
	seen   map[string]bool
	// notified keys side effects by lead and kind so each fires once per pass.
	notified map[string]bool
}

func (ps *passState) once(key, kind string) bool {
	k := key + "|" + kind
	if ps.notified[k] {
		return false
	}
	ps.notified[k] = true
	return true
}

// ReconcilePass sweeps every lead once under the run lock. Only a lock
// timeout or a failure to list leads aborts the pass; record-level failures
// are counted in Stats.Errors.
func (e *Engine) ReconcilePass(ctx context.Context) (Stats, error) {
	ps := &passState{
		id:       e.newID(),
		seen:     make(map[string]bool),
		notified: make(map[string]bool),
	}
	ps.logger = e.logger.With("pass_id", ps.id)
	stats := Stats{PassID: ps.id}

	lease, err := lock.Acquire(ctx, e.locker, e.LockName(), ps.id, e.cfg.LockTTL, e.cfg.LockRetry)
	if err != nil {
		ps.logger.Error("run lock not acquired, skipping pass", "lock", e.LockName(), "error", err)
		return stats, err
	}
	ps.lease = lease
	ctx = detect.WithPassCache(ctx)
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := lease.Release(rctx); err != nil {
			ps.logger.Error("failed to release run lock", "lock", e.LockName(), "error", err)
		}
	}()

	started := e.now()
	e.startPass(ctx, ps, started)
	ps.logger.Info("reconcile pass started")

	err = e.sweep(ctx, ps, &stats)

	e.finishPass(ctx, ps, started, stats, err)
	ps.logger.Info("reconcile pass finished",
		"processed", stats.Processed,
		"matched", stats.Matched,
		"reminders_sent", stats.RemindersSent,
		"errors", stats.Errors,
		"skipped", stats.Skipped,
		"duration", e.now().Sub(started))
	return stats, err
}

func (e *Engine) sweep(ctx context.Context, ps *passState, stats *Stats) error {
	leads, err := e.store.List(ctx)
	if err != nil {
		return apperr.Persistence("list leads", err)
	}

	for i, lead := range leads {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := e.refreshLease(ctx, ps); err != nil {
				return err
			}
		}

		key := lead.Key()
		if ps.seen[key] {
			stats.Skipped++
			continue
		}
		ps.seen[key] = true

		out, err := e.safeProcess(ctx, ps, lead)
		if out.skipped {
			stats.Skipped++
		} else {
			stats.Processed++
		}
		if out.matched {
			stats.Matched++
		}
		if out.reminded {
			stats.RemindersSent++
		}
		stats.Errors += out.softErrors
		if err != nil {
			stats.Errors++
			ps.logger.Error("failed to reconcile lead", "lead", key, "error", err)
		}
	}
	return nil
}

// refreshLease extends the run lock between records. Losing the lock ends
// the pass; a failed refresh only warns since the lease is still live.
func (e *Engine) refreshLease(ctx context.Context, ps *passState) error {
	if ps.lease == nil {
		return nil
	}
	err := ps.lease.Refresh(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrLost):
		ps.logger.Error("run lock lost mid-pass, stopping", "lock", e.LockName())
		return fmt.Errorf("run lock %s: %w", e.LockName(), err)
	default:
		ps.logger.Warn("failed to refresh run lock", "lock", e.LockName(), "error", err)
		return nil
	}
}

// safeProcess turns a panic while handling one lead into a record error.
func (e *Engine) safeProcess(ctx context.Context, ps *passState, lead *models.Lead) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic reconciling lead: %v", r)
		}
	}()
	return e.processLead(ctx, ps, lead)
}

func (e *Engine) startPass(ctx context.Context, ps *passState, started time.Time) {
	if e.passes == nil {
		return
	}
	if err := e.passes.StartPass(ctx, ps.id, started); err != nil {
		ps.logger.Warn("failed to record pass start", "error", err)
	}
}

func (e *Engine) finishPass(ctx context.Context, ps *passState, started time.Time, stats Stats, passErr error) {
	if e.passes == nil {
		return
	}
	finished := e.now()
	run := &models.PassRun{
		ID:            ps.id,
		StartedAt:     started,
		FinishedAt:    &finished,
		Status:        models.PassComplete,
		Processed:     stats.Processed,
		Matched:       stats.Matched,
		RemindersSent: stats.RemindersSent,
		Errors:        stats.Errors,
		Skipped:       stats.Skipped,
	}
	if passErr != nil {
		run.Status = models.PassFailed
		run.ErrorMessage = passErr.Error()
	}
	if err := e.passes.FinishPass(context.WithoutCancel(ctx), run); err != nil {
		ps.logger.Warn("failed to record pass result", "error", err)
	}
}
