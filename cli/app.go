// ABOUTME: Wires the reconciliation engine and its collaborators from configuration
// ABOUTME: Chooses the run lock, notifier, model provider, and mail/calendar detectors
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/detect"
	"github.com/harperreed/leadsync/llm"
	"github.com/harperreed/leadsync/lock"
	"github.com/harperreed/leadsync/logger"
	"github.com/harperreed/leadsync/notify"
	"github.com/harperreed/leadsync/parser"
	"github.com/harperreed/leadsync/questionnaire"
	"github.com/harperreed/leadsync/reconcile"
	"github.com/harperreed/leadsync/summarize"
	"github.com/harperreed/leadsync/sync"
)

// App holds the wired collaborators for one process.
type App struct {
	Config config.Config
	DB     *sql.DB
	Leads  *db.LeadRepository
	Passes *db.PassRepository
	Engine *reconcile.Engine
	Logger *slog.Logger
	Out    io.Writer

	closers []func() error
}

// Close releases everything the app opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewApp opens the store and builds the engine.
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	log := logger.New(cfg.Environment)
	slog.SetDefault(log)

	database, err := db.OpenDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app := &App{
		Config:  cfg,
		DB:      database,
		Leads:   db.NewLeadRepository(database, db.WithPhoneRegion(cfg.Business.PhoneRegion)),
		Passes:  db.NewPassRepository(database),
		Logger:  log,
		Out:     os.Stdout,
		closers: []func() error{database.Close},
	}

	engine, err := app.buildEngine(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Engine = engine
	return app, nil
}

func (a *App) buildEngine(ctx context.Context) (*reconcile.Engine, error) {
	cfg := a.Config

	locker, err := a.locker()
	if err != nil {
		return nil, err
	}

	templates, err := questionnaire.Load(cfg.QuestionnairePath)
	if err != nil {
		return nil, err
	}

	var provider llm.Provider
	if cfg.LLM.Enabled {
		p, err := llm.NewGeminiProvider(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	notifier, err := a.notifier()
	if err != nil {
		return nil, err
	}

	detectors, err := a.detectors(ctx)
	if err != nil {
		return nil, err
	}

	engineLog := logger.Component(a.Logger, "reconcile")
	return reconcile.New(reconcile.Config{
		StoreIdentity:  cfg.StoreIdentity,
		OwnerEmail:     cfg.Business.OwnerEmail,
		OperatorEmail:  cfg.Business.OperatorEmail,
		BusinessName:   cfg.Business.Name,
		SchedulingLink: cfg.Business.SchedulingLink,
		ReminderAfter:  cfg.Reconcile.ReminderAfter,
		BookingWindow:  cfg.Reconcile.BookingWindow,
		LockTTL:        cfg.Reconcile.LockTTL,
	}, reconcile.Deps{
		Store:      a.Leads,
		Locker:     locker,
		Passes:     a.Passes,
		Detectors:  detectors,
		Parser:     parser.New(provider, templates, parser.WithLogger(logger.Component(a.Logger, "parser"))),
		Summarizer: summarize.New(provider, summarize.WithLogger(logger.Component(a.Logger, "summarize"))),
		Templates:  templates,
		Notifier:   notifier,
	}, reconcile.WithLogger(engineLog))
}

// locker uses Redis when configured so several hosts can share one store.
func (a *App) locker() (lock.Locker, error) {
	if a.Config.Redis.URL == "" {
		return db.NewRunLockRepository(a.DB), nil
	}
	rl, err := lock.NewRedisLockerFromURL(a.Config.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rl.Close)
	return rl, nil
}

func (a *App) notifier() (notify.Notifier, error) {
	cfg := a.Config
	if !cfg.SMTPEnabled() {
		return notify.LogNotifier{Logger: logger.Component(a.Logger, "notify")}, nil
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromEmail: cfg.SMTP.FromEmail,
		FromName:  cfg.SMTP.FromName,
	})
}

// detectors builds the detector chain in priority order. Without Google
// credentials the chain is empty and passes only send reminders.
func (a *App) detectors(ctx context.Context) ([]detect.Detector, error) {
	cfg := a.Config
	if !cfg.GoogleEnabled() {
		a.Logger.Warn("google credentials not configured, detectors disabled")
		return nil, nil
	}

	token, err := sync.LoadToken(tokenPath(cfg))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.Logger.Warn("no google token found, run 'leadsync auth' first")
			return nil, nil
		}
		return nil, err
	}

	return buildDetectors(ctx, cfg, token, a.Logger)
}

func buildDetectors(ctx context.Context, cfg config.Config, token *oauth2.Token, log *slog.Logger) ([]detect.Detector, error) {
	oauthConfig := sync.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret)

	gmailService, err := sync.NewGmailClient(ctx, oauthConfig, token)
	if err != nil {
		return nil, err
	}
	calendarService, err := sync.NewCalendarClient(ctx, oauthConfig, token)
	if err != nil {
		return nil, err
	}

	// One limiter for both APIs keeps the whole process under quota.
	limiter := rate.NewLimiter(rate.Limit(cfg.Google.RequestsPerSecond), cfg.Google.Burst)
	mail := sync.NewGmailSource(gmailService, limiter, sync.WithGmailLogger(logger.Component(log, "gmail")))
	calendar := sync.NewCalendarSource(calendarService, limiter, sync.WithCalendarLogger(logger.Component(log, "calendar")))

	var ignore []string
	if tok := detect.LinkToken(cfg.Business.SchedulingLink); cfg.Business.SchedulingLink != "" && tok != "" {
		ignore = append(ignore, tok)
	}

	owner := cfg.Business.OwnerEmail
	return []detect.Detector{
		&detect.CalendarDetector{Source: calendar, Owner: owner},
		&detect.AttachmentDetector{Mail: mail, Owner: owner, IgnoreLinks: ignore, Location: time.Local},
		&detect.ThreadDetector{Mail: mail, Owner: owner},
		&detect.BroadSearchDetector{Mail: mail},
	}, nil
}

func tokenPath(cfg config.Config) string {
	if cfg.Google.TokenPath != "" {
		return cfg.Google.TokenPath
	}
	return sync.TokenPath()
}
