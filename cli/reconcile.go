// ABOUTME: Reconciliation CLI commands
// ABOUTME: Runs one pass, runs passes on an interval, and shows recent pass history
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/reconcile"
)

// ReconcileCommand runs one reconciliation pass and prints its stats.
// A pass that cannot take the run lock returns an error.
func ReconcileCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print stats as JSON")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := app.Engine.ReconcilePass(ctx)
	if err != nil {
		if apperr.Is(err, apperr.KindLockTimeout) {
			return fmt.Errorf("another pass is running: %w", err)
		}
		return fmt.Errorf("reconcile pass failed: %w", err)
	}
	return printStats(app.Out, stats, *asJSON)
}

func printStats(w io.Writer, stats reconcile.Stats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	_, _ = fmt.Fprintf(w, "Pass %s\n", stats.PassID)
	_, _ = fmt.Fprintf(w, "  Processed:      %d\n", stats.Processed)
	_, _ = fmt.Fprintf(w, "  Matched:        %d\n", stats.Matched)
	_, _ = fmt.Fprintf(w, "  Reminders sent: %d\n", stats.RemindersSent)
	_, _ = fmt.Fprintf(w, "  Skipped:        %d\n", stats.Skipped)
	_, _ = fmt.Fprintf(w, "  Errors:         %d\n", stats.Errors)
	return nil
}

const defaultDaemonInterval = 15 * time.Minute

// DaemonCommand runs passes on an interval until SIGINT or SIGTERM.
func DaemonCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	def := app.Config.Reconcile.DaemonInterval
	if def == 0 {
		def = defaultDaemonInterval
	}
	intervalStr := fs.String("interval", def.String(), "Time between passes (minimum 5m)")
	_ = fs.Parse(args)

	interval, err := parseInterval(*intervalStr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Starting reconcile daemon (interval: %s)\n", interval)
	fmt.Println("Press Ctrl+C to stop")

	runDaemon(ctx, interval, func(ctx context.Context) {
		stats, err := app.Engine.ReconcilePass(ctx)
		if err != nil {
			// A lock timeout means another process is mid-pass; try again next tick.
			app.Logger.Warn("pass did not run", "error", err)
			return
		}
		app.Logger.Info("pass complete",
			"pass_id", stats.PassID,
			"matched", stats.Matched,
			"reminders_sent", stats.RemindersSent,
			"errors", stats.Errors)
	}, app.Logger)

	fmt.Println("\nDaemon stopped")
	return nil
}

// parseInterval parses a daemon interval and enforces the minimum.
func parseInterval(s string) (time.Duration, error) {
	interval, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if interval < config.MinDaemonInterval {
		return 0, fmt.Errorf("interval must be at least %s, got %s", config.MinDaemonInterval, interval)
	}
	return interval, nil
}

// runDaemon runs pass immediately, then on every tick until ctx is done.
func runDaemon(ctx context.Context, interval time.Duration, pass func(context.Context), logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pass(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon shutting down")
			return
		case <-ticker.C:
			pass(ctx)
		}
	}
}

// StatusCommand lists recent passes.
func StatusCommand(app *App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	limit := fs.Int("limit", 10, "Number of passes to show")
	_ = fs.Parse(args)

	runs, err := app.Passes.RecentPasses(context.Background(), *limit)
	if err != nil {
		return fmt.Errorf("failed to load pass history: %w", err)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(app.Out, "No passes recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(app.Out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PASS\tSTARTED\tDURATION\tSTATUS\tPROCESSED\tMATCHED\tREMINDERS\tERRORS")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------\t------\t---------\t-------\t---------\t------")
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			run.ID,
			formatTimeSince(run.StartedAt, time.Now()),
			duration,
			run.Status,
			run.Processed,
			run.Matched,
			run.RemindersSent,
			run.Errors)
	}
	_ = w.Flush()

	for _, run := range runs {
		if run.ErrorMessage != "" {
			_, _ = fmt.Fprintf(app.Out, "\n%s failed: %s\n", run.ID, run.ErrorMessage)
		}
	}
	return nil
}

// formatTimeSince renders a coarse relative time.
func formatTimeSince(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
