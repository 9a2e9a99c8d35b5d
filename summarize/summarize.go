// ABOUTME: Summarizer producing a short synopsis of a questionnaire reply
// ABOUTME: Model call with bounded retries, falling back to field concatenation or a sentinel
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harperreed/leadsync/llm"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/retry"
)

// fallbackFields is how many parsed fields the fallback summary includes.
const fallbackFields = 5

// Summarizer writes the synopsis stored on a lead when its questionnaire
// is first answered.
type Summarizer struct {
	provider llm.Provider
	policy   retry.Policy
	logger   *slog.Logger
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithRetryPolicy overrides the model retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Summarizer) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) { s.logger = l }
}

// New creates a summarizer. A nil provider always uses the fallback.
func New(provider llm.Provider, opts ...Option) *Summarizer {
	s := &Summarizer{
		provider: provider,
		policy:   retry.DefaultLLM(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a model is configured.
func (s *Summarizer) Enabled() bool {
	return s != nil && s.provider != nil
}

// Summarize returns a synopsis of raw. It never fails: when the model is
// unavailable it returns FallbackSummary.
func (s *Summarizer) Summarize(ctx context.Context, raw string, fields *models.FieldMap, name string) string {
	if !s.Enabled() || strings.TrimSpace(raw) == "" {
		return FallbackSummary(name, fields)
	}

	prompt := buildPrompt(raw, fields, name)
	var summary string
	err := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) error {
		out, err := s.provider.Generate(ctx, prompt)
		if err != nil {
			if llm.Retryable(err) {
				s.logger.Debug("summary call failed", "attempt", attempt, "error", err)
				return err
			}
			return retry.Permanent(err)
		}
		summary = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		s.logger.Warn("summary unavailable from model, using fallback", "error", err)
		return FallbackSummary(name, fields)
	}
	if summary == "" {
		return FallbackSummary(name, fields)
	}
	return summary
}

// FallbackSummary concatenates the first few parsed fields, or returns the
// sentinel when there are none.
func FallbackSummary(name string, fields *models.FieldMap) string {
	if fields.Len() == 0 {
		return models.SummaryUnavailable
	}
	if strings.TrimSpace(name) == "" {
		name = "The lead"
	}

	var pairs []string
	fields.Each(func(k string, v models.FieldValue) {
		if len(pairs) >= fallbackFields || v.Empty() {
			return
		}
		pairs = append(pairs, fmt.Sprintf("%s: %s", k, v.String()))
	})
	if len(pairs) == 0 {
		return models.SummaryUnavailable
	}
	return fmt.Sprintf("%s replied. %s", name, strings.Join(pairs, "; "))
}

func buildPrompt(raw string, fields *models.FieldMap, name string) string {
	var b strings.Builder
	b.WriteString("Summarize this prospective client's questionnaire reply for a busy attorney.\n")
	b.WriteString("Write two to three plain sentences. No bullet points, no greeting, no sign-off.\n")
	if name != "" {
		fmt.Fprintf(&b, "Refer to the client as %s.\n", name)
	}
	if fields.Len() > 0 {
		b.WriteString("\nExtracted answers:\n")
		fields.Each(func(k string, v models.FieldValue) {
			fmt.Fprintf(&b, "- %s: %s\n", k, v.String())
		})
	}
	b.WriteString("\nReply:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(raw))
	b.WriteString("\n\"\"\"\n")
	return b.String()
}
