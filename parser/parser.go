// ABOUTME: Reply parser turning free-text questionnaire replies into fields
// ABOUTME: Model-backed extraction with bounded retries, then deterministic fallback
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/llm"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/questionnaire"
	"github.com/harperreed/leadsync/retry"
)

// Result is the outcome of parsing one reply.
type Result struct {
	Fields      *models.FieldMap
	CleanedText string
	// UsedModel is true when the fields came from the model.
	UsedModel bool
}

// Success reports whether anything usable was recovered.
func (r Result) Success() bool {
	return r.Fields.Len() > 0 || strings.TrimSpace(r.CleanedText) != ""
}

// Parser extracts question/answer pairs from replies.
type Parser struct {
	provider  llm.Provider
	templates questionnaire.Source
	policy    retry.Policy
	logger    *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithRetryPolicy overrides the model retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(ps *Parser) { ps.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ps *Parser) { ps.logger = l }
}

// New creates a parser. A nil provider disables the model path.
func New(provider llm.Provider, templates questionnaire.Source, opts ...Option) *Parser {
	p := &Parser{
		provider:  provider,
		templates: templates,
		policy:    retry.DefaultLLM(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reduces raw reply text to fields and a cleaned text block.
func (p *Parser) Parse(ctx context.Context, raw string, categories []string) Result {
	cleaned := CleanReply(raw)
	if cleaned == "" {
		return Result{Fields: models.NewFieldMap()}
	}
	questions := questionnaire.QuestionsFor(p.templates, categories)

	if p.provider != nil {
		fields, err := p.parseWithModel(ctx, cleaned, categories, questions)
		if err == nil && fields.Len() > 0 {
			return Result{Fields: fields, CleanedText: Reconstruct(fields), UsedModel: true}
		}
		if err != nil {
			p.logger.Warn("model parse failed, using fallback", "error", err)
		}
	}

	fields := Fallback(cleaned, raw, questions)
	if fields.Len() > 0 {
		return Result{Fields: fields, CleanedText: Reconstruct(fields)}
	}
	return Result{Fields: fields, CleanedText: cleaned}
}

func (p *Parser) parseWithModel(ctx context.Context, cleaned string, categories, questions []string) (*models.FieldMap, error) {
	prompt := buildPrompt(cleaned, categories, questions)

	var fields *models.FieldMap
	err := retry.Do(ctx, p.policy, func(ctx context.Context, attempt int) error {
		out, err := p.provider.Generate(ctx, prompt)
		if err != nil {
			if llm.Retryable(err) {
				p.logger.Debug("model call failed", "attempt", attempt, "error", err)
				return err
			}
			return retry.Permanent(err)
		}

		parsed, perr := parseModelOutput(out)
		if perr != nil {
			return retry.Permanent(apperr.Parser("parse model output", perr))
		}
		fields = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func buildPrompt(reply string, categories, questions []string) string {
	var b strings.Builder
	b.WriteString("You extract questionnaire answers from an email reply.\n")
	b.WriteString("Respond with ONLY a single JSON object. No prose, no code fences.\n")
	b.WriteString("Keys are question titles; values are the answer as a string, or a list of strings when the answer is a list.\n")
	b.WriteString("Omit questions that were not answered. Do not invent answers.\n")

	if len(categories) > 0 {
		fmt.Fprintf(&b, "\nThe client asked about: %s\n", strings.Join(categories, ", "))
	}
	if len(questions) > 0 {
		b.WriteString("\nUse these question titles as keys when they match:\n")
		for _, q := range questions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}

	b.WriteString("\nReply:\n\"\"\"\n")
	b.WriteString(reply)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}
