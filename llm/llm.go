// ABOUTME: Language model provider abstraction and its Gemini implementation
// ABOUTME: Classifies quota and availability failures as retryable provider errors
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harperreed/leadsync/apperr"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Provider turns a prompt into text.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// GeminiProvider calls the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiProvider creates a provider for the given key and model.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{client: client, model: model, temperature: 0.2}, nil
}

// Generate sends a single-turn prompt and returns the response text.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	})
	if err != nil {
		return "", Classify(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Classify wraps quota, availability, and network failures as provider
// errors. Other API errors are returned as-is and are not worth retrying.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.Code) {
			return apperr.Provider("generate", err)
		}
		return fmt.Errorf("gemini request rejected: %w", err)
	}

	// Transport failures and timeouts
	return apperr.Provider("generate", err)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Retryable reports whether err is a provider failure worth another attempt.
func Retryable(err error) bool {
	return apperr.Is(err, apperr.KindProvider)
}
