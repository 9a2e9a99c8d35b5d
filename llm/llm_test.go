package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/harperreed/leadsync/apperr"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"quota", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, true},
		{"unavailable", fmt.Errorf("call: %w", genai.APIError{Code: 503}), true},
		{"bad request", genai.APIError{Code: 400, Message: "invalid argument"}, false},
		{"forbidden", genai.APIError{Code: 403}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"transport", errors.New("connection reset by peer"), true},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)
			assert.Error(t, err)
			assert.Equal(t, tt.retryable, Retryable(err))
			assert.Contains(t, err.Error(), tt.err.Error())
		})
	}

	assert.NoError(t, Classify(nil))
}

func TestFuncProvider(t *testing.T) {
	p := Func(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	})
	out, err := p.Generate(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
	assert.False(t, apperr.Is(err, apperr.KindProvider))
}

func TestNewGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "")
	assert.Error(t, err)
}
