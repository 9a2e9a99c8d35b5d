// ABOUTME: Tests for reply parsing
// ABOUTME: Covers cleanup, JSON salvage, model retries, and every fallback tier
package parser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harperreed/leadsync/apperr"
	"github.com/harperreed/leadsync/llm"
	"github.com/harperreed/leadsync/questionnaire"
	"github.com/harperreed/leadsync/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleepPolicy() retry.Policy {
	p := retry.DefaultLLM()
	p.Sleep = retry.NoSleep
	return p
}

func TestCleanReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "gmail quote",
			raw:  "Budget: $2k\r\n\r\nOn Mon, Mar 2, 2026 at 9:00 AM Owner <owner@firm.com> wrote:\r\n> Please fill this out\r\n",
			want: "Budget: $2k",
		},
		{
			name: "wrapped on-wrote header",
			raw:  "Yes please\n\nOn Mon, Mar 2, 2026 at 9:00 AM Owner <\nowner@firm.com> wrote:\n> hi",
			want: "Yes please",
		},
		{
			name: "outlook header",
			raw:  "See answers below\nFrom: Owner\nSent: Monday\nSubject: Hi",
			want: "See answers below",
		},
		{
			name: "signature delimiter",
			raw:  "Married, two kids\n-- \nJane Doe\nAcme Corp",
			want: "Married, two kids",
		},
		{
			name: "sign-off and mobile",
			raw:  "We own a house.\n\n\n\nThanks,\nJane\nSent from my iPhone",
			want: "We own a house.",
		},
		{
			name: "inline quote lines",
			raw:  "> old text\nnew text",
			want: "new text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanReply(tt.raw))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	obj, ok := ExtractJSONObject("Sure! ```json\n{\"a\": \"x { y\", \"b\": {\"c\": \"\\\"}\"}}\n``` done")
	require.True(t, ok)
	assert.Equal(t, `{"a": "x { y", "b": {"c": "\"}"}}`, obj)

	_, ok = ExtractJSONObject("no braces")
	assert.False(t, ok)

	obj, ok = ExtractJSONObject("{broken {\"k\": \"v\"}")
	require.True(t, ok)
	assert.Equal(t, `{"k": "v"}`, obj)
}

func TestParseWithModelSalvagesOutput(t *testing.T) {
	provider := llm.Func(func(context.Context, string) (string, error) {
		return "Here you go:\n```json\n{\"service interest\": \"Estate Planning\", \"documents\": [\"will\", \"trust\"], \"kids\": 2, \"notes\": null}\n```", nil
	})
	p := New(provider, nil, WithRetryPolicy(noSleepPolicy()))

	res := p.Parse(context.Background(), "I want estate planning, we have a will and a trust, two kids", nil)
	require.True(t, res.UsedModel)
	assert.Equal(t, []string{"service interest", "documents", "kids"}, res.Fields.Keys())
	v, _ := res.Fields.Get("documents")
	assert.Equal(t, []string{"will", "trust"}, v.List)
	assert.Equal(t, "service interest: Estate Planning\ndocuments: will, trust\nkids: 2", res.CleanedText)
}

func TestParseRetriesProviderErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	provider := llm.Func(func(context.Context, string) (string, error) {
		n := calls.Add(1)
		if n < 3 {
			return "", apperr.Provider("generate", errors.New("quota"))
		}
		return `{"budget": "$2k"}`, nil
	})
	p := New(provider, nil, WithRetryPolicy(noSleepPolicy()))

	res := p.Parse(context.Background(), "my budget is about 2k", nil)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, res.UsedModel)
	v, _ := res.Fields.Get("budget")
	assert.Equal(t, "$2k", v.String())
}

func TestParseFallsBackAfterExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	provider := llm.Func(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", apperr.Provider("generate", errors.New("unavailable"))
	})
	var waits []time.Duration
	policy := retry.DefaultLLM()
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	p := New(provider, nil, WithRetryPolicy(policy))

	res := p.Parse(context.Background(), "Budget: $2k\nTimeline: this month", nil)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
	assert.False(t, res.UsedModel)
	assert.Equal(t, []string{"Budget", "Timeline"}, res.Fields.Keys())
}

func TestParseGivesUpOnUnparseableOutput(t *testing.T) {
	var calls atomic.Int32
	provider := llm.Func(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "I could not find any answers.", nil
	})
	p := New(provider, nil, WithRetryPolicy(noSleepPolicy()))

	res := p.Parse(context.Background(), "Service: probate", nil)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, res.UsedModel)
	v, ok := res.Fields.Get("Service")
	require.True(t, ok)
	assert.Equal(t, "probate", v.String())
}

func TestFallbackAnchors(t *testing.T) {
	tpl := questionnaire.New(map[string]string{
		"Estate Planning": "1. What is your marital status?\n2. Do you have minor children?\n3. Which documents do you already have?",
	})
	reply := `Hi there, answers below.

What is your marital status? Married

Do you have minor children?
Yes, two.

Which documents do you already have?
- Will
- Power of attorney

Thanks,
Jane`
	p := New(nil, tpl)

	res := p.Parse(context.Background(), reply, []string{"estate planning"})
	require.Equal(t, []string{
		"What is your marital status?",
		"Do you have minor children?",
		"Which documents do you already have?",
	}, res.Fields.Keys())

	v, _ := res.Fields.Get("What is your marital status?")
	assert.Equal(t, "Married", v.String())
	v, _ = res.Fields.Get("Do you have minor children?")
	assert.Equal(t, "Yes, two.", v.String())
	v, _ = res.Fields.Get("Which documents do you already have?")
	assert.True(t, v.IsList)
	assert.Equal(t, []string{"Will", "Power of attorney"}, v.List)
}

func TestFallbackQuestionnaireBlock(t *testing.T) {
	raw := `Hello,

Here is my questionnaire:
Who is the executor?
My brother Tom

Is there a will?
Yes

On Tue, Mar 3, 2026 at 10:00 AM Owner <owner@firm.com> wrote:
> Budget: ignored`

	fields := Fallback(CleanReply(raw), raw, nil)
	assert.Equal(t, []string{"Who is the executor?", "Is there a will?"}, fields.Keys())
	v, _ := fields.Get("Who is the executor?")
	assert.Equal(t, "My brother Tom", v.String())
}

func TestFallbackKeyValueHarvest(t *testing.T) {
	text := "Service interest: Estate Planning\nsee https://example.com/page\n- Budget: $2,000\nnothing here"
	fields := Fallback(text, text, nil)
	assert.Equal(t, []string{"Service interest", "Budget"}, fields.Keys())
}

func TestParseEmptyAndUnstructured(t *testing.T) {
	p := New(nil, nil)

	res := p.Parse(context.Background(), "> only quoted\n", nil)
	assert.False(t, res.Success())

	res = p.Parse(context.Background(), "Sounds good, talk next week", nil)
	assert.True(t, res.Success())
	assert.Zero(t, res.Fields.Len())
	assert.Equal(t, "Sounds good, talk next week", res.CleanedText)
}
