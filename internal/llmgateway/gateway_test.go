package llmgateway

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/apperr"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func newTestGateway(callFn func(ctx context.Context, input string) (string, tokenUsage, error)) *Gateway {
	return &Gateway{
		model:       "claude-sonnet-4-5",
		maxTokens:   1024,
		maxAttempts: 3,
		backoffBase: time.Millisecond,
		callFn:      callFn,
	}
}

func TestExtractComposesPromptAndContent(t *testing.T) {
	var gotInput string
	g := newTestGateway(func(ctx context.Context, input string) (string, tokenUsage, error) {
		gotInput = input
		return "raw output", tokenUsage{input: 10, output: 5}, nil
	})

	text, err := g.Extract(context.Background(), "PROMPT", "CONTENT")
	require.NoError(t, err)
	assert.Equal(t, "raw output", text)
	assert.Equal(t, "PROMPT\n\nCONTENT TO EXTRACT FROM:\nCONTENT", gotInput)
}

func TestExtractRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	g := newTestGateway(func(ctx context.Context, input string) (string, tokenUsage, error) {
		attempts++
		if attempts < 3 {
			return "", tokenUsage{}, timeoutErr{}
		}
		return "ok", tokenUsage{}, nil
	})

	text, err := g.Extract(context.Background(), "p", "c")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, attempts)
}

func TestExtractDoesNotRetryNonTransientError(t *testing.T) {
	attempts := 0
	g := newTestGateway(func(ctx context.Context, input string) (string, tokenUsage, error) {
		attempts++
		return "", tokenUsage{}, errors.New("some non-retryable failure")
	})

	_, err := g.Extract(context.Background(), "p", "c")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeAPIError, typed.Code)
}

func TestExtractExhaustsRetriesOnPersistentTimeout(t *testing.T) {
	attempts := 0
	g := newTestGateway(func(ctx context.Context, input string) (string, tokenUsage, error) {
		attempts++
		return "", tokenUsage{}, timeoutErr{}
	})

	_, err := g.Extract(context.Background(), "p", "c")
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestIsTransientClassification(t *testing.T) {
	assert.True(t, isTransient(classify(timeoutErr{})))
	assert.False(t, isTransient(classify(errors.New("boom"))))
}
