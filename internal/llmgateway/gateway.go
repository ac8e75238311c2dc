// Package llmgateway wraps the Anthropic SDK behind the single asynchronous
// operation category extractors need: extract(prompt, content) -> text.
// Failures are classified into the taxonomy from spec.md §4.3 and only
// transient ones are retried.
package llmgateway

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/logging"
)

const defaultMaxAttempts = 3

// Gateway is stateless once constructed; concurrent calls are safe.
type Gateway struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	maxAttempts int
	backoffBase time.Duration

	// callFn defaults to g.call; tests override it to avoid a live SDK call.
	callFn func(ctx context.Context, input string) (string, tokenUsage, error)
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithMaxAttempts overrides the bound on retry attempts for transient
// failures (default 3).
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) { g.maxAttempts = n }
}

// WithBackoffBase overrides the base duration the exponential backoff
// multiplies (default 200ms).
func WithBackoffBase(d time.Duration) Option {
	return func(g *Gateway) { g.backoffBase = d }
}

// New builds a Gateway for model, sending at most maxTokens completion
// tokens per call. httpClient may be nil to use the SDK's default.
func New(apiKey, model string, maxTokens int64, httpClient *http.Client, opts ...Option) *Gateway {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(httpClient))
	}
	g := &Gateway{
		client:      anthropic.NewClient(clientOpts...),
		model:       model,
		maxTokens:   maxTokens,
		maxAttempts: defaultMaxAttempts,
		backoffBase: 200 * time.Millisecond,
	}
	g.callFn = g.call
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Extract calls the LLM with prompt + "\n\nCONTENT TO EXTRACT FROM:\n" + content
// and returns its raw text unchanged. Transient failures (rate limit,
// connection timeout) retry with exponential backoff up to maxAttempts;
// everything else surfaces immediately as a typed *apperr.Error.
func (g *Gateway) Extract(ctx context.Context, prompt, content string) (string, error) {
	input := prompt + "\n\nCONTENT TO EXTRACT FROM:\n" + content
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		log.Debug().Int("attempt", attempt).Str("model", g.model).Msg("llm gateway call starting")
		text, usage, err := g.callFn(ctx, input)
		if err == nil {
			log.Debug().
				Int("attempt", attempt).
				Int64("input_tokens", usage.input).
				Int64("output_tokens", usage.output).
				Msg("llm gateway call completed")
			return text, nil
		}

		typed := classify(err)
		lastErr = typed
		if !isTransient(typed) || attempt == g.maxAttempts {
			return "", typed
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * g.backoffBase
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

type tokenUsage struct {
	input  int64
	output int64
}

func (g *Gateway) call(ctx context.Context, input string) (string, tokenUsage, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(input)),
		},
	})
	if err != nil {
		return "", tokenUsage{}, err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	usage := tokenUsage{input: msg.Usage.InputTokens, output: msg.Usage.OutputTokens}
	return text, usage, nil
}

// classify maps an SDK error to the taxonomy in spec.md §4.3/§7.
func classify(err error) *apperr.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return apperr.Wrap(apperr.CodeAPIError, "rate limited by llm provider", err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return apperr.Wrap(apperr.CodeAuthError, "llm authentication failed", err)
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return apperr.Wrap(apperr.CodeBadRequest, "llm rejected the request", err)
		case apiErr.StatusCode >= 500:
			return apperr.Wrap(apperr.CodeAPIError, "llm server error", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.CodeAPIError, "llm connection timeout", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeAPIError, "llm connection timeout", err)
	}

	return apperr.Wrap(apperr.CodeAPIError, "llm call failed", err)
}

// isTransient reports whether typed warrants a retry: rate limits and
// connection timeouts only. 5xx errors are typed API_ERROR but are not
// retried by default, per spec.md §4.3.
func isTransient(typed *apperr.Error) bool {
	if typed.Code != apperr.CodeAPIError {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(typed.Err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var netErr net.Error
	if errors.As(typed.Err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(typed.Err, context.DeadlineExceeded)
}
