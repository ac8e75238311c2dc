package llmgateway

import "context"

// Client is the narrow interface category extractors depend on, so tests
// can substitute a fake instead of a live Anthropic connection.
type Client interface {
	Extract(ctx context.Context, prompt, content string) (string, error)
}

var _ Client = (*Gateway)(nil)
