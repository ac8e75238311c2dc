// Package combiner packs ordered chunks into a token budget under a chosen
// strategy, the way the chapter/section/chunk levels of the orchestrator
// assemble context for an LLM call.
package combiner

import (
	"fmt"

	"knowledgeforge/internal/models"
	"knowledgeforge/internal/util"
)

// Strategy selects how chunks are packed under max_tokens.
type Strategy string

const (
	StrategyTruncate           Strategy = "truncate"
	StrategyNone                Strategy = "none"
	StrategySummaryIfExceeded   Strategy = "summary_if_exceeded"
)

// Result is the combined text plus the bookkeeping the orchestrator stamps
// onto extractions drawn from it.
type Result struct {
	Content   string
	ChunkIDs  []string
	Tokens    int
	Truncated bool
}

// Combine packs chunks (already in the caller's desired order) under
// maxTokens per strategy. An unknown strategy is a program error: the
// caller passed a value outside the three declared in spec.md §4.5.
func Combine(chunks []models.Chunk, maxTokens int, strategy Strategy) (Result, error) {
	switch strategy {
	case StrategyNone:
		return combineAll(chunks), nil
	case StrategyTruncate, StrategySummaryIfExceeded:
		// summary_if_exceeded behaves as truncate until a summarizer is
		// supplied; spec.md §4.5 declares but does not implement one.
		return combineTruncate(chunks, maxTokens), nil
	default:
		panic(fmt.Sprintf("combiner: unknown strategy %q", strategy))
	}
}

func combineAll(chunks []models.Chunk) Result {
	content, ids, tokens := join(chunks)
	return Result{Content: content, ChunkIDs: ids, Tokens: tokens, Truncated: false}
}

func combineTruncate(chunks []models.Chunk, maxTokens int) Result {
	if len(chunks) == 0 {
		return Result{}
	}

	first := chunks[0]
	firstTokens := util.CountTokens(first.Content)
	if firstTokens > maxTokens {
		prefix := proportionalPrefix(first.Content, maxTokens, firstTokens)
		return Result{
			Content:   prefix,
			ChunkIDs:  []string{first.ID},
			Tokens:    util.CountTokens(prefix),
			Truncated: true,
		}
	}

	var included []models.Chunk
	total := 0
	for _, c := range chunks {
		t := util.CountTokens(c.Content)
		if total+t > maxTokens {
			break
		}
		included = append(included, c)
		total += t
	}
	content, ids, tokens := join(included)
	return Result{Content: content, ChunkIDs: ids, Tokens: tokens, Truncated: len(included) < len(chunks)}
}

// proportionalPrefix includes a prefix of content sized proportionally to
// maxTokens/totalTokens, measured in runes to stay UTF-8 safe.
func proportionalPrefix(content string, maxTokens, totalTokens int) string {
	runes := []rune(content)
	if totalTokens <= 0 {
		return content
	}
	keep := len(runes) * maxTokens / totalTokens
	if keep <= 0 {
		keep = 1
	}
	if keep >= len(runes) {
		keep = len(runes)
	}
	return string(runes[:keep])
}

func join(chunks []models.Chunk) (string, []string, int) {
	content := ""
	ids := make([]string, 0, len(chunks))
	tokens := 0
	for i, c := range chunks {
		if i > 0 {
			content += "\n\n"
		}
		content += c.Content
		ids = append(ids, c.ID)
		tokens += util.CountTokens(c.Content)
	}
	return content, ids, tokens
}
