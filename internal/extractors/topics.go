package extractors

import "strings"

// keywordDictionary is a curated, non-exhaustive set of terms auto-tagging
// scans for. Per spec.md §9, topics are advisory, not authoritative: tests
// should not assert specific topic strings beyond this set.
var keywordDictionary = []string{
	"rag", "embeddings", "llm", "fine-tuning", "deployment", "evaluation",
	"agents", "prompting", "retrieval", "vector search", "hallucination",
	"latency", "caching", "observability", "scaling",
}

const maxTopics = 5

// Tag scans content plus any string-valued fields of the extracted record
// against keywordDictionary, capping the result at five topics. Order
// follows keywordDictionary, not where each term first appears in the
// scanned text — acceptable since topics are advisory (spec.md §9).
func Tag(content string, extractedFields map[string]any) []string {
	haystack := strings.ToLower(content)
	for _, v := range extractedFields {
		if s, ok := v.(string); ok {
			haystack += " " + strings.ToLower(s)
		}
	}

	var topics []string
	for _, kw := range keywordDictionary {
		if len(topics) >= maxTopics {
			break
		}
		if strings.Contains(haystack, kw) {
			topics = append(topics, kw)
		}
	}
	return topics
}
