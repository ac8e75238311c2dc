package extractors

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"knowledgeforge/internal/models"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")

// parseJSONItems implements spec.md §4.7 step 2: the parser accepts a bare
// JSON array, a bare JSON object (wrapped in a singleton array), or any
// text containing a fenced code block (the first block is extracted and
// parsed). Anything else is an unparseable-text error.
func parseJSONItems(text string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)

	if items, err := tryParseArrayOrObject(trimmed); err == nil {
		return items, nil
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		inner := strings.TrimSpace(m[1])
		if items, err := tryParseArrayOrObject(inner); err == nil {
			return items, nil
		}
	}

	return nil, fmt.Errorf("could not parse a JSON array, object, or fenced block from the response")
}

func tryParseArrayOrObject(s string) ([]json.RawMessage, error) {
	if s == "" {
		return nil, fmt.Errorf("empty response")
	}
	switch s[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, err
		}
		return items, nil
	case '{':
		var obj json.RawMessage
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, err
		}
		return []json.RawMessage{obj}, nil
	default:
		return nil, fmt.Errorf("response is neither a JSON array nor object")
	}
}

// ensureType injects category into raw when it has no "type" field, and
// rejects a response element that names a different category than the
// extractor invoked, since one extractor produces exactly one category.
func ensureType(raw json.RawMessage, category models.Category) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("extraction element is not a JSON object: %w", err)
	}

	if typeRaw, ok := fields["type"]; ok {
		var got models.Category
		if err := json.Unmarshal(typeRaw, &got); err == nil && got != category {
			return nil, fmt.Errorf("extraction element declares type %q, expected %q", got, category)
		}
		return raw, nil
	}

	fields["type"] = json.RawMessage(fmt.Sprintf("%q", category))
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-marshal extraction element: %w", err)
	}
	return merged, nil
}
