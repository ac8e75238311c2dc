package models

import "fmt"

// requiredFields lists the content keys that must be present (and
// non-empty) for each category, per spec.md §3. Extra keys are always
// allowed and preserved.
var requiredFields = map[Category][]string{
	CategoryDecision:    {"question"},
	CategoryPattern:     {"name", "problem", "solution"},
	CategoryWarning:     {"title", "description"},
	CategoryMethodology: {"name"},
	CategoryChecklist:   {"name"},
	CategoryPersona:     {"role"},
	CategoryWorkflow:    {"name"},
}

// ValidateContent checks that content carries every required field for
// category and that nested list shapes (methodology steps, checklist
// items, workflow steps) carry their own required subfields.
func ValidateContent(category Category, content map[string]any) error {
	required, ok := requiredFields[category]
	if !ok {
		return fmt.Errorf("unsupported extraction type %q", category)
	}
	for _, field := range required {
		v, present := content[field]
		if !present || isEmptyValue(v) {
			return fmt.Errorf("extraction type %q missing required field %q", category, field)
		}
	}

	switch category {
	case CategoryMethodology:
		return validateSteps(content["steps"], []string{"order", "title", "description"})
	case CategoryWorkflow:
		return validateSteps(content["steps"], []string{"order", "action"})
	case CategoryChecklist:
		return validateItems(content["items"])
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

func validateSteps(raw any, required []string) error {
	if raw == nil {
		return nil
	}
	steps, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("field %q must be a list", "steps")
	}
	for i, s := range steps {
		step, ok := s.(map[string]any)
		if !ok {
			return fmt.Errorf("step %d must be an object", i)
		}
		for _, field := range required {
			v, present := step[field]
			if !present || isEmptyValue(v) {
				return fmt.Errorf("step %d missing required field %q", i, field)
			}
		}
	}
	return nil
}

func validateItems(raw any) error {
	if raw == nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("field %q must be a list", "items")
	}
	for i, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			return fmt.Errorf("item %d must be an object", i)
		}
		if v, present := item["item"]; !present || isEmptyValue(v) {
			return fmt.Errorf("item %d missing required field %q", i, "item")
		}
	}
	return nil
}
