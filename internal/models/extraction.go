// Package models defines the extraction envelope, the seven category
// content shapes, and the tagged-variant parsing/validation rules that
// route a (type, raw JSON) pair to the correct shape.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is stamped on every extraction written by this codebase.
// Older records read back with hierarchy fields defaulted (see Normalize).
const SchemaVersion = "1.1.0"

// Category is one of the seven extraction types.
type Category string

const (
	CategoryDecision     Category = "decision"
	CategoryPattern      Category = "pattern"
	CategoryWarning      Category = "warning"
	CategoryMethodology  Category = "methodology"
	CategoryChecklist    Category = "checklist"
	CategoryPersona      Category = "persona"
	CategoryWorkflow     Category = "workflow"
)

// Categories lists all seven tags in a fixed, deterministic order.
var Categories = []Category{
	CategoryDecision, CategoryPattern, CategoryWarning, CategoryMethodology,
	CategoryChecklist, CategoryPersona, CategoryWorkflow,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ContextLevel is the granularity an extraction was drawn from.
type ContextLevel string

const (
	LevelChapter ContextLevel = "chapter"
	LevelSection ContextLevel = "section"
	LevelChunk   ContextLevel = "chunk"
)

// Extraction is the common envelope shared by all seven category variants;
// Content carries the category-specific fields, unknown keys preserved.
type Extraction struct {
	ID            string         `json:"id,omitempty" bson:"_id,omitempty"`
	SourceID      string         `json:"source_id" bson:"source_id"`
	ChunkID       string         `json:"chunk_id" bson:"chunk_id"`
	Type          Category       `json:"type" bson:"type"`
	Topics        []string       `json:"topics" bson:"topics"`
	Confidence    float64        `json:"confidence" bson:"confidence"`
	SchemaVersion string         `json:"schema_version" bson:"schema_version"`
	ExtractedAt   time.Time      `json:"extracted_at" bson:"extracted_at"`
	ContextLevel  ContextLevel   `json:"context_level" bson:"context_level"`
	ContextID     string         `json:"context_id" bson:"context_id"`
	ChunkIDs      []string       `json:"chunk_ids" bson:"chunk_ids"`
	Content       map[string]any `json:"content" bson:"content"`
}

// envelopeKeys are the top-level keys that belong to the envelope, not the
// category content. Anything else in the raw object becomes Content.
var envelopeKeys = map[string]bool{
	"id": true, "source_id": true, "chunk_id": true, "type": true,
	"topics": true, "confidence": true, "schema_version": true,
	"extracted_at": true, "context_level": true, "context_id": true,
	"chunk_ids": true,
}

// ParseExtraction routes raw to the content shape matching its "type" field,
// validates the envelope + category shape, and returns the assembled
// Extraction. It never guesses a type: an absent or unknown type fails.
func ParseExtraction(raw json.RawMessage) (*Extraction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("extraction is not a JSON object: %w", err)
	}

	typeRaw, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("extraction missing required field %q", "type")
	}
	var category Category
	if err := json.Unmarshal(typeRaw, &category); err != nil {
		return nil, fmt.Errorf("extraction field %q is not a string: %w", "type", err)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("extraction type %q is not one of the seven known categories", category)
	}

	ext := &Extraction{Type: category, Content: map[string]any{}}

	if v, ok := fields["source_id"]; ok {
		_ = json.Unmarshal(v, &ext.SourceID)
	}
	if v, ok := fields["chunk_id"]; ok {
		_ = json.Unmarshal(v, &ext.ChunkID)
	}
	if v, ok := fields["topics"]; ok {
		_ = json.Unmarshal(v, &ext.Topics)
	}
	if v, ok := fields["confidence"]; ok {
		if err := json.Unmarshal(v, &ext.Confidence); err != nil {
			return nil, fmt.Errorf("extraction field %q is not numeric: %w", "confidence", err)
		}
	} else {
		ext.Confidence = 1.0
	}
	if ext.Confidence < 0 || ext.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range [0,1]", ext.Confidence)
	}
	if v, ok := fields["context_level"]; ok {
		_ = json.Unmarshal(v, &ext.ContextLevel)
	}
	if v, ok := fields["context_id"]; ok {
		_ = json.Unmarshal(v, &ext.ContextID)
	}
	if v, ok := fields["chunk_ids"]; ok {
		_ = json.Unmarshal(v, &ext.ChunkIDs)
	}
	if v, ok := fields["schema_version"]; ok {
		_ = json.Unmarshal(v, &ext.SchemaVersion)
	}

	for k, v := range fields {
		if envelopeKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("content field %q: %w", k, err)
		}
		ext.Content[k] = val
	}

	if err := ValidateContent(category, ext.Content); err != nil {
		return nil, err
	}

	Normalize(ext)
	return ext, nil
}

// Normalize fills in defaults for records written before hierarchy fields
// existed, so older reads do not need a migration pass.
func Normalize(ext *Extraction) {
	if ext.SchemaVersion == "" {
		ext.SchemaVersion = SchemaVersion
	}
	if ext.ContextLevel == "" {
		ext.ContextLevel = LevelChunk
	}
	if ext.ContextID == "" {
		ext.ContextID = ext.ChunkID
	}
	if len(ext.ChunkIDs) == 0 && ext.ChunkID != "" {
		ext.ChunkIDs = []string{ext.ChunkID}
	}
}
