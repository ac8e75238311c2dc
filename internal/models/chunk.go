package models

// Position locates a Chunk within the hierarchical structure of its Source.
// Chapter and Section are optional: a chunk without either falls to the
// document- or chapter-level uncategorized bucket in the hierarchy builder.
type Position struct {
	Chapter    string `json:"chapter,omitempty" bson:"chapter,omitempty"`
	Section    string `json:"section,omitempty" bson:"section,omitempty"`
	Page       int    `json:"page,omitempty" bson:"page,omitempty"`
	ChunkIndex int    `json:"chunk_index" bson:"chunk_index"`
}

// Chunk is a token-bounded slice of a Source's text. Chunks are immutable
// once written; the orchestrator only reads them.
type Chunk struct {
	ID            string   `json:"id,omitempty" bson:"_id,omitempty"`
	ProjectID     string   `json:"project_id" bson:"project_id"`
	SourceID      string   `json:"source_id" bson:"source_id"`
	Content       string   `json:"content" bson:"content"`
	TokenCount    int      `json:"token_count" bson:"token_count"`
	Position      Position `json:"position" bson:"position"`
	SchemaVersion string   `json:"schema_version" bson:"schema_version"`
}
