package models

import "time"

// SourceType is the kind of ingested document.
type SourceType string

const (
	SourceBook      SourceType = "book"
	SourcePaper     SourceType = "paper"
	SourceArticle   SourceType = "article"
	SourceCaseStudy SourceType = "case_study"
	SourceOther     SourceType = "other"
)

// SourceStatus tracks a Source through ingestion. The query service never
// transitions this; only the ingestion side does.
type SourceStatus string

const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusComplete   SourceStatus = "complete"
	StatusFailed     SourceStatus = "failed"
)

// Source is one record per ingested document.
type Source struct {
	ID        string       `json:"id,omitempty" bson:"_id,omitempty"`
	ProjectID string       `json:"project_id" bson:"project_id"`
	Type      SourceType   `json:"type" bson:"type"`
	Title     string       `json:"title" bson:"title"`
	Authors   []string     `json:"authors" bson:"authors"`
	Category  string       `json:"category" bson:"category"`
	Tags      []string     `json:"tags" bson:"tags"`
	Year      int          `json:"year,omitempty" bson:"year,omitempty"`
	FileSize  int64        `json:"file_size" bson:"file_size"`
	FilePath  string       `json:"file_path" bson:"file_path"`
	Status    SourceStatus `json:"status" bson:"status"`
	CreatedAt time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" bson:"updated_at"`
}
