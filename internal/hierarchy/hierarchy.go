// Package hierarchy groups a source's chunks into a deterministic
// chapter->section->chunk tree with stable, rebuild-independent node ids.
package hierarchy

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"knowledgeforge/internal/models"
)

// NodeID derives a stable 24-hex id for a chapter or section node, per
// spec.md §3: hash(source_id, "chapter"|"section", name) truncated to 24
// hex chars. Rebuilding over identical input yields identical ids.
func NodeID(sourceID, kind, name string) string {
	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(name))
	sum := hex.EncodeToString(h.Sum(nil))
	return sum[:24]
}

// Section is an ordered list of chunks under one section name.
type Section struct {
	ID     string
	Name   string
	Chunks []models.Chunk
}

// Chapter holds its named sections plus a chapter-level uncategorized
// bucket for chunks that named a chapter but no section.
type Chapter struct {
	ID            string
	Name          string
	Sections      []*Section
	Uncategorized *Section // id "uncategorized_<source>_section"
}

// Tree is the full hierarchy for one source.
type Tree struct {
	SourceID      string
	Chapters      []*Chapter
	Uncategorized *Chapter // id "uncategorized_<source>_chapter"
}

// Build groups chunks (arbitrary order) into a Tree. Chunks sort by
// chunk_index; when absent (zero value with no other chunks sharing it),
// ties fall back to id order. The builder never invents chapter/section
// names: an unset chapter goes to the document uncategorized bucket, an
// unset section to its chapter's uncategorized bucket.
func Build(sourceID string, chunks []models.Chunk) *Tree {
	sorted := make([]models.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position.ChunkIndex != sorted[j].Position.ChunkIndex {
			return sorted[i].Position.ChunkIndex < sorted[j].Position.ChunkIndex
		}
		return sorted[i].ID < sorted[j].ID
	})

	tree := &Tree{
		SourceID: sourceID,
		Uncategorized: &Chapter{
			ID:   "uncategorized_" + sourceID + "_chapter",
			Name: "",
		},
	}
	chapterByName := map[string]*Chapter{}
	sectionByKey := map[string]*Section{} // key: chapter name + "\x00" + section name

	for _, c := range sorted {
		chapterName := c.Position.Chapter
		sectionName := c.Position.Section

		if chapterName == "" {
			tree.Uncategorized.Uncategorized = appendToBucket(tree.Uncategorized.Uncategorized, sourceID, tree.Uncategorized.ID, c)
			continue
		}

		chapter, ok := chapterByName[chapterName]
		if !ok {
			chapter = &Chapter{ID: NodeID(sourceID, "chapter", chapterName), Name: chapterName}
			chapterByName[chapterName] = chapter
			tree.Chapters = append(tree.Chapters, chapter)
		}

		if sectionName == "" {
			chapter.Uncategorized = appendToBucket(chapter.Uncategorized, sourceID, "uncategorized_"+sourceID+"_section", c)
			continue
		}

		key := chapterName + "\x00" + sectionName
		section, ok := sectionByKey[key]
		if !ok {
			section = &Section{ID: NodeID(sourceID, "section", sectionName), Name: sectionName}
			sectionByKey[key] = section
			chapter.Sections = append(chapter.Sections, section)
		}
		section.Chunks = append(section.Chunks, c)
	}

	return tree
}

func appendToBucket(bucket *Section, sourceID, id string, c models.Chunk) *Section {
	if bucket == nil {
		bucket = &Section{ID: id}
	}
	bucket.Chunks = append(bucket.Chunks, c)
	return bucket
}

// ChapterBuckets returns every chapter-level context to extract from,
// including the document-uncategorized bucket treated as a synthetic
// chapter, matching the orchestrator's routing in spec.md §4.8 step 4.
func (t *Tree) ChapterBuckets() []*Chapter {
	buckets := append([]*Chapter{}, t.Chapters...)
	if t.Uncategorized != nil && len(t.Uncategorized.Uncategorized.chunksOrNil()) > 0 {
		buckets = append(buckets, t.Uncategorized)
	}
	return buckets
}

func (s *Section) chunksOrNil() []models.Chunk {
	if s == nil {
		return nil
	}
	return s.Chunks
}

// ChapterChunks returns every chunk in this chapter: each section's chunks
// followed by the chapter's own uncategorized bucket. It is used when the
// chapter itself is a context (chapter-level extraction combines these
// chunks).
func (c *Chapter) ChapterChunks() []models.Chunk {
	var all []models.Chunk
	for _, s := range c.Sections {
		all = append(all, s.Chunks...)
	}
	if c.Uncategorized != nil {
		all = append(all, c.Uncategorized.Chunks...)
	}
	return all
}

// SectionBuckets returns every section-level context inside c, including
// c's own chapter-uncategorized bucket.
func (c *Chapter) SectionBuckets() []*Section {
	buckets := append([]*Section{}, c.Sections...)
	if c.Uncategorized != nil && len(c.Uncategorized.Chunks) > 0 {
		buckets = append(buckets, c.Uncategorized)
	}
	return buckets
}

// AllChunks returns every chunk in the tree, in deterministic order, for
// chunk-level extraction (spec.md §4.8 step 6).
func (t *Tree) AllChunks() []models.Chunk {
	var all []models.Chunk
	for _, c := range t.Chapters {
		all = append(all, c.ChapterChunks()...)
	}
	if t.Uncategorized != nil && t.Uncategorized.Uncategorized != nil {
		all = append(all, t.Uncategorized.Uncategorized.Chunks...)
	}
	return all
}
