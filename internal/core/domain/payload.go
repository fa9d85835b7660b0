package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload keys shared by every vector store adapter.
const (
	PayloadLevel         = "level"
	PayloadText          = "text"
	PayloadWordCount     = "word_count"
	PayloadSourceID      = "source_id"
	PayloadBookTitle     = "book_title"
	PayloadAuthor        = "author"
	PayloadLanguage      = "language"
	PayloadDomain        = "domain"
	PayloadSectionName   = "section_name"
	PayloadChapterIndex  = "chapter_index"
	PayloadParentID      = "parent_id"
	PayloadSequenceIndex = "sequence_index"
	PayloadChildCount    = "child_count"
	PayloadTruncated     = "truncated"
	PayloadStartOffset   = "start_offset"
	PayloadEndOffset     = "end_offset"
	PayloadIngestionID   = "ingestion_id"
	PayloadCreatedAt     = "created_at"
)

// Payload encodes the chunk as a vector store payload.
// Level-specific fields are only written for the level that owns them.
func (c *Chunk) Payload() (map[string]any, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := map[string]any{
		PayloadLevel:         string(c.Level),
		PayloadText:          c.Text,
		PayloadWordCount:     c.WordCount,
		PayloadSourceID:      c.Book.SourceID,
		PayloadBookTitle:     c.Book.Title,
		PayloadAuthor:        c.Book.Author,
		PayloadLanguage:      c.Book.Language,
		PayloadDomain:        c.Book.Domain,
		PayloadSectionName:   c.SectionName,
		PayloadChapterIndex:  c.ChapterIndex,
		PayloadSequenceIndex: c.SequenceIndex,
		PayloadStartOffset:   c.StartOffset,
		PayloadEndOffset:     c.EndOffset,
		PayloadIngestionID:   c.IngestionID,
		PayloadCreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	switch c.Level {
	case LevelParent:
		p[PayloadChildCount] = c.ChildCount
		p[PayloadTruncated] = c.Truncated
	case LevelChild:
		p[PayloadParentID] = c.ParentID
	case LevelFlat:
	}

	return p, nil
}

// ChunkFromPayload decodes a vector store payload into a chunk.
// Unknown levels are rejected.
func ChunkFromPayload(id string, p map[string]any) (Chunk, error) {
	level := ChunkLevel(payloadString(p, PayloadLevel))

	c := Chunk{
		ID:    id,
		Level: level,
		Text:  payloadString(p, PayloadText),
		Book: BookMetadata{
			SourceID: payloadString(p, PayloadSourceID),
			Title:    payloadString(p, PayloadBookTitle),
			Author:   payloadString(p, PayloadAuthor),
			Language: payloadString(p, PayloadLanguage),
			Domain:   payloadString(p, PayloadDomain),
		},
		WordCount:     payloadInt(p, PayloadWordCount),
		SectionName:   payloadString(p, PayloadSectionName),
		ChapterIndex:  payloadInt(p, PayloadChapterIndex),
		SequenceIndex: payloadInt(p, PayloadSequenceIndex),
		StartOffset:   payloadInt(p, PayloadStartOffset),
		EndOffset:     payloadInt(p, PayloadEndOffset),
		IngestionID:   payloadString(p, PayloadIngestionID),
	}
	if ts := payloadString(p, PayloadCreatedAt); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			c.CreatedAt = t
		}
	}

	switch level {
	case LevelParent:
		c.ChildCount = payloadInt(p, PayloadChildCount)
		c.Truncated, _ = p[PayloadTruncated].(bool)
	case LevelChild:
		c.ParentID = payloadString(p, PayloadParentID)
	case LevelFlat:
	default:
		return Chunk{}, fmt.Errorf("%w: point %s has unknown chunk level %q", ErrInvalidInput, id, level)
	}

	if err := c.Validate(); err != nil {
		return Chunk{}, err
	}
	return c, nil
}

func payloadString(p map[string]any, key string) string {
	s, _ := p[key].(string)
	return s
}

// payloadInt handles the numeric types produced by JSON and database decoding.
func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
