package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

const book = `---
title: The Art of War
authors:
  - Sun Tzu
lang: en
domain: History
---
# Laying Plans

Sun Tzu said: The art of war is of **vital** importance to the State.

## Waging War

### A note

In the operations of war, see [the notes](http://example.com).

- first item
- second item
`

func TestNew(t *testing.T) {
	n := New()
	assert.Equal(t, 50, n.Priority())
	assert.Equal(t, []string{"text/markdown", "text/x-markdown"}, n.SupportedMIMETypes())
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_FrontMatter(t *testing.T) {
	raw := &domain.RawDocument{URI: "art_of_war.md", MIMEType: "text/markdown", Content: []byte(book)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "The Art of War", doc.Book.Title)
	assert.Equal(t, "Sun Tzu", doc.Book.Author)
	assert.Equal(t, "en", doc.Book.Language)
	assert.Equal(t, "history", doc.Book.Domain)
	assert.Equal(t, "markdown", doc.Metadata["format"])
}

func TestNormalise_KeepsChapterHeadings(t *testing.T) {
	raw := &domain.RawDocument{URI: "art_of_war.md", Content: []byte(book)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	content := result.Document.Content
	assert.Contains(t, content, "# Laying Plans\n")
	assert.Contains(t, content, "# Waging War\n")
	assert.Contains(t, content, "of vital importance")
	assert.Contains(t, content, "see the notes.")
	assert.Contains(t, content, "\nA note\n")
	assert.NotContains(t, content, "###")
	assert.NotContains(t, content, "---")
	assert.NotContains(t, content, "- first")
}

func TestNormalise_TitleFromHeading(t *testing.T) {
	raw := &domain.RawDocument{URI: "notes.md", Content: []byte("# Walden\n\nI went to the woods.")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, "Walden", result.Document.Book.Title)
}

func TestNormalise_InvalidFrontMatter(t *testing.T) {
	raw := &domain.RawDocument{URI: "bad.md", Content: []byte("---\ntitle: [unclosed\n---\nBody")}

	_, err := New().Normalise(context.Background(), raw)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSplitFrontMatter_Unterminated(t *testing.T) {
	body, fm, err := splitFrontMatter("---\ntitle: x\nno end")

	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: x\nno end", body)
	assert.Empty(t, fm.Title)
}
