package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace roots every name-based chunk id.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://sercha.dev/rag/chunks"))

// NewIngestionID returns a fresh random id for one ingestion run.
func NewIngestionID() string {
	return uuid.NewString()
}

// ParentChunkID derives the parent chunk id for a chapter.
// The same ingestion id always yields the same ids, so a retried upload is
// an idempotent upsert while a new ingestion produces new ids.
func ParentChunkID(ingestionID string, chapterIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(ingestionID+"/parent/"+strconv.Itoa(chapterIndex))).String()
}

// ChildChunkID derives a child chunk id from its parent and position.
// Context expansion uses it to address siblings without a secondary index.
func ChildChunkID(parentID string, sequenceIndex int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(parentID+"/child/"+strconv.Itoa(sequenceIndex))).String()
}

// FlatChunkID derives a flat chunk id.
func FlatChunkID(ingestionID string, chapterIndex, sequenceIndex int) string {
	name := ingestionID + "/flat/" + strconv.Itoa(chapterIndex) + "/" + strconv.Itoa(sequenceIndex)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// sourceNamespace roots content-derived source ids.
var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://sercha.dev/rag/sources"))

// SourceIDFor derives a source id from file content, so re-ingesting an
// unchanged book is detected by the manifest regardless of its path.
func SourceIDFor(content []byte) string {
	return uuid.NewSHA1(sourceNamespace, content).String()
}
