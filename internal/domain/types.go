package domain

import "time"

// SourceKind identifies where a document's text came from.
type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceAudio SourceKind = "audio"
)

// Document represents a single ingested source file after text extraction
// or transcription. It is discarded once chunked.
type Document struct {
	Path string
	Name string
	Kind SourceKind
	Text string
}

// Chunk is a bounded span of document text destined for embedding.
// Index is the zero-based position of the chunk within its document.
type Chunk struct {
	DocumentName string
	Source       SourceKind
	Index        int
	Text         string
	TokenCount   int
}

// EmbeddedChunk is a chunk plus its vector and the point id used for
// idempotent re-upsert into the vector store.
type EmbeddedChunk struct {
	ID     string
	Chunk  Chunk
	Vector []float64
}

// AudioSlice describes a time-bounded excerpt of a media file.
// Consecutive slices overlap so transcription boundaries do not sever words.
type AudioSlice struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// Duration returns the length of the slice.
func (s AudioSlice) Duration() time.Duration { return s.End - s.Start }

// SearchResult is a retrieved chunk with its similarity score.
type SearchResult struct {
	Text       string
	Score      float64
	Source     SourceKind
	Filename   string
	ChunkIndex int
}

// Role labels one side of a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one (role, content) pair of session history. The history is
// owned by the caller; the core never persists it.
type Turn struct {
	Role    Role
	Content string
}

// JudgeResult is the structured score produced by the judge model for one
// answered turn. Score is nil when the judge itself failed; Reason then
// carries the failure cause.
type JudgeResult struct {
	Score  *float64
	Pass   bool
	Reason string
	Model  string
}
