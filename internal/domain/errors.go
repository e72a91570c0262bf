package domain

import "fmt"

// ExtractionError reports a source file whose text could not be read.
// The file is skipped; the ingestion run continues.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// MediaProbeError reports a media file whose duration could not be
// determined. The segmenter never guesses a duration.
type MediaProbeError struct {
	Path string
	Err  error
}

func (e *MediaProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *MediaProbeError) Unwrap() error { return e.Err }

// TranscriptionError reports a slice that still failed after retries.
type TranscriptionError struct {
	Path  string
	Slice int
	Err   error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribe %s slice %d: %v", e.Path, e.Slice, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// EmbeddingError reports an embedding batch that failed after retries.
// The batch's chunks are not indexed; the run continues for other batches.
type EmbeddingError struct {
	Batch int
	Size  int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed batch %d (%d texts): %v", e.Batch, e.Size, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// CollectionMismatchError is fatal: the target collection exists with an
// incompatible vector size. The run aborts before any writes.
type CollectionMismatchError struct {
	Collection string
	Want       int
	Got        int
}

func (e *CollectionMismatchError) Error() string {
	return fmt.Sprintf("collection %s has vector size %d, want %d", e.Collection, e.Got, e.Want)
}

// GenerationError reports a failed answer turn after retries. The caller's
// conversation history must not be mutated by a failed turn.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generate answer: %v", e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }
