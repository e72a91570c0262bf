// Package service orchestrates ingestion: source files in, indexed
// vectors out. Files are processed concurrently; one bad file or batch
// costs only itself and is reported at the end of the run.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragbot/internal/chunker"
	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/extract"
	"ragbot/internal/transcribe"
	"ragbot/internal/vectorstore"
)

// FileReport records one source file's outcome.
type FileReport struct {
	Path    string
	Kind    domain.SourceKind
	Chunks  int
	Indexed int
	Partial bool
	Err     error
}

// RunReport aggregates a whole ingestion run.
type RunReport struct {
	Files        []FileReport
	TotalChunks  int
	TotalIndexed int
}

// Failed lists the files that produced an error.
func (r RunReport) Failed() []FileReport {
	var out []FileReport
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// ErrAborted marks files the run stopped before they could finish. It
// stands in for the cancellation errors those files would otherwise
// carry, so the report separates real file failures from the abort.
var ErrAborted = errors.New("ingestion aborted")

// Transcriber turns one audio file into text, possibly partially.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (transcribe.Result, error)
}

type Pipeline struct {
	chunker     *chunker.TokenChunker
	embedder    embedding.Embedder
	store       vectorstore.Store
	transcriber Transcriber
	pdfText     func(path string) (string, error)
	concurrency int
	batchSize   int
	log         *slog.Logger

	ensureOnce sync.Once
	ensureErr  error
}

type Config struct {
	Chunker     *chunker.TokenChunker
	Embedder    embedding.Embedder
	Store       vectorstore.Store
	Transcriber Transcriber
	// PDFText overrides the extractor, nil means unipdf-backed extraction.
	PDFText     func(path string) (string, error)
	Concurrency int
	BatchSize   int
	Logger      *slog.Logger
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PDFText == nil {
		cfg.PDFText = extract.PDFText
	}
	return &Pipeline{
		chunker:     cfg.Chunker,
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		transcriber: cfg.Transcriber,
		pdfText:     cfg.PDFText,
		concurrency: cfg.Concurrency,
		batchSize:   cfg.BatchSize,
		log:         cfg.Logger,
	}
}

// Source pairs a path with how its text is obtained.
type Source struct {
	Path string
	Kind domain.SourceKind
}

// DiscoverSources walks pdfDir and audioDir for ingestible files. Either
// directory may be empty.
func DiscoverSources(pdfDir, audioDir string) ([]Source, error) {
	var sources []Source
	if pdfDir != "" {
		found, err := listByExt(pdfDir, domain.SourcePDF, ".pdf")
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	if audioDir != "" {
		found, err := listByExt(audioDir, domain.SourceAudio, ".mp3", ".wav", ".m4a", ".ogg", ".flac")
		if err != nil {
			return nil, err
		}
		sources = append(sources, found...)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

func listByExt(dir string, kind domain.SourceKind, exts ...string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s directory: %w", kind, err)
	}
	var out []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				out = append(out, Source{Path: filepath.Join(dir, e.Name()), Kind: kind})
				break
			}
		}
	}
	return out, nil
}

// Run ingests all sources and returns a per-file report. Chunks within a
// file keep their assigned order; files are independent of each other.
// Context cancellation stops new work and surfaces as the run error.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (RunReport, error) {
	reports := make([]FileReport, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = p.ingestFile(ctx, src)
			if err := reports[i].Err; err != nil {
				var mismatch *domain.CollectionMismatchError
				if errors.As(err, &mismatch) {
					// nothing can be written anywhere, stop the run
					return err
				}
				p.log.WarnContext(ctx, "file ingestion failed",
					"path", src.Path, "kind", src.Kind, "error", err)
			}
			// other file failures are collected, not propagated
			return nil
		})
	}
	err := g.Wait()

	for i := range reports {
		if reports[i].Path == "" {
			reports[i] = FileReport{Path: sources[i].Path, Kind: sources[i].Kind, Err: ErrAborted}
			continue
		}
		if err != nil && reports[i].Err != nil && isCancellation(reports[i].Err) {
			reports[i].Err = ErrAborted
		}
	}

	report := RunReport{Files: reports}
	for _, f := range reports {
		report.TotalChunks += f.Chunks
		report.TotalIndexed += f.Indexed
	}
	return report, err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *Pipeline) ingestFile(ctx context.Context, src Source) FileReport {
	report := FileReport{Path: src.Path, Kind: src.Kind}

	text, partial, err := p.extractText(ctx, src)
	if err != nil {
		report.Err = err
		return report
	}
	report.Partial = partial

	doc := domain.Document{
		Path: src.Path,
		Name: filepath.Base(src.Path),
		Kind: src.Kind,
		Text: chunker.Normalize(text),
	}
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		report.Err = err
		return report
	}
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		return report
	}

	indexed, err := p.indexChunks(ctx, chunks)
	report.Indexed = indexed
	report.Err = err
	return report
}

func (p *Pipeline) extractText(ctx context.Context, src Source) (text string, partial bool, err error) {
	switch src.Kind {
	case domain.SourcePDF:
		text, err = p.pdfText(src.Path)
		return text, false, err
	case domain.SourceAudio:
		result, err := p.transcriber.TranscribeFile(ctx, src.Path)
		if err != nil {
			return "", false, err
		}
		return result.Transcript, result.Partial(), nil
	default:
		return "", false, fmt.Errorf("unsupported source kind %q", src.Kind)
	}
}

// indexChunks embeds and upserts in batches. A failed batch stops the
// file but keeps the batches already written.
func (p *Pipeline) indexChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	indexed := 0
	for lo := 0; lo < len(chunks); lo += p.batchSize {
		hi := lo + p.batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return indexed, err
		}
		if err := p.ensureCollection(ctx); err != nil {
			return indexed, err
		}
		embedded := make([]domain.EmbeddedChunk, len(batch))
		for i := range batch {
			embedded[i] = domain.EmbeddedChunk{
				ID:     uuid.NewString(),
				Chunk:  batch[i],
				Vector: vectors[i],
			}
		}
		if err := p.store.Upsert(ctx, embedded); err != nil {
			return indexed, err
		}
		indexed += len(batch)
	}
	return indexed, nil
}

// ensureCollection runs once per pipeline, after the first embedding
// fixed the vector dimension and before the first write.
func (p *Pipeline) ensureCollection(ctx context.Context) error {
	p.ensureOnce.Do(func() {
		p.ensureErr = p.store.EnsureCollection(ctx, p.embedder.Dimension())
	})
	return p.ensureErr
}
