package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ragbot/internal/chunker"
	"ragbot/internal/config"
	"ragbot/internal/embedding/openai"
	"ragbot/internal/extract"
	"ragbot/internal/logger"
	"ragbot/internal/media"
	"ragbot/internal/service"
	"ragbot/internal/transcribe"
	"ragbot/internal/vectorstore"
	"ragbot/internal/vectorstore/memory"
	"ragbot/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath    string
		pdfDir     string
		audioDir   string
		collection string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragbot/config.yaml if not provided)")
	flag.StringVar(&pdfDir, "pdf-dir", "", "Directory containing PDF files")
	flag.StringVar(&audioDir, "audio-dir", "", "Directory containing audio files")
	flag.StringVar(&collection, "collection", "", "Vector store collection name (overrides config)")
	flag.Parse()
	if pdfDir == "" && audioDir == "" {
		fmt.Println("Usage: ragbot-ingest [--config=config.yaml] --pdf-dir=dir and/or --audio-dir=dir [--collection=name]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if collection != "" {
		cfg.VectorStore.Collection = collection
	}

	log := logger.New(os.Stderr, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, uuid.NewString())

	if err := extract.SetLicenseKey(os.Getenv(cfg.Ingest.UnidocLicenseKeyEnv)); err != nil {
		log.ErrorContext(ctx, "pdf license key rejected", "error", err)
		os.Exit(1)
	}

	pipeline, err := buildPipeline(cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "assembly failed", "error", err)
		os.Exit(1)
	}

	sources, err := service.DiscoverSources(pdfDir, audioDir)
	if err != nil {
		log.ErrorContext(ctx, "source discovery failed", "error", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		log.ErrorContext(ctx, "no ingestible files found", "pdf_dir", pdfDir, "audio_dir", audioDir)
		os.Exit(1)
	}
	log.InfoContext(ctx, "starting ingestion",
		"files", len(sources), "collection", cfg.VectorStore.Collection)

	report, err := pipeline.Run(ctx, sources)
	if err != nil {
		log.ErrorContext(ctx, "ingestion aborted", "error", err)
		os.Exit(1)
	}
	for _, f := range report.Files {
		if f.Err != nil {
			log.WarnContext(ctx, "file failed", "path", f.Path, "error", f.Err)
			continue
		}
		log.InfoContext(ctx, "file indexed",
			"path", f.Path, "kind", f.Kind, "chunks", f.Chunks, "indexed", f.Indexed, "partial", f.Partial)
	}
	log.InfoContext(ctx, "ingestion finished",
		"files", len(report.Files), "failed", len(report.Failed()),
		"chunks", report.TotalChunks, "indexed", report.TotalIndexed)
	if len(report.Failed()) == len(report.Files) {
		os.Exit(1)
	}
}

func buildPipeline(cfg *config.AppConfig, log *slog.Logger) (*service.Pipeline, error) {
	tokenizer, err := chunker.NewTiktoken(cfg.Chunker.Encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	tokenChunker, err := chunker.NewTokenChunker(tokenizer, cfg.Chunker.MaxTokens, cfg.Chunker.OverlapTokens)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	embedder, err := openai.NewClient(openai.Config{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
		Model:             cfg.OpenAI.EmbeddingModel,
		Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		BatchSize:         cfg.Ingest.EmbedBatchSize,
		RequestsPerSecond: cfg.Ingest.EmbedRequestsPerSec,
		Retry:             cfg.Retries.Embedding.Policy(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	transcriberClient, err := transcribe.NewClient(transcribe.ClientConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  os.Getenv(cfg.OpenAI.APIKeyEnv),
		Model:   cfg.OpenAI.TranscriptionModel,
	})
	if err != nil {
		return nil, fmt.Errorf("transcriber: %w", err)
	}
	segmenter, err := media.NewSegmenter(
		time.Duration(cfg.Audio.MaxSliceSecs)*time.Second,
		time.Duration(cfg.Audio.OverlapSecs)*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("segmenter: %w", err)
	}
	aggregator := transcribe.NewAggregator(
		&media.FFProbe{}, segmenter, &media.FFmpeg{}, transcriberClient,
		cfg.Retries.Transcription.Policy(), cfg.Audio.Language, log,
	)

	return service.NewPipeline(service.Config{
		Chunker:     tokenChunker,
		Embedder:    embedder,
		Store:       store,
		Transcriber: aggregator,
		Concurrency: cfg.Ingest.Concurrency,
		BatchSize:   cfg.Ingest.EmbedBatchSize,
		Logger:      log,
	}), nil
}

func buildStore(cfg *config.AppConfig) (vectorstore.Store, error) {
	if cfg.VectorStore.InMemory() {
		return memory.NewStore(), nil
	}
	store, err := qdrant.NewStore(qdrant.Config{
		URL:        cfg.VectorStore.URL,
		APIKeyEnv:  cfg.VectorStore.APIKeyEnv,
		Collection: cfg.VectorStore.Collection,
		Timeout:    time.Duration(cfg.VectorStore.TimeoutSecs) * time.Second,
		Retry:      cfg.Retries.Store.Policy(),
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	return store, nil
}
