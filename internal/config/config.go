// Package config loads the application configuration from YAML, with
// secrets referenced by environment variable name rather than stored in
// the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ragbot/internal/retryable"
)

// OpenAIConfig holds connection details and model ids for the
// OpenAI-compatible provider shared by embeddings, chat, transcription
// and judging.
type OpenAIConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKeyEnv          string `yaml:"api_key_env"`
	EmbeddingModel     string `yaml:"embedding_model"`
	ChatModel          string `yaml:"chat_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	JudgeModel         string `yaml:"judge_model"`
	TimeoutSecs        int    `yaml:"timeout_secs"`
}

// ChunkerConfig configures the token sliding window.
type ChunkerConfig struct {
	MaxTokens     int    `yaml:"max_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	Encoding      string `yaml:"encoding"`
}

// AudioConfig configures duration-based audio splitting.
type AudioConfig struct {
	MaxSliceSecs int    `yaml:"max_slice_secs"`
	OverlapSecs  int    `yaml:"overlap_secs"`
	Language     string `yaml:"language"`
}

// VectorStoreConfig selects the vector store. Without a URL the
// in-process store runs at the default ":memory:" location.
type VectorStoreConfig struct {
	Location    string `yaml:"location"`
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// InMemory reports whether the in-process store should be used.
func (c VectorStoreConfig) InMemory() bool { return c.URL == "" }

// WebConfig configures the optional SerpAPI web search tool.
type WebConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// RetrievalConfig bounds the answer engine.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k"`
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

// RetryConfig is one backoff policy in file-friendly units.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
}

// Policy converts to the runtime retry policy.
func (r RetryConfig) Policy() retryable.Policy {
	return retryable.Policy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: time.Duration(r.InitialBackoffMs) * time.Millisecond,
		MaxInterval:     time.Duration(r.MaxBackoffMs) * time.Millisecond,
	}
}

// RetriesConfig holds one policy per external call kind.
type RetriesConfig struct {
	Embedding     RetryConfig `yaml:"embedding"`
	Transcription RetryConfig `yaml:"transcription"`
	Store         RetryConfig `yaml:"store"`
	Generation    RetryConfig `yaml:"generation"`
}

// IngestConfig bounds the ingestion run.
type IngestConfig struct {
	Concurrency         int     `yaml:"concurrency"`
	EmbedBatchSize      int     `yaml:"embed_batch_size"`
	EmbedRequestsPerSec float64 `yaml:"embed_requests_per_sec"`
	UnidocLicenseKeyEnv string  `yaml:"unidoc_license_key_env"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Audio       AudioConfig       `yaml:"audio"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Web         WebConfig         `yaml:"web"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Retries     RetriesConfig     `yaml:"retries"`
	Ingest      IngestConfig      `yaml:"ingest"`
	DataDir     string            `yaml:"data_dir"`
}

// Load reads a config from a specified path. A missing file yields the
// defaults; a present but invalid file is an error.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragbot/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate fails fast on parameters that would make the pipeline loop
// forever or never split.
func (cfg *AppConfig) Validate() error {
	if cfg.Chunker.MaxTokens <= 0 {
		return fmt.Errorf("chunker.max_tokens must be positive, got %d", cfg.Chunker.MaxTokens)
	}
	if cfg.Chunker.OverlapTokens < 0 || cfg.Chunker.OverlapTokens >= cfg.Chunker.MaxTokens {
		return fmt.Errorf("chunker.overlap_tokens %d must be in [0, %d)", cfg.Chunker.OverlapTokens, cfg.Chunker.MaxTokens)
	}
	if cfg.Audio.MaxSliceSecs <= 0 {
		return fmt.Errorf("audio.max_slice_secs must be positive, got %d", cfg.Audio.MaxSliceSecs)
	}
	if cfg.Audio.OverlapSecs < 0 || cfg.Audio.OverlapSecs >= cfg.Audio.MaxSliceSecs {
		return fmt.Errorf("audio.overlap_secs %d must be in [0, %d)", cfg.Audio.OverlapSecs, cfg.Audio.MaxSliceSecs)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MaxToolRounds <= 0 {
		return fmt.Errorf("retrieval.max_tool_rounds must be positive, got %d", cfg.Retrieval.MaxToolRounds)
	}
	if !cfg.VectorStore.InMemory() && cfg.VectorStore.Collection == "" {
		return errors.New("vector_store.collection is required for a remote store")
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragbot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = "text-embedding-3-large"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-5-mini"
	}
	if cfg.OpenAI.TranscriptionModel == "" {
		cfg.OpenAI.TranscriptionModel = "gpt-4o-transcribe"
	}
	if cfg.OpenAI.JudgeModel == "" {
		cfg.OpenAI.JudgeModel = "gpt-5-nano"
	}
	if cfg.OpenAI.TimeoutSecs == 0 {
		cfg.OpenAI.TimeoutSecs = 120
	}
	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = 400
	}
	if cfg.Chunker.OverlapTokens == 0 {
		cfg.Chunker.OverlapTokens = 60
	}
	if cfg.Chunker.Encoding == "" {
		cfg.Chunker.Encoding = "cl100k_base"
	}
	if cfg.Audio.MaxSliceSecs == 0 {
		cfg.Audio.MaxSliceSecs = 1300
	}
	if cfg.Audio.OverlapSecs == 0 {
		cfg.Audio.OverlapSecs = 10
	}
	if cfg.VectorStore.Location == "" {
		cfg.VectorStore.Location = ":memory:"
	}
	if cfg.VectorStore.APIKeyEnv == "" {
		cfg.VectorStore.APIKeyEnv = "QDRANT_API_KEY"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "ragbot-collection"
	}
	if cfg.VectorStore.TimeoutSecs == 0 {
		cfg.VectorStore.TimeoutSecs = 15
	}
	if cfg.Web.APIKeyEnv == "" {
		cfg.Web.APIKeyEnv = "SERPAPI_API_KEY"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.MaxToolRounds == 0 {
		cfg.Retrieval.MaxToolRounds = 5
	}
	applyRetryDefaults(&cfg.Retries.Embedding, 5, 500, 10000)
	applyRetryDefaults(&cfg.Retries.Transcription, 3, 1000, 30000)
	applyRetryDefaults(&cfg.Retries.Store, 3, 500, 5000)
	applyRetryDefaults(&cfg.Retries.Generation, 3, 1000, 20000)
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}
	if cfg.Ingest.EmbedBatchSize == 0 {
		cfg.Ingest.EmbedBatchSize = 64
	}
	if cfg.Ingest.EmbedRequestsPerSec == 0 {
		cfg.Ingest.EmbedRequestsPerSec = 5
	}
	if cfg.Ingest.UnidocLicenseKeyEnv == "" {
		cfg.Ingest.UnidocLicenseKeyEnv = "UNIDOC_LICENSE_API_KEY"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
}

func applyRetryDefaults(r *RetryConfig, attempts, initialMs, maxMs int) {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = attempts
	}
	if r.InitialBackoffMs == 0 {
		r.InitialBackoffMs = initialMs
	}
	if r.MaxBackoffMs == 0 {
		r.MaxBackoffMs = maxMs
	}
}
