package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"ragbot/internal/agent"
	"ragbot/internal/config"
	"ragbot/internal/domain"
	"ragbot/internal/embedding/openai"
	"ragbot/internal/judge"
	"ragbot/internal/llm"
	"ragbot/internal/logger"
	"ragbot/internal/tools"
	"ragbot/internal/tui"
	"ragbot/internal/vectorstore"
	"ragbot/internal/vectorstore/memory"
	"ragbot/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath      string
		questionFile string
		collection   string
		limit        int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragbot/config.yaml if not provided)")
	flag.StringVar(&questionFile, "file", "", "Optional file with one question per line")
	flag.StringVar(&collection, "collection", "", "Vector store collection name (overrides config)")
	flag.IntVar(&limit, "limit", 0, "Number of context chunks to retrieve (overrides config)")
	flag.Parse()

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
	if limit > 0 {
		cfg.Retrieval.TopK = limit
	}

	log := logger.New(os.Stderr, slog.LevelWarn)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, uuid.NewString())

	engine, err := buildEngine(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assembly failed: %v\n", err)
		os.Exit(1)
	}

	questions, err := loadQuestions(questionFile, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if len(questions) == 0 {
		if _, err := tea.NewProgram(tui.New(engine)).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := answerBatch(ctx, engine, questions); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// answerBatch answers each question in turn, carrying the conversation
// forward, and saves the Q/A pairs under logs/.
func answerBatch(ctx context.Context, engine *agent.Engine, questions []string) error {
	var history []domain.Turn
	var logLines []string
	for _, q := range questions {
		answer, err := engine.Answer(ctx, q, history)
		if err != nil {
			return fmt.Errorf("answer %q: %w", q, err)
		}
		history = append(history,
			domain.Turn{Role: domain.RoleUser, Content: q},
			domain.Turn{Role: domain.RoleAssistant, Content: answer.Text},
		)
		fmt.Printf("Q: %s\nA: %s\n", q, answer.Text)
		if answer.Judge != nil && answer.Judge.Score != nil {
			fmt.Printf("judge: %.2f pass=%t (%s)\n", *answer.Judge.Score, answer.Judge.Pass, answer.Judge.Model)
		}
		fmt.Println()
		logLines = append(logLines, fmt.Sprintf("Q: %s\nA: %s\n", q, answer.Text))
	}

	logPath := filepath.Join("logs", fmt.Sprintf("answers-%s.log", time.Now().UTC().Format("20060102-150405")))
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(logPath, []byte(strings.Join(logLines, "\n")), 0o644); err != nil {
		return err
	}
	fmt.Printf("Saved %d answers to %s\n", len(questions), logPath)
	return nil
}

func loadQuestions(path string, args []string) ([]string, error) {
	var questions []string
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open questions file: %w", err)
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				questions = append(questions, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read questions file: %w", err)
		}
	}
	questions = append(questions, args...)
	return questions, nil
}

func buildEngine(cfg *config.AppConfig, log *slog.Logger) (*agent.Engine, error) {
	embedder, err := openai.NewClient(openai.Config{
		BaseURL:   cfg.OpenAI.BaseURL,
		APIKeyEnv: cfg.OpenAI.APIKeyEnv,
		Model:     cfg.OpenAI.EmbeddingModel,
		Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		Retry:     cfg.Retries.Embedding.Policy(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	chat, err := llm.NewClient(llm.Config{
		BaseURL:   cfg.OpenAI.BaseURL,
		APIKeyEnv: cfg.OpenAI.APIKeyEnv,
		Model:     cfg.OpenAI.ChatModel,
		Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		Retry:     cfg.Retries.Generation.Policy(),
	})
	if err != nil {
		return nil, fmt.Errorf("chat client: %w", err)
	}
	judgeClient, err := llm.NewClient(llm.Config{
		BaseURL:   cfg.OpenAI.BaseURL,
		APIKeyEnv: cfg.OpenAI.APIKeyEnv,
		Model:     cfg.OpenAI.JudgeModel,
		Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		Retry:     cfg.Retries.Generation.Policy(),
	})
	if err != nil {
		return nil, fmt.Errorf("judge client: %w", err)
	}

	registry := tools.NewRegistry(
		tools.NewVectorSearch(embedder, store, cfg.Retrieval.TopK),
		tools.NewWebSearch(os.Getenv(cfg.Web.APIKeyEnv)),
	)

	return agent.NewEngine(agent.Config{
		Chat:          chat,
		Embedder:      embedder,
		Store:         store,
		Registry:      registry,
		Scorer:        judge.NewScorer(judgeClient),
		TopK:          cfg.Retrieval.TopK,
		MaxToolRounds: cfg.Retrieval.MaxToolRounds,
		Logger:        log,
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
