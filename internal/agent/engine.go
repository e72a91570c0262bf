// Package agent answers questions over the indexed corpus: it retrieves
// supporting chunks, runs the grounded tool-calling conversation with the
// answer model, and has each finished turn graded.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"ragbot/internal/domain"
	"ragbot/internal/embedding"
	"ragbot/internal/llm"
	"ragbot/internal/tools"
	"ragbot/internal/vectorstore"
)

// ChatClient is the completion surface the engine drives.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, toolSpecs []llm.Tool) (*llm.Message, error)
}

// Scorer grades a finished turn. Grading never fails the turn.
type Scorer interface {
	Score(ctx context.Context, question, answer string) domain.JudgeResult
}

// Answer is one completed turn: the reply text, the chunks retrieved up
// front as supporting evidence, and the judge's verdict when available.
type Answer struct {
	Text     string
	Evidence []domain.SearchResult
	Judge    *domain.JudgeResult
}

type Engine struct {
	chat          ChatClient
	embedder      embedding.Embedder
	store         vectorstore.Store
	registry      *tools.Registry
	scorer        Scorer
	topK          int
	maxToolRounds int
	log           *slog.Logger
}

type Config struct {
	Chat          ChatClient
	Embedder      embedding.Embedder
	Store         vectorstore.Store
	Registry      *tools.Registry
	Scorer        Scorer
	TopK          int
	MaxToolRounds int
	Logger        *slog.Logger
}

func NewEngine(cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		chat:          cfg.Chat,
		embedder:      cfg.Embedder,
		store:         cfg.Store,
		registry:      cfg.Registry,
		scorer:        cfg.Scorer,
		topK:          cfg.TopK,
		maxToolRounds: cfg.MaxToolRounds,
		log:           cfg.Logger,
	}
}

// Answer runs one turn. The caller owns history; it is read, never
// modified, and a failed turn must leave it exactly as passed in.
func (e *Engine) Answer(ctx context.Context, question string, history []domain.Turn) (*Answer, error) {
	evidence := e.retrieve(ctx, question)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: llm.SystemPrompt})
	for _, t := range history {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: llm.BuildUserPrompt(question, e.topK)})

	text, err := e.converse(ctx, messages)
	if err != nil {
		return nil, &domain.GenerationError{Err: err}
	}

	answer := &Answer{Text: text, Evidence: evidence}
	if e.scorer != nil {
		verdict := e.scorer.Score(ctx, question, text)
		answer.Judge = &verdict
		if verdict.Score == nil {
			e.log.WarnContext(ctx, "judge unavailable for turn", "reason", verdict.Reason)
		}
	}
	return answer, nil
}

// retrieve fetches the evidence chunks shown alongside the answer. The
// model does its own retrieval through tools, so a failure here only
// costs the evidence listing.
func (e *Engine) retrieve(ctx context.Context, question string) []domain.SearchResult {
	vectors, err := e.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		e.log.WarnContext(ctx, "evidence embedding failed", "error", err)
		return nil
	}
	results, err := e.store.Query(ctx, vectors[0], e.topK, nil)
	if err != nil {
		e.log.WarnContext(ctx, "evidence retrieval failed", "error", err)
		return nil
	}
	return results
}

// converse runs the tool loop: each round either yields the final text
// or a batch of tool calls to execute and feed back. After the last
// allowed round the model is asked once more with tools withheld.
func (e *Engine) converse(ctx context.Context, messages []llm.Message) (string, error) {
	schemas := e.registry.Schemas()
	for round := 0; round < e.maxToolRounds; round++ {
		msg, err := e.chat.ChatCompletion(ctx, messages, schemas)
		if err != nil {
			return "", err
		}
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}
		messages = append(messages, *msg)
		for _, call := range msg.ToolCalls {
			messages = append(messages, e.execute(ctx, call))
		}
	}

	e.log.InfoContext(ctx, "tool rounds exhausted, forcing final answer", "rounds", e.maxToolRounds)
	msg, err := e.chat.ChatCompletion(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// execute runs one tool call and wraps the outcome as a tool message.
// Tool failures become readable results so the conversation continues.
func (e *Engine) execute(ctx context.Context, call llm.ToolCall) llm.Message {
	e.log.DebugContext(ctx, "executing tool call", "tool", call.Function.Name)
	result, err := e.registry.Invoke(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
	if err != nil {
		e.log.WarnContext(ctx, "tool call failed", "tool", call.Function.Name, "error", err)
		result = fmt.Sprintf("tool error: %v", err)
	}
	return llm.Message{Role: llm.RoleTool, Content: result, ToolCallID: call.ID}
}
