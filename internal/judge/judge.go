// Package judge scores answered turns with a separate, cheaper model.
// Scoring is advisory: a judge failure never fails the turn it graded.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragbot/internal/domain"
	"ragbot/internal/llm"
)

const rubric = "Response is factually correct, relevant to the question, concise, and free of safety issues."

const systemPrompt = `You are an impartial grader. Judge the assistant response against this rubric:
` + rubric + `

Reply with a single JSON object, nothing else:
{"score": <float 0.0-1.0>, "pass": <true|false>, "reason": "<one sentence>"}`

// ChatClient is the completion surface the scorer needs.
type ChatClient interface {
	Model() string
	ChatCompletion(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Message, error)
}

type Scorer struct {
	client ChatClient
}

func NewScorer(client ChatClient) *Scorer {
	return &Scorer{client: client}
}

// Score grades one question/answer pair. It always returns a result: when
// the judge call or its output parsing fails, Score is nil and Reason
// carries the cause.
func (s *Scorer) Score(ctx context.Context, question, answer string) domain.JudgeResult {
	result := domain.JudgeResult{Model: s.client.Model()}

	user := fmt.Sprintf("Question:\n%s\n\nAssistant response:\n%s", question, answer)
	msg, err := s.client.ChatCompletion(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}, nil)
	if err != nil {
		result.Reason = fmt.Sprintf("judge call failed: %v", err)
		return result
	}

	var grading struct {
		Score  float64 `json:"score"`
		Pass   bool    `json:"pass"`
		Reason string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSON(msg.Content)), &grading); err != nil {
		result.Reason = fmt.Sprintf("judge output not parseable: %v", err)
		return result
	}
	if grading.Score < 0 || grading.Score > 1 {
		result.Reason = fmt.Sprintf("judge score %v out of range", grading.Score)
		return result
	}
	result.Score = &grading.Score
	result.Pass = grading.Pass
	result.Reason = grading.Reason
	return result
}

// extractJSON tolerates models that wrap the object in a code fence.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i >= 0 {
		if j := strings.LastIndex(content, "}"); j > i {
			return content[i : j+1]
		}
	}
	return content
}
