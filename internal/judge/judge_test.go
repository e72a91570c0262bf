package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/llm"
)

type fakeChat struct {
	reply string
	err   error
	last  []llm.Message
}

func (f *fakeChat) Model() string { return "judge-mini" }
func (f *fakeChat) ChatCompletion(_ context.Context, messages []llm.Message, _ []llm.Tool) (*llm.Message, error) {
	f.last = messages
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Message{Role: llm.RoleAssistant, Content: f.reply}, nil
}

func TestScore_ParsesGrading(t *testing.T) {
	chat := &fakeChat{reply: `{"score": 0.85, "pass": true, "reason": "Accurate and concise."}`}
	result := NewScorer(chat).Score(context.Background(), "What is Go?", "Go is a programming language.")

	require.NotNil(t, result.Score)
	assert.InDelta(t, 0.85, *result.Score, 1e-9)
	assert.True(t, result.Pass)
	assert.Equal(t, "Accurate and concise.", result.Reason)
	assert.Equal(t, "judge-mini", result.Model)

	require.Len(t, chat.last, 2)
	assert.Equal(t, llm.RoleSystem, chat.last[0].Role)
	assert.Contains(t, chat.last[1].Content, "What is Go?")
}

func TestScore_TolerantOfCodeFence(t *testing.T) {
	chat := &fakeChat{reply: "```json\n{\"score\": 0.2, \"pass\": false, \"reason\": \"Off topic.\"}\n```"}
	result := NewScorer(chat).Score(context.Background(), "q", "a")

	require.NotNil(t, result.Score)
	assert.InDelta(t, 0.2, *result.Score, 1e-9)
	assert.False(t, result.Pass)
}

func TestScore_CallFailureDegrades(t *testing.T) {
	chat := &fakeChat{err: errors.New("rate limited")}
	result := NewScorer(chat).Score(context.Background(), "q", "a")

	assert.Nil(t, result.Score)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Reason, "rate limited")
	assert.Equal(t, "judge-mini", result.Model)
}

func TestScore_GarbageOutputDegrades(t *testing.T) {
	chat := &fakeChat{reply: "I'd rate this a solid B+"}
	result := NewScorer(chat).Score(context.Background(), "q", "a")

	assert.Nil(t, result.Score)
	assert.Contains(t, result.Reason, "not parseable")
}

func TestScore_OutOfRangeDegrades(t *testing.T) {
	chat := &fakeChat{reply: `{"score": 7, "pass": true, "reason": "great"}`}
	result := NewScorer(chat).Score(context.Background(), "q", "a")
	assert.Nil(t, result.Score)
}
