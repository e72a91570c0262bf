package retryable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestTransient_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &HTTPError{Status: 429}, true},
		{"server error", &HTTPError{Status: 503}, true},
		{"client error", &HTTPError{Status: 400}, false},
		{"not found", &HTTPError{Status: 404}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"plain transport failure", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), Transient, func(context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPError{Status: 429}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := &HTTPError{Status: 500}
	err := Do(context.Background(), fastPolicy(3), Transient, func(context.Context) error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.Status)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), Transient, func(context.Context) error {
		calls++
		return &HTTPError{Status: 400, Body: "bad request"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomClassifier(t *testing.T) {
	never := Classifier(func(error) bool { return false })
	calls := 0
	err := Do(context.Background(), fastPolicy(5), never, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fastPolicy(5), Transient, func(context.Context) error {
		calls++
		return &HTTPError{Status: 503}
	})
	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestHTTPError_Message(t *testing.T) {
	assert.Equal(t, "http 429", (&HTTPError{Status: 429}).Error())
	assert.Equal(t, "http 500: upstream down", (&HTTPError{Status: 500, Body: "upstream down"}).Error())
}
