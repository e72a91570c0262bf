// Package retryable is the single retry/backoff policy shared by every
// external call kind (transcription, embedding, store, generation, judge).
package retryable

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds one retried operation.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Classifier reports whether an error is worth retrying. Errors it
// rejects are surfaced immediately. Transient is the default.
type Classifier func(error) bool

// Do runs op under the policy. Context cancellation stops further
// attempts; the in-flight attempt is left to observe ctx itself.
func Do(ctx context.Context, p Policy, transient Classifier, op func(context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.Reset()

	var bo backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	bo = backoff.WithContext(bo, ctx)

	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if transient != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
