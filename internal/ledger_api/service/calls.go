package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/school-fee-ledger/internal/domain/ledger"
)

// callPolicy bounds every repository or roster call with a deadline.
// Reads are retried once on a transient failure; writes never are, since
// entries carry no idempotency key.
type callPolicy struct {
	timeout time.Duration
	logger  *slog.Logger
}

func (p callPolicy) write(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return fn(ctx)
}

func read[T any](ctx context.Context, p callPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return fn(callCtx)
	}

	result, err := attempt()
	if err == nil || !retryable(ctx, err) {
		return result, err
	}

	p.logger.Warn("Transient failure on read, retrying once", "op", op, "error", err)
	return attempt()
}

// retryable reports whether a failed read may be repeated. A canceled or
// expired parent context is never retried.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, ledger.TransientIOError{}) || errors.Is(err, context.DeadlineExceeded)
}
