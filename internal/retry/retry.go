package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/obslog"
)

// Policy controls how a fallible operation is re-executed. The delay grows
// linearly: BaseDelay × attemptNumber. No jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil retries everything except context cancellation.
	ShouldRetry func(error) bool
}

// DefaultPolicy matches the provider-call retry budget.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// Delay returns the wait before the attempt following attemptNumber (1-based).
func (p Policy) Delay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	return p.BaseDelay * time.Duration(attemptNumber)
}

// Do runs op until it succeeds or the attempt budget is exhausted, sleeping
// Delay(attempt) between attempts. The last error is propagated unchanged.
func Do(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctxErr
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				obslog.L().Info("retry_recovered",
					zap.String("op", name),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if attempt == p.MaxAttempts || !shouldRetry(ctx, p, err) {
			obslog.L().Warn("retry_exhausted",
				zap.String("op", name),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return lastErr
		}

		wait := p.Delay(attempt)
		obslog.L().Warn("retry_attempt_failed",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Duration("next_delay", wait),
			zap.Error(err),
		)
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return lastErr
		}
	}
	return lastErr
}

func shouldRetry(ctx context.Context, p Policy, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if p.ShouldRetry == nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	return p.ShouldRetry(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
