package backoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"drivesync/internal/media"
	"drivesync/internal/store"
)

const (
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 30 * time.Second
	defaultMaxAttempts = 4
)

// ErrExhausted marks a failure that outlived its retry allowance. The
// wrapped error is the last attempt's failure.
var ErrExhausted = errors.New("retry budget exhausted")

// Budget paces and retries remote calls for one store. All callers of a
// store share the budget; the pacing delay is shared state that attacks
// exponentially while the store pushes back and decays once calls succeed.
type Budget struct {
	storeName   media.Store
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(context.Context, time.Duration) error

	mu        sync.Mutex
	paceDelay time.Duration
}

// Option customises a Budget.
type Option func(*Budget)

// WithMaxAttempts overrides the attempt cap (defaults to 4).
func WithMaxAttempts(attempts int) Option {
	return func(b *Budget) {
		if attempts > 0 {
			b.maxAttempts = attempts
		}
	}
}

// WithDelays overrides the base and cap backoff delays.
func WithDelays(base, max time.Duration) Option {
	return func(b *Budget) {
		if base > 0 {
			b.baseDelay = base
		}
		if max > 0 {
			b.maxDelay = max
		}
	}
}

// WithSleeper overrides how waits are performed (primarily for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(b *Budget) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// NewBudget constructs the shared retry budget for one store.
func NewBudget(storeName media.Store, opts ...Option) *Budget {
	b := &Budget{
		storeName:   storeName,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store reports which store this budget governs.
func (b *Budget) Store() media.Store {
	return b.storeName
}

// Do invokes fn, retrying rate-limited and transient failures with
// exponential backoff until the attempt cap. Fatal failures propagate
// immediately. An exhausted allowance returns an error wrapping both
// ErrExhausted and the final attempt's failure.
func (b *Budget) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err := b.pace(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			b.recordSuccess()
			return nil
		}
		lastErr = err

		switch store.Classify(err) {
		case store.ClassFatal:
			return err
		case store.ClassRateLimited:
			b.recordRateLimit()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == b.maxAttempts {
			break
		}

		delay := b.retryDelay(err, attempt)
		if err := b.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %s: failed after %d attempts: %w",
		ErrExhausted, b.storeName, operation, b.maxAttempts, lastErr)
}

// Exhausted reports whether err is a terminal retry-cap failure.
func Exhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// pace applies the shared delay accumulated from the store's recent
// pushback before admitting the next call.
func (b *Budget) pace(ctx context.Context) error {
	b.mu.Lock()
	delay := b.paceDelay
	b.mu.Unlock()
	if delay <= 0 {
		return ctx.Err()
	}
	return b.sleep(ctx, delay)
}

func (b *Budget) recordRateLimit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paceDelay < b.baseDelay {
		b.paceDelay = b.baseDelay
	} else {
		b.paceDelay *= 2
	}
	if b.paceDelay > b.maxDelay {
		b.paceDelay = b.maxDelay
	}
}

func (b *Budget) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paceDelay /= 2
	if b.paceDelay < b.baseDelay {
		b.paceDelay = 0
	}
}

func (b *Budget) retryDelay(err error, attempt int) time.Duration {
	if hint, ok := store.RetryAfter(err); ok {
		if hint > b.maxDelay {
			return b.maxDelay
		}
		return hint
	}
	delay := b.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.maxDelay {
			return b.maxDelay
		}
	}
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
