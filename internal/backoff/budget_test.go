package backoff

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"drivesync/internal/media"
	"drivesync/internal/store"
)

// fakeSleeper records requested waits without actually sleeping.
type fakeSleeper struct {
	waits []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return ctx.Err()
}

func newTestBudget(opts ...Option) (*Budget, *fakeSleeper) {
	sleeper := &fakeSleeper{}
	all := append([]Option{WithSleeper(sleeper.sleep)}, opts...)
	return NewBudget(media.StoreDrive, all...), sleeper
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	budget, sleeper := newTestBudget()

	calls := 0
	err := budget.Do(context.Background(), "list", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("unexpected waits: %v", sleeper.waits)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	budget, _ := newTestBudget()

	calls := 0
	err := budget.Do(context.Background(), "download", func(context.Context) error {
		calls++
		if calls < 3 {
			return store.Wrap(store.ErrTransient, "drive", "download", errors.New("connection reset"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoFatalPropagatesImmediately(t *testing.T) {
	budget, _ := newTestBudget()

	fatal := store.Wrap(store.ErrFatal, "drive", "download", errors.New("401"))
	calls := 0
	err := budget.Do(context.Background(), "download", func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, store.ErrFatal) {
		t.Fatalf("error = %v, want fatal", err)
	}
	if calls != 1 {
		t.Errorf("fatal errors must not retry, calls = %d", calls)
	}
	if Exhausted(err) {
		t.Error("fatal failure must not report as exhausted")
	}
}

func TestDoExhaustsAttemptCap(t *testing.T) {
	budget, _ := newTestBudget(WithMaxAttempts(3))

	transient := store.Wrap(store.ErrTransient, "photos", "upload", errors.New("502"))
	calls := 0
	err := budget.Do(context.Background(), "upload", func(context.Context) error {
		calls++
		return transient
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !Exhausted(err) {
		t.Fatalf("error = %v, want exhausted", err)
	}
	if !errors.Is(err, store.ErrTransient) {
		t.Errorf("exhaustion must wrap the last failure, got %v", err)
	}
}

func TestRetryDelayGrowsExponentially(t *testing.T) {
	budget, sleeper := newTestBudget(
		WithMaxAttempts(4),
		WithDelays(100*time.Millisecond, time.Second),
	)

	transient := store.Wrap(store.ErrTransient, "drive", "list", errors.New("boom"))
	_ = budget.Do(context.Background(), "list", func(context.Context) error {
		return transient
	})

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", sleeper.waits, want)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Errorf("wait %d = %s, want %s", i, sleeper.waits[i], want[i])
		}
	}
}

func TestRetryDelayHonorsServerHint(t *testing.T) {
	budget, sleeper := newTestBudget(
		WithMaxAttempts(2),
		WithDelays(100*time.Millisecond, 5*time.Second),
	)

	limited := store.NewRateLimitError("photos", "upload", 2*time.Second)
	_ = budget.Do(context.Background(), "upload", func(context.Context) error {
		return limited
	})

	// The second attempt is paced by the shared delay plus the hinted wait.
	if len(sleeper.waits) == 0 {
		t.Fatal("no waits recorded")
	}
	if sleeper.waits[0] != 2*time.Second {
		t.Errorf("first retry wait = %s, want the 2s server hint", sleeper.waits[0])
	}
}

func TestRetryDelayCapsServerHint(t *testing.T) {
	budget, sleeper := newTestBudget(
		WithMaxAttempts(2),
		WithDelays(100*time.Millisecond, time.Second),
	)

	limited := store.NewRateLimitError("photos", "upload", time.Minute)
	_ = budget.Do(context.Background(), "upload", func(context.Context) error {
		return limited
	})

	if len(sleeper.waits) == 0 || sleeper.waits[0] != time.Second {
		t.Fatalf("waits = %v, want the 1s cap first", sleeper.waits)
	}
}

func TestSharedPaceDelayAttacksAndDecays(t *testing.T) {
	budget, sleeper := newTestBudget(
		WithMaxAttempts(1),
		WithDelays(100*time.Millisecond, time.Second),
	)

	limited := store.NewRateLimitError("drive", "list", 0)
	_ = budget.Do(context.Background(), "list", func(context.Context) error {
		return limited
	})

	// The next caller through the budget pays the accumulated pace delay.
	sleeper.waits = nil
	err := budget.Do(context.Background(), "list", func(context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(sleeper.waits) != 1 || sleeper.waits[0] != 100*time.Millisecond {
		t.Fatalf("pace waits = %v, want [100ms]", sleeper.waits)
	}

	// A success decayed the delay below base, so the next call is unpaced.
	sleeper.waits = nil
	if err := budget.Do(context.Background(), "list", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("pace waits after decay = %v, want none", sleeper.waits)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	budget, _ := newTestBudget()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := budget.Do(ctx, "list", func(context.Context) error {
		calls++
		cancel()
		return store.Wrap(store.ErrTransient, "drive", "list", fmt.Errorf("interrupted"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestUnclassifiedErrorsRetryAsTransient(t *testing.T) {
	budget, _ := newTestBudget(WithMaxAttempts(2))

	calls := 0
	err := budget.Do(context.Background(), "list", func(context.Context) error {
		calls++
		return errors.New("unknown failure")
	})
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if !Exhausted(err) {
		t.Errorf("error = %v, want exhausted", err)
	}
}
