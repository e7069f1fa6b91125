package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoRunsAtLeastOnce(t *testing.T) {
	// A zero-valued config must still invoke fn, otherwise callers get a
	// nil result with a nil error.
	calls := 0
	err := Do(context.Background(), Config{}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn ran %d times, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 3}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("fn ran %d times, want 3", calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	err := Do(context.Background(), Config{MaxAttempts: 2}, func() error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do error = %v, want wrapped %v", err, boom)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Config{MaxAttempts: 3}, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn ran %d times after cancellation, want 1", calls)
	}
}
