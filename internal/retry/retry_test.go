package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Policy{Attempts: 5, NewBackOff: NoWait}, func(ctx context.Context) (string, int, error) {
		calls++
		if calls < 3 {
			return "", 503, errors.New("unavailable")
		}
		return "ok", 200, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Do() = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsExactAttempts(t *testing.T) {
	for _, attempts := range []int{1, 2, 10} {
		calls := 0
		_, err := Do(context.Background(), Policy{Attempts: attempts, NewBackOff: NoWait}, func(ctx context.Context) (int, int, error) {
			calls++
			return 0, 404, errors.New("not found")
		})

		var exhausted *Exhausted
		if !errors.As(err, &exhausted) {
			t.Fatalf("expected *Exhausted, got %T (%v)", err, err)
		}
		if calls != attempts {
			t.Errorf("attempts=%d: operation called %d times", attempts, calls)
		}
		if exhausted.Attempts != attempts {
			t.Errorf("Exhausted.Attempts = %d, want %d", exhausted.Attempts, attempts)
		}
		if exhausted.Status != 404 {
			t.Errorf("Exhausted.Status = %d, want 404", exhausted.Status)
		}
	}
}

func TestDo_KeepsLastStatusAcrossTransportErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 3, NewBackOff: NoWait}, func(ctx context.Context) (int, int, error) {
		calls++
		if calls == 1 {
			return 0, 500, errors.New("server error")
		}
		return 0, 0, errors.New("connection reset")
	})

	var exhausted *Exhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *Exhausted, got %v", err)
	}
	if exhausted.Status != 500 {
		t.Errorf("Status = %d, want 500", exhausted.Status)
	}
	if exhausted.Err.Error() != "connection reset" {
		t.Errorf("Err = %v, want last failure", exhausted.Err)
	}
}

func TestDo_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 10, NewBackOff: NoWait}, func(ctx context.Context) (int, int, error) {
		calls++
		cancel()
		return 0, 0, ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt after cancel, got %d", calls)
	}
}
