package gemini

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai"
)

func testClient(maxRetries int) *Client {
	return &Client{maxRetries: maxRetries, logger: zap.NewNop()}
}

func TestWithRetriesSucceedsFirstAttempt(t *testing.T) {
	c := testClient(3)

	calls := 0
	err := c.withRetries(context.Background(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithRetriesRecoversAfterFailure(t *testing.T) {
	c := testClient(2)

	calls := 0
	err := c.withRetries(context.Background(), "op", func() error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestWithRetriesExhaustionWrapsServiceUnavailable(t *testing.T) {
	c := testClient(1)

	opErr := errors.New("boom")
	err := c.withRetries(context.Background(), "op", func() error {
		return opErr
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ai.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable in chain, got %v", err)
	}
	if !errors.Is(err, opErr) {
		t.Fatalf("expected original error in chain, got %v", err)
	}
}

func TestWithRetriesStopsOnCancelledContext(t *testing.T) {
	c := testClient(5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := c.withRetries(ctx, "op", func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries after cancellation, got %d calls", calls)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error for missing api key")
	}
}
