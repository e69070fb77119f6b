package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutExpires(t *testing.T) {
	slow := GeneratorFunc(func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-time.After(5 * time.Second):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	_, err := WithTimeout(slow, 20*time.Millisecond).GenerateContent(context.Background(), "sys", "msg")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Kind != KindTimeout || !IsTimeout(err) {
		t.Fatalf("expected timeout kind, got %s", genErr.Kind)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded to be wrapped, got %v", err)
	}
}

func TestWithTimeoutUnresponsiveBackend(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	stuck := GeneratorFunc(func(context.Context, string, string) (string, error) {
		<-block
		return "", nil
	})

	_, err := WithTimeout(stuck, 20*time.Millisecond).GenerateContent(context.Background(), "sys", "msg")
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWithTimeoutPassesResult(t *testing.T) {
	fast := GeneratorFunc(func(context.Context, string, string) (string, error) {
		return "ok", nil
	})

	out, err := WithTimeout(fast, time.Second).GenerateContent(context.Background(), "sys", "msg")
	if err != nil || out != "ok" {
		t.Fatalf("unexpected result: %q, %v", out, err)
	}

	if WithTimeout(fast, 0) == nil {
		t.Fatal("expected generator when timeout disabled")
	}
}

func TestNewGenerationErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{err: errors.New("connection refused"), kind: KindUnavailable},
		{err: context.DeadlineExceeded, kind: KindTimeout},
		{err: ErrEmptyResponse, kind: KindEmpty},
	}

	for _, tt := range tests {
		if got := NewGenerationError("rank", tt.err); got.Kind != tt.kind || got.Op != "rank" {
			t.Fatalf("unexpected classification for %v: %+v", tt.err, got)
		}
	}

	existing := &GenerationError{Op: "compose", Kind: KindTimeout, Err: context.DeadlineExceeded}
	if got := NewGenerationError("rank", existing); got != existing {
		t.Fatalf("expected existing error to be kept, got %+v", got)
	}

	wrapped := &MatchingError{JobID: "1", Err: existing}
	if !IsTimeout(wrapped) {
		t.Fatal("expected timeout to be detected through MatchingError")
	}
}
