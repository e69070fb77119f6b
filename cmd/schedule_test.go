package cmd

import (
	"context"
	"testing"
)

type batchKey struct{}

func TestBatchContextOutlivesSchedulerInterrupt(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), batchKey{}, "run-1"))
	ctx := batchContext(parent)
	cancel()

	if parent.Err() == nil {
		t.Fatalf("expected scheduler context to be canceled")
	}
	if err := ctx.Err(); err != nil {
		t.Fatalf("batch context must survive the first interrupt, got %v", err)
	}
	if got := ctx.Value(batchKey{}); got != "run-1" {
		t.Fatalf("expected values to carry over, got %v", got)
	}

	// The batch's own cancel still aborts it on a second interrupt.
	abortCtx, abort := context.WithCancel(ctx)
	abort()
	if abortCtx.Err() == nil {
		t.Fatalf("expected derived batch context to be cancelable")
	}
}
