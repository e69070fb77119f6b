package ai

import (
	"context"
	"time"
)

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout bounds every call of next by timeout. Calls exceeding it fail
// with a GenerationError of KindTimeout. A non-positive timeout returns next.
func WithTimeout(next Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return next
	}
	return &timeoutGenerator{next: next, timeout: timeout}
}

func (g *timeoutGenerator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}

	done := make(chan result, 1)
	go func() {
		text, err := g.next.GenerateContent(callCtx, system, message)
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", &GenerationError{Op: "generate", Kind: KindTimeout, Err: context.DeadlineExceeded}
		}
		return res.text, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &GenerationError{Op: "generate", Kind: KindTimeout, Err: context.DeadlineExceeded}
	}
}

func (g *timeoutGenerator) Model() string {
	if m, ok := g.next.(ModelReporter); ok {
		return m.Model()
	}
	return ""
}
