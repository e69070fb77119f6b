package ai

import (
	"context"
)

// Generator is the text generation backend. system carries the instructions
// and the data to work on, message the request itself.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// ModelReporter is implemented by generators that know their model name.
type ModelReporter interface {
	Model() string
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, system, message string) (string, error)

func (f GeneratorFunc) GenerateContent(ctx context.Context, system, message string) (string, error) {
	return f(ctx, system, message)
}
