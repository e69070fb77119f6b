package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("generation backend returned empty response")

// Kind classifies generation failures.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindTimeout     Kind = "timeout"
	KindEmpty       Kind = "empty"
)

// GenerationError is a failed backend call.
type GenerationError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// MatchingError is a failed matching call for one job.
type MatchingError struct {
	JobID string
	Err   error
}

func (e *MatchingError) Error() string {
	return fmt.Sprintf("matching job %s: %v", e.JobID, e.Err)
}

func (e *MatchingError) Unwrap() error {
	return e.Err
}

// NewGenerationError classifies err for op. An existing GenerationError is
// returned unchanged.
func NewGenerationError(op string, err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}

	kind := KindUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrEmptyResponse):
		kind = KindEmpty
	}

	return &GenerationError{Op: op, Kind: kind, Err: err}
}

// IsTimeout reports whether err is a timed out generation.
func IsTimeout(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Kind == KindTimeout
}
