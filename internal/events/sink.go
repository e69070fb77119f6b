// Package events delivers batch events to logs and subscribers.
package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/batch"
	"github.com/spigell/strivebot/internal/logger"
)

type Sink interface {
	Handle(ctx context.Context, ev batch.Event) error
}

type SinkFunc func(ctx context.Context, ev batch.Event) error

func (f SinkFunc) Handle(ctx context.Context, ev batch.Event) error {
	return f(ctx, ev)
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Handle(ctx context.Context, ev batch.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Drain forwards the stream to sink until it closes and returns the terminal
// event. Sink failures are logged and do not stop the stream.
func Drain(ctx context.Context, stream <-chan batch.Event, sink Sink, log *zap.Logger) batch.Event {
	log = logger.WithFields(log)

	var last batch.Event
	for ev := range stream {
		last = ev
		if err := sink.Handle(ctx, ev); err != nil {
			log.Warn("event delivery failed", zap.String("event", string(ev.Type)), zap.Error(err))
		}
	}
	return last
}

// LogSink writes every event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{logger: logger.WithFields(log)}
}

func (s *LogSink) Handle(_ context.Context, ev batch.Event) error {
	fields := []zap.Field{
		zap.String("event", string(ev.Type)),
		zap.Int("total", ev.Total),
	}
	if ev.Index > 0 {
		fields = append(fields, zap.Int("index", ev.Index))
	}
	if ev.JobID != "" {
		fields = append(fields, logger.JobFields(ev.JobID, ev.Position, ev.Company)...)
	}
	if ev.Candidate != "" {
		fields = append(fields, zap.String(logger.FieldCandidate, ev.Candidate))
	}
	if len(ev.Candidates) > 0 {
		fields = append(fields, zap.Strings("candidates", ev.Candidates))
	}
	if ev.Dropped > 0 {
		fields = append(fields, zap.Int("dropped", ev.Dropped))
	}
	if ev.Summary != nil {
		fields = append(fields,
			zap.Int("processed", ev.Summary.Processed),
			zap.Int("failed", ev.Summary.Failed),
			zap.Int("matches", ev.Summary.Matches),
			zap.Int("motivations", ev.Summary.Motivations),
		)
	}

	switch ev.Type {
	case batch.EventError:
		fields = append(fields, zap.String("stage", string(ev.Stage)), zap.Error(ev.Err))
		s.logger.Error(ev.Message, fields...)
	case batch.EventProgress:
		s.logger.Debug(ev.Message, fields...)
	default:
		s.logger.Info(ev.Message, fields...)
	}
	return nil
}
