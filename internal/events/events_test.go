package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/strivebot/internal/batch"
)

type fakePublisher struct {
	channel  string
	messages [][]byte
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	if b, ok := message.([]byte); ok {
		f.messages = append(f.messages, b)
	}
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

func TestRedisSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "")

	ev := batch.Event{
		Type:    batch.EventError,
		Total:   3,
		Index:   2,
		JobID:   "601137848047",
		Stage:   batch.StageMatch,
		Err:     errors.New("backend down"),
		Message: "match failed",
	}
	if err := sink.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if pub.channel != DefaultChannel {
		t.Fatalf("expected default channel, got %q", pub.channel)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}

	var decoded map[string]any
	if err := json.Unmarshal(pub.messages[0], &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["type"] != "error" || decoded["stage"] != "match" || decoded["error"] != "backend down" {
		t.Fatalf("unexpected payload %v", decoded)
	}
	if decoded["job_id"] != "601137848047" {
		t.Fatalf("unexpected job id %v", decoded["job_id"])
	}
}

func TestRedisSinkReportsPublishError(t *testing.T) {
	sink := NewRedisSink(&fakePublisher{err: errors.New("connection refused")}, "custom")
	err := sink.Handle(context.Background(), batch.Event{Type: batch.EventCompleted})
	if err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	ctx := context.Background()

	events := []batch.Event{
		{Type: batch.EventProgress, JobID: "1", Position: "Engineer", Company: "Acme", Message: "Processing: Engineer at Acme"},
		{Type: batch.EventMatched, JobID: "1", Candidates: []string{"Ada Lovelace"}, Message: "1 candidates matched"},
		{Type: batch.EventError, JobID: "1", Stage: batch.StageGenerate, Err: errors.New("quota"), Message: "generate failed"},
		{Type: batch.EventCompleted, Summary: &batch.Summary{Jobs: 1, Processed: 1}, Message: "batch completed"},
	}
	for _, ev := range events {
		if err := sink.Handle(ctx, ev); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(entries))
	}

	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.ErrorLevel, zapcore.InfoLevel}
	for i, entry := range entries {
		if entry.Level != wantLevels[i] {
			t.Fatalf("entry %d: expected %s, got %s", i, wantLevels[i], entry.Level)
		}
	}

	if got := entries[0].ContextMap()["job_id"]; got != "1" {
		t.Fatalf("expected job_id field, got %v", got)
	}
	if got := entries[2].ContextMap()["stage"]; got != "generate" {
		t.Fatalf("expected stage field, got %v", got)
	}
	if got := entries[3].ContextMap()["processed"]; got != int64(1) {
		t.Fatalf("expected processed field, got %v", got)
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var seen int
	ok := SinkFunc(func(context.Context, batch.Event) error { seen++; return nil })
	failing := SinkFunc(func(context.Context, batch.Event) error { return errors.New("down") })

	err := Multi{ok, nil, failing, ok}.Handle(context.Background(), batch.Event{Type: batch.EventStarted})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if seen != 2 {
		t.Fatalf("expected every sink to run, got %d", seen)
	}
}

func TestDrainReturnsTerminalEvent(t *testing.T) {
	stream := make(chan batch.Event, 3)
	stream <- batch.Event{Type: batch.EventStarted}
	stream <- batch.Event{Type: batch.EventProgress}
	stream <- batch.Event{Type: batch.EventCompleted}
	close(stream)

	var count int
	sink := SinkFunc(func(context.Context, batch.Event) error {
		count++
		return errors.New("ignored")
	})

	last := Drain(context.Background(), stream, sink, zap.NewNop())
	if last.Type != batch.EventCompleted {
		t.Fatalf("expected completed, got %s", last.Type)
	}
	if count != 3 {
		t.Fatalf("expected 3 deliveries, got %d", count)
	}
}
