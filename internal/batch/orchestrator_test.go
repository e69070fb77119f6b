package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/matching"
	"github.com/spigell/strivebot/internal/store"
)

type stubMatcher struct {
	mu     sync.Mutex
	calls  []string
	names  map[string][]string
	errs   map[string]error
	before func(job *jobs.Posting)
}

func (s *stubMatcher) Match(_ context.Context, job *jobs.Posting, pool matching.Pool) (*matching.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, job.ID)
	s.mu.Unlock()

	if s.before != nil {
		s.before(job)
	}
	if err := s.errs[job.ID]; err != nil {
		return nil, err
	}

	result := &matching.Result{}
	for _, name := range s.names[job.ID] {
		if profile, ok := pool.GetByName(name); ok {
			result.Candidates = append(result.Candidates, profile)
			continue
		}
		result.Unresolved = append(result.Unresolved, name)
	}
	return result, nil
}

func (s *stubMatcher) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type stubWriter struct {
	calls atomic.Int32
	err   error
}

func (s *stubWriter) Generate(_ context.Context, candidate *candidates.Profile, job *jobs.Posting) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "Dear " + job.Company + ", " + candidate.Name + " applies.", nil
}

func newRepo(t *testing.T, names ...string) *candidates.Repository {
	t.Helper()
	repo := candidates.NewRepository()
	for _, name := range names {
		if err := repo.Add(candidates.NewProfile(name)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	return repo
}

func postings(pairs ...string) []*jobs.Posting {
	var out []*jobs.Posting
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, jobs.NewPosting(pairs[i], pairs[i+1]))
	}
	return out
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("event stream did not close, got %d events", len(out))
		}
	}
}

func ofType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunPersistsMatchesAndLetters(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace", "Grace Hopper")
	batch := postings("Software Engineer", "Acme")
	job := batch[0]

	matcher := &stubMatcher{names: map[string][]string{job.ID: {"Ada Lovelace", "Nobody Known"}}}
	writer := &stubWriter{}
	mem := store.NewMemory()

	orch := New(Deps{Matcher: matcher, Writer: writer, Store: mem, Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})
	stream, err := orch.Start(context.Background(), batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := collect(t, stream)

	if last := events[len(events)-1]; last.Type != EventCompleted {
		t.Fatalf("expected completed terminal event, got %s", last.Type)
	}
	if orch.State() != StateCompleted {
		t.Fatalf("expected completed state, got %s", orch.State())
	}

	matched := ofType(events, EventMatched)
	if len(matched) != 1 || len(matched[0].Candidates) != 1 || matched[0].Candidates[0] != "Ada Lovelace" {
		t.Fatalf("unexpected matched events: %+v", matched)
	}
	if matched[0].Dropped != 1 {
		t.Fatalf("expected one dropped name, got %d", matched[0].Dropped)
	}

	ada, _ := repo.GetByName("Ada Lovelace")
	letter, ok, err := mem.Motivation(context.Background(), job.ID, ada.ID)
	if err != nil || !ok {
		t.Fatalf("expected stored motivation, ok=%v err=%v", ok, err)
	}
	if letter != "Dear Acme, Ada Lovelace applies." {
		t.Fatalf("unexpected letter %q", letter)
	}
	if got, _ := repo.Motivation(ada.ID, job.ID); got != letter {
		t.Fatalf("candidate pool not updated, got %q", got)
	}
	if len(job.Candidates) != 1 || job.Candidates[0].Motivation != letter {
		t.Fatalf("posting not updated: %+v", job.Candidates)
	}

	summary := events[len(events)-1].Summary
	if summary == nil || summary.Processed != 1 || summary.Matches != 1 || summary.Motivations != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestFailedJobDoesNotAbortBatch(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace")
	batch := postings("One", "Acme", "Two", "Acme", "Three", "Acme")

	matcher := &stubMatcher{
		names: map[string][]string{
			batch[0].ID: {"Ada Lovelace"},
			batch[2].ID: {"Ada Lovelace"},
		},
		errs: map[string]error{batch[1].ID: errors.New("backend down")},
	}
	mem := store.NewMemory()

	orch := New(Deps{Matcher: matcher, Writer: &stubWriter{}, Store: mem, Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})
	stream, err := orch.Start(context.Background(), batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := collect(t, stream)

	failures := ofType(events, EventError)
	if len(failures) != 1 {
		t.Fatalf("expected one error event, got %d", len(failures))
	}
	if failures[0].JobID != batch[1].ID || failures[0].Stage != StageMatch {
		t.Fatalf("unexpected error event %+v", failures[0])
	}
	if events[len(events)-1].Type != EventCompleted {
		t.Fatalf("expected batch to complete, got %s", events[len(events)-1].Type)
	}

	ada, _ := repo.GetByName("Ada Lovelace")
	for _, job := range []*jobs.Posting{batch[0], batch[2]} {
		if _, ok, _ := mem.Motivation(context.Background(), job.ID, ada.ID); !ok {
			t.Fatalf("expected match persisted for %s", job.Position)
		}
	}
	if _, ok, _ := mem.Job(context.Background(), batch[1].ID); ok {
		t.Fatalf("failed job must not be persisted")
	}
}

func TestCancelStopsBeforeNextJob(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace")
	batch := postings("One", "Acme", "Two", "Acme")

	var orch *Orchestrator
	matcher := &stubMatcher{names: map[string][]string{batch[0].ID: {"Ada Lovelace"}}}
	matcher.before = func(job *jobs.Posting) {
		if job.ID == batch[0].ID {
			orch.Cancel()
		}
	}
	mem := store.NewMemory()

	orch = New(Deps{Matcher: matcher, Writer: &stubWriter{}, Store: mem, Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})
	stream, err := orch.Start(context.Background(), batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := collect(t, stream)

	if events[len(events)-1].Type != EventCanceled {
		t.Fatalf("expected canceled terminal event, got %s", events[len(events)-1].Type)
	}
	if calls := matcher.called(); len(calls) != 1 {
		t.Fatalf("expected only the first job to run, got %v", calls)
	}

	ada, _ := repo.GetByName("Ada Lovelace")
	if _, ok, _ := mem.Motivation(context.Background(), batch[0].ID, ada.ID); !ok {
		t.Fatalf("in-flight job must finish before cancel takes effect")
	}
	if orch.State() != StateCanceled {
		t.Fatalf("expected canceled state, got %s", orch.State())
	}
}

func TestPauseAndResume(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace")
	batch := postings("One", "Acme", "Two", "Acme")

	var orch *Orchestrator
	matcher := &stubMatcher{}
	matcher.before = func(job *jobs.Posting) {
		if job.ID == batch[0].ID {
			orch.Pause()
		}
	}

	orch = New(Deps{Matcher: matcher, Writer: &stubWriter{}, Store: store.NewMemory(), Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})
	stream, err := orch.Start(context.Background(), batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var events []Event
	for ev := range stream {
		events = append(events, ev)
		if ev.Type != EventPaused {
			continue
		}
		if orch.State() != StatePaused {
			t.Fatalf("expected paused state, got %s", orch.State())
		}
		if calls := matcher.called(); len(calls) != 1 {
			t.Fatalf("second job started while paused: %v", calls)
		}
		if _, err := orch.Start(context.Background(), batch); err == nil {
			t.Fatalf("expected start to fail while paused")
		}
		if !orch.Resume() {
			t.Fatalf("resume reported no paused batch")
		}
	}

	if len(ofType(events, EventPaused)) != 1 || len(ofType(events, EventResumed)) != 1 {
		t.Fatalf("expected one pause and one resume event")
	}
	if calls := matcher.called(); len(calls) != 2 {
		t.Fatalf("expected both jobs processed, got %v", calls)
	}
	if events[len(events)-1].Type != EventCompleted {
		t.Fatalf("expected completed terminal event, got %s", events[len(events)-1].Type)
	}
}

func TestStartWhileRunning(t *testing.T) {
	repo := newRepo(t)
	release := make(chan struct{})
	matcher := &stubMatcher{before: func(*jobs.Posting) { <-release }}

	orch := New(Deps{Matcher: matcher, Writer: &stubWriter{}, Store: store.NewMemory(), Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})
	stream, err := orch.Start(context.Background(), postings("One", "Acme"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = orch.Start(context.Background(), postings("Two", "Acme"))
	var running *AlreadyRunningError
	if !errors.As(err, &running) || running.State != StateRunning {
		t.Fatalf("expected AlreadyRunningError, got %v", err)
	}

	close(release)
	collect(t, stream)

	stream, err = orch.Start(context.Background(), postings("Two", "Acme"))
	if err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
	collect(t, stream)
}

func TestStoredMotivationIsReused(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace")
	batch := postings("Software Engineer", "Acme")
	job := batch[0]
	ada, _ := repo.GetByName("Ada Lovelace")

	mem := store.NewMemory()
	ctx := context.Background()
	if err := mem.UpsertJob(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if err := mem.UpsertCandidate(ctx, ada); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	if err := mem.UpsertMatch(ctx, job.ID, ada.ID, "earlier letter"); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	tests := []struct {
		name       string
		regenerate bool
		calls      int32
		want       string
	}{
		{name: "reuse", regenerate: false, calls: 0, want: "earlier letter"},
		{name: "regenerate", regenerate: true, calls: 1, want: "Dear Acme, Ada Lovelace applies."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &stubWriter{}
			matcher := &stubMatcher{names: map[string][]string{job.ID: {"Ada Lovelace"}}}
			orch := New(Deps{Matcher: matcher, Writer: writer, Store: mem, Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{Regenerate: tt.regenerate})

			stream, err := orch.Start(ctx, postings("Software Engineer", "Acme"))
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			collect(t, stream)

			if writer.calls.Load() != tt.calls {
				t.Fatalf("expected %d writer calls, got %d", tt.calls, writer.calls.Load())
			}
			got, _, _ := mem.Motivation(ctx, job.ID, ada.ID)
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGenerationFailureKeepsMatch(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace")
	batch := postings("Software Engineer", "Acme")
	job := batch[0]

	matcher := &stubMatcher{names: map[string][]string{job.ID: {"Ada Lovelace"}}}
	mem := store.NewMemory()
	orch := New(Deps{Matcher: matcher, Writer: &stubWriter{err: errors.New("quota")}, Store: mem, Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})

	stream, err := orch.Start(context.Background(), batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := collect(t, stream)

	failures := ofType(events, EventError)
	if len(failures) != 1 || failures[0].Stage != StageGenerate || failures[0].Candidate != "Ada Lovelace" {
		t.Fatalf("unexpected error events %+v", failures)
	}

	ada, _ := repo.GetByName("Ada Lovelace")
	letter, ok, err := mem.Motivation(context.Background(), job.ID, ada.ID)
	if err != nil || !ok || letter != "" {
		t.Fatalf("expected match with empty motivation, got %q ok=%v err=%v", letter, ok, err)
	}
}

func TestWorkersProcessEveryJob(t *testing.T) {
	repo := newRepo(t, "Ada Lovelace", "Grace Hopper")
	batch := postings("One", "Acme", "Two", "Globex", "Three", "Initech", "Four", "Umbrella")

	names := map[string][]string{}
	for _, job := range batch {
		names[job.ID] = []string{"Ada Lovelace", "Grace Hopper"}
	}
	matcher := &stubMatcher{names: names}
	mem := store.NewMemory()

	orch := New(Deps{Matcher: matcher, Writer: &stubWriter{}, Store: mem, Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{Workers: 3})
	stream, err := orch.Start(context.Background(), batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := collect(t, stream)

	summary := events[len(events)-1].Summary
	if summary == nil || summary.Processed != 4 || summary.Matches != 8 || summary.Motivations != 8 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	for _, candidate := range repo.All() {
		snapshot, _ := repo.Snapshot(candidate.ID)
		if len(snapshot.Matches) != 4 {
			t.Fatalf("expected 4 matches for %s, got %d", candidate.Name, len(snapshot.Matches))
		}
	}
	if stats := mem.Stats(); stats.Jobs != 4 || stats.Matches != 8 {
		t.Fatalf("unexpected store stats %+v", stats)
	}
}

func TestContextCancelEndsBatch(t *testing.T) {
	repo := newRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	batch := postings("One", "Acme", "Two", "Acme")

	matcher := &stubMatcher{before: func(*jobs.Posting) { cancel() }}
	orch := New(Deps{Matcher: matcher, Writer: &stubWriter{}, Store: store.NewMemory(), Candidates: repo, Logger: zaptest.NewLogger(t)}, Options{})

	stream, err := orch.Start(ctx, batch)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := collect(t, stream)

	if events[len(events)-1].Type != EventCanceled {
		t.Fatalf("expected canceled, got %s", events[len(events)-1].Type)
	}
	if len(matcher.called()) != 1 {
		t.Fatalf("expected one job, got %v", matcher.called())
	}
}
