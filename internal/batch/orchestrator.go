// Package batch runs matching and letter generation over many jobs.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
	"github.com/spigell/strivebot/internal/matching"
	"github.com/spigell/strivebot/internal/store"
)

const defaultBuffer = 64

type Matcher interface {
	Match(ctx context.Context, job *jobs.Posting, pool matching.Pool) (*matching.Result, error)
}

type Writer interface {
	Generate(ctx context.Context, candidate *candidates.Profile, job *jobs.Posting) (string, error)
}

type Options struct {
	// Workers is the number of jobs processed at once. Jobs are dispatched in
	// submission order; with one worker they also finish in that order.
	Workers int
	// Regenerate writes a new letter even when one is already stored.
	Regenerate bool
	// Buffer is the capacity of the event channel.
	Buffer int
}

type Deps struct {
	Matcher    Matcher
	Writer     Writer
	Store      store.Store
	Candidates *candidates.Repository
	Logger     *zap.Logger
}

// Orchestrator drives match, generate and persist over a batch of jobs. Pause
// and Cancel are cooperative: they take effect before the next job starts and
// never interrupt a job in flight.
type Orchestrator struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	state    State
	canceled bool
	cancelCh chan struct{}
	resumeCh chan struct{}
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	deps.Logger = logger.WithFields(deps.Logger)

	return &Orchestrator{deps: deps, opts: opts, state: StateIdle}
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start processes postings in the background and returns the event stream.
// The stream ends with EventCompleted or EventCanceled and is then closed.
// Callers must drain it.
func (o *Orchestrator) Start(ctx context.Context, postings []*jobs.Posting) (<-chan Event, error) {
	o.mu.Lock()
	if o.state == StateRunning || o.state == StatePaused {
		state := o.state
		o.mu.Unlock()
		return nil, &AlreadyRunningError{State: state}
	}
	o.state = StateRunning
	o.canceled = false
	o.cancelCh = make(chan struct{})
	o.resumeCh = nil
	o.mu.Unlock()

	events := make(chan Event, o.opts.Buffer)
	go o.run(ctx, postings, events)
	return events, nil
}

// Pause stops the batch before the next job. It reports whether the batch was running.
func (o *Orchestrator) Pause() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateRunning || o.canceled {
		return false
	}
	o.state = StatePaused
	o.resumeCh = make(chan struct{})
	return true
}

// Resume continues a paused batch. It reports whether the batch was paused.
func (o *Orchestrator) Resume() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StatePaused {
		return false
	}
	o.state = StateRunning
	close(o.resumeCh)
	o.resumeCh = nil
	return true
}

// Cancel stops the batch before the next job. The job in flight completes.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if (o.state != StateRunning && o.state != StatePaused) || o.canceled {
		return false
	}
	o.canceled = true
	close(o.cancelCh)
	return true
}

type tally struct {
	mu sync.Mutex
	Summary
}

func (t *tally) add(r outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Processed++
	if r.failed {
		t.Failed++
	}
	t.Matches += r.matches
	t.Motivations += r.motivations
}

type outcome struct {
	failed      bool
	matches     int
	motivations int
}

type task struct {
	index int
	job   *jobs.Posting
}

func (o *Orchestrator) run(ctx context.Context, postings []*jobs.Posting, events chan<- Event) {
	defer close(events)

	total := len(postings)
	emit := func(ev Event) {
		ev.Time = time.Now().UTC()
		ev.Total = total
		events <- ev
	}

	emit(Event{Type: EventStarted, Message: fmt.Sprintf("processing %d jobs", total)})
	o.deps.Logger.Info("batch started", zap.Int("jobs", total), zap.Int("workers", o.opts.Workers))

	result := &tally{Summary: Summary{Jobs: total}}

	// A job is dispatched only once a worker slot is free, so pause and
	// cancel are observed between jobs even with a single worker.
	slots := make(chan struct{}, o.opts.Workers)
	var wg sync.WaitGroup

	for i, job := range postings {
		slots <- struct{}{}
		if !o.proceed(ctx, emit) {
			<-slots
			break
		}

		wg.Add(1)
		go func(t task) {
			defer func() {
				<-slots
				wg.Done()
			}()
			result.add(o.process(ctx, t, emit))
		}(task{index: i + 1, job: job})
	}
	wg.Wait()

	o.mu.Lock()
	canceled := o.canceled || ctx.Err() != nil
	if canceled {
		o.state = StateCanceled
	} else {
		o.state = StateCompleted
	}
	o.mu.Unlock()

	summary := result.Summary
	fields := []zap.Field{
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("matches", summary.Matches),
		zap.Int("motivations", summary.Motivations),
	}

	if canceled {
		o.deps.Logger.Info("batch canceled", fields...)
		emit(Event{Type: EventCanceled, Summary: &summary, Message: "batch canceled"})
		return
	}

	o.deps.Logger.Info("batch completed", fields...)
	emit(Event{Type: EventCompleted, Summary: &summary, Message: "batch completed"})
}

// proceed blocks while the batch is paused and reports whether the next job
// may start.
func (o *Orchestrator) proceed(ctx context.Context, emit func(Event)) bool {
	for {
		o.mu.Lock()
		if o.canceled || ctx.Err() != nil {
			o.mu.Unlock()
			return false
		}
		if o.state != StatePaused {
			o.mu.Unlock()
			return true
		}
		resume, cancel := o.resumeCh, o.cancelCh
		o.mu.Unlock()

		emit(Event{Type: EventPaused, Message: "batch paused"})
		o.deps.Logger.Info("batch paused")

		select {
		case <-resume:
			emit(Event{Type: EventResumed, Message: "batch resumed"})
			o.deps.Logger.Info("batch resumed")
		case <-cancel:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, t task, emit func(Event)) outcome {
	job := t.job
	log := o.deps.Logger.With(logger.JobFields(job.ID, job.Position, job.Company)...)

	base := Event{Index: t.index, JobID: job.ID, Position: job.Position, Company: job.Company}
	fail := func(stage Stage, candidate string, err error) {
		log.Warn("job step failed", zap.String("stage", string(stage)), zap.String(logger.FieldCandidate, candidate), zap.Error(err))
		ev := base
		ev.Type = EventError
		ev.Stage = stage
		ev.Candidate = candidate
		ev.Err = err
		ev.Message = fmt.Sprintf("%s failed for %s at %s: %v", stage, job.Position, job.Company, err)
		emit(ev)
	}

	progress := base
	progress.Type = EventProgress
	progress.Message = fmt.Sprintf("Processing: %s at %s", job.Position, job.Company)
	emit(progress)

	var out outcome

	result, err := o.deps.Matcher.Match(ctx, job, o.deps.Candidates)
	if err != nil {
		fail(StageMatch, "", err)
		return outcome{failed: true}
	}

	if err := o.deps.Store.UpsertJob(ctx, job); err != nil {
		fail(StagePersist, "", err)
		return outcome{failed: true}
	}

	type pending struct {
		profile *candidates.Profile
		stored  string
	}
	matched := make([]pending, 0, len(result.Candidates))

	for _, candidate := range result.Candidates {
		profile := candidate
		if snapshot, ok := o.deps.Candidates.Snapshot(candidate.ID); ok {
			profile = snapshot
		}

		if err := o.deps.Store.UpsertCandidate(ctx, profile); err != nil {
			fail(StagePersist, profile.Name, err)
			out.failed = true
			continue
		}
		if err := o.deps.Store.EnsureMatch(ctx, job.ID, profile.ID); err != nil {
			fail(StagePersist, profile.Name, err)
			out.failed = true
			continue
		}

		stored := ""
		if !o.opts.Regenerate {
			if motivation, ok, err := o.deps.Store.Motivation(ctx, job.ID, profile.ID); err == nil && ok {
				stored = motivation
			}
		}

		if err := o.deps.Candidates.RecordMatch(profile.ID, job.ID, stored); err != nil {
			log.Warn("match not recorded in candidate pool", zap.Error(err))
		}
		job.SetMotivation(profile, stored)
		matched = append(matched, pending{profile: profile, stored: stored})
	}
	out.matches = len(matched)

	names := make([]string, 0, len(matched))
	for _, m := range matched {
		names = append(names, m.profile.Name)
	}
	ev := base
	ev.Type = EventMatched
	ev.Candidates = names
	ev.Dropped = result.Dropped()
	ev.Message = fmt.Sprintf("%d candidates matched for %s at %s", len(names), job.Position, job.Company)
	emit(ev)

	for _, m := range matched {
		letter := m.stored
		message := "motivation letter reused"

		if letter == "" {
			letter, err = o.deps.Writer.Generate(ctx, m.profile, job)
			if err != nil {
				fail(StageGenerate, m.profile.Name, err)
				out.failed = true
				continue
			}
			message = "motivation letter written"

			o.deps.Candidates.UpdateMotivation(m.profile.ID, job.ID, letter)
			job.SetMotivation(m.profile, letter)

			if err := o.deps.Store.UpsertMatch(ctx, job.ID, m.profile.ID, letter); err != nil {
				fail(StagePersist, m.profile.Name, err)
				out.failed = true
				continue
			}
		}

		out.motivations++
		ev := base
		ev.Type = EventMotivation
		ev.Candidate = m.profile.Name
		ev.Message = message
		emit(ev)
	}

	log.Info("job processed",
		zap.Int("matched", out.matches),
		zap.Int("motivations", out.motivations),
		zap.Bool("failed", out.failed),
	)
	return out
}
