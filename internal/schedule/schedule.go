// Package schedule runs a task on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/logger"
)

type Task func(ctx context.Context) error

// Scheduler wraps robfig/cron. A run that is still in progress when the next
// tick fires makes that tick a no-op.
type Scheduler struct {
	cron       *cron.Cron
	chain      cron.Chain
	job        cron.Job
	schedule   cron.Schedule
	task       Task
	runOnStart bool
	logger     *zap.Logger

	wg sync.WaitGroup
}

// New validates spec (standard five fields or a descriptor such as "@every 6h").
func New(spec string, runOnStart bool, task Task, log *zap.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	log = logger.WithFields(log, zap.String("schedule", spec))
	cronLog := cronLogger{logger: log.Sugar()}

	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLog)),
		chain:      cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		schedule:   schedule,
		task:       task,
		runOnStart: runOnStart,
		logger:     log,
	}, nil
}

// Next reports when the task fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start registers the task and, with runOnStart, fires it once right away.
// Both the immediate run and the ticks go through the same wrapped job, so
// they never overlap.
func (s *Scheduler) Start(ctx context.Context) {
	s.job = s.chain.Then(cron.FuncJob(func() { s.run(ctx) }))
	s.cron.Schedule(s.schedule, s.job)
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Time("next", s.Next(time.Now())))

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
}

// Stop waits for running tasks to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	s.logger.Info("scheduled run started")

	if err := s.task(ctx); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err), zap.Duration("took", time.Since(started)))
		return
	}
	s.logger.Info("scheduled run finished", zap.Duration("took", time.Since(started)))
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
