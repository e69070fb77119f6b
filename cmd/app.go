package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/ai"
	"github.com/spigell/strivebot/internal/ai/gemini"
	"github.com/spigell/strivebot/internal/batch"
	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/events"
	"github.com/spigell/strivebot/internal/export"
	"github.com/spigell/strivebot/internal/filtering"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
	"github.com/spigell/strivebot/internal/matching"
	"github.com/spigell/strivebot/internal/motivation"
	"github.com/spigell/strivebot/internal/secrets"
	"github.com/spigell/strivebot/internal/source"
	"github.com/spigell/strivebot/internal/store"
)

const noMatchReason = "no matching candidates"

// application holds everything a batch run needs. It is built once per
// command and reused across scheduled runs.
type application struct {
	config *Config
	logger *zap.Logger

	reader       *source.Reader
	pool         *candidates.Repository
	store        store.Store
	generator    ai.Generator
	analyzer     *matching.Analyzer
	orchestrator *batch.Orchestrator
	sink         events.Sink

	closers []func() error
}

func newApplication(ctx context.Context, config *Config, logger *zap.Logger) (*application, error) {
	a := &application{
		config: config,
		logger: logger,
		reader: newReader(config, logger),
		pool:   candidates.NewRepository(),
	}

	st, err := newStore(ctx, config.Database, logger)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("building ai generator: %w", err)
	}
	a.generator = generator

	sink, closeSink, err := newSink(ctx, config.Events, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sink = sink
	a.closers = append(a.closers, closeSink)

	maxLog := config.AI.Gemini.MaxLogLength
	if config.Matching.Analyze {
		a.analyzer = matching.NewAnalyzer(generator, logger, maxLog)
	}

	agency := ""
	if config.Motivation != nil {
		agency = config.Motivation.Agency
	}

	a.orchestrator = batch.New(batch.Deps{
		Matcher: matching.NewMatcher(generator, logger, matching.MatcherOptions{
			RequireSkillOverlap: config.Matching.RequireSkillOverlap,
			MaxLogLength:        maxLog,
		}),
		Writer:     motivation.NewGenerator(generator, logger, motivation.Options{Agency: agency, MaxLogLength: maxLog}),
		Store:      a.store,
		Candidates: a.pool,
		Logger:     logger,
	}, batch.Options{
		Workers:    config.Batch.Workers,
		Regenerate: config.Batch.Regenerate,
	})

	return a, nil
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func newReader(config *Config, logger *zap.Logger) *source.Reader {
	reader := source.NewReader(logger)
	if config.UserAgent != "" {
		reader.UserAgent = config.UserAgent
	}
	return reader
}

func newStore(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (store.Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		logger.Warn("database is not configured, matches are kept in memory only",
			zap.String("hint", "set DATABASE_URL or the 'database.url' key in the configuration file"),
		)
		return store.NewMemory(), nil
	}

	pg, err := store.NewPostgres(ctx, cfg.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}

	return pg, nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
		zap.Duration("ai_timeout", cfg.Timeout),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return ai.WithTimeout(generator, cfg.Timeout), nil
}

func newSink(ctx context.Context, cfg *EventsConfig, logger *zap.Logger) (events.Sink, func() error, error) {
	sinks := events.Multi{events.NewLogSink(logger)}
	closer := func() error { return nil }

	if cfg != nil && strings.TrimSpace(cfg.RedisURL) != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		sinks = append(sinks, events.NewRedisSink(rdb, cfg.Channel))
		closer = rdb.Close
		logger.Info("publishing batch events to redis", zap.String("channel", cfg.Channel))
	}

	return sinks, closer, nil
}

func (a *application) loadCandidates(ctx context.Context) error {
	file := source.NewCandidateFile(a.config.Candidates, a.reader, a.logger)
	if err := a.pool.Load(ctx, file); err != nil {
		return fmt.Errorf("loading candidates: %w", err)
	}

	a.logger.Info("candidates loaded", zap.Int("count", a.pool.Len()), zap.String("source", a.config.Candidates))
	return nil
}

func (a *application) loadJobs(ctx context.Context) (*jobs.Postings, error) {
	postings, err := source.NewJobFile(a.config.Jobs, a.reader, a.logger).Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading jobs: %w", err)
	}

	a.logger.Info("getting postings", zap.Int("count", postings.Len()), zap.String("source", a.config.Jobs))
	return postings, nil
}

func (a *application) filters(rematch bool) *filtering.Filtering {
	var analyzer filtering.Analyzer
	if a.analyzer != nil {
		analyzer = a.analyzer
	}

	var companies []string
	if a.config.Exclude != nil {
		companies = a.config.Exclude.Companies
	}

	steps := []filtering.Filter{
		filtering.NewClosed(a.logger),
		filtering.NewExcludedCompanies(companies, a.logger),
		filtering.NewExcludeFile(a.config.ExcludeFile),
		filtering.NewAlreadyMatched(&filtering.AlreadyMatchedConfig{Ignore: rematch}, a.store, a.logger),
		filtering.NewAnalyze(analyzer, a.logger),
	}

	return filtering.New(steps, a.logger)
}

// runBatch processes postings and returns the terminal event. The first
// interrupt stops the batch after the current job, the second aborts it.
func (a *application) runBatch(ctx context.Context, postings *jobs.Postings) (batch.Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := a.orchestrator.Start(ctx, postings.Items)
	if err != nil {
		return batch.Event{}, err
	}

	stop := watchInterrupts(ctx, cancel, a.orchestrator, a.logger)
	defer stop()

	failed := make(map[string]bool)
	record := events.SinkFunc(func(_ context.Context, ev batch.Event) error {
		if ev.Type == batch.EventError {
			failed[ev.JobID] = true
		}
		return nil
	})

	last := events.Drain(context.WithoutCancel(ctx), stream, events.Multi{a.sink, record}, a.logger)

	if last.Type == batch.EventCompleted {
		a.excludeUnmatched(postings, failed)
	}
	a.export(postings)

	return last, nil
}

func watchInterrupts(ctx context.Context, cancel context.CancelFunc, orch *batch.Orchestrator, logger *zap.Logger) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigs:
			logger.Info("interrupt received, stopping after the current job", zap.String("hint", "interrupt again to abort"))
			orch.Cancel()
		case <-done:
			return
		}

		select {
		case <-sigs:
			logger.Warn("aborting the current job")
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// excludeUnmatched appends postings nobody matched to the exclude file.
func (a *application) excludeUnmatched(postings *jobs.Postings, failed map[string]bool) {
	path := strings.TrimSpace(a.config.ExcludeFile)
	if path == "" {
		return
	}

	unmatched := &jobs.Postings{}
	for _, posting := range postings.Items {
		if len(posting.Candidates) == 0 && !failed[posting.ID] {
			unmatched.Items = append(unmatched.Items, posting)
		}
	}
	if unmatched.Len() == 0 {
		return
	}

	excluded, err := jobs.GetExcludedPostingsFromFile(path)
	if err != nil {
		a.logger.Warn("failed to load exclude file", zap.String("exclude_file", path), zap.Error(err))
		return
	}

	excluded.Append(unmatched.ToExcluded(jobs.ExcludeActorMatcher, noMatchReason))
	if err := excluded.ToFile(path); err != nil {
		a.logger.Warn("failed to write exclude file", zap.String("exclude_file", path), zap.Error(err))
		return
	}

	a.logger.Info("postings without matches appended to exclude file",
		zap.Int("count", unmatched.Len()),
		zap.String("exclude_file", path),
	)
}

func (a *application) export(postings *jobs.Postings) {
	cfg := a.config.Export
	if cfg == nil || !cfg.Enabled {
		return
	}

	writer := export.NewWriter(cfg.Dir, cfg.Force, a.logger)
	for _, posting := range postings.Items {
		if len(posting.Candidates) == 0 {
			continue
		}
		if _, err := writer.Write(posting); err != nil {
			a.logger.Warn("export failed",
				append(logger.JobFields(posting.ID, posting.Position, posting.Company), zap.Error(err))...,
			)
		}
	}
}
