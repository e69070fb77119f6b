package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

// Analyzer fills the categorized assignment and scalar fields of a posting.
type Analyzer interface {
	Analyze(ctx context.Context, posting *jobs.Posting) error
}

type analyzeFilter struct {
	toggle
	analyzer Analyzer
	logger   *zap.Logger
}

// NewAnalyze creates the step that enriches postings from their descriptions.
// It never drops a posting: a failed analysis is logged and the posting kept.
func NewAnalyze(analyzer Analyzer, log *zap.Logger) Filter {
	f := &analyzeFilter{analyzer: analyzer, logger: logger.WithFields(log)}
	if analyzer == nil {
		f.Disable("analyzer is not configured")
	}
	return f
}

func (f *analyzeFilter) Name() string { return "analyze" }

func (f *analyzeFilter) Validate() error { return nil }

func (f *analyzeFilter) Apply(ctx context.Context, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	analyzed := 0

	for _, posting := range p.Items {
		if posting.Description == "" {
			continue
		}

		if err := f.analyzer.Analyze(ctx, posting); err != nil {
			f.logger.Warn("posting analysis failed. It is kept as is.",
				append(logger.JobFields(posting.ID, posting.Position, posting.Company), zap.Error(err))...,
			)
			continue
		}
		analyzed++
	}

	f.logger.Info("analysis completed",
		zap.Int("postings", initial),
		zap.Int("analyzed", analyzed),
	)

	return p, Step{Initial: initial, Left: p.Len()}, nil
}

func (f *analyzeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
