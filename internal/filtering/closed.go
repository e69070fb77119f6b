package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

type closedFilter struct {
	toggle
	logger *zap.Logger
}

// NewClosed creates a filter that removes postings whose status marks them closed.
func NewClosed(log *zap.Logger) Filter {
	return &closedFilter{logger: logger.WithFields(log)}
}

func (f *closedFilter) Name() string { return "closed" }

func (f *closedFilter) Validate() error { return nil }

func (f *closedFilter) Apply(_ context.Context, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	excluded := p.ExcludeFunc((*jobs.Posting).IsClosed)
	if len(excluded) > 0 {
		f.logger.Info("excluding closed postings",
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}
