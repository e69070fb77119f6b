package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
	"github.com/spigell/strivebot/internal/store"
)

const rematchFlagSetMsg = "rematch flag is set"

type alreadyMatchedFilter struct {
	toggle
	store  store.Store
	ignore bool
	logger *zap.Logger
}

type AlreadyMatchedConfig struct {
	Ignore bool
}

// NewAlreadyMatched creates a filter that removes postings which already have
// matched candidates in the store.
func NewAlreadyMatched(cfg *AlreadyMatchedConfig, s store.Store, log *zap.Logger) Filter {
	ignore := false
	if cfg != nil {
		ignore = cfg.Ignore
	}

	return &alreadyMatchedFilter{store: s, ignore: ignore, logger: logger.WithFields(log)}
}

func (f *alreadyMatchedFilter) Name() string { return "already_matched" }

func (f *alreadyMatchedFilter) Validate() error {
	if f.store == nil {
		return fmt.Errorf("store is required")
	}
	return nil
}

func (f *alreadyMatchedFilter) Apply(ctx context.Context, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if f.ignore {
		f.logger.Info("keeping already matched postings", zap.String("reason", rematchFlagSetMsg))
		return p, Step{Initial: initial, Left: initial}, nil
	}

	matched := make(map[string]bool, initial)
	for _, posting := range p.Items {
		found, err := f.store.MatchesForJob(ctx, posting.ID)
		if err != nil {
			return p, Step{}, fmt.Errorf("get matches for %s: %w", posting.ID, err)
		}
		matched[posting.ID] = len(found) > 0
	}

	excluded := p.ExcludeFunc(func(posting *jobs.Posting) bool { return matched[posting.ID] })
	if len(excluded) > 0 {
		f.logger.Info("excluding postings based on stored matches",
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}
