package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/strivebot/internal/jobs"
)

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes postings listed in an exclude file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: path}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if f.path == "" {
		return p, Step{Initial: initial, Left: initial}, nil
	}

	excluded, err := jobs.GetExcludedPostingsFromFile(f.path)
	if err != nil {
		return p, Step{}, fmt.Errorf("getting excluded postings from file: %w", err)
	}

	removed := p.Exclude(jobs.PostingIDField, excluded.PostingIDs())

	return p, Step{Initial: initial, Dropped: len(removed), Left: p.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: map[string]string{"path": f.path}}
}
