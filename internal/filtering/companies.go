package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

type companiesFilter struct {
	toggle
	companies []string
	logger    *zap.Logger
}

// NewExcludedCompanies creates a filter that removes postings by the configured companies.
func NewExcludedCompanies(companies []string, log *zap.Logger) Filter {
	return &companiesFilter{companies: companies, logger: logger.WithFields(log)}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate() error { return nil }

func (f *companiesFilter) Apply(_ context.Context, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if len(f.companies) == 0 {
		return p, Step{Initial: initial, Left: initial}, nil
	}

	excluded := p.Exclude(jobs.PostingCompanyField, f.companies)
	if len(excluded) > 0 {
		f.logger.Info("excluding postings by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
