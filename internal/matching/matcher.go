// Package matching ranks candidates for a job posting and analyzes raw posting
// descriptions with the generation backend.
package matching

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/ai"
	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/extract"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

//go:embed prompts/rank.md
var rankTemplate string

const (
	rankMessage  = "Return the names of the best matching candidates (up to a maximum of 3) for the job. Be critical in your selection."
	notSpecified = "Not specified"
)

// Pool is the candidate pool the matcher ranks.
type Pool interface {
	DescribeAll() string
	GetByName(name string) (*candidates.Profile, bool)
}

// Result is the outcome of matching one job.
type Result struct {
	// Candidates are the resolved profiles in the order the backend ranked them.
	Candidates []*candidates.Profile
	// Unresolved lists returned names that are not in the pool.
	Unresolved []string
	// Rejected lists resolved names dropped for sharing no skill with the job.
	Rejected []string
	Raw      string
}

// Dropped is the number of names the backend returned that did not make it
// into Candidates.
func (r *Result) Dropped() int {
	return len(r.Unresolved) + len(r.Rejected)
}

type MatcherOptions struct {
	// RequireSkillOverlap drops candidates sharing no skill with the job.
	RequireSkillOverlap bool
	MaxLogLength        int
}

type Matcher struct {
	generator ai.Generator
	logger    *zap.Logger
	opts      MatcherOptions
}

func NewMatcher(generator ai.Generator, log *zap.Logger, opts MatcherOptions) *Matcher {
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = logger.DefaultPreviewLength
	}
	return &Matcher{
		generator: generator,
		logger:    logger.WithFields(log),
		opts:      opts,
	}
}

// Match asks the backend for at most extract.MaxNames candidates of pool that
// fit job. Backend failures are returned as *ai.MatchingError; an answer that
// names nobody yields an empty result.
func (m *Matcher) Match(ctx context.Context, job *jobs.Posting, pool Pool) (*Result, error) {
	log := m.logger.With(logger.JobFields(job.ID, job.Position, job.Company)...)

	system := BuildRankPrompt(job, pool.DescribeAll())

	log.Debug("rank candidates request",
		zap.Int("prompt_length", utf8.RuneCountInString(system)),
		zap.String("prompt_preview", logger.TruncateForLog(system, m.opts.MaxLogLength)),
	)

	raw, err := m.generator.GenerateContent(ctx, system, rankMessage)
	if err != nil {
		return nil, &ai.MatchingError{JobID: job.ID, Err: ai.NewGenerationError("rank", err)}
	}

	log.Debug("rank candidates response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, m.opts.MaxLogLength)),
	)

	result := &Result{Raw: raw}
	jobSkills := candidates.SplitSkills(job.Assignment.Skills)

	for _, name := range extract.ParseNameList(raw) {
		profile, ok := pool.GetByName(name)
		if !ok {
			result.Unresolved = append(result.Unresolved, name)
			continue
		}

		if m.opts.RequireSkillOverlap && len(jobSkills) > 0 && !overlaps(jobSkills, profile.SkillSet()) {
			result.Rejected = append(result.Rejected, name)
			continue
		}

		result.Candidates = append(result.Candidates, profile)
	}

	if len(result.Unresolved) > 0 {
		log.Warn("backend returned unknown candidates", zap.Strings("names", result.Unresolved))
	}
	if len(result.Rejected) > 0 {
		log.Info("candidates rejected for missing skills", zap.Strings("names", result.Rejected))
	}

	log.Info("candidates matched",
		zap.Int("matched", len(result.Candidates)),
		zap.Int("dropped", result.Dropped()),
	)

	return result, nil
}

// BuildRankPrompt renders the ranking instructions for job over the pool description.
func BuildRankPrompt(job *jobs.Posting, pool string) string {
	return strings.NewReplacer(
		"{{MAX}}", strconv.Itoa(extract.MaxNames),
		"{{POSITION}}", orNotSpecified(job.Position),
		"{{REQUIREMENTS}}", orNotSpecified(job.Assignment.Requirements),
		"{{SKILLS}}", orNotSpecified(job.Assignment.Skills),
		"{{PREFERENCES}}", orNotSpecified(job.Assignment.Preferences),
		"{{DESCRIPTION}}", orNotSpecified(job.Description),
		"{{CANDIDATES}}", pool,
	).Replace(rankTemplate)
}

func orNotSpecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notSpecified
	}
	return s
}

func overlaps(a, b map[string]struct{}) bool {
	for token := range a {
		if _, ok := b[token]; ok {
			return true
		}
	}
	return false
}
