// Package motivation writes cover letters for matched candidates.
package motivation

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/ai"
	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

//go:embed prompts/letter.md
var letterTemplate string

const (
	letterMessage = "Write a motivation letter for the candidate in first person. The tone should be formal and professional. Be concise."
	notSpecified  = "Not specified"
)

type Options struct {
	// Agency is added to the From header as "on behalf of <Agency>".
	Agency       string
	MaxLogLength int
}

type Generator struct {
	generator ai.Generator
	logger    *zap.Logger
	opts      Options
}

func NewGenerator(generator ai.Generator, log *zap.Logger, opts Options) *Generator {
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = logger.DefaultPreviewLength
	}
	return &Generator{
		generator: generator,
		logger:    logger.WithFields(log),
		opts:      opts,
	}
}

// Generate returns the letter of candidate for job exactly as the backend
// wrote it. Recording and persisting it is left to the caller.
func (g *Generator) Generate(ctx context.Context, candidate *candidates.Profile, job *jobs.Posting) (string, error) {
	if candidate == nil || job == nil {
		return "", &ai.GenerationError{Op: "compose", Kind: ai.KindUnavailable, Err: errors.New("candidate and job are required")}
	}

	log := g.logger.With(logger.JobFields(job.ID, job.Position, job.Company)...).
		With(zap.String(logger.FieldCandidate, candidate.Name))

	system := g.BuildPrompt(candidate, job)
	log.Debug("compose letter request",
		zap.Int("prompt_length", utf8.RuneCountInString(system)),
		zap.String("prompt_preview", logger.TruncateForLog(system, g.opts.MaxLogLength)),
	)

	letter, err := g.generator.GenerateContent(ctx, system, letterMessage)
	if err != nil {
		return "", ai.NewGenerationError("compose", err)
	}
	if strings.TrimSpace(letter) == "" {
		return "", ai.NewGenerationError("compose", ai.ErrEmptyResponse)
	}

	log.Info("motivation letter written", zap.Int("length", utf8.RuneCountInString(letter)))
	return letter, nil
}

func (g *Generator) BuildPrompt(candidate *candidates.Profile, job *jobs.Posting) string {
	sender := candidate.Name
	if agency := strings.TrimSpace(g.opts.Agency); agency != "" {
		sender += " on behalf of " + agency
	}

	return strings.NewReplacer(
		"{{POSITION}}", job.Position,
		"{{COMPANY}}", job.Company,
		"{{SENDER}}", sender,
		"{{REQUIREMENTS}}", orNotSpecified(job.Assignment.Requirements),
		"{{SKILLS}}", orNotSpecified(job.Assignment.Skills),
		"{{PREFERENCES}}", orNotSpecified(job.Assignment.Preferences),
		"{{NAME}}", candidate.Name,
		"{{PROFILE}}", orNotSpecified(candidate.Summary),
		"{{EXPERIENCE}}", orNotSpecified(candidate.Experience),
		"{{CANDIDATE_SKILLS}}", orNotSpecified(candidate.Skills),
	).Replace(letterTemplate)
}

func orNotSpecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notSpecified
	}
	return s
}
