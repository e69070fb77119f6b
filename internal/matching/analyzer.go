package matching

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/ai"
	"github.com/spigell/strivebot/internal/extract"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

var (
	//go:embed prompts/categorize.md
	categorizeTemplate string

	//go:embed prompts/parameters.md
	parametersTemplate string
)

const (
	categorizeMessage = "Categorize the text into different sections."
	parametersMessage = "Extract the parameters from the job description. Format the output as specified."
)

// Field is a parameter to extract from a description.
type Field struct {
	Key         string
	Description string
}

// PostingFields are the scalar posting parameters read from a description.
var PostingFields = []Field{
	{Key: "commitment", Description: "Commitment (in hours per week)"},
	{Key: "location", Description: "Location (city, country)"},
	{Key: "max_hourly_rate", Description: "Max. Hourly rate (in EUR / hour [convert if necessary])"},
	{Key: "start_date", Description: "Job Start date (date, formatted as DD/MM/YYYY)"},
	{Key: "end_date", Description: "Job End date (date, formatted as DD/MM/YYYY)"},
	{Key: "deadline", Description: "Application Deadline (date, formatted as DD/MM/YYYY)"},
	{Key: "submitter_name", Description: "Job Submitter name"},
	{Key: "submitter_phone", Description: "Job Submitter phone number"},
	{Key: "submitter_email", Description: "Job Submitter email address"},
}

var categoryHints = map[string]string{
	extract.CategoryRequirements: "(e.g. qualifications, experience, etc.)",
	extract.CategoryPreferences:  "(e.g. wishes, desires, etc.)",
	extract.CategorySkills:       "(e.g. competencies, abilities, etc.)",
}

type postingParameters struct {
	Commitment     string `mapstructure:"commitment"`
	Location       string `mapstructure:"location"`
	MaxHourlyRate  string `mapstructure:"max_hourly_rate"`
	Start          string `mapstructure:"start_date"`
	End            string `mapstructure:"end_date"`
	Deadline       string `mapstructure:"deadline"`
	SubmitterName  string `mapstructure:"submitter_name"`
	SubmitterPhone string `mapstructure:"submitter_phone"`
	SubmitterEmail string `mapstructure:"submitter_email"`
}

// Analyzer turns raw posting descriptions into structured posting data.
type Analyzer struct {
	generator    ai.Generator
	logger       *zap.Logger
	maxLogLength int
}

func NewAnalyzer(generator ai.Generator, log *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = logger.DefaultPreviewLength
	}
	return &Analyzer{
		generator:    generator,
		logger:       logger.WithFields(log),
		maxLogLength: maxLogLength,
	}
}

// Classify splits text into the given categories. Categories the backend left
// out are absent from the result.
func (a *Analyzer) Classify(ctx context.Context, text string, categories ...string) (map[string]string, error) {
	if len(categories) == 0 {
		categories = extract.DefaultCategories
	}

	raw, err := a.generate(ctx, "classify", BuildCategorizePrompt(text, categories), categorizeMessage)
	if err != nil {
		return nil, err
	}
	return extract.ParseCategories(raw, categories...), nil
}

// ExtractParameters reads the given fields from text.
func (a *Analyzer) ExtractParameters(ctx context.Context, text string, fields []Field) (extract.Parameters, error) {
	raw, err := a.generate(ctx, "extract_parameters", BuildParametersPrompt(text, fields), parametersMessage)
	if err != nil {
		return nil, err
	}
	return extract.ParseKeyValueText(raw), nil
}

// Categorize builds the assignment of a description.
func (a *Analyzer) Categorize(ctx context.Context, text string) (jobs.Assignment, error) {
	sections, err := a.Classify(ctx, text, extract.DefaultCategories...)
	if err != nil {
		return jobs.Assignment{}, err
	}
	return jobs.Assignment{
		Requirements: sections[extract.CategoryRequirements],
		Preferences:  sections[extract.CategoryPreferences],
		Skills:       sections[extract.CategorySkills],
	}, nil
}

// Analyze fills the assignment and the empty scalar fields of posting from its
// description. Fields already set by the source are kept.
func (a *Analyzer) Analyze(ctx context.Context, posting *jobs.Posting) error {
	text := strings.TrimSpace(posting.Description)
	if text == "" {
		return nil
	}

	log := a.logger.With(logger.JobFields(posting.ID, posting.Position, posting.Company)...)

	if posting.Assignment.IsEmpty() {
		assignment, err := a.Categorize(ctx, text)
		if err != nil {
			return fmt.Errorf("categorize description: %w", err)
		}
		posting.Assignment = assignment
		log.Debug("description categorized")
	}

	if !missingParameters(posting) {
		return nil
	}

	params, err := a.ExtractParameters(ctx, text, PostingFields)
	if err != nil {
		return fmt.Errorf("extract parameters: %w", err)
	}

	var decoded postingParameters
	if err := mapstructure.Decode(params.Strings(), &decoded); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}

	applyParameters(posting, decoded)
	log.Debug("parameters extracted", zap.Int("found", len(params.Strings())))
	return nil
}

func (a *Analyzer) generate(ctx context.Context, op, system, message string) (string, error) {
	a.logger.Debug("analyze request",
		zap.String("operation", op),
		zap.Int("prompt_length", utf8.RuneCountInString(system)),
		zap.String("prompt_preview", logger.TruncateForLog(system, a.maxLogLength)),
	)

	raw, err := a.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return "", ai.NewGenerationError(op, err)
	}

	a.logger.Debug("analyze response",
		zap.String("operation", op),
		zap.String("response_preview", logger.TruncateForLog(raw, a.maxLogLength)),
	)
	return raw, nil
}

func BuildCategorizePrompt(text string, categories []string) string {
	var list, format strings.Builder
	for _, c := range categories {
		name := strings.ToUpper(strings.TrimSpace(c))
		fmt.Fprintf(&list, "- %s %s\n", name, categoryHints[name])
		fmt.Fprintf(&format, "%s\n%s 1,%s 2,%s 3, etc.\n", name, name, name, name)
	}

	return strings.NewReplacer(
		"{{COUNT}}", strconv.Itoa(len(categories)),
		"{{CATEGORIES}}", strings.TrimRight(list.String(), "\n"),
		"{{FORMAT}}", strings.TrimRight(format.String(), "\n"),
		"{{TEXT}}", text,
	).Replace(categorizeTemplate)
}

func BuildParametersPrompt(text string, fields []Field) string {
	var list, format strings.Builder
	for _, f := range fields {
		list.WriteString(f.Description + "\n")
		format.WriteString(f.Key + ":" + strings.ToUpper(strings.ReplaceAll(f.Key, "_", " ")) + "\n")
	}

	return strings.NewReplacer(
		"{{FIELDS}}", strings.TrimRight(list.String(), "\n"),
		"{{FORMAT}}", strings.TrimRight(format.String(), "\n"),
		"{{TEXT}}", text,
	).Replace(parametersTemplate)
}

func missingParameters(p *jobs.Posting) bool {
	for _, v := range []string{p.Commitment, p.Location, p.MaxHourlyRate, p.Start, p.End, p.Deadline} {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return p.Submitter == nil
}

func applyParameters(p *jobs.Posting, params postingParameters) {
	setIfEmpty(&p.Commitment, params.Commitment)
	setIfEmpty(&p.Location, params.Location)
	setIfEmpty(&p.MaxHourlyRate, params.MaxHourlyRate)
	setIfEmpty(&p.Start, params.Start)
	setIfEmpty(&p.End, params.End)
	setIfEmpty(&p.Deadline, params.Deadline)

	if p.Submitter == nil && (params.SubmitterName != "" || params.SubmitterEmail != "") {
		p.Submitter = &jobs.Contact{
			Name:  params.SubmitterName,
			Phone: params.SubmitterPhone,
			Email: params.SubmitterEmail,
		}
	}
}

func setIfEmpty(dst *string, value string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = value
	}
}
