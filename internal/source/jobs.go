package source

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/strivebot/internal/jobs"
)

type jobRecord struct {
	URL           string        `yaml:"url"`
	Position      string        `yaml:"position"`
	Company       string        `yaml:"company"`
	Status        string        `yaml:"status"`
	Description   string        `yaml:"description"`
	Requirements  string        `yaml:"requirements"`
	Preferences   string        `yaml:"preferences"`
	Skills        string        `yaml:"skills"`
	Commitment    string        `yaml:"commitment"`
	Location      string        `yaml:"location"`
	MaxHourlyRate string        `yaml:"max-hourly-rate"`
	Start         string        `yaml:"start"`
	End           string        `yaml:"end"`
	Deadline      string        `yaml:"deadline"`
	Submitter     *jobs.Contact `yaml:"submitter"`
}

type jobFile struct {
	Jobs []jobRecord `yaml:"jobs"`
}

// JobFile reads postings from a YAML document, either a bare list or a
// mapping with a "jobs" key.
type JobFile struct {
	Location string
	reader   *Reader
	logger   *zap.Logger
}

func NewJobFile(location string, reader *Reader, logger *zap.Logger) *JobFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		reader = NewReader(logger)
	}
	return &JobFile{Location: location, reader: reader, logger: logger}
}

func (f *JobFile) Jobs(ctx context.Context) (*jobs.Postings, error) {
	body, err := f.reader.Open(ctx, f.Location)
	if err != nil {
		return nil, &DataSourceError{Source: f.Location, Err: err}
	}
	defer body.Close()

	postings, err := ParseJobs(f.Location, body)
	if err != nil {
		return nil, err
	}

	if dropped := postings.Dedup(); len(dropped) > 0 {
		f.logger.Info("dropping duplicated postings", zap.Strings("job_ids", dropped))
	}

	f.logger.Info("loaded postings", zap.String("source", f.Location), zap.Int("count", postings.Len()))
	return postings, nil
}

func ParseJobs(name string, r io.Reader) (*jobs.Postings, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return &jobs.Postings{}, nil
		}
		return nil, &DataSourceError{Source: name, Err: err}
	}

	var records []jobRecord
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&records); err != nil {
			return nil, &DataSourceError{Source: name, Err: err}
		}
	default:
		var file jobFile
		if err := doc.Decode(&file); err != nil {
			return nil, &DataSourceError{Source: name, Err: err}
		}
		records = file.Jobs
	}

	postings := &jobs.Postings{Items: make([]*jobs.Posting, 0, len(records))}
	for i, rec := range records {
		var missing []string
		if strings.TrimSpace(rec.Position) == "" {
			missing = append(missing, "position")
		}
		if strings.TrimSpace(rec.Company) == "" {
			missing = append(missing, "company")
		}
		if len(missing) > 0 {
			return nil, &DataSourceError{Source: name, Row: i + 1, Missing: missing}
		}

		postings.Items = append(postings.Items, rec.posting())
	}

	return postings, nil
}

func (r jobRecord) posting() *jobs.Posting {
	p := jobs.NewPosting(r.Position, r.Company)
	p.URL = strings.TrimSpace(r.URL)
	p.Status = strings.TrimSpace(r.Status)
	p.Description = strings.TrimSpace(r.Description)
	p.Commitment = strings.TrimSpace(r.Commitment)
	p.Location = strings.TrimSpace(r.Location)
	p.MaxHourlyRate = strings.TrimSpace(r.MaxHourlyRate)
	p.Start = strings.TrimSpace(r.Start)
	p.End = strings.TrimSpace(r.End)
	p.Deadline = strings.TrimSpace(r.Deadline)
	p.Assignment = jobs.Assignment{
		Requirements: strings.TrimSpace(r.Requirements),
		Preferences:  strings.TrimSpace(r.Preferences),
		Skills:       strings.TrimSpace(r.Skills),
	}

	if r.Submitter != nil && (r.Submitter.Name != "" || r.Submitter.Email != "" || r.Submitter.Phone != "") {
		submitter := *r.Submitter
		p.Submitter = &submitter
	}
	return p
}
