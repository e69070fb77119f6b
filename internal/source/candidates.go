package source

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/candidates"
)

// CandidateColumns are the columns every candidate file must have.
var CandidateColumns = []string{"name", "interests", "experience", "skills", "education", "profile", "certifications"}

// CandidateFile reads profiles from a ';' separated file with a header row.
type CandidateFile struct {
	Location string
	reader   *Reader
	logger   *zap.Logger
}

func NewCandidateFile(location string, reader *Reader, logger *zap.Logger) *CandidateFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reader == nil {
		reader = NewReader(logger)
	}
	return &CandidateFile{Location: location, reader: reader, logger: logger}
}

func (f *CandidateFile) Candidates(ctx context.Context) ([]*candidates.Profile, error) {
	body, err := f.reader.Open(ctx, f.Location)
	if err != nil {
		return nil, &DataSourceError{Source: f.Location, Err: err}
	}
	defer body.Close()

	profiles, err := ParseCandidates(f.Location, body)
	if err != nil {
		return nil, err
	}

	f.logger.Info("loaded candidates", zap.String("source", f.Location), zap.Int("count", len(profiles)))
	return profiles, nil
}

// ParseCandidates decodes every row of r into a profile. Any missing column or
// empty name fails the whole file.
func ParseCandidates(name string, r io.Reader) ([]*candidates.Profile, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DataSourceError{Source: name, Err: errors.New("file is empty")}
		}
		return nil, &DataSourceError{Source: name, Err: err}
	}

	columns := make([]string, len(header))
	present := make(map[string]struct{}, len(header))
	for i, col := range header {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		columns[i] = col
		present[col] = struct{}{}
	}

	var missing []string
	for _, col := range CandidateColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &DataSourceError{Source: name, Missing: missing}
	}

	profiles := make([]*candidates.Profile, 0)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataSourceError{Source: name, Row: row, Err: err}
		}

		values := make(map[string]any, len(columns))
		for i, col := range columns {
			values[col] = strings.TrimSpace(record[i])
		}

		if values["name"] == "" {
			return nil, &DataSourceError{Source: name, Row: row, Missing: []string{"name"}}
		}

		profile := &candidates.Profile{}
		if err := mapstructure.Decode(values, profile); err != nil {
			return nil, &DataSourceError{Source: name, Row: row, Err: err}
		}
		profile.ID = candidates.NewProfile(profile.Name).ID

		profiles = append(profiles, profile)
	}

	return profiles, nil
}
