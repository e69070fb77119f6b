// Package export writes postings to tab-delimited files, one file per posting.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

var Header = []string{
	"Position",
	"Start date",
	"End date",
	"Max. Hourly rate",
	"Hours/week",
	"Location",
	"Deadline",
	"Company",
	"Submitter",
	"Status",
	"Candidate",
	"URL",
	"Description",
}

type Writer struct {
	dir    string
	force  bool
	logger *zap.Logger
}

// NewWriter returns a writer rooted at dir. With force the header is rewritten
// and earlier rows are discarded.
func NewWriter(dir string, force bool, log *zap.Logger) *Writer {
	return &Writer{dir: dir, force: force, logger: logger.WithFields(log)}
}

// FileName is "<position>_<company>.csv" with path separators replaced.
func FileName(job *jobs.Posting) string {
	clean := strings.NewReplacer("/", "-", "\\", "-", string(os.PathSeparator), "-")
	return clean.Replace(job.Position) + "_" + clean.Replace(job.Company) + ".csv"
}

// Row renders a posting in Header order.
func Row(job *jobs.Posting) []string {
	description := job.Assignment.String()
	if job.Assignment.IsEmpty() {
		description = job.Description
	}

	return []string{
		job.Position,
		job.Start,
		job.End,
		job.MaxHourlyRate,
		job.Commitment,
		job.Location,
		job.Deadline,
		job.Company,
		job.Submitter.String(),
		job.Status,
		strings.Join(job.CandidateNames(), ", "),
		job.URL,
		description,
	}
}

// Write appends one row for the posting and returns the file path.
func (w *Writer) Write(job *jobs.Posting) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(w.dir, FileName(job))

	writeHeader := w.force
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		writeHeader = true
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if w.force {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	out := csv.NewWriter(file)
	out.Comma = '\t'

	if writeHeader {
		if err := out.Write(Header); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
	}
	if err := out.Write(Row(job)); err != nil {
		return "", fmt.Errorf("write row: %w", err)
	}
	out.Flush()
	if err := out.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}

	w.logger.Info("posting exported",
		append(logger.JobFields(job.ID, job.Position, job.Company), zap.String("file", path))...,
	)
	return path, nil
}
