package jobs

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

const (
	ExcludeActorUser    = "user"
	ExcludeActorMatcher = "matcher"
)

// ExcludedPostings is the content of an exclude file.
type ExcludedPostings struct {
	Items []*ExcludedPosting
}

type ExcludedPosting struct {
	ID         string
	URL        string
	Position   string
	Company    string
	Actor      string `json:",omitempty"`
	Reason     string `json:",omitempty"`
	ExcludedAt time.Time
}

func (p *Postings) ToExcluded(actor, reason string) *ExcludedPostings {
	excluded := &ExcludedPostings{}
	for _, posting := range p.Items {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			ID:         posting.ID,
			URL:        posting.URL,
			Position:   posting.Position,
			Company:    posting.Company,
			Actor:      actor,
			Reason:     reason,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// GetExcludedPostingsFromFile reads an exclude file. A missing or empty file
// yields an empty list.
func GetExcludedPostingsFromFile(path string) (*ExcludedPostings, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ExcludedPostings{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds entries whose id is not listed yet.
func (e *ExcludedPostings) Append(s *ExcludedPostings) {
	known := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		known[item.ID] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := known[item.ID]; ok {
			continue
		}
		known[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedPostings) PostingIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
