// Package store persists jobs, candidates and their matches.
package store

import (
	"context"
	"fmt"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/jobs"
)

// Store is the durable side of the pipeline. Every write is an upsert so
// repeating it with the same state changes nothing.
type Store interface {
	// UpsertJob writes the job together with its submitter and assignment.
	UpsertJob(ctx context.Context, job *jobs.Posting) error
	UpsertCandidate(ctx context.Context, candidate *candidates.Profile) error
	// EnsureMatch creates the association with an empty motivation unless it exists.
	EnsureMatch(ctx context.Context, jobID, candidateID string) error
	// UpsertMatch creates the association or replaces its motivation.
	UpsertMatch(ctx context.Context, jobID, candidateID, motivation string) error

	// MatchesForJob returns the matched candidates of a job. Associations
	// pointing to an unknown candidate are skipped.
	MatchesForJob(ctx context.Context, jobID string) ([]*candidates.Profile, error)
	Motivation(ctx context.Context, jobID, candidateID string) (string, bool, error)
	Job(ctx context.Context, id string) (*jobs.Posting, bool, error)
	ListJobs(ctx context.Context) ([]*jobs.Posting, error)

	Close() error
}

// MatchRecord is a persisted job-candidate association.
type MatchRecord struct {
	JobID       string
	CandidateID string
	Motivation  string
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// LoadJob returns the job with its matched candidates and their letters attached.
func LoadJob(ctx context.Context, s Store, id string) (*jobs.Posting, bool, error) {
	job, ok, err := s.Job(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}

	matched, err := s.MatchesForJob(ctx, id)
	if err != nil {
		return nil, false, err
	}

	for _, candidate := range matched {
		motivation, _, err := s.Motivation(ctx, id, candidate.ID)
		if err != nil {
			return nil, false, err
		}
		job.SetMotivation(candidate, motivation)
	}

	return job, true, nil
}
