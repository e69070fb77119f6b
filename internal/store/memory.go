package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/jobs"
)

type jobRow struct {
	job          jobs.Posting
	contactID    string
	assignmentID string
}

type matchKey struct {
	jobID       string
	candidateID string
}

// Memory keeps the tables in maps. It is used for dry runs and tests.
type Memory struct {
	mu          sync.RWMutex
	jobs        map[string]jobRow
	jobOrder    []string
	contacts    map[string]jobs.Contact
	assignments map[string]jobs.Assignment
	candidates  map[string]candidates.Profile
	matches     map[matchKey]string
	matchOrder  []matchKey
}

func NewMemory() *Memory {
	return &Memory{
		jobs:        make(map[string]jobRow),
		contacts:    make(map[string]jobs.Contact),
		assignments: make(map[string]jobs.Assignment),
		candidates:  make(map[string]candidates.Profile),
		matches:     make(map[matchKey]string),
	}
}

// Stats are the row counts per table.
type Stats struct {
	Jobs        int
	Contacts    int
	Assignments int
	Candidates  int
	Matches     int
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Jobs:        len(m.jobs),
		Contacts:    len(m.contacts),
		Assignments: len(m.assignments),
		Candidates:  len(m.candidates),
		Matches:     len(m.matches),
	}
}

func (m *Memory) UpsertJob(_ context.Context, job *jobs.Posting) error {
	if job == nil || job.ID == "" {
		return &PersistenceError{Op: "upsert job", Err: errors.New("job id is required")}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := jobRow{job: *job}
	row.job.Candidates = nil
	row.job.Submitter = nil

	if job.Submitter != nil {
		row.contactID = job.Submitter.ID()
		if _, ok := m.contacts[row.contactID]; !ok {
			m.contacts[row.contactID] = *job.Submitter
		}
	}

	if !job.Assignment.IsEmpty() {
		row.assignmentID = job.Assignment.ID()
		if _, ok := m.assignments[row.assignmentID]; !ok {
			m.assignments[row.assignmentID] = job.Assignment
		}
	}

	if _, ok := m.jobs[job.ID]; !ok {
		m.jobOrder = append(m.jobOrder, job.ID)
	}
	m.jobs[job.ID] = row
	return nil
}

func (m *Memory) UpsertCandidate(_ context.Context, candidate *candidates.Profile) error {
	if candidate == nil || candidate.ID == "" {
		return &PersistenceError{Op: "upsert candidate", Err: errors.New("candidate id is required")}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := *candidate
	row.Matches = nil
	m.candidates[candidate.ID] = row
	return nil
}

func (m *Memory) EnsureMatch(_ context.Context, jobID, candidateID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := matchKey{jobID: jobID, candidateID: candidateID}
	if _, ok := m.matches[key]; ok {
		return nil
	}
	return m.insertMatch(key, "")
}

func (m *Memory) UpsertMatch(_ context.Context, jobID, candidateID, motivation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := matchKey{jobID: jobID, candidateID: candidateID}
	if _, ok := m.matches[key]; ok {
		m.matches[key] = motivation
		return nil
	}
	return m.insertMatch(key, motivation)
}

func (m *Memory) insertMatch(key matchKey, motivation string) error {
	if _, ok := m.jobs[key.jobID]; !ok {
		return &PersistenceError{Op: "upsert match", Err: errors.New("unknown job " + key.jobID)}
	}
	if _, ok := m.candidates[key.candidateID]; !ok {
		return &PersistenceError{Op: "upsert match", Err: errors.New("unknown candidate " + key.candidateID)}
	}
	m.matches[key] = motivation
	m.matchOrder = append(m.matchOrder, key)
	return nil
}

func (m *Memory) MatchesForJob(_ context.Context, jobID string) ([]*candidates.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*candidates.Profile, 0)
	for _, key := range m.matchOrder {
		if key.jobID != jobID {
			continue
		}
		row, ok := m.candidates[key.candidateID]
		if !ok {
			continue
		}
		profile := row
		result = append(result, &profile)
	}
	return result, nil
}

func (m *Memory) Motivation(_ context.Context, jobID, candidateID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	motivation, ok := m.matches[matchKey{jobID: jobID, candidateID: candidateID}]
	return motivation, ok, nil
}

func (m *Memory) Job(_ context.Context, id string) (*jobs.Posting, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return m.hydrate(row), true, nil
}

func (m *Memory) ListJobs(_ context.Context) ([]*jobs.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*jobs.Posting, 0, len(m.jobOrder))
	for _, id := range m.jobOrder {
		result = append(result, m.hydrate(m.jobs[id]))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Company < result[j].Company
	})
	return result, nil
}

// Records returns every association in insertion order.
func (m *Memory) Records() []MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]MatchRecord, 0, len(m.matchOrder))
	for _, key := range m.matchOrder {
		records = append(records, MatchRecord{JobID: key.jobID, CandidateID: key.candidateID, Motivation: m.matches[key]})
	}
	return records
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) hydrate(row jobRow) *jobs.Posting {
	job := row.job
	if row.contactID != "" {
		contact := m.contacts[row.contactID]
		job.Submitter = &contact
	}
	if row.assignmentID != "" {
		job.Assignment = m.assignments[row.assignmentID]
	}
	return &job
}
