package candidates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrDuplicateName = errors.New("duplicate candidate name")

// Source supplies candidate profiles.
type Source interface {
	Candidates(ctx context.Context) ([]*Profile, error)
}

// Repository holds candidate profiles in insertion order. Profiles are read by
// the matcher and their matches are updated by batch workers, so every access
// goes through the repository lock.
type Repository struct {
	mu       sync.RWMutex
	profiles []*Profile
	byName   map[string]*Profile
	byID     map[string]*Profile
}

func NewRepository() *Repository {
	return &Repository{
		byName: make(map[string]*Profile),
		byID:   make(map[string]*Profile),
	}
}

// Load replaces the pool with the profiles supplied by src. The pool is left
// untouched when src fails or lists the same name twice.
func (r *Repository) Load(ctx context.Context, src Source) error {
	profiles, err := src.Candidates(ctx)
	if err != nil {
		return err
	}

	fresh := NewRepository()
	for _, p := range profiles {
		if err := fresh.Add(p); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles, r.byName, r.byID = fresh.profiles, fresh.byName, fresh.byID
	return nil
}

// Add appends a profile, deriving its id when missing.
func (r *Repository) Add(p *Profile) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return errors.New("candidate name is required")
	}
	if p.ID == "" {
		p.ID = NewProfile(p.Name).ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[p.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
	}

	r.profiles = append(r.profiles, p)
	r.byName[p.Name] = p
	r.byID[p.ID] = p
	return nil
}

// GetByName looks a profile up by its exact, case-sensitive name.
func (r *Repository) GetByName(name string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

func (r *Repository) GetByID(id string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// All returns the profiles in insertion order.
func (r *Repository) All() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Profile(nil), r.profiles...)
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// DescribeAll renders every profile in insertion order. The same pool always
// renders to the same text.
func (r *Repository) DescribeAll() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, p := range r.profiles {
		b.WriteString(p.Describe())
		b.WriteString("\n")
	}
	return b.String()
}

// RecordMatch attaches a job to the candidate. An existing entry for the job
// keeps its position and gets the new motivation.
func (r *Repository) RecordMatch(candidateID, jobID, motivation string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[candidateID]
	if !ok {
		return fmt.Errorf("candidate %s is not loaded", candidateID)
	}

	if idx := p.match(jobID); idx != -1 {
		p.Matches[idx].Motivation = motivation
		return nil
	}

	p.Matches = append(p.Matches, Match{JobID: jobID, Motivation: motivation})
	return nil
}

// UpdateMotivation replaces the letter of an existing match. It reports false
// when the candidate has no match for the job.
func (r *Repository) UpdateMotivation(candidateID, jobID, motivation string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[candidateID]
	if !ok {
		return false
	}

	idx := p.match(jobID)
	if idx == -1 {
		return false
	}

	p.Matches[idx].Motivation = motivation
	return true
}

func (r *Repository) Motivation(candidateID, jobID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[candidateID]
	if !ok {
		return "", false
	}

	idx := p.match(jobID)
	if idx == -1 {
		return "", false
	}
	return p.Matches[idx].Motivation, true
}

// Snapshot returns a copy of the profile that is safe to read while workers
// keep recording matches.
func (r *Repository) Snapshot(candidateID string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[candidateID]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}
