// Package jobs holds the normalized job postings the pipeline works on.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/identity"
)

const (
	PostingIDField      = "ID"
	PostingCompanyField = "Company"
	PostingStatusField  = "Status"
)

// Contact is the person who submitted a posting.
type Contact struct {
	Name  string `json:"name,omitempty" yaml:"name"`
	Phone string `json:"phone,omitempty" yaml:"phone"`
	Email string `json:"email,omitempty" yaml:"email"`
}

// ID keys a contact by email, falling back to the name.
func (c *Contact) ID() string {
	if c == nil {
		return ""
	}
	if email := strings.ToLower(strings.TrimSpace(c.Email)); email != "" {
		return identity.DeriveID(email)
	}
	return identity.DeriveID(strings.TrimSpace(c.Name))
}

func (c *Contact) String() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Name, c.Phone, c.Email} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Assignment is the categorized breakdown of a posting description.
type Assignment struct {
	Requirements string `json:"requirements,omitempty"`
	Preferences  string `json:"preferences,omitempty"`
	Skills       string `json:"skills,omitempty"`
}

// ID derives the assignment id from its content so equal assignments share one row.
func (a Assignment) ID() string {
	return identity.DeriveID(a.Requirements + "\n" + a.Preferences + "\n" + a.Skills)
}

func (a Assignment) IsEmpty() bool {
	return strings.TrimSpace(a.Requirements) == "" &&
		strings.TrimSpace(a.Preferences) == "" &&
		strings.TrimSpace(a.Skills) == ""
}

func (a Assignment) String() string {
	return fmt.Sprintf("Requirements: %s\nPreferences: %s\nSkills: %s", a.Requirements, a.Preferences, a.Skills)
}

// Candidate is a profile matched to a posting with its motivation letter.
type Candidate struct {
	Profile    *candidates.Profile `json:"profile"`
	Motivation string              `json:"motivation,omitempty"`
}

type Posting struct {
	ID            string      `json:"id"`
	URL           string      `json:"url,omitempty"`
	Position      string      `json:"position"`
	Company       string      `json:"company"`
	Commitment    string      `json:"commitment,omitempty"`
	Location      string      `json:"location,omitempty"`
	MaxHourlyRate string      `json:"max_hourly_rate,omitempty"`
	Start         string      `json:"start,omitempty"`
	End           string      `json:"end,omitempty"`
	Deadline      string      `json:"deadline,omitempty"`
	Status        string      `json:"status,omitempty"`
	Description   string      `json:"description,omitempty"`
	Submitter     *Contact    `json:"submitter,omitempty"`
	Assignment    Assignment  `json:"assignment"`
	Candidates    []Candidate `json:"candidates,omitempty"`
}

// NewPosting returns a posting with its id derived from position and company.
func NewPosting(position, company string) *Posting {
	position = strings.TrimSpace(position)
	company = strings.TrimSpace(company)
	return &Posting{
		ID:       identity.JobID(position, company),
		Position: position,
		Company:  company,
	}
}

// SetMotivation records the letter for a candidate, adding the candidate when
// it is not yet attached. A candidate appears at most once.
func (p *Posting) SetMotivation(profile *candidates.Profile, motivation string) {
	for i := range p.Candidates {
		if p.Candidates[i].Profile != nil && p.Candidates[i].Profile.ID == profile.ID {
			p.Candidates[i].Motivation = motivation
			return
		}
	}
	p.Candidates = append(p.Candidates, Candidate{Profile: profile, Motivation: motivation})
}

// CandidateNames lists the names of attached candidates in match order.
func (p *Posting) CandidateNames() []string {
	names := make([]string, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		if c.Profile != nil {
			names = append(names, c.Profile.Name)
		}
	}
	return names
}

// IsClosed reports whether the source marked the posting as closed.
func (p *Posting) IsClosed() bool {
	status := strings.ToLower(strings.TrimSpace(p.Status))
	return strings.Contains(status, "closed") || strings.Contains(status, "gesloten")
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case PostingIDField:
		return p.ID
	case PostingCompanyField:
		return p.Company
	case PostingStatusField:
		return p.Status
	default:
		return ""
	}
}

type Postings struct {
	Items []*Posting
}

func (p *Postings) Len() int {
	return len(p.Items)
}

func (p *Postings) FindByID(id string) *Posting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

// Exclude removes postings whose field equals one of targets, keeping order.
// The ids of removed postings are returned.
func (p *Postings) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	return p.ExcludeFunc(func(posting *Posting) bool {
		_, ok := set[strings.ToLower(strings.TrimSpace(posting.GetStringField(name)))]
		return ok
	})
}

// ExcludeFunc removes postings for which drop returns true, keeping order.
func (p *Postings) ExcludeFunc(drop func(*Posting) bool) []string {
	var excluded []string
	kept := p.Items[:0]
	for _, posting := range p.Items {
		if drop(posting) {
			excluded = append(excluded, posting.ID)
			continue
		}
		kept = append(kept, posting)
	}
	for i := len(kept); i < len(p.Items); i++ {
		p.Items[i] = nil
	}
	p.Items = kept
	return excluded
}

// Dedup drops postings sharing an id with an earlier one.
func (p *Postings) Dedup() []string {
	seen := make(map[string]struct{}, len(p.Items))
	return p.ExcludeFunc(func(posting *Posting) bool {
		if _, ok := seen[posting.ID]; ok {
			return true
		}
		seen[posting.ID] = struct{}{}
		return false
	})
}

// ReportByCompany groups a short summary of every posting by company.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		report[posting.Company] = append(report[posting.Company], map[string]string{
			"id":         posting.ID,
			"position":   posting.Position,
			"url":        posting.URL,
			"location":   posting.Location,
			"rate":       posting.MaxHourlyRate,
			"deadline":   posting.Deadline,
			"candidates": strings.Join(posting.CandidateNames(), ", "),
		})
	}
	return report
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}
