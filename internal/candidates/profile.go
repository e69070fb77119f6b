// Package candidates keeps the in-memory pool of candidate profiles.
package candidates

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/strivebot/internal/identity"
)

// Match links a profile to a job with the letter written for it.
type Match struct {
	JobID      string `json:"job_id"`
	Motivation string `json:"motivation,omitempty"`
}

type Profile struct {
	ID           string `json:"id" mapstructure:"-"`
	Name         string `json:"name" mapstructure:"name"`
	Interests    string `json:"interests,omitempty" mapstructure:"interests"`
	Experience   string `json:"experience,omitempty" mapstructure:"experience"`
	Skills       string `json:"skills,omitempty" mapstructure:"skills"`
	Education    string `json:"education,omitempty" mapstructure:"education"`
	Summary      string `json:"profile,omitempty" mapstructure:"profile"`
	Certificates string `json:"certificates,omitempty" mapstructure:"certifications"`

	Matches []Match `json:"matches,omitempty" mapstructure:"-"`
}

// NewProfile returns an empty profile with its id derived from name.
func NewProfile(name string) *Profile {
	p := &Profile{Name: strings.TrimSpace(name)}
	p.ID = identity.DeriveID(p.Name)
	return p
}

// Describe renders the profile as a prompt stanza.
func (p *Profile) Describe() string {
	var b strings.Builder
	b.WriteString("-------------------\n")
	fmt.Fprintf(&b, "Profile Details for %s\n", p.Name)
	fmt.Fprintf(&b, "Skills: %s\n", p.Skills)
	fmt.Fprintf(&b, "Experience: %s\n", p.Experience)
	fmt.Fprintf(&b, "Interests: %s\n", p.Interests)
	fmt.Fprintf(&b, "Education: %s\n", p.Education)
	fmt.Fprintf(&b, "Profile: %s\n", p.Summary)
	fmt.Fprintf(&b, "Certificates: %s\n", p.Certificates)
	return b.String()
}

// SkillSet returns the tokens of the profile's skill list.
func (p *Profile) SkillSet() map[string]struct{} {
	return SplitSkills(p.Skills)
}

// SplitSkills lowercases the words of a free-text skill list, keeping symbols
// such as "+" and "#" so C++ and C# stay distinct.
func SplitSkills(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.')
	}) {
		word = strings.Trim(word, ".")
		if utf8.RuneCountInString(word) < 2 && word != "c" && word != "r" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens[word] = struct{}{}
	}
	return tokens
}

var stopWords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "of": {}, "in": {}, "with": {}, "for": {},
	"experience": {}, "knowledge": {}, "skills": {}, "years": {}, "good": {}, "strong": {},
}

func (p *Profile) match(jobID string) int {
	for i, m := range p.Matches {
		if m.JobID == jobID {
			return i
		}
	}
	return -1
}

func (p *Profile) clone() *Profile {
	c := *p
	c.Matches = append([]Match(nil), p.Matches...)
	return &c
}
