// Package extract parses the loosely formatted text returned by the generation
// backend into typed values. None of the parsers fail: lines that do not follow
// the expected format are skipped and whatever could be recognized is returned.
package extract

import (
	"regexp"
	"strings"
)

const (
	CategoryRequirements = "REQUIREMENTS"
	CategoryPreferences  = "PREFERENCES"
	CategorySkills       = "SKILLS"

	// MaxNames is the maximum number of names ParseNameList returns.
	MaxNames = 3
)

// DefaultCategories are the sections a posting description is split into.
var DefaultCategories = []string{CategoryRequirements, CategoryPreferences, CategorySkills}

var (
	numbering = regexp.MustCompile(`^\(?\d+[.)]\s*`)

	noValue = map[string]struct{}{
		"n/a": {}, "na": {}, "none": {}, "null": {}, "nil": {}, "-": {},
		"unknown": {}, "not specified": {}, "not available": {},
	}

	labelWords = map[string]struct{}{
		"candidate": {}, "candidates": {}, "match": {}, "matches": {}, "matching": {},
		"name": {}, "names": {}, "answer": {}, "result": {}, "results": {},
		"selected": {}, "recommended": {}, "best": {}, "top": {},
	}

	noMatch = map[string]struct{}{
		"none": {}, "n/a": {}, "no match": {}, "no matches": {},
		"no candidates": {}, "no candidate": {}, "no suitable candidates": {},
	}
)

// ParseCategorizedText splits text into the default categories.
func ParseCategorizedText(text string) map[string]string {
	return ParseCategories(text, DefaultCategories...)
}

// ParseCategories expects a header line per category followed by lines of
// comma separated items. Items of one category are joined with ", ".
// Categories without a header in text are absent from the result; a header
// without items maps to an empty string.
func ParseCategories(text string, categories ...string) map[string]string {
	known := make(map[string]string, len(categories))
	for _, c := range categories {
		known[strings.ToUpper(strings.TrimSpace(c))] = c
	}

	result := make(map[string]string)
	current := ""

	for _, line := range splitLines(text) {
		if category, rest, ok := matchHeader(line, known); ok {
			current = category
			if _, exists := result[current]; !exists {
				result[current] = ""
			}
			if rest == "" {
				continue
			}
			line = rest
		} else if looksLikeHeader(line) {
			// Unknown section: its lines are ignored until a known header appears.
			current = ""
			continue
		}

		if current == "" {
			continue
		}

		items := splitItems(line)
		if len(items) == 0 {
			continue
		}

		if result[current] != "" {
			result[current] += ", "
		}
		result[current] += strings.Join(items, ", ")
	}

	return result
}

// Parameters holds values extracted from key:value text. A nil value means the
// key was present without a usable value.
type Parameters map[string]*string

// Value returns the value for key and whether a non-empty value is present.
func (p Parameters) Value(key string) (string, bool) {
	v, ok := p[NormalizeKey(key)]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Has reports whether key appeared in the parsed text, with or without a value.
func (p Parameters) Has(key string) bool {
	_, ok := p[NormalizeKey(key)]
	return ok
}

// Strings returns the present values keyed by their normalized key.
func (p Parameters) Strings() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// ParseKeyValueText parses "key:value" lines, splitting on the first colon.
// Lines without a colon are ignored. Blank and placeholder values ("n/a",
// "none", ...) are stored as nil.
func ParseKeyValueText(text string) Parameters {
	params := make(Parameters)

	for _, line := range splitLines(text) {
		idx := strings.Index(line, ":")
		if idx == -1 {
			continue
		}

		key := NormalizeKey(line[:idx])
		if key == "" {
			continue
		}

		value := strings.TrimSpace(strings.Trim(strings.TrimSpace(line[idx+1:]), "*`\""))
		if _, placeholder := noValue[strings.ToLower(value)]; value == "" || placeholder {
			params[key] = nil
			continue
		}

		params[key] = &value
	}

	return params
}

// NormalizeKey lowercases key and replaces spaces and dashes with underscores.
func NormalizeKey(key string) string {
	key = trimBullet(key)
	key = strings.Trim(key, "*_` ")
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Join(strings.Fields(key), "_")
	return strings.ReplaceAll(key, "-", "_")
}

// ParseNameList extracts up to MaxNames names from a comma or newline separated
// answer, keeping their order and dropping duplicates and "no match" answers.
func ParseNameList(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})

	names := make([]string, 0, MaxNames)
	seen := make(map[string]struct{}, MaxNames)

	for _, part := range parts {
		name := cleanName(part)
		if name == "" {
			continue
		}
		if isRefusal(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		names = append(names, name)
		if len(names) == MaxNames {
			break
		}
	}

	return names
}

// isRefusal matches answers such as "None of the candidates match." or
// "No suitable candidates found." that name nobody.
func isRefusal(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := noMatch[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "no ") || strings.HasPrefix(lower, "none ")
}

// cleanName strips decoration from one list entry. Text before a colon is
// dropped only when it is a label ("Best candidates: Ada"); otherwise the
// name is the part before the colon ("Ada Lovelace: strong fit").
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ":"); idx != -1 {
		if isLabel(s[:idx]) {
			s = s[idx+1:]
		} else {
			s = s[:idx]
		}
	}
	s = trimBullet(s)
	s = numbering.ReplaceAllString(s, "")
	s = strings.Trim(s, "*_`\"' ")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

func isLabel(s string) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if _, ok := labelWords[strings.Trim(word, "*_`\"'")]; ok {
			return true
		}
	}
	return false
}

func matchHeader(line string, known map[string]string) (string, string, bool) {
	head, rest := line, ""
	if idx := strings.Index(line, ":"); idx != -1 {
		head, rest = line[:idx], strings.TrimSpace(line[idx+1:])
	}

	name := strings.ToUpper(strings.Trim(strings.TrimLeft(head, "# "), "*_ "))
	category, ok := known[name]
	if !ok {
		return "", "", false
	}
	return category, rest, true
}

// looksLikeHeader reports an unknown section header: a markdown heading or an
// upper-case label such as "BENEFITS:". Mixed-case labels like "Must have:"
// are sub-labels and stay items of the open section.
func looksLikeHeader(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	if !strings.HasSuffix(line, ":") || strings.Contains(line, ",") {
		return false
	}
	label := strings.TrimSuffix(line, ":")
	return strings.ToUpper(label) == label && strings.ToLower(label) != label
}

func splitItems(line string) []string {
	raw := strings.Split(line, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(trimBullet(item))
		if item == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func trimBullet(s string) string {
	s = strings.TrimSpace(s)
	for _, bullet := range []string{"- ", "• ", "* ", "· ", "•", "·"} {
		if strings.HasPrefix(s, bullet) {
			return strings.TrimSpace(strings.TrimPrefix(s, bullet))
		}
	}
	return s
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
