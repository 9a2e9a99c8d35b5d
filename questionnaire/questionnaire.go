// ABOUTME: Questionnaire template source keyed by service category
// ABOUTME: Loads templates from YAML and extracts their question lines
package questionnaire

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source returns the questionnaire text for a service category.
type Source interface {
	GetTemplate(category string) (string, bool)
}

// Templates is an in-memory Source with case-insensitive lookup.
type Templates struct {
	byKey map[string]string
	names map[string]string
}

type file struct {
	Categories map[string]string `yaml:"categories"`
}

// New builds templates from a category to text map.
func New(templates map[string]string) *Templates {
	t := &Templates{byKey: make(map[string]string), names: make(map[string]string)}
	for name, text := range templates {
		key := normalize(name)
		t.byKey[key] = text
		t.names[key] = strings.TrimSpace(name)
	}
	return t
}

// Parse reads a YAML document of the form
//
//	categories:
//	  Estate Planning: |
//	    1. What assets do you own?
func Parse(data []byte) (*Templates, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse questionnaire templates: %w", err)
	}
	return New(f.Categories), nil
}

// Load reads templates from a YAML file. A missing file yields no templates.
func Load(path string) (*Templates, error) {
	if path == "" {
		return New(nil), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire templates: %w", err)
	}
	return Parse(data)
}

// GetTemplate returns the template of a category, ignoring case and spacing.
func (t *Templates) GetTemplate(category string) (string, bool) {
	if t == nil {
		return "", false
	}
	text, ok := t.byKey[normalize(category)]
	return text, ok
}

// Categories returns the configured category names, sorted.
func (t *Templates) Categories() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.names))
	for _, n := range t.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

var (
	numberedPattern = regexp.MustCompile(`^(?:\(?\d{1,2}[.):]|[-*•])\s+(.+)$`)
	headingPattern  = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
)

// Questions returns the question-like lines of a template: lines ending in
// "?" and numbered or heading lines, with their markers removed.
func Questions(template string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range strings.Split(template, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		q := ""
		switch {
		case numberedPattern.MatchString(line):
			q = numberedPattern.FindStringSubmatch(line)[1]
		case headingPattern.MatchString(line):
			q = headingPattern.FindStringSubmatch(line)[1]
		case strings.HasSuffix(line, "?"):
			q = line
		}

		q = strings.TrimSpace(strings.Trim(q, "*_"))
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
	}
	return out
}

// QuestionsFor collects the questions of every known category, in order.
func QuestionsFor(src Source, categories []string) []string {
	if src == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, c := range categories {
		text, ok := src.GetTemplate(c)
		if !ok {
			continue
		}
		for _, q := range Questions(text) {
			if !seen[strings.ToLower(q)] {
				seen[strings.ToLower(q)] = true
				out = append(out, q)
			}
		}
	}
	return out
}
