// Package resume loads base resume templates and tracks which sections the
// tailoring stage may rewrite.
package resume

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

const (
	SectionSummary    = "SUMMARY"
	SectionExperience = "EXPERIENCE"
)

// headingRe matches section headings in base templates: a short all-caps
// line such as SUMMARY, EXPERIENCE, SKILLS or EDUCATION.
var headingRe = regexp.MustCompile(`^[A-Z][A-Z /&]{2,40}$`)

// Section is one titled block of a resume template.
type Section struct {
	Name string
	Body string
}

// Template is a parsed base resume. Only the Summary and Experience sections
// are eligible for rewriting; everything else passes through unchanged.
type Template struct {
	Path     string
	Preamble string
	Sections []Section
}

// Load reads and parses the template at path.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading base template: %w", err)
	}

	tpl := Parse(string(data))
	tpl.Path = path

	if tpl.Section(SectionSummary) == "" {
		return nil, fmt.Errorf("base template %q has no %s section", path, SectionSummary)
	}
	if tpl.Section(SectionExperience) == "" {
		return nil, fmt.Errorf("base template %q has no %s section", path, SectionExperience)
	}

	return tpl, nil
}

// Parse splits template text into sections on all-caps heading lines. Text
// before the first heading (name, contact lines) becomes the preamble.
func Parse(text string) *Template {
	tpl := &Template{}

	var current *Section
	var buf []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if current == nil {
			tpl.Preamble = body
		} else {
			current.Body = body
			tpl.Sections = append(tpl.Sections, *current)
		}
		buf = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if headingRe.MatchString(trimmed) {
			flush()
			current = &Section{Name: trimmed}
			continue
		}
		buf = append(buf, line)
	}
	flush()

	return tpl
}

// Section returns the body of the named section, or "".
func (t *Template) Section(name string) string {
	for _, s := range t.Sections {
		if strings.EqualFold(s.Name, name) {
			return s.Body
		}
	}
	return ""
}

// WithTailored returns the full resume text with the Summary and Experience
// bodies replaced and every other section untouched, in original order.
func (t *Template) WithTailored(summary, experience string) string {
	var b strings.Builder

	if t.Preamble != "" {
		b.WriteString(t.Preamble)
		b.WriteString("\n\n")
	}

	for _, s := range t.Sections {
		body := s.Body
		switch {
		case strings.EqualFold(s.Name, SectionSummary):
			body = strings.TrimSpace(summary)
		case strings.EqualFold(s.Name, SectionExperience):
			body = strings.TrimSpace(experience)
		}

		b.WriteString(s.Name)
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	return strings.TrimSpace(b.String()) + "\n"
}
