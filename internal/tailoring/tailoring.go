// Package tailoring rewrites the Summary and Experience sections of a base
// resume against a specific job, and drafts the cover letter.
package tailoring

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/job"
	"github.com/applypilot/applypilot/internal/keywords"
	"github.com/applypilot/applypilot/internal/pii"
	"github.com/applypilot/applypilot/internal/resume"
	"github.com/applypilot/applypilot/internal/util"
)

//go:embed prompt.md
var promptTemplate string

const (
	summaryMarker     = "=== SUMMARY ==="
	experienceMarker  = "=== EXPERIENCE ==="
	coverLetterMarker = "=== COVER LETTER ==="

	defaultMaxLogLength = 200
)

// Content is the tailoring output for one job. It supersedes, never
// mutates, any content produced by an earlier run for the same job.
type Content struct {
	JobID        string
	RoleCategory string
	Summary      string
	Experience   string
	CoverLetter  string
	ResumeText   string
}

// Tailor drives the AI rewrite. Retry policy lives in the generator; a
// structurally invalid response here is a hard failure the orchestrator
// converts into an error outcome.
type Tailor struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func New(generator ai.Generator, logger *zap.Logger) *Tailor {
	return &Tailor{generator: generator, logger: logger, maxLogLen: defaultMaxLogLength}
}

// Run produces tailored content for the job from its base template. Contact
// details in the base resume are replaced with placeholders before the prompt
// leaves the process and restored in the parsed response.
func (t *Tailor) Run(ctx context.Context, rec *job.Record, category string, tpl *resume.Template) (*Content, error) {
	prompt, mapping := buildPrompt(rec, category, tpl)

	t.logger.Debug("tailoring request",
		zap.String("job_id", rec.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.Int("pii_placeholders", len(mapping)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, t.maxLogLen)),
	)

	raw, err := t.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("tailoring job %s: %w", rec.ID, err)
	}

	t.logger.Debug("tailoring response",
		zap.String("job_id", rec.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, t.maxLogLen)),
	)

	content, err := parseResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("tailoring job %s: %w", rec.ID, err)
	}

	content.Summary = pii.Restore(content.Summary, mapping)
	content.Experience = pii.Restore(content.Experience, mapping)
	content.CoverLetter = pii.Restore(content.CoverLetter, mapping)

	if err := validate(content, tpl); err != nil {
		return nil, fmt.Errorf("tailoring job %s: %w", rec.ID, err)
	}

	content.JobID = rec.ID
	content.RoleCategory = category
	content.ResumeText = tpl.WithTailored(content.Summary, content.Experience)

	return content, nil
}

func buildPrompt(rec *job.Record, category string, tpl *resume.Template) (string, pii.Mapping) {
	sections := fmt.Sprintf("%s\n%s\n\n%s\n%s",
		resume.SectionSummary, tpl.Section(resume.SectionSummary),
		resume.SectionExperience, tpl.Section(resume.SectionExperience),
	)
	sections, mapping := pii.Sanitize(sections)

	terms := keywords.Extract(rec.Description, keywords.DefaultLimit)
	termLine := "(none detected)"
	if len(terms) > 0 {
		termLine = strings.Join(terms, ", ")
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{ROLE_CATEGORY}}", category)
	prompt = strings.ReplaceAll(prompt, "{{COMPANY_NAME}}", rec.Company)
	prompt = strings.ReplaceAll(prompt, "{{ATS_KEYWORDS}}", termLine)
	prompt = strings.ReplaceAll(prompt, "{{JOB_DESCRIPTION}}", rec.Description)
	prompt = strings.ReplaceAll(prompt, "{{BASE_SECTIONS}}", sections)
	return prompt, mapping
}

func parseResponse(raw string) (*Content, error) {
	summary, rest, ok := cutSection(raw, summaryMarker, experienceMarker)
	if !ok {
		return nil, fmt.Errorf("response missing %s block", summaryMarker)
	}

	experience, rest, ok := cutSection(rest, experienceMarker, coverLetterMarker)
	if !ok {
		return nil, fmt.Errorf("response missing %s block", experienceMarker)
	}

	idx := strings.Index(rest, coverLetterMarker)
	if idx < 0 {
		return nil, fmt.Errorf("response missing %s block", coverLetterMarker)
	}
	coverLetter := strings.TrimSpace(rest[idx+len(coverLetterMarker):])

	return &Content{
		Summary:     strings.TrimSpace(summary),
		Experience:  strings.TrimSpace(experience),
		CoverLetter: coverLetter,
	}, nil
}

func cutSection(raw, start, end string) (body, rest string, ok bool) {
	i := strings.Index(raw, start)
	if i < 0 {
		return "", raw, false
	}
	after := raw[i+len(start):]

	j := strings.Index(after, end)
	if j < 0 {
		return "", raw, false
	}
	return after[:j], after[j:], true
}

// validate enforces the content-preservation floor: every block non-empty
// and the experience structurally similar to the base (same entry count,
// approximated by non-bullet lines).
func validate(c *Content, tpl *resume.Template) error {
	if c.Summary == "" || c.Experience == "" || c.CoverLetter == "" {
		return fmt.Errorf("response contains empty sections")
	}

	baseEntries := entryCount(tpl.Section(resume.SectionExperience))
	gotEntries := entryCount(c.Experience)
	if baseEntries > 0 && gotEntries == 0 {
		return fmt.Errorf("rewritten experience lost all entries")
	}
	if gotEntries > baseEntries {
		return fmt.Errorf("rewritten experience gained entries: base %d, got %d", baseEntries, gotEntries)
	}

	return nil
}

// entryCount counts experience entries, taken as non-empty lines that do not
// start with a bullet.
func entryCount(section string) int {
	count := 0
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•") {
			continue
		}
		count++
	}
	return count
}
