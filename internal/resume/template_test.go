package resume

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTemplate = `Ada Obi
ada@example.com | +234-000

SUMMARY
Experienced engineer with a focus on backend systems.

EXPERIENCE
Acme Corp - Engineer (2020-2024)
- Built services.

SKILLS
Go, SQL, Docker

EDUCATION
BSc Computer Science
`

func TestParseSections(t *testing.T) {
	tpl := Parse(sampleTemplate)

	require.Len(t, tpl.Sections, 4)
	assert.Equal(t, "Ada Obi\nada@example.com | +234-000", tpl.Preamble)
	assert.Contains(t, tpl.Section(SectionSummary), "backend systems")
	assert.Contains(t, tpl.Section(SectionExperience), "Acme Corp")
	assert.Contains(t, tpl.Section("SKILLS"), "Go, SQL")
}

func TestWithTailoredReplacesOnlyEligibleSections(t *testing.T) {
	tpl := Parse(sampleTemplate)

	out := tpl.WithTailored("New summary.", "New experience bullet.")

	assert.Contains(t, out, "New summary.")
	assert.Contains(t, out, "New experience bullet.")
	assert.NotContains(t, out, "backend systems")
	// Untouched sections pass through.
	assert.Contains(t, out, "Go, SQL, Docker")
	assert.Contains(t, out, "BSc Computer Science")
	assert.Contains(t, out, "Ada Obi")
	// Order is preserved.
	assert.Less(t, strings.Index(out, "SUMMARY"), strings.Index(out, "SKILLS"))
}
