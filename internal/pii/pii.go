// Package pii substitutes placeholders for candidate contact details before
// text is sent to an AI provider, and restores them in the response. The
// provider only ever sees tokens like [CANDIDATE_EMAIL].
package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Mapping records which original value each placeholder stands for, so a
// response can be restored after the AI call returns.
type Mapping map[string]string

var detectors = []struct {
	label string
	re    *regexp.Regexp
}{
	{"CANDIDATE_EMAIL", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"CANDIDATE_PHONE", regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)},
	{"POSTAL_CODE", regexp.MustCompile(`\b\d{5}(-\d{4})?\b|\b[A-Z]\d[A-Z]\s?\d[A-Z]\d\b`)},
}

// Sanitize replaces every detected email, phone number, and postal code with
// a placeholder and returns the mapping needed to undo the substitution.
// Repeated occurrences of the same value share one placeholder; distinct
// values of the same kind get numbered ones.
func Sanitize(text string) (string, Mapping) {
	mapping := Mapping{}

	for _, d := range detectors {
		seen := map[string]string{} // value -> placeholder
		for _, match := range d.re.FindAllString(text, -1) {
			if _, ok := seen[match]; ok {
				continue
			}
			placeholder := fmt.Sprintf("[%s]", d.label)
			if n := len(seen); n > 0 {
				placeholder = fmt.Sprintf("[%s_%d]", d.label, n+1)
			}
			seen[match] = placeholder
			mapping[placeholder] = match
		}
		// Longer values first, so a value that is a substring of another
		// never corrupts the longer one's replacement.
		values := make([]string, 0, len(seen))
		for value := range seen {
			values = append(values, value)
		}
		sort.Slice(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })
		for _, value := range values {
			text = strings.ReplaceAll(text, value, seen[value])
		}
	}

	return text, mapping
}

// Restore swaps placeholders back for their original values. Placeholders
// the mapping does not know are left alone.
func Restore(text string, mapping Mapping) string {
	for placeholder, value := range mapping {
		text = strings.ReplaceAll(text, placeholder, value)
	}
	return text
}
