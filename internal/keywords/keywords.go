// Package keywords extracts ATS-relevant terms from job descriptions so the
// tailoring prompt can steer rewrites toward the vocabulary screeners match
// against.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultLimit caps how many terms are surfaced per description.
const DefaultLimit = 20

// Curated term lists. Matching is whole-token and case-insensitive;
// multi-word terms match as phrases.
var technicalTerms = []string{
	// languages
	"python", "java", "javascript", "typescript", "c++", "c#", "php", "ruby",
	"go", "rust", "scala", "kotlin", "swift", "perl", "sql", "html", "css",
	// frameworks and libraries
	"react", "angular", "vue", "node.js", "express", "django", "flask",
	"spring", "rails", "tensorflow", "pytorch", "pandas", "numpy",
	// databases
	"mysql", "postgresql", "mongodb", "redis", "elasticsearch", "oracle",
	"sqlite", "cassandra", "dynamodb", "firebase",
	// cloud and infrastructure
	"aws", "azure", "gcp", "google cloud", "docker", "kubernetes", "jenkins",
	"terraform", "ansible",
	// tooling
	"git", "github", "gitlab", "jira", "linux", "bash", "ci/cd", "rest",
	"graphql", "grpc", "microservices",
}

var softSkillTerms = []string{
	"leadership", "communication", "teamwork", "problem solving",
	"analytical", "project management", "agile", "scrum", "collaboration",
	"mentoring", "critical thinking", "adaptability", "time management",
}

// tokenRe keeps the punctuation that is part of real term spellings (c++,
// c#, node.js, ci/cd) and drops the rest.
var tokenRe = regexp.MustCompile(`[^\w.+#/&-]+`)

type term struct {
	text  string
	count int
	order int
}

// Extract returns up to limit terms found in the description, most frequent
// first. Ties keep list order so output is deterministic. A limit <= 0 falls
// back to DefaultLimit.
func Extract(description string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}

	tokens := tokenize(description)
	if len(tokens) == 0 {
		return nil
	}

	var found []term
	order := 0
	for _, list := range [][]string{technicalTerms, softSkillTerms} {
		for _, t := range list {
			count := countTerm(tokens, strings.Fields(t))
			if count == 0 {
				continue
			}
			found = append(found, term{text: t, count: count, order: order})
			order++
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].count != found[j].count {
			return found[i].count > found[j].count
		}
		return found[i].order < found[j].order
	})

	if len(found) > limit {
		found = found[:limit]
	}

	out := make([]string, 0, len(found))
	for _, f := range found {
		out = append(out, f.text)
	}
	return out
}

func tokenize(text string) []string {
	cleaned := tokenRe.ReplaceAllString(strings.ToLower(text), " ")
	tokens := strings.Fields(cleaned)
	for i, tok := range tokens {
		// A sentence-final "node.js." keeps its inner dot but loses the
		// trailing one.
		tokens[i] = strings.Trim(tok, ".,-")
	}
	return tokens
}

// countTerm counts whole-token occurrences of the phrase in the token
// stream.
func countTerm(tokens, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return 0
	}

	count := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, word := range phrase {
			if tokens[i+j] != word {
				match = false
				break
			}
		}
		if match {
			count++
		}
	}
	return count
}
