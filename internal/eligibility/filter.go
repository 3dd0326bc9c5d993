// Package eligibility implements the location and work-permit filter. It is
// the first pipeline stage and performs no external calls.
package eligibility

import (
	"strings"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/job"
)

// Decision is the filter verdict for one job.
type Decision struct {
	Proceed         bool
	Reason          string
	RestrictiveHits []string
	SponsorshipHits []string
}

// Filter decides whether a job is worth spending AI calls on.
type Filter struct {
	applicantCountry string
	restrictive      []string
	sponsorship      []string
	logger           *zap.Logger
}

// Config carries the phrase lists and applicant location. Both lists are
// matched as case-insensitive substrings.
type Config struct {
	ApplicantCountry string   `mapstructure:"applicant-country"`
	RestrictiveTerms []string `mapstructure:"restrictive-terms"`
	SponsorshipTerms []string `mapstructure:"sponsorship-terms"`
}

func New(cfg Config, logger *zap.Logger) *Filter {
	return &Filter{
		applicantCountry: strings.ToLower(strings.TrimSpace(cfg.ApplicantCountry)),
		restrictive:      lowerAll(cfg.RestrictiveTerms),
		sponsorship:      lowerAll(cfg.SponsorshipTerms),
		logger:           logger,
	}
}

// Decide applies the filter policy: same-country jobs always proceed; abroad
// jobs proceed unless the description demands local work authorization
// without offering sponsorship.
func (f *Filter) Decide(rec *job.Record) Decision {
	if f.sameCountry(rec.Location) {
		return Decision{Proceed: true}
	}

	desc := strings.ToLower(rec.Description)
	restrictive := findTerms(desc, f.restrictive)
	if len(restrictive) == 0 {
		return Decision{Proceed: true}
	}

	sponsorship := findTerms(desc, f.sponsorship)
	if len(sponsorship) > 0 {
		f.logger.Debug("restrictive terms countered by sponsorship terms",
			zap.String("job_id", rec.ID),
			zap.Strings("restrictive", restrictive),
			zap.Strings("sponsorship", sponsorship),
		)
		return Decision{Proceed: true, RestrictiveHits: restrictive, SponsorshipHits: sponsorship}
	}

	f.logger.Info("job rejected by eligibility filter",
		zap.String("job_id", rec.ID),
		zap.String("location", rec.Location),
		zap.Strings("restrictive", restrictive),
	)

	return Decision{
		Proceed:         false,
		Reason:          job.ReasonVisaMismatch,
		RestrictiveHits: restrictive,
	}
}

func (f *Filter) sameCountry(location string) bool {
	if f.applicantCountry == "" {
		return false
	}
	return strings.Contains(strings.ToLower(location), f.applicantCountry)
}

func findTerms(text string, terms []string) []string {
	var found []string
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			found = append(found, term)
		}
	}
	return found
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
