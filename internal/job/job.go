// Package job defines the records flowing through the application pipeline.
package job

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Record is a single job posting handed to the pipeline by an ingestion
// collaborator. Records are immutable once built.
type Record struct {
	ID          string `json:"job_id"`
	Source      string `json:"source"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Link        string `json:"link"`
}

// Status is the terminal state of a job after one pipeline pass.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusIgnored   Status = "ignored"
	StatusRejected  Status = "rejected"
	StatusError     Status = "error"
)

const (
	ReasonVisaMismatch   = "location/visa mismatch"
	ReasonRoleUnknown    = "role unknown"
	ReasonClassification = "role classification failed"
	ReasonTailoring      = "tailoring failed"
	ReasonScoring        = "scoring failed"
	ReasonGeneration     = "document generation failed"
	ReasonStorage        = "storage failed"
	ReasonCancelled      = "cancelled"
	ReasonMissingFields  = "missing required fields"
)

// Outcome is the authoritative, tracked result of processing one job.
// Exactly one outcome exists per JobID; the tracker enforces that on write.
type Outcome struct {
	JobID         string
	Title         string
	Company       string
	RoleCategory  string
	RoleVariation string
	Link          string
	Status        Status
	Reason        string
	FitScore      float64
	HasScore      bool
	Threshold     float64
	FolderPath    string
	Notes         string
	Timestamp     time.Time
}

// Fail marks the outcome as an error with the given reason and returns it.
func (o *Outcome) Fail(reason string) *Outcome {
	o.Status = StatusError
	o.Reason = reason
	return o
}

// DerivedID returns a stable identifier for a posting. It hashes the source
// and link; postings without a link fall back to a content hash so manual
// input still dedupes across runs.
func DerivedID(source, link, title, company, description string) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(source)))
	h.Write([]byte("\n"))

	if link = strings.TrimSpace(link); link != "" {
		h.Write([]byte(link))
	} else {
		h.Write([]byte(strings.TrimSpace(title)))
		h.Write([]byte("\n"))
		h.Write([]byte(strings.TrimSpace(company)))
		h.Write([]byte("\n"))
		h.Write([]byte(strings.TrimSpace(description)))
	}

	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Normalize fills the ID when the producer did not set one and reports
// whether the record carries enough data to be processed.
func (r *Record) Normalize() bool {
	if r.Source == "" {
		r.Source = "manual"
	}
	if r.ID == "" {
		r.ID = DerivedID(r.Source, r.Link, r.Title, r.Company, r.Description)
	}
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Description) != ""
}
