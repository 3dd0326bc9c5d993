// Package pipeline drives a job posting through the full decision chain:
// eligibility, role classification, tailoring, fit scoring, document
// generation, storage, and outcome tracking. Each posting reaches exactly
// one terminal outcome per run.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/applypilot/applypilot/internal/docgen"
	"github.com/applypilot/applypilot/internal/eligibility"
	"github.com/applypilot/applypilot/internal/job"
	"github.com/applypilot/applypilot/internal/resume"
	"github.com/applypilot/applypilot/internal/roles"
	"github.com/applypilot/applypilot/internal/scoring"
	"github.com/applypilot/applypilot/internal/storage"
	"github.com/applypilot/applypilot/internal/tailoring"
	"github.com/applypilot/applypilot/internal/util"
)

const (
	defaultWorkers     = 4
	storageAttempts    = 3
	storageBackoffBase = 500 * time.Millisecond
)

// Collaborator interfaces. The pipeline owns the sequencing; the concrete
// services own the work.
type (
	Classifier interface {
		Classify(ctx context.Context, title string) (roles.Result, error)
	}

	Tailorer interface {
		Run(ctx context.Context, rec *job.Record, category string, tpl *resume.Template) (*tailoring.Content, error)
	}

	Scorer interface {
		Score(ctx context.Context, content *tailoring.Content, jobDescription string) (scoring.FitScore, error)
	}

	DocumentGenerator interface {
		Generate(ctx context.Context, content *tailoring.Content) (*docgen.Artifacts, error)
	}

	OutcomeRecorder interface {
		Record(outcome *job.Outcome) error
	}

	History interface {
		Seen(ctx context.Context, jobID string) (bool, error)
		Record(ctx context.Context, outcome *job.Outcome) error
	}
)

// Templates maps role categories to resume templates, with a fallback for
// categories that do not declare their own.
type Templates struct {
	Default    *resume.Template
	ByCategory map[string]*resume.Template
}

func (t *Templates) For(category string) *resume.Template {
	if tpl, ok := t.ByCategory[category]; ok && tpl != nil {
		return tpl
	}
	return t.Default
}

type Config struct {
	Workers int
	MaxJobs int
	// Force reprocesses jobs that already have a terminal outcome.
	Force bool
}

type Pipeline struct {
	filter     *eligibility.Filter
	classifier Classifier
	tailor     Tailorer
	scorer     Scorer
	docs       DocumentGenerator
	store      storage.Store
	tracker    OutcomeRecorder
	history    History
	templates  *Templates
	cfg        Config
	logger     *zap.Logger
}

func New(
	filter *eligibility.Filter,
	classifier Classifier,
	tailor Tailorer,
	scorer Scorer,
	docs DocumentGenerator,
	store storage.Store,
	tracker OutcomeRecorder,
	history History,
	templates *Templates,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Pipeline{
		filter:     filter,
		classifier: classifier,
		tailor:     tailor,
		scorer:     scorer,
		docs:       docs,
		store:      store,
		tracker:    tracker,
		history:    history,
		templates:  templates,
		cfg:        cfg,
		logger:     logger,
	}
}

// Summary aggregates one run.
type Summary struct {
	RunID     string
	Total     int
	Skipped   int
	Processed int
	Ignored   int
	Rejected  int
	Errors    int
}

// Run pulls postings from the source and processes them concurrently. It
// returns an error when outcome tracking itself fails; per-job failures are
// terminal outcomes, not run failures.
func (p *Pipeline) Run(ctx context.Context, src job.Source) (*Summary, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	records, err := src.Fetch()
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	records = p.prepare(records, logger)

	summary := &Summary{RunID: runID, Total: len(records)}
	logger.Info("run started", zap.Int("jobs", summary.Total), zap.Int("workers", p.cfg.Workers))

	var (
		mu        sync.Mutex
		trackErrs []error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Workers)

	for _, rec := range records {
		rec := rec
		group.Go(func() error {
			skipped, outcome := p.processOne(groupCtx, rec, runID, logger)

			mu.Lock()
			defer mu.Unlock()

			if skipped {
				summary.Skipped++
				return nil
			}

			summary.count(outcome.Status)

			if err := p.tracker.Record(outcome); err != nil {
				logger.Error("outcome tracking failed, aborting run",
					zap.String("job_id", rec.ID), zap.Error(err))
				trackErrs = append(trackErrs, err)
				return err
			}
			if err := p.history.Record(ctx, outcome); err != nil {
				logger.Warn("history update failed", zap.String("job_id", rec.ID), zap.Error(err))
			}
			return nil
		})
	}

	groupErr := group.Wait()
	logger.Info("run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("ignored", summary.Ignored),
		zap.Int("rejected", summary.Rejected),
		zap.Int("errors", summary.Errors),
		zap.Int("skipped", summary.Skipped),
	)

	if len(trackErrs) > 0 {
		return summary, errors.Join(trackErrs...)
	}
	if groupErr != nil && !errors.Is(groupErr, context.Canceled) {
		return summary, groupErr
	}
	return summary, nil
}

// prepare normalizes the batch, drops malformed postings, dedupes by ID and
// applies the job cap.
func (p *Pipeline) prepare(records []*job.Record, logger *zap.Logger) []*job.Record {
	seen := make(map[string]bool, len(records))
	out := make([]*job.Record, 0, len(records))
	for _, rec := range records {
		if !rec.Normalize() {
			logger.Warn("dropping posting with missing fields",
				zap.String("title", rec.Title), zap.String("link", rec.Link))
			continue
		}
		if seen[rec.ID] {
			logger.Debug("duplicate posting in batch", zap.String("job_id", rec.ID))
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
		if p.cfg.MaxJobs > 0 && len(out) >= p.cfg.MaxJobs {
			break
		}
	}
	return out
}

// processOne walks a single posting through the decision chain and returns
// its terminal outcome. The skipped flag is set when the posting already
// has a terminal outcome from an earlier run.
func (p *Pipeline) processOne(ctx context.Context, rec *job.Record, runID string, logger *zap.Logger) (bool, *job.Outcome) {
	logger = logger.With(zap.String("job_id", rec.ID), zap.String("title", rec.Title))

	if !p.cfg.Force {
		seen, err := p.history.Seen(ctx, rec.ID)
		if err != nil {
			logger.Warn("history lookup failed, processing anyway", zap.Error(err))
		} else if seen {
			logger.Debug("already processed, skipping")
			return true, nil
		}
	}

	outcome := p.decide(ctx, rec, runID, logger)
	outcome.Timestamp = time.Now()
	logger.Info("job decided",
		zap.String("status", string(outcome.Status)),
		zap.String("reason", outcome.Reason),
	)
	return false, outcome
}

func (p *Pipeline) decide(ctx context.Context, rec *job.Record, runID string, logger *zap.Logger) *job.Outcome {
	outcome := &job.Outcome{
		JobID:   rec.ID,
		Title:   rec.Title,
		Company: rec.Company,
		Link:    rec.Link,
	}

	if err := ctx.Err(); err != nil {
		return outcome.Fail(job.ReasonCancelled)
	}

	// Eligibility runs before anything that costs an API call.
	decision := p.filter.Decide(rec)
	if !decision.Proceed {
		outcome.Status = job.StatusRejected
		outcome.Reason = decision.Reason
		return outcome
	}

	result, err := p.classifier.Classify(ctx, rec.Title)
	if err != nil {
		logger.Error("classification failed", zap.Error(err))
		return outcome.Fail(job.ReasonClassification)
	}
	if result.Unknown() {
		outcome.Status = job.StatusIgnored
		outcome.Reason = job.ReasonRoleUnknown
		return outcome
	}
	outcome.RoleCategory = result.Category
	outcome.RoleVariation = result.Variation

	content, err := p.tailor.Run(ctx, rec, result.Category, p.templates.For(result.Category))
	if err != nil {
		logger.Error("tailoring failed", zap.Error(err))
		return outcome.Fail(job.ReasonTailoring)
	}

	score, err := p.scorer.Score(ctx, content, rec.Description)
	if err != nil {
		logger.Error("scoring failed", zap.Error(err))
		return outcome.Fail(job.ReasonScoring)
	}
	outcome.FitScore = score.Value
	outcome.HasScore = true
	outcome.Threshold = score.Threshold

	if !score.Meets() {
		outcome.Status = job.StatusIgnored
		outcome.Reason = fmt.Sprintf("fit<%.1f", score.Threshold)
		outcome.Notes = score.Notes
		return outcome
	}

	artifacts, err := p.docs.Generate(ctx, content)
	if err != nil {
		logger.Error("document generation failed", zap.Error(err))
		return outcome.Fail(job.ReasonGeneration)
	}
	artifacts.Files[detailsFileName] = jobDetails(rec, result, score, runID)

	location, err := p.save(ctx, rec, result.Category, artifacts)
	if err != nil {
		logger.Error("storage failed", zap.Error(err))
		return outcome.Fail(job.ReasonStorage)
	}

	// Storage succeeded, so the outcome may now claim "processed".
	outcome.Status = job.StatusProcessed
	outcome.FolderPath = location.Path
	if artifacts.PDFFailed {
		outcome.Notes = "pdf generation failed"
	}
	return outcome
}

// save stores the artifacts with bounded retries. Transient backend errors
// should not burn an otherwise finished application.
func (p *Pipeline) save(ctx context.Context, rec *job.Record, category string, artifacts *docgen.Artifacts) (*storage.Location, error) {
	app := &storage.Application{
		JobID:        rec.ID,
		Company:      rec.Company,
		RoleCategory: category,
		Files:        artifacts.Files,
	}

	var lastErr error
	for attempt := 1; attempt <= storageAttempts; attempt++ {
		location, err := p.store.Save(ctx, app)
		if err == nil {
			return location, nil
		}
		lastErr = err
		if attempt < storageAttempts {
			if waitErr := util.WaitFor(ctx, storageBackoffBase*time.Duration(attempt)); waitErr != nil {
				return nil, waitErr
			}
		}
	}
	return nil, fmt.Errorf("store application after %d attempts: %w", storageAttempts, lastErr)
}

const detailsFileName = "job_details.json"

// jobDetails renders the metadata document stored next to the application
// documents, so a folder is self-describing without the tracker.
func jobDetails(rec *job.Record, result roles.Result, score scoring.FitScore, runID string) []byte {
	details := map[string]any{
		"run_id":         runID,
		"job_id":         rec.ID,
		"source":         rec.Source,
		"title":          rec.Title,
		"company":        rec.Company,
		"location":       rec.Location,
		"link":           rec.Link,
		"role_category":  result.Category,
		"role_variation": result.Variation,
		"fit_score":      score.Value,
		"fit_threshold":  score.Threshold,
		"fit_gaps":       score.Gaps,
		"saved_at":       time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return []byte("{}")
	}
	return data
}

func (s *Summary) count(status job.Status) {
	switch status {
	case job.StatusProcessed:
		s.Processed++
	case job.StatusIgnored:
		s.Ignored++
	case job.StatusRejected:
		s.Rejected++
	default:
		s.Errors++
	}
}
