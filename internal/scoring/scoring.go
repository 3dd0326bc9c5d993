// Package scoring produces the numeric fit score that gates document
// generation.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/pii"
	"github.com/applypilot/applypilot/internal/tailoring"
	"github.com/applypilot/applypilot/internal/util"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// FitScore is the scoring verdict for one job. The threshold active when the
// score was computed travels with it so tracked outcomes stay interpretable
// after configuration changes.
type FitScore struct {
	JobID     string
	Value     float64
	Threshold float64
	Gaps      []string
	Notes     string
}

// Meets reports whether the score clears its own threshold. Scores exactly
// at the threshold generate.
func (s FitScore) Meets() bool { return s.Value >= s.Threshold }

// Scorer invokes the AI scoring capability.
type Scorer struct {
	generator ai.Generator
	threshold float64
	logger    *zap.Logger
	maxLogLen int
}

// New creates a scorer with the threshold fixed for the whole run.
func New(generator ai.Generator, threshold float64, logger *zap.Logger) *Scorer {
	return &Scorer{
		generator: generator,
		threshold: threshold,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
	}
}

func (s *Scorer) Threshold() float64 { return s.threshold }

// Score evaluates the tailored resume against the job description. Contact
// details are masked before the resume text leaves the process; the verdict
// is numeric, so nothing needs restoring.
func (s *Scorer) Score(ctx context.Context, content *tailoring.Content, jobDescription string) (FitScore, error) {
	resumeText, _ := pii.Sanitize(content.ResumeText)

	prompt := strings.ReplaceAll(promptTemplate, "{{JOB_DESCRIPTION}}", jobDescription)
	prompt = strings.ReplaceAll(prompt, "{{TAILORED_RESUME}}", resumeText)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return FitScore{}, fmt.Errorf("scoring job %s: %w", content.JobID, err)
	}

	s.logger.Debug("scoring response",
		zap.String("job_id", content.JobID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, s.maxLogLen)),
	)

	score, err := parseResponse(raw)
	if err != nil {
		return FitScore{}, fmt.Errorf("scoring job %s: %w", content.JobID, err)
	}

	score.JobID = content.JobID
	score.Threshold = s.threshold

	s.logger.Info("job fit scored",
		zap.String("job_id", content.JobID),
		zap.Float64("score", score.Value),
		zap.Float64("threshold", s.threshold),
	)

	return score, nil
}

func parseResponse(raw string) (FitScore, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		// Some models wrap or narrate; salvage a bare score before
		// giving up.
		if value, ok := salvageScore(raw); ok {
			return FitScore{Value: clamp(value)}, nil
		}
		return FitScore{}, fmt.Errorf("parse scoring response: %w", err)
	}

	value := coerceFloat(data["score"])
	if math.IsNaN(value) {
		return FitScore{}, fmt.Errorf("scoring response has no usable score")
	}

	return FitScore{
		Value: clamp(value),
		Gaps:  coerceStrings(data["gaps"]),
		Notes: coerceString(data["notes"]),
	}, nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

var scoreRe = regexp.MustCompile(`(?i)score[^0-9]{0,5}(\d+(?:\.\d+)?)`)

func salvageScore(raw string) (float64, bool) {
	m := scoreRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")

	// Narrow to the outermost object when the model narrates around it.
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}

func coerceStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
