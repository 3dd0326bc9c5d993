package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/tailoring"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func testContent() *tailoring.Content {
	return &tailoring.Content{JobID: "j1", ResumeText: "SUMMARY\nEngineer."}
}

func TestScoreParsesJSON(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 9.0, "gaps": ["Kubernetes"], "notes": "Strong fit"}`}
	scorer := New(stub, 8.5, zap.NewNop())

	score, err := scorer.Score(context.Background(), testContent(), "job description")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if score.Value != 9.0 {
		t.Fatalf("expected score 9.0, got %v", score.Value)
	}
	if score.Threshold != 8.5 {
		t.Fatalf("expected threshold 8.5 attached, got %v", score.Threshold)
	}
	if !score.Meets() {
		t.Fatalf("expected score to meet threshold")
	}
	if len(score.Gaps) != 1 || score.Gaps[0] != "Kubernetes" {
		t.Fatalf("unexpected gaps: %v", score.Gaps)
	}
}

func TestScorePromptMasksContactDetails(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 9.0}`}
	scorer := New(stub, 8.5, zap.NewNop())

	content := testContent()
	content.ResumeText = "SUMMARY\nEngineer. Contact: jane.doe@example.com, 555-123-4567."

	if _, err := scorer.Score(context.Background(), content, "jd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(stub.lastPrompt, "jane.doe@example.com") {
		t.Fatalf("prompt leaked the candidate email")
	}
	if strings.Contains(stub.lastPrompt, "555-123-4567") {
		t.Fatalf("prompt leaked the candidate phone number")
	}
	if !strings.Contains(stub.lastPrompt, "[CANDIDATE_EMAIL]") {
		t.Fatalf("prompt missing email placeholder")
	}
}

func TestScoreExactlyAtThresholdMeets(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 8.5}`}
	scorer := New(stub, 8.5, zap.NewNop())

	score, err := scorer.Score(context.Background(), testContent(), "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !score.Meets() {
		t.Fatalf("score exactly at threshold must meet it")
	}
}

func TestScoreBelowThreshold(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 7.9}`}
	scorer := New(stub, 8.5, zap.NewNop())

	score, err := scorer.Score(context.Background(), testContent(), "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Meets() {
		t.Fatalf("7.9 must not meet 8.5")
	}
}

func TestScoreHandlesFencedJSON(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"score\": \"6.5\", \"notes\": \"ok\"}\n```"}
	scorer := New(stub, 8.5, zap.NewNop())

	score, err := scorer.Score(context.Background(), testContent(), "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Value != 6.5 {
		t.Fatalf("expected 6.5, got %v", score.Value)
	}
}

func TestScoreClampsOutOfRange(t *testing.T) {
	stub := &stubGenerator{response: `{"score": 14}`}
	scorer := New(stub, 8.5, zap.NewNop())

	score, err := scorer.Score(context.Background(), testContent(), "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Value != 10 {
		t.Fatalf("expected clamp to 10, got %v", score.Value)
	}
}

func TestScoreSalvagesNarratedScore(t *testing.T) {
	stub := &stubGenerator{response: "The candidate looks decent. Score: 7.2 out of 10."}
	scorer := New(stub, 8.5, zap.NewNop())

	score, err := scorer.Score(context.Background(), testContent(), "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Value != 7.2 {
		t.Fatalf("expected salvaged 7.2, got %v", score.Value)
	}
}

func TestScoreFailsOnGeneratorError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("boom")}
	scorer := New(stub, 8.5, zap.NewNop())

	if _, err := scorer.Score(context.Background(), testContent(), "jd"); err == nil {
		t.Fatalf("expected error")
	}
}
