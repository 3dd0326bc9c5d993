package roles

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai"
)

// Method records how a classification was reached.
type Method string

const (
	MethodKeyword  Method = "keyword"
	MethodSemantic Method = "semantic"
	MethodNone     Method = "none"
)

// Result is the classifier output for one title. An empty Category means the
// title matched nothing; the pipeline records such jobs as ignored rather
// than dropping them.
type Result struct {
	Category   string
	Variation  string
	Method     Method
	Similarity float64
	Confidence float64
}

func (r Result) Unknown() bool { return r.Category == "" }

// Classifier resolves titles against the catalog. Keyword matching is free;
// the embedder is only consulted on a keyword miss. One instance is shared
// across pipeline workers, so the vector cache is guarded.
type Classifier struct {
	catalog   *Catalog
	embedder  ai.Embedder
	threshold float64
	logger    *zap.Logger

	variations []variation

	mu      sync.Mutex
	vectors [][]float32 // guarded by mu
}

func NewClassifier(catalog *Catalog, embedder ai.Embedder, threshold float64, logger *zap.Logger) *Classifier {
	return &Classifier{
		catalog:    catalog,
		embedder:   embedder,
		threshold:  threshold,
		logger:     logger,
		variations: catalog.variations(),
	}
}

// Classify runs the keyword pass and, on a miss, the semantic pass.
func (c *Classifier) Classify(ctx context.Context, title string) (Result, error) {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return Result{Method: MethodNone}, nil
	}

	if res, ok := c.keywordMatch(normalized); ok {
		c.logger.Debug("role matched by keyword",
			zap.String("title", title),
			zap.String("category", res.Category),
			zap.String("variation", res.Variation),
		)
		return res, nil
	}

	if c.embedder == nil {
		return Result{Method: MethodNone}, nil
	}

	return c.semanticMatch(ctx, title, normalized)
}

// keywordMatch checks exact then substring matches against every variation
// in configured order. First match wins with confidence 1.0.
func (c *Classifier) keywordMatch(normalized string) (Result, bool) {
	for _, v := range c.variations {
		if normalized == v.normal {
			return Result{Category: v.category, Variation: v.text, Method: MethodKeyword, Confidence: 1.0}, true
		}
	}
	for _, v := range c.variations {
		if strings.Contains(normalized, v.normal) || strings.Contains(v.normal, normalized) {
			return Result{Category: v.category, Variation: v.text, Method: MethodKeyword, Confidence: 1.0}, true
		}
	}
	return Result{}, false
}

func (c *Classifier) semanticMatch(ctx context.Context, title, normalized string) (Result, error) {
	vectors, err := c.variationVectors(ctx)
	if err != nil {
		return Result{}, err
	}

	titleVec, err := c.embedder.EmbedText(ctx, normalized)
	if err != nil {
		return Result{}, fmt.Errorf("embedding title: %w", err)
	}

	bestIdx := -1
	bestScore := -1.0
	tied := false
	for i, vec := range vectors {
		score := CosineSimilarity(titleVec, vec)
		if score > bestScore {
			bestScore = score
			bestIdx = i
			tied = false
		} else if score == bestScore && bestIdx >= 0 && c.variations[i].category != c.variations[bestIdx].category {
			// Equal best across categories: configured order wins.
			tied = true
		}
	}

	if bestIdx < 0 || bestScore < c.threshold {
		c.logger.Debug("no semantic match above threshold",
			zap.String("title", title),
			zap.Float64("best_similarity", bestScore),
			zap.Float64("threshold", c.threshold),
		)
		return Result{Method: MethodNone, Similarity: math.Max(bestScore, 0)}, nil
	}

	best := c.variations[bestIdx]
	if tied {
		c.logger.Warn("ambiguous semantic match, picking first configured category",
			zap.String("title", title),
			zap.String("category", best.category),
			zap.Float64("similarity", bestScore),
		)
	}

	c.logger.Debug("role matched by embedding similarity",
		zap.String("title", title),
		zap.String("category", best.category),
		zap.String("variation", best.text),
		zap.Float64("similarity", bestScore),
	)

	return Result{
		Category:   best.category,
		Variation:  best.text,
		Method:     MethodSemantic,
		Similarity: bestScore,
		Confidence: bestScore,
	}, nil
}

// variationVectors computes variation embeddings on first use and caches
// them. The mutex is held across the embed call so concurrent callers block
// rather than issue duplicate batch requests; a failed batch is retried by
// the next caller.
func (c *Classifier) variationVectors(ctx context.Context) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vectors != nil {
		return c.vectors, nil
	}

	texts := make([]string, 0, len(c.variations))
	for _, v := range c.variations {
		texts = append(texts, v.normal)
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding role variations: %w", err)
	}
	if len(vectors) != len(c.variations) {
		return nil, fmt.Errorf("expected %d variation embeddings, got %d", len(c.variations), len(vectors))
	}

	c.vectors = vectors
	return c.vectors, nil
}

var (
	seniorityPrefixes = []string{"senior ", "sr ", "jr ", "junior ", "lead ", "principal ", "staff "}
	levelSuffixes     = []string{" i", " ii", " iii", " iv", " v"}
	nonWordRe         = regexp.MustCompile(`[^\w\s&+]`)
	spacesRe          = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases a title and strips seniority markers and
// punctuation so keyword matching operates on the role itself.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))

	for _, prefix := range seniorityPrefixes {
		t = strings.TrimPrefix(t, prefix)
	}
	for _, suffix := range levelSuffixes {
		t = strings.TrimSuffix(t, suffix)
	}

	t = nonWordRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(spacesRe.ReplaceAllString(t, " "))
}

// CosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
