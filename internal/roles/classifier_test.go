package roles

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder returns fixed vectors per text so similarity outcomes are
// deterministic.
type stubEmbedder struct {
	vectors map[string][]float32

	mu         sync.Mutex
	calls      int
	batchCalls int
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.batchCalls++
	s.mu.Unlock()
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := s.vectors[t]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, []float32{0, 0, 1})
	}
	return out, nil
}

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubEmbedder) batchCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchCalls
}

func testCatalog() *Catalog {
	return NewCatalog([]Category{
		{Name: "Software Engineer", Variations: []string{"Software Engineer", "Backend Developer", "Full Stack Developer"}, Template: "templates/software_engineer.txt"},
		{Name: "IT Support", Variations: []string{"IT Support", "Help Desk Technician"}, Template: "templates/it_support.txt"},
	})
}

func TestKeywordMatchExactVariation(t *testing.T) {
	c := NewClassifier(testCatalog(), nil, 0.80, zap.NewNop())

	res, err := c.Classify(context.Background(), "Backend Developer")
	require.NoError(t, err)
	assert.Equal(t, "Software Engineer", res.Category)
	assert.Equal(t, "Backend Developer", res.Variation)
	assert.Equal(t, MethodKeyword, res.Method)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestKeywordMatchStripsSeniority(t *testing.T) {
	c := NewClassifier(testCatalog(), nil, 0.80, zap.NewNop())

	res, err := c.Classify(context.Background(), "Senior Software Engineer II")
	require.NoError(t, err)
	assert.Equal(t, "Software Engineer", res.Category)
	assert.Equal(t, MethodKeyword, res.Method)
}

func TestKeywordBeatsSemantic(t *testing.T) {
	// Even with an embedder that would score everything low, an exact
	// keyword match must win without any embedding call.
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	c := NewClassifier(testCatalog(), emb, 0.80, zap.NewNop())

	res, err := c.Classify(context.Background(), "IT Support")
	require.NoError(t, err)
	assert.Equal(t, MethodKeyword, res.Method)
	assert.Zero(t, emb.callCount(), "keyword pass must not call the embedder")
	assert.Zero(t, emb.batchCallCount(), "keyword pass must not embed the catalog")
}

func TestSemanticMatchAboveThreshold(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"platform reliability guru": {1, 0, 0},
		"software engineer":         {0.95, 0.31, 0},
	}}
	c := NewClassifier(testCatalog(), emb, 0.80, zap.NewNop())

	res, err := c.Classify(context.Background(), "Platform Reliability Guru")
	require.NoError(t, err)
	assert.Equal(t, "Software Engineer", res.Category)
	assert.Equal(t, MethodSemantic, res.Method)
	assert.GreaterOrEqual(t, res.Similarity, 0.80)
	assert.Equal(t, res.Similarity, res.Confidence)
}

func TestSemanticBelowThresholdIsUnknown(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"pastry chef": {0, 1, 0},
	}}
	c := NewClassifier(testCatalog(), emb, 0.80, zap.NewNop())

	res, err := c.Classify(context.Background(), "Pastry Chef")
	require.NoError(t, err)
	assert.True(t, res.Unknown())
	assert.Equal(t, MethodNone, res.Method)
}

func TestClassifyIsIdempotent(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"platform reliability guru": {1, 0, 0},
		"software engineer":         {0.95, 0.31, 0},
	}}
	c := NewClassifier(testCatalog(), emb, 0.80, zap.NewNop())

	first, err := c.Classify(context.Background(), "Platform Reliability Guru")
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), "Platform Reliability Guru")
	require.NoError(t, err)

	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Method, second.Method)
}

func TestConcurrentClassifyEmbedsCatalogOnce(t *testing.T) {
	// A single classifier is shared across pipeline workers, so concurrent
	// semantic passes must not race on the vector cache or issue duplicate
	// batch requests.
	emb := &stubEmbedder{vectors: map[string][]float32{
		"platform reliability guru": {1, 0, 0},
		"software engineer":         {0.95, 0.31, 0},
	}}
	c := NewClassifier(testCatalog(), emb, 0.80, zap.NewNop())

	const workers = 8
	results := make([]Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Classify(context.Background(), "Platform Reliability Guru")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "Software Engineer", results[i].Category)
		assert.Equal(t, MethodSemantic, results[i].Method)
	}
	assert.Equal(t, 1, emb.batchCallCount(), "catalog must be embedded exactly once")
}

func TestParseCategories(t *testing.T) {
	raw := []any{
		map[string]any{
			"name":       "Data Analyst",
			"variations": []any{"Data Analyst", "BI Analyst"},
			"template":   "templates/data_analyst.txt",
		},
	}

	cats, err := ParseCategories(raw)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Data Analyst", cats[0].Name)
	assert.Equal(t, []string{"Data Analyst", "BI Analyst"}, cats[0].Variations)
}

func TestParseCategoriesRequiresName(t *testing.T) {
	_, err := ParseCategories([]any{map[string]any{"variations": []any{"x"}}})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity(nil, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}
