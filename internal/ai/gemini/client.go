// Package gemini implements the ai capability interfaces on the Google
// GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/applypilot/applypilot/internal/ai"
	"github.com/applypilot/applypilot/internal/util"
)

const (
	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultMaxRetries     = 3
	baseBackoff           = time.Second
)

// Client wraps the GenAI client with the pipeline's bounded retry policy.
// Retries are exhausted inside the client so callers see a single error
// wrapping ai.ErrServiceUnavailable.
type Client struct {
	client         *genai.Client
	modelName      string
	embeddingModel string
	maxRetries     int
	logger         *zap.Logger
}

// Config selects the models and retry budget.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxRetries     int
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		client:         client,
		modelName:      model,
		embeddingModel: embeddingModel,
		maxRetries:     maxRetries,
		logger:         logger,
	}, nil
}

// GenerateContent sends the prompt to Gemini and returns the concatenated
// textual response.
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var output string
	err := c.withRetries(ctx, "generate content", func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt), nil)
		if err != nil {
			return err
		}

		text := collectText(resp)
		if text == "" {
			return errors.New("gemini api returned empty response")
		}

		output = text
		return nil
	})
	if err != nil {
		return "", err
	}

	return output, nil
}

// EmbedText returns the embedding vector for a single text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns embedding vectors for the provided texts in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	var vectors [][]float32
	err := c.withRetries(ctx, "embed content", func() error {
		resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, nil)
		if err != nil {
			return err
		}

		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
		}

		vectors = make([][]float32, 0, len(resp.Embeddings))
		for _, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return errors.New("gemini api returned empty embedding")
			}
			vectors = append(vectors, emb.Values)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

func (c *Client) Model() string {
	return c.modelName
}

// withRetries runs op up to maxRetries times with exponential backoff.
// Context cancellation stops the retry loop immediately.
func (c *Client) withRetries(ctx context.Context, name string, op func() error) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}

		if attempt < c.maxRetries {
			delay := baseBackoff << (attempt - 1)
			c.logger.Warn("ai call failed, retrying",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.maxRetries),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			if err := util.WaitFor(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	return fmt.Errorf("%s after %d attempts: %w: %w", name, c.maxRetries, ai.ErrServiceUnavailable, lastErr)
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}
