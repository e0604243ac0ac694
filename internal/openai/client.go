package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/cloo-solutions/ragindex/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

var (
	// ErrEmptyText is returned when a batch contains an empty text
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface for batch embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Client embeds batches through an OpenAI-compatible API.
type Client struct {
	api EmbeddingAPI

	mu         sync.Mutex
	dimensions int
}

type OpenAIAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIAdapter builds the HTTP adapter. A positive dimensions value is
// sent with every request so text-embedding-3 models shorten their output.
func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel, dimensions int) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dimensions,
	}
}

// CreateEmbeddings sends the whole batch in one request and returns the
// vectors in input order.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if d.Index != i {
			return nil, fmt.Errorf("embedding index %d missing from response", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
// With EmbeddingDimensions unset the dimension is learned from the first response.
func NewClientWithConfig(cfg Config) *Client {
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimensions),
		dimensions: cfg.EmbeddingDimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClientWithConfig(Config{APIKey: apiKey, BaseURL: os.Getenv("OPENAI_BASE_URL")}), nil
}

// Dimensions returns the expected vector length, 0 until known.
func (c *Client) Dimensions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimensions
}

// Embed implements embedding.Embedder.
func (c *Client) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, domain.NewEmbeddingError(fmt.Sprintf("text %d rejected", i), ErrEmptyText)
		}
	}

	raw, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		if cancelled := domain.FromContext(err); cancelled != nil {
			return nil, cancelled
		}
		return nil, domain.NewEmbeddingError("failed to create embeddings", err)
	}
	if len(raw) != len(texts) {
		return nil, domain.NewEmbeddingError(fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(raw)), nil)
	}

	expected := c.Dimensions()
	if expected <= 0 && len(raw[0]) > 0 {
		expected = len(raw[0])
	}

	vectors := make([]domain.Vector, len(raw))
	for i, embedding := range raw {
		if len(embedding) != expected || expected == 0 {
			return nil, domain.NewEmbeddingError(fmt.Sprintf("embedding %d has %d dimensions, expected %d", i, len(embedding), expected), ErrWrongDimensions)
		}
		vectors[i] = domain.Vector(embedding)
	}

	c.mu.Lock()
	if c.dimensions <= 0 {
		c.dimensions = expected
	}
	c.mu.Unlock()

	return vectors, nil
}
