// Package googleai provides a thin wrapper around the Google Gen AI SDK (Gemini API) for
// embeddings and text generation.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/formbricks/riskmatch/internal/apperrors"
)

// ErrEmptyInput is returned when CreateEmbedding or Complete is called with empty input.
var ErrEmptyInput = errors.New("googleai: input text is empty")

const (
	providerName     = "google"
	defaultModel     = "gemini-embedding-001"
	defaultChatModel = "gemini-2.0-flash"
)

// Client calls the Gemini API via the Google Gen AI SDK.
type Client struct {
	client     *genai.Client
	model      string
	chatModel  string
	dimensions int
}

// Config configures NewClient. Empty fields use defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ChatModel  string
	Dimensions int
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	genaiClient, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	c := &Client{
		client:     genaiClient,
		model:      cfg.Model,
		chatModel:  cfg.ChatModel,
		dimensions: cfg.Dimensions,
	}
	if c.model == "" {
		c.model = defaultModel
	}

	if c.chatModel == "" {
		c.chatModel = defaultChatModel
	}

	return c, nil
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.model
}

// CreateEmbedding returns the embedding vector for the given text using the configured model.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	var cfg *genai.EmbedContentConfig

	if c.dimensions > 0 && c.dimensions <= math.MaxInt32 {
		//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
		dim := int32(c.dimensions)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}

	resp, err := c.client.Models.EmbedContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, providerError("embedding", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini embedding: %w: no embedding in response", apperrors.ErrMalformedResponse)
	}

	emb := resp.Embeddings[0].Values
	out := make([]float32, len(emb))
	copy(out, emb)

	return out, nil
}

// Complete sends prompt as a single user turn and returns the concatenated reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", providerError("chat", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini chat: %w: no candidates in response", apperrors.ErrMalformedResponse)
	}

	return resp.Text(), nil
}

func providerError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("gemini %s: %w", op, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apperrors.NewProviderError(providerName, op, apiErr.Code, err)
	}

	return apperrors.NewProviderError(providerName, op, 0, err)
}
