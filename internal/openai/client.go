// Package openai provides a thin wrapper around the official OpenAI Go SDK for embeddings and
// chat completions (the semantic judge).
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/formbricks/riskmatch/internal/apperrors"
)

const (
	providerName     = "openai"
	defaultModel     = "text-embedding-3-small"
	defaultChatModel = "gpt-4o-mini"
)

// ErrEmptyInput is returned when CreateEmbedding or Complete is called with empty input.
var ErrEmptyInput = errors.New("openai: input text is empty")

// Client calls the OpenAI embeddings and chat completions APIs via the official SDK.
type Client struct {
	sdk        openaisdk.Client
	model      string
	chatModel  string
	dimensions int
}

// ClientOption configures the Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL    string
	model      string
	chatModel  string
	dimensions int
}

// WithBaseURL points the client at an OpenAI-compatible endpoint. Empty keeps the default.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithModel sets the embedding model. Empty keeps text-embedding-3-small.
func WithModel(model string) ClientOption {
	return func(o *clientOptions) {
		o.model = model
	}
}

// WithChatModel sets the model used by Complete. Empty keeps the default.
func WithChatModel(model string) ClientOption {
	return func(o *clientOptions) {
		o.chatModel = model
	}
}

// WithDimensions requests a specific embedding dimension. 0 leaves it to the model.
func WithDimensions(dim int) ClientOption {
	return func(o *clientOptions) {
		o.dimensions = dim
	}
}

// NewClient creates an OpenAI client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	o := clientOptions{model: defaultModel, chatModel: defaultChatModel}
	for _, opt := range opts {
		opt(&o)
	}

	if o.model == "" {
		o.model = defaultModel
	}

	if o.chatModel == "" {
		o.chatModel = defaultChatModel
	}

	sdkOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}

	return &Client{
		sdk:        openaisdk.NewClient(sdkOpts...),
		model:      o.model,
		chatModel:  o.chatModel,
		dimensions: o.dimensions,
	}
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.model
}

// CreateEmbedding returns the embedding vector for the given text.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model: openaisdk.EmbeddingModel(c.model),
	}
	if c.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(c.dimensions))
	}

	resp, err := c.sdk.Embeddings.New(ctx, params)
	if err != nil {
		return nil, providerError("embedding", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embedding: %w: no embedding in response", apperrors.ErrMalformedResponse)
	}

	emb := resp.Data[0].Embedding

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return out, nil
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.chatModel),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", providerError("chat", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: %w: no choices in response", apperrors.ErrMalformedResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

// providerError keeps the HTTP status of SDK API errors so callers can tell a missing model
// from a network failure.
func providerError(op string, err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		return apperrors.NewProviderError(providerName, op, apiErr.StatusCode, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("openai %s: %w", op, err)
	}

	return apperrors.NewProviderError(providerName, op, 0, err)
}
