// Package ollama is a small JSON client for a local Ollama server, covering the embeddings and
// chat endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/formbricks/riskmatch/internal/apperrors"
)

const (
	providerName       = "ollama"
	defaultBaseURL     = "http://localhost:11434"
	defaultModel       = "nomic-embed-text"
	defaultChatModel   = "llama3.1"
	defaultRetryMax    = 2
	maxErrorBodyLength = 512
)

// ErrEmptyInput is returned when CreateEmbedding or Complete is called with empty input.
var ErrEmptyInput = errors.New("ollama: input text is empty")

// ClientOptions configures the Ollama client.
type ClientOptions struct {
	// BaseURL of the Ollama server (default: http://localhost:11434).
	BaseURL string
	// Model used for embeddings (default: nomic-embed-text).
	Model string
	// ChatModel used by Complete (default: llama3.1).
	ChatModel string
	// RetryMax is the number of retries on connection errors and 5xx (default: 2, negative disables).
	RetryMax int
	// Timeout bounds a single HTTP attempt. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// Client talks to the Ollama HTTP API.
type Client struct {
	baseURL    string
	model      string
	chatModel  string
	httpClient *retryablehttp.Client
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message *chatMessage `json:"message"`
}

// NewClient creates an Ollama client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}

	if opts.Model == "" {
		opts.Model = defaultModel
	}

	if opts.ChatModel == "" {
		opts.ChatModel = defaultChatModel
	}

	switch {
	case opts.RetryMax == 0:
		opts.RetryMax = defaultRetryMax
	case opts.RetryMax < 0:
		opts.RetryMax = 0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil
	// Hand back the last response instead of a generic "giving up" error so the status is kept.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		model:      opts.Model,
		chatModel:  opts.ChatModel,
		httpClient: retryClient,
	}
}

// Model returns the embedding model name.
func (c *Client) Model() string {
	return c.model
}

// CreateEmbedding returns the embedding for input from POST /api/embeddings.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	var resp embeddingResponse
	if err := c.post(ctx, "embedding", "/api/embeddings", embeddingRequest{Model: c.model, Prompt: input}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embedding: %w: missing or empty embedding", apperrors.ErrMalformedResponse)
	}

	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}

	return out, nil
}

// Complete sends prompt as a single non-streamed user message to POST /api/chat.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	req := chatRequest{
		Model:    c.chatModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	}

	var resp chatResponse
	if err := c.post(ctx, "chat", "/api/chat", req, &resp); err != nil {
		return "", err
	}

	if resp.Message == nil {
		return "", fmt.Errorf("ollama chat: %w: missing message", apperrors.ErrMalformedResponse)
	}

	return resp.Message.Content, nil
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("ollama %s: marshal request: %w", op, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("ollama %s: create request: %w", op, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ollama %s: %w", op, ctxErr)
		}

		return apperrors.NewProviderError(providerName, op, 0, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("ollama: failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewProviderError(providerName, op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewProviderError(providerName, op, resp.StatusCode, errors.New(errorMessage(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ollama %s: %w: %w", op, apperrors.ErrMalformedResponse, err)
	}

	return nil
}

// errorMessage extracts Ollama's {"error": "..."} message, falling back to the raw (shortened) body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodyLength {
		msg = msg[:maxErrorBodyLength]
	}

	if msg == "" {
		msg = "empty response body"
	}

	return msg
}
