package embedding

import (
	"context"
	"fmt"

	"github.com/formbricks/riskmatch/internal/config"
	"github.com/formbricks/riskmatch/internal/googleai"
	"github.com/formbricks/riskmatch/internal/ollama"
	"github.com/formbricks/riskmatch/internal/openai"
)

// Client is implemented by every provider adapter: embeddings plus the chat completion used by
// the semantic judge.
type Client interface {
	Provider
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewClient builds the adapter selected by EMBEDDING_PROVIDER.
// Returns (nil, nil) when no provider is configured.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.EmbeddingProvider {
	case "":
		//nolint:nilnil // intentional: embeddings disabled, caller checks for nil
		return nil, nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithBaseURL(cfg.EmbeddingBaseURL),
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithChatModel(cfg.JudgeModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		), nil
	case config.ProviderGoogle:
		c, err := googleai.NewClient(ctx, googleai.Config{
			APIKey:     cfg.EmbeddingProviderAPIKey,
			BaseURL:    cfg.EmbeddingBaseURL,
			Model:      cfg.EmbeddingModel,
			ChatModel:  cfg.JudgeModel,
			Dimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}

		return c, nil
	case config.ProviderOllama:
		return ollama.NewClient(ollama.ClientOptions{
			BaseURL:   cfg.EmbeddingBaseURL,
			Model:     cfg.EmbeddingModel,
			ChatModel: cfg.JudgeModel,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.EmbeddingProvider)
	}
}
