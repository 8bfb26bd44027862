package provider

import (
	"context"
	"errors"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
	openai_provider "github.com/hotstory/radar/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	AnalyzeHotness(ctx context.Context, articles []models.Article) (models.HotnessAnalysis, error)
	GenerateDraft(ctx context.Context, req models.DraftRequest) (string, error)
	Summarize(ctx context.Context, article models.Article) (string, error)
	SynthesizeResearch(ctx context.Context, headline string, whyNow string, sources []models.ResearchSource) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("provider.api_key not set")
		}
		return openai_provider.NewOpenAIClient(
			cfg.APIKey,
			cfg.BaseURL,
			cfg.CompletionModel,
			cfg.EmbeddingModel,
			cfg.Temperature,
			cfg.MaxTokens,
			cfg.Timeout,
		), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
