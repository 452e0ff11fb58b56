// Package llm builds the chat and embedding models the pipeline talks to.
// Every model it returns is wrapped with the per-model QPM limiter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prosterio-go/internal/config"
	"prosterio-go/pkg/ratelimit"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// ErrNotConfigured means the selected provider has no API key.
var ErrNotConfigured = errors.New("language model is not configured")

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Purpose selects which configured model a chat model is built for.
type Purpose int

const (
	// PurposeExtraction turns résumé text into JSON.
	PurposeExtraction Purpose = iota
	// PurposeCompletion answers retrieval questions and judges answers.
	PurposeCompletion
)

// Factory creates models from configuration and shares one Gemini client
// and one limiter registry between them.
type Factory struct {
	cfg      *config.Config
	limits   *ratelimit.Registry
	gemini   *genai.Client
	geminiOK bool
}

// NewFactory prepares provider clients. A missing key is not an error here;
// it surfaces as ErrNotConfigured when a model is requested.
func NewFactory(ctx context.Context, cfg *config.Config) (*Factory, error) {
	f := &Factory{cfg: cfg, limits: ratelimit.NewRegistry(cfg.LLM.ModelQPMLimits)}
	if needsGemini(cfg) && cfg.Gemini.APIKey != "" {
		client, err := NewGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		f.gemini = client
		f.geminiOK = true
	}
	return f, nil
}

func needsGemini(cfg *config.Config) bool {
	return providerOf(cfg.LLM.Provider) == ProviderGemini || providerOf(embeddingProvider(cfg)) == ProviderGemini
}

func providerOf(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return ProviderGemini
	}
	return p
}

func embeddingProvider(cfg *config.Config) string {
	if cfg.LLM.EmbeddingProvider != "" {
		return cfg.LLM.EmbeddingProvider
	}
	return cfg.LLM.Provider
}

// ChatModel returns the chat model for purpose.
func (f *Factory) ChatModel(purpose Purpose) (model.ToolCallingChatModel, string, error) {
	jsonOutput := purpose == PurposeExtraction
	switch provider := providerOf(f.cfg.LLM.Provider); provider {
	case ProviderGemini:
		if !f.geminiOK {
			return nil, "", ErrNotConfigured
		}
		name := f.cfg.Gemini.CompletionModel
		if purpose == PurposeExtraction {
			name = f.cfg.Gemini.ExtractionModel
		}
		m := NewGeminiChatModel(f.gemini, name, f.cfg.Gemini.Temperature, jsonOutput)
		return ratelimit.WrapChatModel(m, f.limits.For(name)), name, nil
	case ProviderOpenAI:
		name := f.cfg.OpenAI.CompletionModel
		if purpose == PurposeExtraction {
			name = f.cfg.OpenAI.ExtractionModel
		}
		m, err := NewOpenAIChatModel(OpenAIOptions{
			APIKey:      f.cfg.OpenAI.APIKey,
			BaseURL:     f.cfg.OpenAI.BaseURL,
			Model:       name,
			Temperature: f.cfg.OpenAI.Temperature,
			MaxTokens:   f.cfg.OpenAI.MaxTokens,
			JSONOutput:  jsonOutput,
		})
		if err != nil {
			return nil, "", err
		}
		return ratelimit.WrapChatModel(m, f.limits.For(name)), name, nil
	default:
		return nil, "", fmt.Errorf("unknown llm provider %q", provider)
	}
}

// Embedder returns the embedder and its model name. The name is stored next
// to every persisted vector so a model change invalidates old vectors.
func (f *Factory) Embedder() (embedding.Embedder, string, error) {
	switch provider := providerOf(embeddingProvider(f.cfg)); provider {
	case ProviderGemini:
		if !f.geminiOK {
			return nil, "", ErrNotConfigured
		}
		name := f.cfg.Gemini.EmbeddingModel
		return ratelimit.WrapEmbedder(NewGeminiEmbedder(f.gemini, name), f.limits.For(name)), name, nil
	case ProviderOpenAI:
		name := f.cfg.OpenAI.EmbeddingModel
		e, err := NewOpenAIEmbedder(f.cfg.OpenAI.APIKey, f.cfg.OpenAI.BaseURL, name)
		if err != nil {
			return nil, "", err
		}
		return ratelimit.WrapEmbedder(e, f.limits.For(name)), name, nil
	default:
		return nil, "", fmt.Errorf("unknown embedding provider %q", provider)
	}
}
