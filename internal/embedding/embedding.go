package embedding

import (
	"context"
	"fmt"
	"strings"

	"policy-rag/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Embedder maps text to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

// New builds the configured provider wrapped with metrics and, when store is
// non-nil, the embedding cache.
func New(cfg config.EmbeddingConfig, store Store) (Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":   cfg.Provider,
		"base_url":   cfg.BaseURL,
		"model":      cfg.Model,
		"dimensions": cfg.Dimensions,
	}).Msg("Loaded embedding config")

	var inner Embedder
	switch cfg.Provider {
	case ProviderHash:
		inner = NewHashEmbedder(cfg.Dimensions)
	case ProviderOllama, "":
		e, err := NewOllamaEmbedder(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		inner = e
	case ProviderOpenAI:
		inner = NewOpenAIEmbedder(cfg.Key, cfg.BaseURL, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	if store != nil {
		inner = NewCached(inner, store, cfg.Provider+":"+cfg.Model, cfg.Cache.TTL())
	}
	return NewInstrumented(inner, cfg.Provider), nil
}

// LangchainEmbedder adapts a langchaingo embedder to Embedder.
type LangchainEmbedder struct {
	embedder *embeddings.EmbedderImpl
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server.
func NewOllamaEmbedder(baseURL, model string) (*LangchainEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: embedder}, nil
}

func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, strings.TrimSpace(text))
}
