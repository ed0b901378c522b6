package embedding

import (
	"context"
	"fmt"
	"time"

	"policy-rag/internal/metrics"
	"policy-rag/internal/models"
)

// Instrumented records provider metrics and tags failures with ErrEmbedding.
type Instrumented struct {
	inner    Embedder
	provider string
}

func NewInstrumented(inner Embedder, provider string) *Instrumented {
	return &Instrumented{inner: inner, provider: provider}
}

func (e *Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.inner.Embed(ctx, text)
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, "error").Inc()
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	if len(vec) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, "error").Inc()
		return nil, fmt.Errorf("%w: provider %s returned an empty vector", models.ErrEmbedding, e.provider)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, "success").Inc()
	return vec, nil
}
