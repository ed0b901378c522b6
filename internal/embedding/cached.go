package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"policy-rag/internal/cache"
	"policy-rag/internal/metrics"

	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "policy-rag:emb:"

// Store is the key-value contract of the embedding cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached serves repeated texts from Store. Cache failures fall through to the
// inner embedder.
type Cached struct {
	inner     Embedder
	store     Store
	namespace string
	ttl       time.Duration
}

func NewCached(inner Embedder, store Store, namespace string, ttl time.Duration) *Cached {
	return &Cached{inner: inner, store: store, namespace: namespace, ttl: ttl}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.get(ctx, key); ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, vectorToBytes(vec), c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache embedding")
	}
	return vec, nil
}

func (c *Cached) cacheKey(text string) string {
	h := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *Cached) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to get cached embedding")
		}
		return nil, false
	}
	vec, err := bytesToVector(data)
	if err != nil || len(vec) == 0 {
		log.Warn().Err(err).Str("key", key).Msg("Failed to parse cached embedding")
		return nil, false
	}
	return vec, true
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
