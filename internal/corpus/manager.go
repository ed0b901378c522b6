// Package corpus owns the internal and global indices and publishes them
// together once both are built.
package corpus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"policy-rag/internal/chunker"
	"policy-rag/internal/metrics"
	"policy-rag/internal/models"
	"policy-rag/internal/parser"
	"policy-rag/internal/vectorstore"

	"github.com/rs/zerolog/log"
)

type snapshot struct {
	indices map[models.CorpusName]vectorstore.Index
	builtAt time.Time
}

// Manager serializes rebuilds; readers see either the previous pair of
// indices or the new one, never a mix.
type Manager struct {
	mu       sync.Mutex
	snap     atomic.Pointer[snapshot]
	builder  vectorstore.Builder
	splitter chunker.Splitter
	now      func() time.Time
}

func NewManager(builder vectorstore.Builder, splitter chunker.Splitter) *Manager {
	return &Manager{builder: builder, splitter: splitter, now: time.Now}
}

// Initialize loads, chunks and embeds both corpora. It may be called again
// to rebuild; on failure the previously published indices stay in place.
func (m *Manager) Initialize(ctx context.Context, internalPath, globalPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := map[models.CorpusName]string{
		models.CorpusInternal: internalPath,
		models.CorpusGlobal:   globalPath,
	}

	docs := make(map[models.CorpusName][]models.Document, len(paths))
	for _, name := range models.Corpora {
		loaded, err := parser.LoadDirectory(paths[name])
		if err != nil {
			return fmt.Errorf("failed to load %s corpus: %w", name, err)
		}
		if len(loaded) == 0 {
			return &models.ConfigurationError{Corpus: name, Path: paths[name]}
		}
		docs[name] = loaded
	}

	next := &snapshot{indices: make(map[models.CorpusName]vectorstore.Index, len(paths))}
	for _, name := range models.Corpora {
		idx, err := m.builder.Build(ctx, name, m.splitter.Split(docs[name]))
		if err != nil {
			// drop what this attempt already stored
			m.prune(ctx, m.snap.Load())
			return fmt.Errorf("failed to build %s index: %w", name, err)
		}
		next.indices[name] = idx
	}
	next.builtAt = m.now()

	m.snap.Store(next)
	m.prune(ctx, next)
	for name, idx := range next.indices {
		metrics.IndexChunks.WithLabelValues(string(name)).Set(float64(idx.Count()))
		log.Info().
			Str("corpus", string(name)).
			Str("path", paths[name]).
			Int("documents", len(docs[name])).
			Int("chunks", idx.Count()).
			Msg("Published index")
	}
	return nil
}

// prune lets a Pruner builder release storage not referenced by keep.
// A nil keep releases everything.
func (m *Manager) prune(ctx context.Context, keep *snapshot) {
	p, ok := m.builder.(vectorstore.Pruner)
	if !ok {
		return
	}
	var indices []vectorstore.Index
	if keep != nil {
		for _, name := range models.Corpora {
			if idx, ok := keep.indices[name]; ok {
				indices = append(indices, idx)
			}
		}
	}
	if err := p.Prune(context.WithoutCancel(ctx), indices); err != nil {
		log.Warn().Err(err).Msg("Failed to prune stale index data")
	}
}

// Index returns the published index for name.
func (m *Manager) Index(name models.CorpusName) (vectorstore.Index, error) {
	snap := m.snap.Load()
	if snap == nil {
		return nil, models.ErrNotInitialized
	}
	idx, ok := snap.indices[name]
	if !ok {
		return nil, &models.ValidationError{Field: "corpus", Reason: fmt.Sprintf("unknown corpus %q", name)}
	}
	return idx, nil
}

// Retrieve returns the top-k chunks of corpus name for query.
func (m *Manager) Retrieve(ctx context.Context, name models.CorpusName, query string, k int) ([]models.ScoredChunk, error) {
	idx, err := m.Index(name)
	if err != nil {
		return nil, err
	}
	return idx.Query(ctx, query, k)
}

// Stats describes the published indices.
type Stats struct {
	Initialized bool                      `json:"initialized"`
	BuiltAt     time.Time                 `json:"built_at,omitzero"`
	Chunks      map[models.CorpusName]int `json:"chunks"`
}

func (m *Manager) Stats() Stats {
	snap := m.snap.Load()
	if snap == nil {
		return Stats{Chunks: map[models.CorpusName]int{}}
	}
	chunks := make(map[models.CorpusName]int, len(snap.indices))
	for name, idx := range snap.indices {
		chunks[name] = idx.Count()
	}
	return Stats{Initialized: true, BuiltAt: snap.builtAt, Chunks: chunks}
}
