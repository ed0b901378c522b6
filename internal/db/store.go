package db

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"time"

	"policy-rag/internal/embedding"
	"policy-rag/internal/helper"
	"policy-rag/internal/metrics"
	"policy-rag/internal/models"
	"policy-rag/internal/vectorstore"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

// Store builds corpus indices in Postgres with pgvector.
type Store struct {
	db       *bun.DB
	embedder embedding.Embedder
}

var (
	_ vectorstore.Builder = (*Store)(nil)
	_ vectorstore.Pruner  = (*Store)(nil)
)

func NewStore(db *bun.DB, embedder embedding.Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

// Build embeds every chunk and stores it under a new generation. Indices of
// earlier builds keep reading their own generation until it is pruned.
func (s *Store) Build(ctx context.Context, name models.CorpusName, chunks iter.Seq[models.Chunk]) (vectorstore.Index, error) {
	start := time.Now()
	generation, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}

	var records []ChunkRecord
	for c := range chunks {
		records = append(records, ChunkRecord{
			Corpus:      string(name),
			Generation:  generation,
			ChunkID:     c.ID,
			Content:     c.Content,
			Source:      c.Source,
			PageNumber:  c.Page,
			ChunkIndex:  c.Index,
			StartOffset: c.Start,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range records {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, records[i].Content)
			if err != nil {
				return err
			}
			records[i].Embedding = pgvector.NewVector(vec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to embed %s corpus: %w", name, err)
	}

	if err := InsertGeneration(ctx, s.db, records); err != nil {
		return nil, err
	}

	log.Info().
		Str("corpus", string(name)).
		Str("generation", generation).
		Int("chunks", len(records)).
		Dur("took", time.Since(start)).
		Msg("Built pgvector index")
	return &Index{db: s.db, embedder: s.embedder, name: name, generation: generation, count: len(records)}, nil
}

// Prune deletes every stored generation that keep does not reference.
func (s *Store) Prune(ctx context.Context, keep []vectorstore.Index) error {
	return PruneGenerations(ctx, s.db, corpusNames(), generations(keep))
}

// Reset drops and recreates the chunk table.
func (s *Store) Reset(ctx context.Context) error {
	if err := DropChunks(ctx, s.db); err != nil {
		return fmt.Errorf("failed to drop chunk table: %w", err)
	}
	return InitDB(ctx, s.db)
}

func corpusNames() []string {
	names := make([]string, len(models.Corpora))
	for i, name := range models.Corpora {
		names[i] = string(name)
	}
	return names
}

func generations(indices []vectorstore.Index) map[string]string {
	keep := make(map[string]string, len(indices))
	for _, idx := range indices {
		if pi, ok := idx.(*Index); ok {
			keep[string(pi.name)] = pi.generation
		}
	}
	return keep
}

// Index queries one corpus of the chunk table.
type Index struct {
	db         bun.IDB
	embedder   embedding.Embedder
	name       models.CorpusName
	generation string
	count      int
}

func (i *Index) Name() models.CorpusName { return i.name }

func (i *Index) Count() int { return i.count }

func (i *Index) Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error) {
	n, err := vectorstore.Limit(text, k, i.count)
	if err != nil {
		return nil, err
	}
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := SearchChunks(ctx, i.db, string(i.name), i.generation, vec, n)
	metrics.RetrievalDuration.WithLabelValues(string(i.name)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}

	scored := make([]models.ScoredChunk, len(records))
	for j, r := range records {
		scored[j] = models.ScoredChunk{
			Chunk: models.Chunk{
				ID:      r.ChunkID,
				Content: r.Content,
				Source:  r.Source,
				Page:    r.PageNumber,
				Index:   r.ChunkIndex,
				Start:   r.StartOffset,
			},
			Similarity: r.Similarity,
		}
	}
	vectorstore.Sort(scored)
	return scored, nil
}
