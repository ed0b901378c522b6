// Package vectorstore defines the index contract shared by the chromem and
// pgvector backends.
package vectorstore

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"strings"

	"policy-rag/internal/models"
)

// Index is an immutable, queryable set of embedded chunks.
type Index interface {
	Name() models.CorpusName
	Count() int
	Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error)
}

// Builder embeds chunks into a fresh Index. Indices returned by earlier
// builds stay queryable.
type Builder interface {
	Build(ctx context.Context, name models.CorpusName, chunks iter.Seq[models.Chunk]) (Index, error)
}

// Pruner is implemented by builders that keep the storage of earlier builds
// alive until a replacement is published. Prune drops everything that keep
// does not reference.
type Pruner interface {
	Prune(ctx context.Context, keep []Index) error
}

// Limit validates a query against an index of count chunks and returns the
// effective number of results.
func Limit(text string, k, count int) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &models.ValidationError{Field: "query", Reason: "must not be blank"}
	}
	if k <= 0 {
		return 0, &models.ValidationError{Field: "k", Reason: "must be > 0"}
	}
	if count == 0 {
		return 0, models.ErrEmptyIndex
	}
	return min(k, count), nil
}

// Sort orders results by similarity descending, ties broken by chunk ID.
func Sort(results []models.ScoredChunk) {
	slices.SortStableFunc(results, func(a, b models.ScoredChunk) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Batch groups a chunk sequence into slices of at most size.
func Batch(chunks iter.Seq[models.Chunk], size int) iter.Seq[[]models.Chunk] {
	return func(yield func([]models.Chunk) bool) {
		batch := make([]models.Chunk, 0, size)
		for c := range chunks {
			batch = append(batch, c)
			if len(batch) == size {
				if !yield(batch) {
					return
				}
				batch = make([]models.Chunk, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch)
		}
	}
}
