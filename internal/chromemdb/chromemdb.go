package chromemdb

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"policy-rag/internal/embedding"
	"policy-rag/internal/metrics"
	"policy-rag/internal/models"
	"policy-rag/internal/vectorstore"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const (
	batchSize     = 256
	fileExtension = ".chromem"
)

// VectorDBManager encapsulates the chromem-go database holding one
// collection per corpus.
type VectorDBManager struct {
	mu            sync.Mutex
	db            *chromem.DB
	embed         chromem.EmbeddingFunc
	dbPath        string
	compress      bool
	encryptionKey string
}

var _ vectorstore.Builder = (*VectorDBManager)(nil)

// NewVectorDBManager opens a persistent database under dbPath, or an
// in-memory one when inMemory is set.
func NewVectorDBManager(dbPath string, inMemory, compress bool, encryptionKey string, embedder embedding.Embedder) (*VectorDBManager, error) {
	var db *chromem.DB
	if inMemory {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}
	if encryptionKey != "" && len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(encryptionKey))
	}

	return &VectorDBManager{
		db:            db,
		embed:         embedder.Embed,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
	}, nil
}

// Build drops the collection called name and refills it with chunks.
func (m *VectorDBManager) Build(ctx context.Context, name models.CorpusName, chunks iter.Seq[models.Chunk]) (vectorstore.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	if err := m.db.DeleteCollection(string(name)); err != nil {
		return nil, fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	c, err := m.db.CreateCollection(string(name), map[string]string{"corpus": string(name)}, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	for batch := range vectorstore.Batch(chunks, batchSize) {
		docs := make([]chromem.Document, len(batch))
		for i, chunk := range batch {
			docs[i] = chromem.Document{
				ID:       chunk.ID,
				Content:  chunk.Content,
				Metadata: chunk.Metadata(),
			}
		}
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("%w: failed to add documents to %s: %v", models.ErrEmbedding, name, err)
		}
	}

	log.Info().
		Str("corpus", string(name)).
		Int("chunks", c.Count()).
		Dur("took", time.Since(start)).
		Msg("Built index")
	return &Index{name: name, collection: c}, nil
}

// Export writes the collection to <dbPath>/<name>.chromem, encrypted when a
// key was configured.
func (m *VectorDBManager) Export(name models.CorpusName) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db.GetCollection(string(name), m.embed) == nil {
		return "", fmt.Errorf("collection %s does not exist", name)
	}
	filePath := filepath.Join(m.dbPath, string(name)+fileExtension)
	log.Debug().
		Str("collection", string(name)).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, string(name)); err != nil {
		return "", fmt.Errorf("failed to export collection %s: %w", name, err)
	}
	return filePath, nil
}

// Index is a built chromem collection.
type Index struct {
	name       models.CorpusName
	collection *chromem.Collection
}

func (i *Index) Name() models.CorpusName { return i.name }

func (i *Index) Count() int { return i.collection.Count() }

// Query returns the k most similar chunks, k clamped to Count.
func (i *Index) Query(ctx context.Context, text string, k int) ([]models.ScoredChunk, error) {
	n, err := vectorstore.Limit(text, k, i.Count())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := i.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryText: text,
		NResults:  n,
	})
	metrics.RetrievalDuration.WithLabelValues(string(i.name)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query %s: %v", models.ErrEmbedding, i.name, err)
	}

	scored := make([]models.ScoredChunk, len(results))
	for j, r := range results {
		scored[j] = models.ScoredChunk{
			Chunk:      models.ChunkFromMetadata(r.ID, r.Content, r.Metadata),
			Similarity: r.Similarity,
		}
	}
	vectorstore.Sort(scored)
	return scored, nil
}
