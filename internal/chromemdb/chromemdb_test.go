package chromemdb

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"policy-rag/internal/embedding"
	"policy-rag/internal/models"
)

func chunksOf(texts ...string) func(func(models.Chunk) bool) {
	return func(yield func(models.Chunk) bool) {
		for i, text := range texts {
			c := models.Chunk{ID: models.ChunkID("doc.pdf", 1, i), Content: text, Source: "doc.pdf", Page: 1, Index: i}
			if !yield(c) {
				return
			}
		}
	}
}

func newManager(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(t.TempDir(), true, false, "", embedding.NewHashEmbedder(1024))
	if err != nil {
		t.Fatalf("NewVectorDBManager: %v", err)
	}
	return m
}

var corpus = []string{
	"Passwords must be rotated every ninety days.",
	"All laptops use full disk encryption.",
	"Visitors must sign in at reception.",
	"Backups are stored offsite and encrypted.",
}

func TestBuildAndQuery(t *testing.T) {
	m := newManager(t)
	idx, err := m.Build(context.Background(), models.CorpusGlobal, chunksOf(corpus...))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Name() != models.CorpusGlobal || idx.Count() != len(corpus) {
		t.Fatalf("index %s has %d chunks", idx.Name(), idx.Count())
	}

	results, err := idx.Query(context.Background(), "how often are passwords rotated", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !strings.Contains(results[0].Content, "Passwords") {
		t.Errorf("top result = %q", results[0].Content)
	}
	if results[0].Source != "doc.pdf" || results[0].Page != 1 || results[0].ID != models.ChunkID("doc.pdf", 1, 0) {
		t.Errorf("provenance lost: %+v", results[0].Chunk)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Errorf("results not ordered: %v < %v", results[0].Similarity, results[1].Similarity)
	}
}

func TestQueryClampsK(t *testing.T) {
	m := newManager(t)
	idx, err := m.Build(context.Background(), models.CorpusInternal, chunksOf(corpus[:3]...))
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Query(context.Background(), "encryption", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	m := newManager(t)
	idx, err := m.Build(context.Background(), models.CorpusInternal, chunksOf())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Query(context.Background(), "anything", 5); !errors.Is(err, models.ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestQueryValidation(t *testing.T) {
	m := newManager(t)
	idx, _ := m.Build(context.Background(), models.CorpusInternal, chunksOf(corpus...))
	if _, err := idx.Query(context.Background(), "x", 0); !errors.Is(err, models.ErrValidation) {
		t.Errorf("k=0: expected ErrValidation, got %v", err)
	}
	if _, err := idx.Query(context.Background(), " ", 1); !errors.Is(err, models.ErrValidation) {
		t.Errorf("blank: expected ErrValidation, got %v", err)
	}
}

func TestQueryDeterministic(t *testing.T) {
	m := newManager(t)
	idx, _ := m.Build(context.Background(), models.CorpusGlobal, chunksOf(corpus...))
	ids := func() []string {
		results, err := idx.Query(context.Background(), "encrypted storage", 4)
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, r := range results {
			out = append(out, r.ID)
		}
		return out
	}
	first := ids()
	for range 5 {
		if got := ids(); !slices.Equal(got, first) {
			t.Fatalf("order changed: %v vs %v", got, first)
		}
	}
}

func TestRebuildReplacesCollection(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()
	if _, err := m.Build(ctx, models.CorpusGlobal, chunksOf(corpus...)); err != nil {
		t.Fatal(err)
	}
	idx, err := m.Build(ctx, models.CorpusGlobal, chunksOf("only one chunk now"))
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 1 {
		t.Fatalf("count = %d after rebuild, want 1", idx.Count())
	}
}

func TestBuildPropagatesEmbeddingErrors(t *testing.T) {
	failing := embedding.NewInstrumented(embedding.EmbedderFunc(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("provider down")
	}), "fake")
	m, err := NewVectorDBManager("", true, false, "", failing)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Build(context.Background(), models.CorpusGlobal, chunksOf(corpus...)); !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	m, err := NewVectorDBManager(dir, true, false, "0123456789abcdef0123456789abcdef", embedding.NewHashEmbedder(64))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Export(models.CorpusGlobal); err == nil {
		t.Fatal("expected error exporting a missing collection")
	}
	if _, err := m.Build(context.Background(), models.CorpusGlobal, chunksOf(corpus...)); err != nil {
		t.Fatal(err)
	}
	path, err := m.Export(models.CorpusGlobal)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("export file %s missing or empty: %v", path, err)
	}
}

func TestEncryptionKeyLength(t *testing.T) {
	if _, err := NewVectorDBManager("", true, false, "short", embedding.NewHashEmbedder(8)); err == nil {
		t.Fatal("expected error for short key")
	}
}
