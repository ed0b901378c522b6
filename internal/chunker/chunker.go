// Package chunker splits documents into overlapping windows for embedding.
package chunker

import (
	"fmt"
	"iter"
	"strings"

	"policy-rag/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	StrategyWindow    = "window"
	StrategyRecursive = "recursive"
)

// Splitter turns documents into chunks lazily. Chunks never span documents.
type Splitter interface {
	Split(docs []models.Document) iter.Seq[models.Chunk]
}

// New returns the splitter for strategy.
func New(strategy string, size, overlap int) (Splitter, error) {
	switch strategy {
	case "", StrategyWindow:
		return NewWindow(size, overlap)
	case StrategyRecursive:
		return NewRecursive(size, overlap)
	default:
		return nil, fmt.Errorf("unknown splitter strategy %q", strategy)
	}
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("chunk overlap must be >= 0 and < chunk size, got %d (size %d)", overlap, size)
	}
	return nil
}

// Window is a fixed-size sliding window measured in runes.
type Window struct {
	size    int
	overlap int
}

func NewWindow(size, overlap int) (*Window, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Window{size: size, overlap: overlap}, nil
}

// Split yields ceil((L-O)/(W-O)) chunks for a document of L > W runes and a
// single chunk otherwise. Consecutive chunks share exactly O runes.
func (w *Window) Split(docs []models.Document) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		for _, doc := range docs {
			for c := range w.splitDocument(doc) {
				if !yield(c) {
					return
				}
			}
		}
	}
}

func (w *Window) splitDocument(doc models.Document) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		if strings.TrimSpace(doc.Content) == "" {
			return
		}
		runes := []rune(doc.Content)
		step := w.size - w.overlap
		for start, index := 0, 0; ; start, index = start+step, index+1 {
			end := min(start+w.size, len(runes))
			if !yield(newChunk(doc, index, start, string(runes[start:end]))) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}
}

// Recursive splits on paragraph, line and word boundaries before falling
// back to characters.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursive(size, overlap int) (*Recursive, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	return &Recursive{splitter: textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)}, nil
}

func (r *Recursive) Split(docs []models.Document) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		for _, doc := range docs {
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
			parts, err := r.splitter.SplitText(doc.Content)
			if err != nil {
				// SplitText only fails on misconfiguration caught by validate
				continue
			}
			offset := 0
			for i, part := range parts {
				start := offset
				if at := strings.Index(doc.Content[offset:], part); at >= 0 {
					start = offset + at
					offset = start
				}
				if !yield(newChunk(doc, i, len([]rune(doc.Content[:start])), part)) {
					return
				}
			}
		}
	}
}

func newChunk(doc models.Document, index, start int, content string) models.Chunk {
	return models.Chunk{
		ID:      models.ChunkID(doc.Source, doc.Page, index),
		Content: content,
		Source:  doc.Source,
		Page:    doc.Page,
		Index:   index,
		Start:   start,
	}
}
