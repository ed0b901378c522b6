package models

import (
	"fmt"
	"strconv"
)

// Document is the text of one source page together with where it came from.
type Document struct {
	Content string
	Source  string
	Page    int
}

// Chunk represents a window of a Document's content with provenance
type Chunk struct {
	ID      string
	Content string
	Source  string
	Page    int
	Index   int
	Start   int
}

// ScoredChunk is a Chunk returned by a similarity query.
type ScoredChunk struct {
	Chunk
	Similarity float32
}

// CorpusName identifies one of the two indices kept by the service.
type CorpusName string

const (
	CorpusInternal CorpusName = "internal"
	CorpusGlobal   CorpusName = "global"
)

// Corpora lists every corpus in build order.
var Corpora = []CorpusName{CorpusInternal, CorpusGlobal}

// ChunkID builds the stable identifier of a chunk from its provenance.
func ChunkID(source string, page, index int) string {
	return fmt.Sprintf("%s#p%d-c%d", source, page, index)
}

// Metadata flattens the chunk provenance into vector store metadata.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource: c.Source,
		MetaPage:   strconv.Itoa(c.Page),
		MetaChunk:  strconv.Itoa(c.Index),
		MetaStart:  strconv.Itoa(c.Start),
	}
}

// ChunkFromMetadata is the inverse of Chunk.Metadata.
func ChunkFromMetadata(id, content string, meta map[string]string) Chunk {
	page, _ := strconv.Atoi(meta[MetaPage])
	index, _ := strconv.Atoi(meta[MetaChunk])
	start, _ := strconv.Atoi(meta[MetaStart])
	return Chunk{
		ID:      id,
		Content: content,
		Source:  meta[MetaSource],
		Page:    page,
		Index:   index,
		Start:   start,
	}
}
