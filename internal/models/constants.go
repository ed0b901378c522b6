package models

const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaChunk  = "chunk"
	MetaStart  = "start"

	DefaultChunkSize    = 700 // runes
	DefaultChunkOverlap = 100 // runes
	DefaultTopK         = 5
	DefaultCompareTopK  = 100

	// ContextSeparator joins retrieved chunks into the prompt context.
	ContextSeparator = "\n"

	// CompareQuery is the generic query used to sample both corpora for coverage.
	CompareQuery = "policy regulation requirement"

	CISPrefix = "CIS Control"
)
