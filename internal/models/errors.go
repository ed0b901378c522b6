package models

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad signals an unreadable directory or file.
	ErrLoad = errors.New("load failed")
	// ErrEmptyCorpus signals a corpus directory without any document.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrEmbedding signals an index build or query failure.
	ErrEmbedding = errors.New("embedding failed")
	// ErrEmptyIndex signals a query against an index built from zero chunks.
	ErrEmptyIndex = errors.New("empty index")
	// ErrNotInitialized signals a retrieval before the corpora were built.
	ErrNotInitialized = errors.New("corpus not initialized")
	// ErrLLMRequest signals a network error, non-2xx status or malformed LLM response.
	ErrLLMRequest = errors.New("llm request failed")
	// ErrLLMTimeout signals an LLM call that exceeded its deadline.
	ErrLLMTimeout = errors.New("llm request timed out")
	// ErrEmptyAnalysis signals an LLM answer without content.
	ErrEmptyAnalysis = errors.New("no analysis produced")
	// ErrValidation signals a missing or invalid request field.
	ErrValidation = errors.New("validation failed")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConfigurationError reports a corpus directory that yielded no documents.
type ConfigurationError struct {
	Corpus CorpusName
	Path   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s corpus at %q has no documents", ErrEmptyCorpus.Error(), e.Corpus, e.Path)
}

func (e *ConfigurationError) Unwrap() error { return ErrEmptyCorpus }
