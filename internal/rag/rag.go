package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"policy-rag/internal/models"
	"policy-rag/internal/parser"
	"policy-rag/internal/prompt"

	"github.com/rs/zerolog/log"
)

// Retriever returns the top-k chunks of a corpus.
type Retriever interface {
	Retrieve(ctx context.Context, corpus models.CorpusName, query string, k int) ([]models.ScoredChunk, error)
}

// Completer sends a prompt to the language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type pipeline struct {
	retriever Retriever
	llm       Completer
	prompts   *prompt.Builder
	topK      int
	now       func() time.Time
}

func newPipeline(retriever Retriever, llm Completer, prompts *prompt.Builder, topK int) pipeline {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return pipeline{retriever: retriever, llm: llm, prompts: prompts, topK: topK, now: time.Now}
}

// run retrieves context for query from corpus, renders the prompt and wraps
// the answer in a Report.
func (p pipeline) run(ctx context.Context, corpus models.CorpusName, mode prompt.Mode, lang models.Language, query, subject string) (*models.Report, error) {
	chunks, err := p.retriever.Retrieve(ctx, corpus, query, p.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve from %s: %w", corpus, err)
	}

	text, err := p.prompts.Build(mode, lang, JoinContext(chunks), subject)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Str("mode", mode.String()).
		Str("language", lang.Code()).
		Int("chunks", len(chunks)).
		Int("prompt_len", len(text)).
		Msg("Querying LLM")

	answer, err := p.llm.Complete(ctx, text)
	if err != nil {
		return nil, err
	}
	return FormatReport(answer, p.now())
}

// JoinContext concatenates chunk contents in rank order.
func JoinContext(chunks []models.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

// PolicyAnalyzer compares an internal policy with the global corpus.
type PolicyAnalyzer struct {
	pipeline
}

func NewPolicyAnalyzer(retriever Retriever, llm Completer, prompts *prompt.Builder, topK int) *PolicyAnalyzer {
	return &PolicyAnalyzer{pipeline: newPipeline(retriever, llm, prompts, topK)}
}

// AnalyzeText runs a gap analysis of policy text against global regulations.
func (a *PolicyAnalyzer) AnalyzeText(ctx context.Context, text string, lang models.Language) (*models.Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &models.ValidationError{Field: "policy_text", Reason: "No policy text provided"}
	}
	return a.run(ctx, models.CorpusGlobal, prompt.PolicyGap, lang, text, prompt.PolicyQuestion(lang, text))
}

// AnalyzeDocuments analyzes the pages of an uploaded policy as one text.
func (a *PolicyAnalyzer) AnalyzeDocuments(ctx context.Context, docs []models.Document, lang models.Language) (*models.Report, error) {
	text := parser.Join(docs)
	if strings.TrimSpace(text) == "" {
		return nil, &models.ValidationError{Field: "file", Reason: "Document contains no extractable text"}
	}
	return a.AnalyzeText(ctx, text, lang)
}

// UseCase is the subject of a KPI analysis. When IsCIS is set, Text holds a
// CIS control identifier.
type UseCase struct {
	Text  string
	IsCIS bool
}

// Subject returns the use case as presented to retrieval and the model.
func (u UseCase) Subject() string {
	text := strings.TrimSpace(u.Text)
	if !u.IsCIS {
		return text
	}
	id := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, models.CISPrefix), "CIS"))
	return models.CISPrefix + " " + id
}

// UseCaseAnalyzer scores a use case against internal policies.
type UseCaseAnalyzer struct {
	pipeline
}

func NewUseCaseAnalyzer(retriever Retriever, llm Completer, prompts *prompt.Builder, topK int) *UseCaseAnalyzer {
	return &UseCaseAnalyzer{pipeline: newPipeline(retriever, llm, prompts, topK)}
}

func (a *UseCaseAnalyzer) Analyze(ctx context.Context, uc UseCase, lang models.Language) (*models.Report, error) {
	if strings.TrimSpace(uc.Text) == "" {
		return nil, &models.ValidationError{Field: "use_case", Reason: "No use case provided"}
	}
	subject := uc.Subject()
	return a.run(ctx, models.CorpusInternal, prompt.UseCaseKPI, lang, subject, subject)
}
