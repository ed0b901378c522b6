package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"policy-rag/internal/models"
	"policy-rag/internal/prompt"
)

type fakeRetriever struct {
	chunks map[models.CorpusName][]models.ScoredChunk
	err    error
	calls  []retrieveCall
}

type retrieveCall struct {
	corpus models.CorpusName
	query  string
	k      int
}

func (f *fakeRetriever) Retrieve(_ context.Context, corpus models.CorpusName, query string, k int) ([]models.ScoredChunk, error) {
	f.calls = append(f.calls, retrieveCall{corpus, query, k})
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks[corpus], nil
}

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, p string) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.answer, f.err
}

func scored(texts ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(texts))
	for i, t := range texts {
		out[i] = models.ScoredChunk{Chunk: models.Chunk{ID: t, Content: t}, Similarity: 1 - float32(i)/10}
	}
	return out
}

func builder(t *testing.T) *prompt.Builder {
	t.Helper()
	b, err := prompt.NewBuilder()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))

func TestAnalyzeText(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[models.CorpusName][]models.ScoredChunk{
		models.CorpusGlobal: scored("Art. 32 encryption", "Art. 33 breach notice"),
	}}
	llm := &fakeLLM{answer: "## Missing Policies\n- breach notice"}
	a := NewPolicyAnalyzer(retriever, llm, builder(t), 0)
	a.now = func() time.Time { return fixedNow }

	report, err := a.AnalyzeText(context.Background(), "We encrypt laptops.", models.English)
	if err != nil {
		t.Fatalf("AnalyzeText: %v", err)
	}
	if report.Analysis != llm.answer || report.Status != "completed" || report.Timestamp != "2025-03-14T08:26:53Z" {
		t.Errorf("report = %+v", report)
	}
	if len(retriever.calls) != 1 || retriever.calls[0].corpus != models.CorpusGlobal || retriever.calls[0].k != models.DefaultTopK {
		t.Errorf("retrieve calls = %+v", retriever.calls)
	}
	if len(llm.prompts) != 1 || !strings.Contains(llm.prompts[0], "Art. 32 encryption\nArt. 33 breach notice") {
		t.Errorf("prompt missing joined context: %v", llm.prompts)
	}
	if !strings.Contains(llm.prompts[0], "We encrypt laptops.") {
		t.Error("prompt missing policy text")
	}
}

func TestAnalyzeTextBlankSkipsWork(t *testing.T) {
	retriever := &fakeRetriever{}
	llm := &fakeLLM{answer: "x"}
	a := NewPolicyAnalyzer(retriever, llm, builder(t), 5)

	_, err := a.AnalyzeText(context.Background(), " \n\t", models.English)
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "policy_text" {
		t.Fatalf("expected policy_text ValidationError, got %v", err)
	}
	if len(retriever.calls) != 0 || len(llm.prompts) != 0 {
		t.Fatal("retrieval or LLM called for blank input")
	}
}

func TestAnalyzeDocumentsJoinsPages(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[models.CorpusName][]models.ScoredChunk{models.CorpusGlobal: scored("ctx")}}
	llm := &fakeLLM{answer: "ok"}
	a := NewPolicyAnalyzer(retriever, llm, builder(t), 3)

	docs := []models.Document{{Content: "page one", Page: 1}, {Content: "", Page: 2}, {Content: "page three", Page: 3}}
	if _, err := a.AnalyzeDocuments(context.Background(), docs, models.French); err != nil {
		t.Fatal(err)
	}
	if q := retriever.calls[0].query; !strings.Contains(q, "page one") || !strings.Contains(q, "page three") {
		t.Errorf("query = %q", q)
	}
	if !strings.Contains(llm.prompts[0], "Politiques Manquantes") {
		t.Error("french template not used")
	}

	if _, err := a.AnalyzeDocuments(context.Background(), []models.Document{{Content: " "}}, models.English); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty document, got %v", err)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name      string
		retriever *fakeRetriever
		llm       *fakeLLM
		want      error
	}{
		{"not initialized", &fakeRetriever{err: models.ErrNotInitialized}, &fakeLLM{answer: "x"}, models.ErrNotInitialized},
		{"empty index", &fakeRetriever{err: models.ErrEmptyIndex}, &fakeLLM{answer: "x"}, models.ErrEmptyIndex},
		{"llm failure", &fakeRetriever{}, &fakeLLM{err: models.ErrLLMRequest}, models.ErrLLMRequest},
		{"llm timeout", &fakeRetriever{}, &fakeLLM{err: models.ErrLLMTimeout}, models.ErrLLMTimeout},
		{"empty answer", &fakeRetriever{}, &fakeLLM{answer: "  \n"}, models.ErrEmptyAnalysis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewUseCaseAnalyzer(tt.retriever, tt.llm, builder(t), 5)
			report, err := a.Analyze(context.Background(), UseCase{Text: "remote work"}, models.English)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if report != nil {
				t.Fatalf("report returned on error: %+v", report)
			}
		})
	}
}

func TestUseCaseAnalyze(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[models.CorpusName][]models.ScoredChunk{
		models.CorpusInternal: scored("Passwords rotate every 90 days"),
	}}
	llm := &fakeLLM{answer: "Compliance Score: 80%"}
	a := NewUseCaseAnalyzer(retriever, llm, builder(t), 5)

	report, err := a.Analyze(context.Background(), UseCase{Text: "5", IsCIS: true}, models.English)
	if err != nil {
		t.Fatal(err)
	}
	if report.Analysis != "Compliance Score: 80%" {
		t.Errorf("analysis = %q", report.Analysis)
	}
	call := retriever.calls[0]
	if call.corpus != models.CorpusInternal || call.query != "CIS Control 5" {
		t.Errorf("retrieve call = %+v", call)
	}
	if !strings.Contains(llm.prompts[0], "Passwords rotate every 90 days") || !strings.Contains(llm.prompts[0], "CIS Control 5") {
		t.Errorf("prompt = %s", llm.prompts[0])
	}

	if _, err := a.Analyze(context.Background(), UseCase{Text: ""}, models.English); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUseCaseSubject(t *testing.T) {
	tests := []struct {
		uc   UseCase
		want string
	}{
		{UseCase{Text: " Cloud backup "}, "Cloud backup"},
		{UseCase{Text: "4.1", IsCIS: true}, "CIS Control 4.1"},
		{UseCase{Text: "CIS 4.1", IsCIS: true}, "CIS Control 4.1"},
		{UseCase{Text: "CIS Control 4.1", IsCIS: true}, "CIS Control 4.1"},
	}
	for _, tt := range tests {
		if got := tt.uc.Subject(); got != tt.want {
			t.Errorf("Subject(%+v) = %q, want %q", tt.uc, got, tt.want)
		}
	}
}

func TestFormatReport(t *testing.T) {
	if _, err := FormatReport("", fixedNow); !errors.Is(err, models.ErrEmptyAnalysis) {
		t.Fatalf("expected ErrEmptyAnalysis, got %v", err)
	}
	r, err := FormatReport("analysis", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if r.Timestamp != "2025-03-14T08:26:53Z" || r.Status != models.StatusCompleted {
		t.Errorf("report = %+v", r)
	}
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(&models.Report{Analysis: "## Missing Policies\n\n| Policy | Status |\n|---|---|\n| MFA | missing |\n\n<script>alert(1)</script>"})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h2>Missing Policies</h2>", "<table>", "<td>MFA</td>"} {
		if !strings.Contains(out, want) {
			t.Errorf("html missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw html passed through:\n%s", out)
	}
}

func TestCompare(t *testing.T) {
	retriever := &fakeRetriever{chunks: map[models.CorpusName][]models.ScoredChunk{
		models.CorpusInternal: scored("Our policy: PASSWORDS MUST BE ROTATED. Badges are required."),
		models.CorpusGlobal: scored(
			"Passwords must be rotated. Logs are kept.",
			"Data must be encrypted at rest.",
			"...",
		),
	}}
	report, err := Compare(context.Background(), retriever, 0)
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalInternalPolicies != 1 || report.TotalGlobalRegulations != 3 {
		t.Errorf("totals = %+v", report)
	}
	if len(report.MissingRegulations) != 2 {
		t.Fatalf("missing = %v", report.MissingRegulations)
	}
	if report.MissingRegulations[0] != "Data must be encrypted at rest." {
		t.Errorf("missing[0] = %q", report.MissingRegulations[0])
	}
	if math.Abs(report.ComplianceRate-1.0/3) > 1e-9 {
		t.Errorf("compliance rate = %v", report.ComplianceRate)
	}
	for _, c := range retriever.calls {
		if c.query != models.CompareQuery || c.k != models.DefaultCompareTopK {
			t.Errorf("retrieve call = %+v", c)
		}
	}
}

func TestCompareError(t *testing.T) {
	if _, err := Compare(context.Background(), &fakeRetriever{err: models.ErrNotInitialized}, 10); !errors.Is(err, models.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
