// Package prompt renders the analysis instructions sent to the language model.
package prompt

import (
	"fmt"

	"policy-rag/internal/models"

	"github.com/tmc/langchaingo/prompts"
)

// Mode selects the kind of analysis.
type Mode int

const (
	PolicyGap Mode = iota
	UseCaseKPI
)

var Modes = []Mode{PolicyGap, UseCaseKPI}

func (m Mode) String() string {
	switch m {
	case PolicyGap:
		return "policy_gap"
	case UseCaseKPI:
		return "use_case_kpi"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const (
	varContext  = "context"
	varQuestion = "question"
	varUseCase  = "use_case"
)

type key struct {
	mode Mode
	lang models.Language
}

// Builder holds one parsed template per (mode, language).
type Builder struct {
	templates map[key]prompts.PromptTemplate
}

// NewBuilder fails if any supported (mode, language) pair lacks a template.
func NewBuilder() (*Builder, error) {
	b := &Builder{templates: make(map[key]prompts.PromptTemplate)}
	for _, mode := range Modes {
		for _, lang := range models.Languages {
			text, vars, err := templateFor(mode, lang)
			if err != nil {
				return nil, err
			}
			b.templates[key{mode, lang}] = prompts.NewPromptTemplate(text, vars)
		}
	}
	return b, nil
}

func templateFor(mode Mode, lang models.Language) (string, []string, error) {
	switch mode {
	case PolicyGap:
		vars := []string{varContext, varQuestion}
		switch lang {
		case models.English:
			return policyGapEN, vars, nil
		case models.French:
			return policyGapFR, vars, nil
		}
	case UseCaseKPI:
		vars := []string{varContext, varUseCase}
		switch lang {
		case models.English:
			return useCaseKPIEN, vars, nil
		case models.French:
			return useCaseKPIFR, vars, nil
		}
	}
	return "", nil, fmt.Errorf("no template for mode %s and language %s", mode, lang)
}

// Build renders the template of (mode, lang). subject is the question for
// PolicyGap and the use case for UseCaseKPI.
func (b *Builder) Build(mode Mode, lang models.Language, context, subject string) (string, error) {
	tmpl, ok := b.templates[key{mode, lang}]
	if !ok {
		return "", &models.ValidationError{Field: "language", Reason: fmt.Sprintf("no %s template for %s", mode, lang)}
	}

	values := map[string]any{varContext: context}
	switch mode {
	case PolicyGap:
		values[varQuestion] = subject
	case UseCaseKPI:
		values[varUseCase] = subject
	}

	out, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", mode, err)
	}
	return out, nil
}

// PolicyQuestion wraps policy text in the language-specific comparison question.
func PolicyQuestion(lang models.Language, policy string) string {
	if lang == models.French {
		return fmt.Sprintf(policyQuestionFR, policy)
	}
	return fmt.Sprintf(policyQuestionEN, policy)
}
