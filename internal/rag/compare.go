package rag

import (
	"context"
	"fmt"
	"strings"

	"policy-rag/internal/models"
)

// Compare samples up to k chunks from both corpora with a generic query and
// reports the global chunks none of whose sentences appear in any internal
// chunk. Matching is case-insensitive substring matching.
func Compare(ctx context.Context, retriever Retriever, k int) (*models.CoverageReport, error) {
	if k <= 0 {
		k = models.DefaultCompareTopK
	}
	internal, err := retriever.Retrieve(ctx, models.CorpusInternal, models.CompareQuery, k)
	if err != nil {
		return nil, fmt.Errorf("failed to sample internal corpus: %w", err)
	}
	global, err := retriever.Retrieve(ctx, models.CorpusGlobal, models.CompareQuery, k)
	if err != nil {
		return nil, fmt.Errorf("failed to sample global corpus: %w", err)
	}

	internalText := make([]string, len(internal))
	for i, c := range internal {
		internalText[i] = strings.ToLower(c.Content)
	}

	report := &models.CoverageReport{
		MissingRegulations:     []string{},
		TotalInternalPolicies:  len(internal),
		TotalGlobalRegulations: len(global),
	}
	for _, g := range global {
		if !covered(g.Content, internalText) {
			report.MissingRegulations = append(report.MissingRegulations, g.Content)
		}
	}
	if len(global) > 0 {
		report.ComplianceRate = float64(len(global)-len(report.MissingRegulations)) / float64(len(global))
	}
	return report, nil
}

func covered(regulation string, internal []string) bool {
	for _, phrase := range strings.Split(strings.ToLower(regulation), ".") {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		for _, text := range internal {
			if strings.Contains(text, phrase) {
				return true
			}
		}
	}
	return false
}
