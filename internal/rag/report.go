package rag

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"policy-rag/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// FormatReport wraps a non-blank model answer in the report envelope.
func FormatReport(text string, now time.Time) (*models.Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyAnalysis
	}
	return &models.Report{
		Analysis:  text,
		Timestamp: now.UTC().Format(time.RFC3339),
		Status:    models.StatusCompleted,
	}, nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderHTML converts the markdown analysis of r into an HTML fragment.
// Raw HTML in the analysis is not passed through.
func RenderHTML(r *models.Report) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(r.Analysis), &buf); err != nil {
		return "", fmt.Errorf("failed to render analysis: %w", err)
	}
	return buf.String(), nil
}
