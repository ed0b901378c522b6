// Package server exposes the analyzers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"policy-rag/internal/corpus"
	"policy-rag/internal/helper"
	"policy-rag/internal/metrics"
	"policy-rag/internal/models"
	"policy-rag/internal/parser"
	"policy-rag/internal/rag"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const multipartMemory = 8 << 20

// PolicyAnalyzer runs gap analyses of internal policies.
type PolicyAnalyzer interface {
	AnalyzeText(ctx context.Context, text string, lang models.Language) (*models.Report, error)
	AnalyzeDocuments(ctx context.Context, docs []models.Document, lang models.Language) (*models.Report, error)
}

// UseCaseAnalyzer scores use cases against internal policies.
type UseCaseAnalyzer interface {
	Analyze(ctx context.Context, uc rag.UseCase, lang models.Language) (*models.Report, error)
}

// Corpus is the retrieval side of the corpus manager.
type Corpus interface {
	rag.Retriever
	Stats() corpus.Stats
}

type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	CompareTopK    int
}

type Server struct {
	opts     Options
	policies PolicyAnalyzer
	useCases UseCaseAnalyzer
	corpus   Corpus
}

func New(opts Options, policies PolicyAnalyzer, useCases UseCaseAnalyzer, c Corpus) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	return &Server{opts: opts, policies: policies, useCases: useCases, corpus: c}
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(accessLog)
	r.Use(metrics.Middleware)

	r.Post("/analyze", s.handleAnalyze)
	r.Post("/analyze-usecase", s.handleAnalyzeUseCase)
	r.Get("/compare", s.handleCompare)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// handleAnalyze handles POST /analyze with either a PDF upload or policy_text.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := parseForm(r); err != nil {
		s.handleError(w, r, err, "Failed to analyze policy")
		return
	}

	lang, err := models.ParseLanguage(r.FormValue("language"))
	if err != nil {
		s.handleError(w, r, err, "")
		return
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
			s.handleError(w, r, &models.ValidationError{Field: "file", Reason: "Invalid file type"}, "")
			return
		}
		report, err := s.analyzeUpload(r.Context(), file, lang)
		if err != nil {
			s.handleError(w, r, err, "Failed to analyze policy")
			return
		}
		s.writeReport(w, r, report)
		return
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		s.handleError(w, r, fmt.Errorf("failed to read upload: %w", err), "Failed to analyze policy")
		return
	}

	if _, ok := r.Form["policy_text"]; ok {
		report, err := s.policies.AnalyzeText(r.Context(), r.FormValue("policy_text"), lang)
		if err != nil {
			s.handleError(w, r, err, "Failed to analyze policy text")
			return
		}
		s.writeReport(w, r, report)
		return
	}

	s.handleError(w, r, &models.ValidationError{Field: "input", Reason: "No valid input provided"}, "")
}

// analyzeUpload stores the upload under a random name, analyzes every page
// and removes the file.
func (s *Server) analyzeUpload(ctx context.Context, src io.Reader, lang models.Language) (*models.Report, error) {
	if err := helper.CreateFolder(s.opts.UploadDir); err != nil {
		return nil, err
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.opts.UploadDir, id+".pdf")

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer os.Remove(path)
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	docs, err := parser.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return s.policies.AnalyzeDocuments(ctx, docs, lang)
}

// handleAnalyzeUseCase handles POST /analyze-usecase.
func (s *Server) handleAnalyzeUseCase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := parseForm(r); err != nil {
		s.handleError(w, r, err, "Failed to analyze use case")
		return
	}

	lang, err := models.ParseLanguage(r.FormValue("language"))
	if err != nil {
		s.handleError(w, r, err, "")
		return
	}
	uc := rag.UseCase{
		Text:  r.FormValue("use_case"),
		IsCIS: r.FormValue("is_cis") == "true",
	}
	report, err := s.useCases.Analyze(r.Context(), uc, lang)
	if err != nil {
		s.handleError(w, r, err, "Failed to analyze use case")
		return
	}
	s.writeReport(w, r, report)
}

// handleCompare handles GET /compare.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	report, err := rag.Compare(r.Context(), s.corpus, s.opts.CompareTopK)
	if err != nil {
		s.handleError(w, r, err, "Failed to compare policies")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.corpus.Stats()
	status, code := "ok", http.StatusOK
	if !stats.Initialized {
		status, code = "initializing", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"corpora": stats,
	})
}

func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, report *models.Report) {
	if r.URL.Query().Get("format") != "html" {
		writeJSON(w, http.StatusOK, report)
		return
	}
	out, err := rag.RenderHTML(report)
	if err != nil {
		s.handleError(w, r, err, "Failed to render analysis")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// parseForm accepts multipart and urlencoded bodies.
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooLarge.Limit)
	}
	return &models.ValidationError{Field: "body", Reason: "malformed form body"}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
