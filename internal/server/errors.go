package server

import (
	"errors"
	"net/http"

	"policy-rag/internal/logger"
	"policy-rag/internal/models"
)

var errTooLarge = errors.New("upload too large")

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	sentinel error
	status   int
	code     string
	message  string // empty: use the endpoint's failure message
}

// errorTable is consulted in order; the first sentinel matched by errors.Is wins.
var errorTable = []errorMapping{
	{errTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large", "Uploaded file is too large"},
	{models.ErrLoad, http.StatusBadRequest, "invalid_file", "Uploaded file could not be read"},
	{models.ErrNotInitialized, http.StatusServiceUnavailable, "not_initialized", "Policy corpora are not initialized"},
	{models.ErrLLMTimeout, http.StatusGatewayTimeout, "llm_timeout", "Language model request timed out"},
	{models.ErrLLMRequest, http.StatusInternalServerError, "llm_error", ""},
	{models.ErrEmptyAnalysis, http.StatusInternalServerError, "empty_analysis", ""},
	{models.ErrEmbedding, http.StatusInternalServerError, "embedding_error", ""},
	{models.ErrEmptyIndex, http.StatusInternalServerError, "empty_index", ""},
}

// handleError logs err and writes its generic mapping. Validation reasons are
// our own text and are returned as is.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error, failMsg string) {
	log := logger.Ctx(r.Context())

	var ve *models.ValidationError
	if errors.As(err, &ve) {
		log.Warn().Err(err).Msg("Rejected request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Reason, Code: "validation_failed"})
		return
	}

	if failMsg == "" {
		failMsg = "internal error"
	}
	for _, m := range errorTable {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = failMsg
		}
		if m.status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("code", m.code).Msg("Request failed")
		} else {
			log.Warn().Err(err).Str("code", m.code).Msg("Request failed")
		}
		writeJSON(w, m.status, errorResponse{Error: msg, Code: m.code})
		return
	}

	log.Error().Err(err).Msg("Internal error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: failMsg, Code: "internal_error"})
}
