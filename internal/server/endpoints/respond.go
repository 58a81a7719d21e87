package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/internal/generation"
	"github.com/jackzampolin/folio/internal/providers"
	"github.com/jackzampolin/folio/internal/svcctx"
)

// maxBodyBytes caps request bodies. A 100 item start request with long
// prompts stays well under it.
const maxBodyBytes = 1 << 20

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// classify maps a service error to an HTTP status and error kind.
func classify(err error) (int, string) {
	var (
		validationErr *generation.ValidationError
		authErr       *providers.AuthError
		timeoutErr    *providers.TimeoutError
		generationErr *generation.GenerationError
		remoteErr     *providers.RemoteError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, api.KindValidation
	case errors.As(err, &authErr):
		return http.StatusServiceUnavailable, api.KindAuth
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, api.KindTimeout
	case errors.As(err, &generationErr):
		return http.StatusBadGateway, api.KindGeneration
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway, api.KindRemote
	default:
		return http.StatusInternalServerError, api.KindInternal
	}
}

// writeServiceError logs err and writes it with its mapped status and kind.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	logger := svcctx.LoggerFrom(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", "path", r.URL.Path, "status", status, "kind", kind, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

// decodeJSON reads a JSON request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "invalid request body"
		if !errors.Is(err, io.EOF) {
			msg = fmt.Sprintf("invalid request body: %v", err)
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: api.KindValidation})
		return false
	}
	return true
}

// generationService returns the orchestrator or writes a 503.
func generationService(w http.ResponseWriter, r *http.Request) *generation.Service {
	svc := svcctx.GenerationFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "generation service not available")
	}
	return svc
}
