package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pkordes/geopulse-companion/internal/apiclient"
	"github.com/pkordes/geopulse-companion/internal/coverage"
	"github.com/pkordes/geopulse-companion/internal/domain"
)

// ErrorDetail is the machine-readable code and human-readable message of a
// failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// requestError rejects a request before it reaches a service, e.g. a
// malformed body or query parameter.
func requestError(w http.ResponseWriter, message string) {
	writeErrorBody(w, http.StatusUnprocessableEntity, "validation_error", message)
}

// writeError maps err onto a status code and error body. Errors that are not
// one of the domain sentinels or a remote API failure are logged and
// reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeErrorBody(w, http.StatusUnprocessableEntity, "validation_error", detail(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, "not_found", detail(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrUnauthenticated):
		writeErrorBody(w, http.StatusUnauthorized, "unauthenticated", detail(err, domain.ErrUnauthenticated))
	case errors.Is(err, coverage.ErrSuperseded):
		writeErrorBody(w, http.StatusConflict, "superseded", coverage.ErrSuperseded.Error())
	case errors.As(err, &apiErr):
		s.log.WarnContext(r.Context(), "geopulse api failure", "status", apiErr.Status, "error", err)
		writeErrorBody(w, http.StatusBadGateway, "upstream_error", apiErr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErrorBody(w, http.StatusGatewayTimeout, "timeout", "request cancelled before the geopulse api answered")
	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// detail extracts the human-readable part of an error wrapping sentinel.
// A remote API message wins. Otherwise the sentinel text and the
// "pkg.Type.Method: " call-site prefixes are stripped, so both
// "svc.Op: validation error: name is required" and
// "svc.Op: name is required: validation error" give "name is required".
func detail(err, sentinel error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	msg := err.Error()
	marker := sentinel.Error()
	if i := strings.LastIndex(msg, marker+": "); i >= 0 {
		return msg[i+len(marker)+2:]
	}
	msg = strings.TrimSuffix(msg, ": "+marker)
	for {
		i := strings.Index(msg, ": ")
		if i < 0 || strings.Contains(msg[:i], " ") || !strings.Contains(msg[:i], ".") {
			break
		}
		msg = msg[i+2:]
	}
	if msg == "" {
		return marker
	}
	return msg
}

// decodeBody reads a JSON request body into v. Oversized bodies are answered
// with 413 and anything unreadable with 422; it reports whether the handler
// may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeErrorBody(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
	case errors.Is(err, io.EOF):
		requestError(w, "request body is required")
	default:
		requestError(w, "malformed JSON body: "+err.Error())
	}
	return false
}
