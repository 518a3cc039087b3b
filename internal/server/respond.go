package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/helewild/gridhud/internal/domain"
)

// Error codes carried in the error_code field of rejection responses.
const (
	codeMissingSignature    = "MissingSignature"
	codeSignatureMismatch   = "SignatureMismatch"
	codeMalformedPayload    = "MalformedPayload"
	codeStaleTimestamp      = "StaleTimestamp"
	codeTooManyRequests     = "TooManyRequests"
	codeUpstreamUnavailable = "UpstreamUnavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n"))
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingSignature):
		return http.StatusBadRequest, codeMissingSignature
	case errors.Is(err, domain.ErrSignatureMismatch):
		return http.StatusUnauthorized, codeSignatureMismatch
	case errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadRequest, codeMalformedPayload
	case errors.Is(err, domain.ErrStaleTimestamp):
		return http.StatusBadRequest, codeStaleTimestamp
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, codeTooManyRequests
	default:
		return http.StatusInternalServerError, codeUpstreamUnavailable
	}
}

// writeGateError shapes a gate rejection into its wire form. Server-side
// failures collapse to a generic message; the detail stays in the logs.
func (s *Server) writeGateError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)

	resp := domain.ErrorResponse{Error: err.Error(), ErrorCode: code}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}

	var gerr *domain.GateError
	if errors.As(err, &gerr) {
		resp.ReceivedSig = gerr.ReceivedSig
		resp.ComputedSig = gerr.ComputedSig
		if gerr.RetryAfter > 0 {
			resp.RetryAfter = int64(gerr.RetryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(gerr.RetryAfter))
		}
	}

	writeJSON(w, status, resp)
}
