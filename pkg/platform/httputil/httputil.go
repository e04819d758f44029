// Package httputil centralizes JSON encoding and the mapping from coded
// domain errors to HTTP responses so handlers stay thin.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "dossierflow/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20 // 1 MiB request body cap

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError maps a coded error to an HTTP status and JSON body. Internal
// errors omit the description so storage details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, statusFor(code), body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidTransition,
		dErrors.CodeOutOfOrder,
		dErrors.CodeInvalidQuoteState,
		dErrors.CodeAlreadyFinalized,
		dErrors.CodeConcurrentModification:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Decode parses a JSON request body into T, rejecting unknown fields and
// oversized bodies. Returns a coded error suitable for WriteError.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return v, nil
}

// DecodeAndPrepare decodes the body and writes the error response itself on
// failure, logging the rejection. Handlers check the second return only.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (T, bool) {
	v, err := Decode[T](w, r)
	if err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "request body rejected",
				"request_id", requestID,
				"path", r.URL.Path,
				"error", err,
			)
		}
		WriteError(w, err)
		var zero T
		return zero, false
	}
	return v, true
}
