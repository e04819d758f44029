package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "dossierflow/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "rejection reason is required"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation_error" {
			t.Fatalf("expected error code validation_error, got %q", body["error"])
		}
		if body["error_description"] != "rejection reason is required" {
			t.Fatalf("expected error_description for validation errors, got %q", body["error_description"])
		}
	})

	t.Run("workflow conflicts map to 409", func(t *testing.T) {
		for _, code := range []dErrors.Code{
			dErrors.CodeInvalidTransition,
			dErrors.CodeOutOfOrder,
			dErrors.CodeInvalidQuoteState,
			dErrors.CodeAlreadyFinalized,
			dErrors.CodeConcurrentModification,
		} {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(code, "nope"))
			if w.Code != http.StatusConflict {
				t.Fatalf("expected 409 for %s, got %d", code, w.Code)
			}
		}
	})
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	type payload struct {
		Reason string `json:"reason"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","bogus":1}`))
	w := httptest.NewRecorder()

	_, err := Decode[payload](w, req)
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	if !dErrors.HasCode(err, dErrors.CodeBadRequest) {
		t.Fatalf("expected bad_request code, got %v", err)
	}
}
