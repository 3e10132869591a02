package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"inventory-tracker/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string   `json:"error"`
	Code      string   `json:"code"`
	Details   []string `json:"details,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors onto the JSON error envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *core.ValidationError
		derr *core.DispatchError
	)
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, r, "validation failed", "VALIDATION_ERROR", http.StatusBadRequest, verr.Problems)
	case errors.Is(err, core.ErrRecordNotFound):
		writeError(w, r, "record not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrStoreUnavailable):
		h.logger.Error("store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, "inventory store unavailable", "STORE_UNAVAILABLE", http.StatusServiceUnavailable)
	case errors.Is(err, core.ErrSettingsWrite):
		h.logger.Error("settings write failed", zap.Error(err))
		writeError(w, r, "failed to save alert settings", "SETTINGS_WRITE_FAILED", http.StatusInternalServerError)
	case errors.Is(err, core.ErrNotificationsDisabled):
		writeError(w, r, err.Error(), "NOTIFICATIONS_DISABLED", http.StatusConflict)
	case errors.As(err, &derr):
		details := make([]string, 0, len(derr.Failures))
		for _, f := range derr.Failures {
			details = append(details, f.Recipient+": "+f.Err.Error())
		}
		writeErrorDetails(w, r, "notification dispatch failed", "DISPATCH_FAILED", http.StatusBadGateway, details)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, "request cancelled", "REQUEST_CANCELLED", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("request_id", requestIDFromContext(r.Context())), zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// decodeJSON decodes the request body into v and returns false after writing an error
// response on failure: 413 when the body exceeds the limit, 400 otherwise.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+strings.TrimPrefix(err.Error(), "json: "), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
