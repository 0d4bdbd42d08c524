package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/searchlens/backend/internal/apierr"
)

// APIResponse is the standard API response wrapper
type APIResponse struct {
	Success     bool        `json:"success"`
	Data        interface{} `json:"data,omitempty"`
	Cached      bool        `json:"cached,omitempty"`
	NotFound    bool        `json:"notFound,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	Error       string      `json:"error,omitempty"`
	Code        string      `json:"code,omitempty"`
	Details     interface{} `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			// Log error but don't try to write again
			return
		}
	}
}

// Success writes a success response with data
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Created writes a 201 created response
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// Upstream writes a success response for gateway results, carrying the
// cache and not-found markers alongside the payload.
func Upstream(w http.ResponseWriter, data interface{}, cached, notFound bool, suggestions []string) {
	JSON(w, http.StatusOK, APIResponse{
		Success:     true,
		Data:        data,
		Cached:      cached,
		NotFound:    notFound,
		Suggestions: suggestions,
	})
}

// Error writes an error response. API errors map to their HTTP status;
// anything else is reported as a 500 without leaking internals.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		JSON(w, http.StatusInternalServerError, APIResponse{
			Success: false,
			Error:   "internal server error",
			Code:    "internal",
		})
		return
	}

	if apiErr.Kind == apierr.KindRateLimit {
		if remaining, ok := detailInt(apiErr.Details, "remaining"); ok {
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}
		if resetAt, ok := detailInt(apiErr.Details, "reset_at"); ok {
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt))
		}
	}

	body := APIResponse{
		Success: false,
		Error:   apiErr.Message,
		Code:    apiErr.Code,
	}
	if len(apiErr.Details) > 0 {
		body.Details = apiErr.Details
	}
	JSON(w, apiErr.HTTPStatus(), body)
}

// InternalError writes a 500 internal server error response
func InternalError(w http.ResponseWriter, message string) {
	if message == "" {
		message = "internal server error"
	}
	JSON(w, http.StatusInternalServerError, APIResponse{
		Success: false,
		Error:   message,
		Code:    "internal",
	})
}

// NoContent writes a 204 no content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func detailInt(details map[string]interface{}, key string) (int64, bool) {
	v, ok := details[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
