package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"studentmarket/app/apperror"

	"go.uber.org/zap"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, errorBody{Error: message})
}

// sendAppError maps err onto a status code. Unexpected errors are logged and
// hidden behind a generic message.
func sendAppError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("request failed", zap.Error(err))
		sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
	}
	sendJSON(w, status, errorBody{Error: appErr.Message, Field: appErr.Field})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperror.ValidationFailed("", "invalid JSON: "+err.Error())
	}
	return nil
}
