package server

import (
	"encoding/json"
	"net/http"

	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/errors"
)

type successEnvelope struct {
	Data interface{} `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, successEnvelope{Data: data})
}

func writeErrorStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

// writeError maps a typed error onto a status code. Internal details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := http.StatusInternalServerError, "internal", "internal server error"

	switch errors.TypeOf(err) {
	case errors.ErrorTypeNotFound:
		status, code, message = http.StatusNotFound, "not_found", "deal not found"
	case errors.ErrorTypeValidation:
		status, code, message = http.StatusBadRequest, "validation", err.Error()
	case errors.ErrorTypeRateLimit:
		status, code, message = http.StatusTooManyRequests, "rate_limited", "upstream is rate limiting requests"
	case errors.ErrorTypeStore, errors.ErrorTypeNetwork:
		status, code, message = http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"
	}

	if status >= http.StatusInternalServerError {
		logger.ForServer().WithContext(r.Context()).Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("request.error")
	}
	writeErrorStatus(w, status, code, message)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.ForServer().Error().Err(err).Msg("failed to encode response")
	}
}
