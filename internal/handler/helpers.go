package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var configuration *domain.ErrConfiguration
	var notFound *domain.ErrNotFound
	var store *domain.ErrStore
	var rejection *domain.ErrNotifierRejection
	var failure *domain.ErrNotifierFailure

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &configuration):
		logger.Error("configuration missing", zap.String("setting", configuration.Setting))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("resource", notFound.Resource), zap.String("id", notFound.ID))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &store):
		logger.Error("store error", zap.String("op", store.Op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &rejection):
		logger.Warn("webhook rejected", zap.Int("status", rejection.StatusCode))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &failure):
		logger.Error("webhook failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
