package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"profitloss/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondStorageError maps repository sentinels onto HTTP statuses: missing
// rows are 404, unique violations 422 and delete guards 409.
func respondStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicate):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Storage operation failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func respondValidationError(w http.ResponseWriter, err error) {
	respondError(w, http.StatusUnprocessableEntity, err.Error())
}

// respondReferenceError is respondStorageError for create and update bodies,
// where a missing referenced row is the caller's validation problem, not a
// missing resource.
func respondReferenceError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondStorageError(w, err)
}
