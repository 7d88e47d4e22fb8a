package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/dialogue-engine/internal/services/sessions"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeDomainError maps dialogue, session and storage errors to a status code.
// Validation problems are listed in the body.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		ve  *dialogue.ValidationError
		gce *dialogue.GraphCycleError
		ise *dialogue.InvalidSelectionError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, sessions.ErrNotFound):
		writeError(w, logger, http.StatusNotFound, err.Error())
	case errors.As(err, &ve):
		writeJSON(w, logger, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "graph " + ve.Graph + " is invalid",
			Problems: ve.Problems,
		})
	case errors.As(err, &gce):
		writeError(w, logger, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &ise), errors.Is(err, dialogue.ErrInvalidState):
		writeError(w, logger, http.StatusConflict, err.Error())
	default:
		logger.Error("Request failed", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}
