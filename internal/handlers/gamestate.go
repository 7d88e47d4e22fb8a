package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/internal/services/sessions"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// EffectApplier applies effects to a gamestate, sharing it with any session that hosts it
type EffectApplier interface {
	Apply(ctx context.Context, gameID uuid.UUID, effects []state.Effect) (*state.GameState, []string, error)
}

var _ EffectApplier = (*sessions.Manager)(nil)

type GameStateHandler struct {
	storage storage.Storage
	effects EffectApplier
	logger  *slog.Logger
}

func NewGameStateHandler(logger *slog.Logger, storage storage.Storage, effects EffectApplier) *GameStateHandler {
	return &GameStateHandler{
		logger:  logger,
		storage: storage,
		effects: effects,
	}
}

// PatchGameStateRequest applies setter effects to a stored game state
type PatchGameStateRequest struct {
	Effects []state.Effect `json:"effects"`
}

// PatchGameStateResponse carries the updated game state and any effects that were skipped
type PatchGameStateResponse struct {
	GameState *state.GameState `json:"gamestate"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// ServeHTTP handles HTTP requests for game state operations
// Routes:
// POST /v1/gamestate        - Create new game state from the cast file
// GET /v1/gamestate/{id}    - Read game state by ID
// PATCH /v1/gamestate/{id}  - Apply effects to a game state
// DELETE /v1/gamestate/{id} - Delete game state by ID
func (h *GameStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/gamestate"), "/")
	var gameStateID uuid.UUID

	if path != "" {
		var err error
		gameStateID, err = uuid.Parse(path)
		if err != nil {
			h.logger.Warn("Invalid game state ID", "id", path, "error", err)
			writeError(w, h.logger, http.StatusBadRequest, "Invalid game state ID format")
			return
		}
	}

	switch r.Method {
	case http.MethodPost:
		if gameStateID != uuid.Nil {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "POST is only supported on /v1/gamestate")
			return
		}
		h.handleCreate(w, r)

	case http.MethodGet, http.MethodPatch, http.MethodDelete:
		if gameStateID == uuid.Nil {
			h.logger.Warn("Request without game state ID", "method", r.Method)
			writeError(w, h.logger, http.StatusBadRequest, "Game state ID is required for "+r.Method+" requests")
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, gameStateID)
		case http.MethodPatch:
			h.handlePatch(w, r, gameStateID)
		default:
			h.handleDelete(w, r, gameStateID)
		}

	default:
		h.logger.Warn("Method not allowed for game state endpoint", "method", r.Method)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST, GET, PATCH, DELETE")
	}
}

// handleCreate seeds a new game state from the cast. Without a cast file the game state starts empty.
func (h *GameStateHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	cast, err := h.storage.GetCast(r.Context())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error("Failed to load cast", "error", err)
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to load cast")
			return
		}
		h.logger.Warn("No cast file, creating empty game state")
	}

	gs := cast.NewGameState()
	if err := h.storage.SaveGameState(r.Context(), gs.ID, gs); err != nil {
		h.logger.Error("Failed to save new game state", "error", err, "id", gs.ID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create game state")
		return
	}

	h.logger.Debug("Game state created successfully", "id", gs.ID.String())
	writeJSON(w, h.logger, http.StatusCreated, gs)
}

func (h *GameStateHandler) load(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) *state.GameState {
	gs, err := h.storage.LoadGameState(r.Context(), gameStateID)
	if err != nil {
		h.logger.Error("Failed to load game state", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game state")
		return nil
	}
	if gs == nil {
		h.logger.Warn("Game state not found", "id", gameStateID.String())
		writeError(w, h.logger, http.StatusNotFound, "Game state not found")
		return nil
	}
	return gs
}

func (h *GameStateHandler) handleRead(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	gs := h.load(w, r, gameStateID)
	if gs == nil {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

// handlePatch applies effects in order. Effects with missing references are skipped and reported.
// Notifications from the effects go out on the gamestate's event stream.
func (h *GameStateHandler) handlePatch(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	var req PatchGameStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in PATCH request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	for i, e := range req.Effects {
		if err := e.Validate(); err != nil {
			writeJSON(w, h.logger, http.StatusUnprocessableEntity, ErrorResponse{
				Error:    "Invalid effect",
				Problems: []string{"effect " + e.String() + ": " + err.Error()},
			})
			h.logger.Warn("Invalid effect in PATCH request", "index", i, "error", err)
			return
		}
	}

	gs, warnings, err := h.effects.Apply(r.Context(), gameStateID, req.Effects)
	if err != nil {
		h.logger.Warn("Failed to patch game state", "error", err, "id", gameStateID.String())
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, PatchGameStateResponse{GameState: gs, Warnings: warnings})
}

func (h *GameStateHandler) handleDelete(w http.ResponseWriter, r *http.Request, gameStateID uuid.UUID) {
	if err := h.storage.DeleteGameState(r.Context(), gameStateID); err != nil {
		h.logger.Error("Failed to delete game state", "error", err, "id", gameStateID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete game state")
		return
	}
	h.logger.Debug("Game state deleted", "id", gameStateID.String())
	w.WriteHeader(http.StatusNoContent)
}
