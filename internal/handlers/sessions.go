package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
)

// SessionManager is the session surface the handler drives
type SessionManager interface {
	Create(ctx context.Context, graphFile string, gameID uuid.UUID) (dialogue.Snapshot, error)
	Get(id string) (dialogue.Snapshot, error)
	TypingComplete(ctx context.Context, id string) (dialogue.Snapshot, error)
	Advance(ctx context.Context, id string) (dialogue.Snapshot, error)
	Select(ctx context.Context, id string, index int) (dialogue.Snapshot, error)
	End(ctx context.Context, id string) (dialogue.Snapshot, error)
}

// CreateSessionRequest defines the request body for starting a session
type CreateSessionRequest struct {
	Graph       string `json:"graph"`        // Required: graph filename
	GameStateID string `json:"gamestate_id"` // Required: existing game state
}

// SelectRequest defines the request body for choosing an option
type SelectRequest struct {
	Index *int `json:"index"`
}

type SessionsHandler struct {
	manager SessionManager
	logger  *slog.Logger
}

func NewSessionsHandler(logger *slog.Logger, manager SessionManager) *SessionsHandler {
	return &SessionsHandler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP handles dialogue session operations
// Routes:
// POST /v1/sessions                     - Start a session
// GET /v1/sessions/{id}                 - Session snapshot
// POST /v1/sessions/{id}/typing-complete
// POST /v1/sessions/{id}/advance
// POST /v1/sessions/{id}/select         - Body {"index": n}
// POST /v1/sessions/{id}/end
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		snap, err := h.manager.Get(parts[0])
		h.respond(w, snap, err)
	case len(parts) == 2 && r.Method == http.MethodPost:
		h.handleAction(w, r, parts[0], parts[1])
	case len(parts) > 2:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session route")
	default:
		h.logger.Warn("Method not allowed for sessions endpoint", "method", r.Method, "path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON in request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Graph == "" {
		writeError(w, h.logger, http.StatusBadRequest, "graph is required")
		return
	}
	gameID, err := uuid.Parse(req.GameStateID)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game state ID format")
		return
	}

	snap, err := h.manager.Create(r.Context(), req.Graph, gameID)
	if err != nil {
		h.logger.Warn("Failed to start session", "graph", req.Graph, "gamestate_id", gameID.String(), "error", err)
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, snap)
}

func (h *SessionsHandler) handleAction(w http.ResponseWriter, r *http.Request, id, action string) {
	ctx := r.Context()

	var (
		snap dialogue.Snapshot
		err  error
	)
	switch action {
	case "typing-complete":
		snap, err = h.manager.TypingComplete(ctx, id)
	case "advance":
		snap, err = h.manager.Advance(ctx, id)
	case "select":
		var req SelectRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil || req.Index == nil {
			writeError(w, h.logger, http.StatusBadRequest, "Request body must be {\"index\": n}")
			return
		}
		snap, err = h.manager.Select(ctx, id, *req.Index)
	case "end":
		snap, err = h.manager.End(ctx, id)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown session action: "+action)
		return
	}
	h.respond(w, snap, err)
}

func (h *SessionsHandler) respond(w http.ResponseWriter, snap dialogue.Snapshot, err error) {
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}
