package handlers

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

type GraphsHandler struct {
	log     *slog.Logger
	storage storage.Storage
}

func NewGraphsHandler(log *slog.Logger, storage storage.Storage) *GraphsHandler {
	return &GraphsHandler{
		log:     log,
		storage: storage,
	}
}

// ServeHTTP handles graph lookups
// Routes:
// GET /v1/graphs        - Map of graph names to file names
// GET /v1/graphs/{file} - A validated graph. {file} may name a subdirectory, as listed.
func (h *GraphsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.log, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	filename := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/graphs"), "/")
	if filename == "" {
		h.handleList(w, r)
		return
	}

	if !filepath.IsLocal(filepath.FromSlash(filename)) {
		writeError(w, h.log, http.StatusBadRequest, "Invalid filename")
		return
	}

	g, err := h.storage.GetGraph(r.Context(), filename)
	if err != nil {
		h.log.Warn("Failed to get graph", "error", err, "filename", filename)
		writeDomainError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, g)
}

func (h *GraphsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	graphs, err := h.storage.ListGraphs(r.Context())
	if err != nil {
		h.log.Error("Failed to list graphs", "error", err)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to list graphs")
		return
	}
	writeJSON(w, h.log, http.StatusOK, graphs)
}
