package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// ErrNotFound is returned when a graph or cast file does not exist
var ErrNotFound = errors.New("not found")

// Storage defines a unified interface for all storage operations
// This interface combines gamestate persistence (Redis) with resource loading (filesystem)
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// GameState operations (Redis-backed)
	// LoadGameState returns nil, nil when the game state does not exist
	SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	DeleteGameState(ctx context.Context, id uuid.UUID) error

	// Graph operations (filesystem-backed)
	// ListGraphs maps graph names to file names
	ListGraphs(ctx context.Context) (map[string]string, error)
	GetGraph(ctx context.Context, filename string) (*dialogue.Graph, error)

	// Cast operations (filesystem-backed)
	GetCast(ctx context.Context) (*state.Cast, error)
}
