package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu         sync.RWMutex
	gamestates map[uuid.UUID]*state.GameState
	graphs     map[string]*dialogue.Graph
	cast       *state.Cast
	pingError  error
	saves      int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		gamestates: make(map[uuid.UUID]*state.GameState),
		graphs:     make(map[string]*dialogue.Graph),
	}
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveGameState mocks saving a gamestate
func (m *MockStorage) SaveGameState(ctx context.Context, id uuid.UUID, gamestate *state.GameState) error {
	if gamestate == nil {
		return errors.New("gamestate cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gamestates[id] = gamestate
	m.saves++
	return nil
}

// LoadGameState mocks loading a gamestate
func (m *MockStorage) LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gamestate, exists := m.gamestates[id]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return gamestate, nil
}

// DeleteGameState mocks deleting a gamestate
func (m *MockStorage) DeleteGameState(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gamestates, id)
	return nil
}

// Saves returns how many times SaveGameState has succeeded
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// ListGraphs mocks listing graphs
func (m *MockStorage) ListGraphs(ctx context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string)
	for filename, g := range m.graphs {
		result[g.Name] = filename
	}
	return result, nil
}

// GetGraph mocks getting a graph by filename
func (m *MockStorage) GetGraph(ctx context.Context, filename string) (*dialogue.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, exists := m.graphs[filename]
	if !exists {
		return nil, fmt.Errorf("graph %s: %w", filename, ErrNotFound)
	}
	return g, nil
}

// AddGraph adds a graph to the mock storage (for testing)
func (m *MockStorage) AddGraph(filename string, g *dialogue.Graph) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[filename] = g
}

// GetCast mocks loading the cast
func (m *MockStorage) GetCast(ctx context.Context) (*state.Cast, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cast == nil {
		return nil, fmt.Errorf("cast: %w", ErrNotFound)
	}
	return m.cast, nil
}

// SetCast sets the cast returned by GetCast (for testing)
func (m *MockStorage) SetCast(c *state.Cast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cast = c
}
