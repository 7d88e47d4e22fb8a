package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// ErrNotFound is returned for operations on a session that is not hosted
var ErrNotFound = errors.New("session not found")

// Forwarder turns a gamestate's bus events into outbound notifications
type Forwarder interface {
	Forward(gameID string) state.Listener
}

// Manager hosts dialogue sessions for remote drivers. Each hosted session is driven
// under its own mutex; sessions on the same gamestate share one in-memory GameState.
type Manager struct {
	store     storage.Storage
	forwarder Forwarder
	logger    *slog.Logger
	maxDepth  int
	autoClose time.Duration

	mu       sync.Mutex
	sessions map[string]*hosted
	games    map[uuid.UUID]*game
	graphs   map[string]*dialogue.Graph
}

type hosted struct {
	mu      sync.Mutex
	session *dialogue.Session
	gameID  uuid.UUID
	timer   *time.Timer
	closed  bool
}

// game is a gamestate shared by hosted sessions and effect patches.
// mu serializes saves and patches so an older snapshot never overwrites a newer one.
type game struct {
	mu          sync.Mutex
	gs          *state.GameState
	refs        int
	unsubscribe func()
}

// NewManager creates a session manager backed by store
func NewManager(store storage.Storage, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		maxDepth: dialogue.DefaultMaxCascadeDepth,
		sessions: make(map[string]*hosted),
		games:    make(map[uuid.UUID]*game),
		graphs:   make(map[string]*dialogue.Graph),
	}
}

// WithForwarder sets where gamestate and dialogue events are sent
// Returns the Manager for method chaining
func (m *Manager) WithForwarder(f Forwarder) *Manager {
	m.forwarder = f
	return m
}

// WithMaxDepth sets the cascade depth bound for new sessions
// Returns the Manager for method chaining
func (m *Manager) WithMaxDepth(n int) *Manager {
	if n > 0 {
		m.maxDepth = n
	}
	return m
}

// WithAutoClose sets how long a terminal session stays open before it is ended. Zero disables it.
// Returns the Manager for method chaining
func (m *Manager) WithAutoClose(d time.Duration) *Manager {
	m.autoClose = d
	return m
}

// Create starts a new session over the named graph file and gamestate
func (m *Manager) Create(ctx context.Context, graphFile string, gameID uuid.UUID) (dialogue.Snapshot, error) {
	g, err := m.graph(ctx, graphFile)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	shared, err := m.acquire(ctx, gameID)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	gs := shared.gs

	s := dialogue.NewSession(g, gs, m.logger).
		WithEvents(gs.Events()).
		WithMaxDepth(m.maxDepth)
	h := &hosted{session: s, gameID: gameID}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := s.StartDialogue(); err != nil {
		m.persist(ctx, gameID)
		m.release(gameID)
		return dialogue.Snapshot{}, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = h
	m.mu.Unlock()

	m.logger.Info("Session created",
		"session_id", s.ID,
		"graph", g.Name,
		"gamestate_id", gameID.String())

	m.afterStep(ctx, h)
	return s.Snapshot(), nil
}

// Get returns a session's snapshot
func (m *Manager) Get(id string) (dialogue.Snapshot, error) {
	h, err := m.lookup(id)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return dialogue.Snapshot{}, ErrNotFound
	}
	return h.session.Snapshot(), nil
}

// TypingComplete forwards the typing-complete signal
func (m *Manager) TypingComplete(ctx context.Context, id string) (dialogue.Snapshot, error) {
	return m.step(ctx, id, (*dialogue.Session).TypingComplete)
}

// Advance follows the current node's next edge
func (m *Manager) Advance(ctx context.Context, id string) (dialogue.Snapshot, error) {
	return m.step(ctx, id, (*dialogue.Session).Advance)
}

// Select picks an option by index
func (m *Manager) Select(ctx context.Context, id string, index int) (dialogue.Snapshot, error) {
	return m.step(ctx, id, func(s *dialogue.Session) error {
		return s.SelectOption(index)
	})
}

// End ends the conversation and stops hosting the session
func (m *Manager) End(ctx context.Context, id string) (dialogue.Snapshot, error) {
	h, err := m.lookup(id)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return dialogue.Snapshot{}, ErrNotFound
	}
	m.closeLocked(ctx, h, "ended")
	return h.session.Snapshot(), nil
}

// Apply runs effects against a gamestate and saves it. When sessions host the gamestate
// the effects land on their shared copy, so later session steps keep them.
// Effects whose references are missing are skipped and reported as warnings.
func (m *Manager) Apply(ctx context.Context, gameID uuid.UUID, effects []state.Effect) (*state.GameState, []string, error) {
	g, err := m.acquire(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	defer m.release(gameID)

	g.mu.Lock()
	defer g.mu.Unlock()

	worker := state.NewEffectWorker(g.gs, m.logger)
	var warnings []string
	for _, e := range effects {
		if err := worker.Apply(e); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	if err := m.store.SaveGameState(ctx, gameID, g.gs); err != nil {
		return nil, nil, fmt.Errorf("failed to save gamestate: %w", err)
	}
	m.logger.Debug("Effects applied",
		"gamestate_id", gameID.String(),
		"effects", len(effects),
		"warnings", len(warnings))
	return g.gs, warnings, nil
}

// Len returns the number of hosted sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown ends every hosted session
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	all := make([]*hosted, 0, len(m.sessions))
	for _, h := range m.sessions {
		all = append(all, h)
	}
	m.mu.Unlock()

	for _, h := range all {
		h.mu.Lock()
		if !h.closed {
			m.closeLocked(ctx, h, "shutdown")
		}
		h.mu.Unlock()
	}
}

func (m *Manager) step(ctx context.Context, id string, op func(*dialogue.Session) error) (dialogue.Snapshot, error) {
	h, err := m.lookup(id)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return dialogue.Snapshot{}, ErrNotFound
	}

	if err := op(h.session); err != nil {
		var cycle *dialogue.GraphCycleError
		if errors.As(err, &cycle) {
			// the session is idle again; nothing is left to drive
			m.closeLocked(ctx, h, "cycle")
		}
		return h.session.Snapshot(), err
	}

	m.afterStep(ctx, h)
	return h.session.Snapshot(), nil
}

// afterStep persists the gamestate and arms auto-close once the conversation is over.
// Caller holds h.mu.
func (m *Manager) afterStep(ctx context.Context, h *hosted) {
	m.persist(ctx, h.gameID)

	if h.session.Status() != dialogue.StatusTerminal || m.autoClose <= 0 || h.timer != nil {
		return
	}
	id := h.session.ID
	h.timer = time.AfterFunc(m.autoClose, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			return
		}
		m.logger.Debug("Auto-closing terminal session", "session_id", id)
		m.closeLocked(context.Background(), h, "auto_close")
	})
}

// closeLocked ends the dialogue and unregisters the session. Caller holds h.mu.
func (m *Manager) closeLocked(ctx context.Context, h *hosted, reason string) {
	h.closed = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.session.EndDialogue()

	m.mu.Lock()
	delete(m.sessions, h.session.ID)
	m.mu.Unlock()

	m.persist(ctx, h.gameID)
	m.release(h.gameID)

	m.logger.Info("Session closed", "session_id", h.session.ID, "reason", reason)
}

func (m *Manager) lookup(id string) (*hosted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// graph returns a cached graph, loading it on first use
func (m *Manager) graph(ctx context.Context, file string) (*dialogue.Graph, error) {
	m.mu.Lock()
	g, ok := m.graphs[file]
	m.mu.Unlock()
	if ok {
		return g, nil
	}

	g, err := m.store.GetGraph(ctx, file)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.graphs[file] = g
	m.mu.Unlock()
	return g, nil
}

// acquire returns the shared in-memory gamestate for id, loading it if nothing holds it.
// Every acquire is paired with a release.
func (m *Manager) acquire(ctx context.Context, id uuid.UUID) (*game, error) {
	m.mu.Lock()
	if g, ok := m.games[id]; ok {
		g.refs++
		m.mu.Unlock()
		return g, nil
	}
	m.mu.Unlock()

	gs, err := m.store.LoadGameState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load gamestate: %w", err)
	}
	if gs == nil {
		return nil, fmt.Errorf("gamestate %s: %w", id, storage.ErrNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another session may have loaded it while we were reading
	if g, ok := m.games[id]; ok {
		g.refs++
		return g, nil
	}
	g := &game{gs: gs, refs: 1, unsubscribe: func() {}}
	if m.forwarder != nil {
		g.unsubscribe = gs.Events().Subscribe(m.forwarder.Forward(id.String()))
	}
	m.games[id] = g
	return g, nil
}

func (m *Manager) release(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return
	}
	g.refs--
	if g.refs <= 0 {
		g.unsubscribe()
		delete(m.games, id)
	}
}

// persist saves the shared gamestate for id, if one is held
func (m *Manager) persist(ctx context.Context, id uuid.UUID) {
	m.mu.Lock()
	g, ok := m.games[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := m.store.SaveGameState(ctx, id, g.gs); err != nil {
		m.logger.Error("Failed to save gamestate", "gamestate_id", id.String(), "error", err)
	}
}
