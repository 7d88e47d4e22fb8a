package dialogue

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/conditionals"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// Status is the position of a session in the dialogue lifecycle
type Status string

const (
	StatusIdle            Status = "idle"             // no active conversation
	StatusPlaying         Status = "playing"          // a text node is being shown
	StatusAwaitingAdvance Status = "awaiting_advance" // text finished, waiting for the continue signal
	StatusAwaitingChoice  Status = "awaiting_choice"  // text finished, waiting for an option
	StatusTerminal        Status = "terminal"         // conversation over, waiting to be closed
	StatusStalled         Status = "stalled"          // a condition had no branch for its result
)

// DefaultMaxCascadeDepth bounds how many nodes a single transition may visit
const DefaultMaxCascadeDepth = 64

// AvailableOption is an option whose guard currently passes, with its index in the node's option list
type AvailableOption struct {
	Index int `json:"index"`
	Option
}

// Snapshot is a copy of the session's observable state
type Snapshot struct {
	ID            string            `json:"id"`
	Graph         string            `json:"graph"`
	Status        Status            `json:"status"`
	CurrentNodeID string            `json:"current_node_id,omitempty"`
	Speaker       string            `json:"speaker,omitempty"`
	Text          string            `json:"text,omitempty"`
	Options       []AvailableOption `json:"options,omitempty"`
	History       []string          `json:"history,omitempty"`
}

// Session is one traversal of a graph. It owns its cursor and never mutates the graph.
// A session is not safe for concurrent use; drive it from a single goroutine.
type Session struct {
	ID string

	graph    *Graph
	gs       state.GameStore
	base     *slog.Logger
	logger   *slog.Logger
	events   *state.EventBus
	effects  *state.EffectWorker
	maxDepth int

	status  Status
	current string
	history []string
}

// NewSession creates an idle session over graph that reads and writes gs
func NewSession(graph *Graph, gs state.GameStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	return &Session{
		ID:       id,
		graph:    graph,
		gs:       gs,
		base:     logger,
		logger:   logger.With("session_id", id, "graph", graph.Name),
		effects:  state.NewEffectWorker(gs, logger),
		maxDepth: DefaultMaxCascadeDepth,
		status:   StatusIdle,
	}
}

// WithEvents sets the bus node.displayed, dialogue.warning and session.ended are published on
// Returns the Session for method chaining
func (s *Session) WithEvents(bus *state.EventBus) *Session {
	s.events = bus
	return s
}

// WithMaxDepth overrides the cascade depth bound. Values below 1 are ignored.
// Returns the Session for method chaining
func (s *Session) WithMaxDepth(n int) *Session {
	if n > 0 {
		s.maxDepth = n
	}
	return s
}

// WithID overrides the generated session ID
// Returns the Session for method chaining
func (s *Session) WithID(id string) *Session {
	s.ID = id
	s.logger = s.base.With("session_id", id, "graph", s.graph.Name)
	return s
}

// Graph returns the graph the session walks
func (s *Session) Graph() *Graph {
	return s.graph
}

// Status returns the current lifecycle status
func (s *Session) Status() Status {
	return s.status
}

// Stalled reports whether a condition without a matching branch stopped the session
func (s *Session) Stalled() bool {
	return s.status == StatusStalled
}

// CurrentNode returns the node under the cursor
func (s *Session) CurrentNode() (*Node, bool) {
	if s.current == "" {
		return nil, false
	}
	return s.graph.FindNode(s.current)
}

// History lists the text nodes displayed so far in this conversation
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

// StartDialogue begins the conversation at the graph's start node.
// Condition and setter nodes at the start are resolved before anything is displayed.
func (s *Session) StartDialogue() error {
	if s.status != StatusIdle {
		return fmt.Errorf("start dialogue from %s: %w", s.status, ErrInvalidState)
	}
	s.history = nil
	s.logger.Info("Dialogue started", "start", s.graph.StartID)
	return s.cascade(s.graph.StartID)
}

// TypingComplete signals that the current text has finished displaying.
// The session then waits for a choice, waits for an advance, or ends.
func (s *Session) TypingComplete() error {
	if s.status != StatusPlaying {
		return fmt.Errorf("typing complete from %s: %w", s.status, ErrInvalidState)
	}
	text := s.currentText()

	switch {
	case len(s.AvailableOptions()) > 0:
		s.status = StatusAwaitingChoice
	case text.Next != "":
		s.status = StatusAwaitingAdvance
	default:
		s.terminate()
	}
	return nil
}

// Advance follows the current text node's next edge
func (s *Session) Advance() error {
	if s.status != StatusAwaitingAdvance {
		return fmt.Errorf("advance from %s: %w", s.status, ErrInvalidState)
	}
	return s.cascade(s.currentText().Next)
}

// SelectOption picks an option by its index in the current node's option list.
// An out of range index or a failing guard leaves the session unchanged.
func (s *Session) SelectOption(index int) error {
	if s.status != StatusAwaitingChoice {
		return fmt.Errorf("select option from %s: %w", s.status, ErrInvalidState)
	}
	text := s.currentText()

	if index < 0 || index >= len(text.Options) {
		return &InvalidSelectionError{Index: index, Reason: fmt.Sprintf("out of range [0, %d)", len(text.Options))}
	}
	opt := text.Options[index]

	if opt.Guard != nil {
		ok, err := conditionals.Evaluate(*opt.Guard, s.gs)
		if err != nil {
			s.warn(s.current, err)
		}
		if !ok {
			return &InvalidSelectionError{Index: index, Reason: "condition not met: " + opt.Guard.String()}
		}
	}

	if opt.Reveal != nil {
		reveal := *opt.Reveal
		if err := s.effects.Apply(state.Effect{Op: state.EffectDiscoverPreference, Preference: &reveal}); err != nil {
			s.warn(s.current, err)
		}
	}

	s.logger.Debug("Option selected", "node", s.current, "index", index, "target", opt.Target)
	return s.cascade(opt.Target)
}

// EndDialogue returns the session to idle from any status. The game state is not touched.
func (s *Session) EndDialogue() {
	if s.status == StatusIdle {
		return
	}
	last := s.current
	s.reset()
	s.logger.Info("Dialogue ended", "last_node", last)
	s.publish(state.EventSessionEnded, map[string]interface{}{
		"last_node": last,
		"reason":    "ended",
	})
}

// AvailableOptions returns the current node's options whose guards pass right now
func (s *Session) AvailableOptions() []AvailableOption {
	node, ok := s.CurrentNode()
	if !ok || node.Kind != KindText {
		return nil
	}

	var out []AvailableOption
	for i, opt := range node.Text.Options {
		if opt.Guard != nil {
			passed, err := conditionals.Evaluate(*opt.Guard, s.gs)
			if err != nil {
				s.logger.Debug("Option guard warning", "node", node.ID, "index", i, "error", err)
			}
			if !passed {
				continue
			}
		}
		out = append(out, AvailableOption{Index: i, Option: opt})
	}
	return out
}

// Snapshot copies the observable session state
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:            s.ID,
		Graph:         s.graph.Name,
		Status:        s.status,
		CurrentNodeID: s.current,
		History:       s.History(),
	}
	if node, ok := s.CurrentNode(); ok && node.Kind == KindText {
		snap.Speaker = node.Text.Speaker
		snap.Text = node.Text.Body
		if s.status == StatusAwaitingChoice {
			snap.Options = s.AvailableOptions()
		}
	}
	return snap
}

// cascade lands on target and resolves condition and setter nodes until a text node,
// the end of the conversation, or a stall. It never leaves the session half transitioned:
// on error the session is reset to idle.
func (s *Session) cascade(target string) error {
	var path []string

	for depth := 0; ; depth++ {
		if target == "" {
			s.terminate()
			return nil
		}
		if depth >= s.maxDepth {
			path = append(path, target)
			s.abort("cycle")
			s.logger.Error("Cascade depth exceeded", "depth", s.maxDepth, "path", path)
			return &GraphCycleError{Depth: s.maxDepth, Path: path}
		}

		node, ok := s.graph.FindNode(target)
		if !ok {
			s.abort("missing_node")
			return fmt.Errorf("node %q not found in graph %q", target, s.graph.Name)
		}
		path = append(path, target)

		switch node.Kind {
		case KindText:
			s.display(node)
			return nil

		case KindCondition:
			passed, err := conditionals.Evaluate(node.Condition.Condition, s.gs)
			if err != nil {
				s.warn(node.ID, err)
			}
			next := node.Condition.False
			if passed {
				next = node.Condition.True
			}
			if next == "" {
				s.current = node.ID
				s.status = StatusStalled
				s.logger.Warn("Dialogue stalled, condition has no branch for result",
					"node", node.ID,
					"result", passed)
				s.publish(state.EventWarning, map[string]interface{}{
					"node":   node.ID,
					"reason": "stalled",
					"result": passed,
				})
				return nil
			}
			target = next

		case KindSetter:
			if err := s.effects.Apply(node.Setter.Effect); err != nil {
				// Setter failures never halt the conversation
				s.warn(node.ID, err)
			}
			target = node.Setter.Next

		default:
			s.abort("bad_node")
			return fmt.Errorf("node %q has unknown kind %q", node.ID, node.Kind)
		}
	}
}

func (s *Session) display(node *Node) {
	s.current = node.ID
	s.status = StatusPlaying
	s.history = append(s.history, node.ID)
	s.publish(state.EventNodeDisplayed, map[string]interface{}{
		"node":    node.ID,
		"speaker": node.Text.Speaker,
		"text":    node.Text.Body,
	})
}

func (s *Session) terminate() {
	s.status = StatusTerminal
	s.logger.Debug("Dialogue reached terminal", "node", s.current)
}

// abort resets to idle after a fatal cascade error
func (s *Session) abort(reason string) {
	last := s.current
	s.reset()
	s.publish(state.EventSessionEnded, map[string]interface{}{
		"last_node": last,
		"reason":    reason,
	})
}

func (s *Session) reset() {
	s.status = StatusIdle
	s.current = ""
}

func (s *Session) currentText() *TextNode {
	node, _ := s.graph.FindNode(s.current)
	return node.Text
}

// warn reports a non-fatal problem through the log and the event bus
func (s *Session) warn(nodeID string, err error) {
	reason, kind := "error", ""
	var mre *state.MissingReferenceError
	if errors.As(err, &mre) {
		reason, kind = "missing_reference", string(mre.Kind)
	}
	s.logger.Warn("Dialogue warning", "node", nodeID, "error", err)
	s.publish(state.EventWarning, map[string]interface{}{
		"node":      nodeID,
		"reason":    reason,
		"reference": kind,
		"message":   err.Error(),
	})
}

func (s *Session) publish(t state.EventType, data map[string]interface{}) {
	s.events.Publish(state.Event{
		Type:      t,
		SessionID: s.ID,
		Data:      data,
	})
}
