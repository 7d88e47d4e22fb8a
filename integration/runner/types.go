package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// Step actions
const (
	ActionTypingComplete = "typing_complete"
	ActionAdvance        = "advance"
	ActionSelect         = "select"
	ActionEnd            = "end"
	ActionPatch          = "patch"   // apply effects to the game state directly
	ActionRestart        = "restart" // start a fresh session on the same game state
)

// TestSuite is one scripted playthrough of a graph against a fresh game state.
// A suite can instead sequence other case files.
type TestSuite struct {
	Name  string     `json:"name"`
	Graph string     `json:"graph,omitempty"`
	Start *Expect    `json:"expect_start,omitempty"` // checked right after the session starts
	Steps []TestStep `json:"steps,omitempty"`
	Cases []string   `json:"cases,omitempty"`
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one player action and what should hold afterwards
type TestStep struct {
	Name    string         `json:"name,omitempty"`
	Action  string         `json:"action"`
	Index   int            `json:"index,omitempty"`   // select
	Effects []state.Effect `json:"effects,omitempty"` // patch
	Expect  Expect         `json:"expect"`
}

// Expect lists the checks for a step. Unset fields are not checked.
type Expect struct {
	// HTTP
	Status *int `json:"http_status,omitempty"` // defaults to 200 (201 for restart)

	// Session snapshot
	SessionStatus string   `json:"status,omitempty"`
	Node          string   `json:"node,omitempty"`
	Speaker       string   `json:"speaker,omitempty"`
	TextContains  []string `json:"text_contains,omitempty"`
	OptionIndices []int    `json:"option_indices,omitempty"` // indices of the visible options, in order

	// Game state
	Love       map[string]int        `json:"love,omitempty"`
	Vars       map[string]string     `json:"vars,omitempty"`
	Flags      map[string]bool       `json:"flags,omitempty"`
	Discovered []state.PreferenceRef `json:"discovered,omitempty"`

	// Events seen on the game's SSE stream since the previous step, in order
	Events []string `json:"events,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	GameState uuid.UUID // ID of the gamestate used for this test
	Session   string
}
