package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes scripted playthroughs against a running dialogue-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	GraphOverride     string // If set, overrides the graph for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// suiteRun is the live state of one suite
type suiteRun struct {
	graph   string
	session string
	gs      *state.GameState
	events  *EventRecorder
}

// RunSuite executes a complete test suite on a fresh game state
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}
	fail := func(err error) (TestRunResult, error) {
		result.Error = err
		result.Duration = time.Since(start)
		return result, err
	}

	run := &suiteRun{graph: suite.Graph}
	if r.GraphOverride != "" {
		run.graph = r.GraphOverride
	}

	gs, err := CreateGameState(ctx, r.Client, r.BaseURL)
	if err != nil {
		return fail(fmt.Errorf("failed to seed gamestate: %w", err))
	}
	run.gs = gs
	result.GameState = gs.ID
	defer func() {
		// End any session still hosted so a later auto-close cannot resave the game state
		if run.session != "" {
			_, _, _ = SessionAction(context.Background(), r.Client, r.BaseURL, run.session, "end", nil)
		}
		if err := DeleteGameState(context.Background(), r.Client, r.BaseURL, gs.ID); err != nil {
			r.Logger("    Warning: failed to delete gamestate %s: %v", gs.ID, err)
		}
	}()

	run.events, err = ListenToEvents(ctx, r.BaseURL, gs.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to listen to events: %w", err))
	}
	defer run.events.Close()

	snap, _, err := StartSession(ctx, r.Client, r.BaseURL, run.graph, gs.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to start session on %s: %w", run.graph, err))
	}
	run.session = snap.ID
	result.Session = snap.ID

	if suite.Start != nil {
		if err := r.checkExpectations(ctx, run, *suite.Start, snap); err != nil {
			return fail(fmt.Errorf("start expectation failed: %w", err))
		}
	}

	for i, step := range suite.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("%s #%d", step.Action, i+1)
		}
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), name)

		stepResult := r.executeStep(ctx, run, step)
		stepResult.TestName = suite.Name
		stepResult.StepName = name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// executeStep performs one action and checks its expectations
func (r *Runner) executeStep(ctx context.Context, run *suiteRun, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{}
	finish := func(err error) TestResult {
		result.Error = err
		result.Success = err == nil
		result.Duration = time.Since(start)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	run.events.Drain()

	var (
		snap   dialogue.Snapshot
		status int
		err    error
		want   = http.StatusOK
	)
	switch step.Action {
	case ActionTypingComplete:
		snap, status, err = SessionAction(ctx, r.Client, r.BaseURL, run.session, "typing-complete", nil)
	case ActionAdvance:
		snap, status, err = SessionAction(ctx, r.Client, r.BaseURL, run.session, "advance", nil)
	case ActionSelect:
		snap, status, err = SessionAction(ctx, r.Client, r.BaseURL, run.session, "select", map[string]int{"index": step.Index})
	case ActionEnd:
		snap, status, err = SessionAction(ctx, r.Client, r.BaseURL, run.session, "end", nil)
	case ActionPatch:
		status, err = PatchGameState(ctx, r.Client, r.BaseURL, run.gs.ID, step.Effects)
	case ActionRestart:
		want = http.StatusCreated
		snap, status, err = StartSession(ctx, r.Client, r.BaseURL, run.graph, run.gs.ID)
		if err == nil {
			run.session = snap.ID
		}
	default:
		return finish(fmt.Errorf("unknown action %q", step.Action))
	}

	if step.Expect.Status != nil {
		want = *step.Expect.Status
	}
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		return finish(err)
	}
	if status != want {
		return finish(fmt.Errorf("expected HTTP %d, got %d (%v)", want, status, err))
	}
	if apiErr != nil {
		// An expected error response carries no snapshot to check
		return finish(r.checkGameState(ctx, run, step.Expect))
	}

	return finish(r.checkExpectations(ctx, run, step.Expect, snap))
}

// checkExpectations validates the snapshot, the game state, and the event stream
func (r *Runner) checkExpectations(ctx context.Context, run *suiteRun, exp Expect, snap dialogue.Snapshot) error {
	if exp.SessionStatus != "" && string(snap.Status) != exp.SessionStatus {
		return fmt.Errorf("expected status %s, got %s", exp.SessionStatus, snap.Status)
	}
	if exp.Node != "" && snap.CurrentNodeID != exp.Node {
		return fmt.Errorf("expected node %s, got %s", exp.Node, snap.CurrentNodeID)
	}
	if exp.Speaker != "" && snap.Speaker != exp.Speaker {
		return fmt.Errorf("expected speaker %s, got %s", exp.Speaker, snap.Speaker)
	}
	for _, text := range exp.TextContains {
		if !strings.Contains(strings.ToLower(snap.Text), strings.ToLower(text)) {
			return fmt.Errorf("expected text to contain '%s', got '%s'", text, snap.Text)
		}
	}
	if exp.OptionIndices != nil {
		var got []int
		for _, o := range snap.Options {
			got = append(got, o.Index)
		}
		if !slices.Equal(got, exp.OptionIndices) {
			return fmt.Errorf("expected option indices %v, got %v", exp.OptionIndices, got)
		}
	}

	if err := r.checkGameState(ctx, run, exp); err != nil {
		return err
	}

	if exp.Events != nil {
		if err := run.events.Expect(ctx, exp.Events); err != nil {
			return err
		}
	}
	return nil
}

// checkGameState reads the saved game state and compares love meters, variables, flags, and discoveries
func (r *Runner) checkGameState(ctx context.Context, run *suiteRun, exp Expect) error {
	if len(exp.Love) == 0 && len(exp.Vars) == 0 && len(exp.Flags) == 0 && len(exp.Discovered) == 0 {
		return nil
	}

	gs, err := GetGameState(ctx, r.Client, r.BaseURL, run.gs.ID)
	if err != nil {
		return err
	}
	run.gs = gs

	for meter, want := range exp.Love {
		got, ok := gs.GetLoveScore(meter)
		if !ok {
			return fmt.Errorf("expected love meter %s to exist, but it doesn't", meter)
		}
		if got != want {
			return fmt.Errorf("expected love %s to be %d, got %d", meter, want, got)
		}
	}
	for key, want := range exp.Vars {
		if got := gs.GetVariable(key); got != want {
			return fmt.Errorf("expected variable %s to be %s, got %s", key, want, got)
		}
	}
	for key, want := range exp.Flags {
		if got := gs.GetBoolean(key); got != want {
			return fmt.Errorf("expected flag %s to be %t, got %t", key, want, got)
		}
	}
	for _, ref := range exp.Discovered {
		discovered, ok := gs.IsPreferenceDiscovered(ref)
		if !ok {
			return fmt.Errorf("expected preference %s/%s to exist, but it doesn't", ref.Bachelor, ref.Description)
		}
		if !discovered {
			return fmt.Errorf("expected preference %s/%s to be discovered", ref.Bachelor, ref.Description)
		}
	}
	return nil
}
