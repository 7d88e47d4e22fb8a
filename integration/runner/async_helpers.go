package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

const (
	// PollInterval is how often to check the event buffer
	PollInterval = 50 * time.Millisecond
	// EventTimeout is max time to wait for expected events to arrive on the stream
	EventTimeout = 5 * time.Second
	// ConnectTimeout is max time to wait for the SSE stream to confirm its subscription
	ConnectTimeout = 10 * time.Second
)

// APIError is a non-2xx response from the API
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.Status, e.Body)
}

// doJSON sends body (if any) as JSON and decodes a successful response into out
func doJSON(ctx context.Context, client *http.Client, method, url string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// CreateGameState seeds a new game state from the server's cast
func CreateGameState(ctx context.Context, client *http.Client, baseURL string) (*state.GameState, error) {
	var gs state.GameState
	if _, err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/gamestate", nil, &gs); err != nil {
		return nil, fmt.Errorf("create gamestate: %w", err)
	}
	return &gs, nil
}

// GetGameState retrieves the current gamestate
func GetGameState(ctx context.Context, client *http.Client, baseURL string, gameStateID uuid.UUID) (*state.GameState, error) {
	var gs state.GameState
	if _, err := doJSON(ctx, client, http.MethodGet, baseURL+"/v1/gamestate/"+gameStateID.String(), nil, &gs); err != nil {
		return nil, fmt.Errorf("get gamestate: %w", err)
	}
	return &gs, nil
}

// DeleteGameState removes the game state once a suite is done
func DeleteGameState(ctx context.Context, client *http.Client, baseURL string, gameStateID uuid.UUID) error {
	_, err := doJSON(ctx, client, http.MethodDelete, baseURL+"/v1/gamestate/"+gameStateID.String(), nil, nil)
	return err
}

// PatchGameState applies effects to a game state
func PatchGameState(ctx context.Context, client *http.Client, baseURL string, gameStateID uuid.UUID, effects []state.Effect) (int, error) {
	body := map[string]interface{}{"effects": effects}
	return doJSON(ctx, client, http.MethodPatch, baseURL+"/v1/gamestate/"+gameStateID.String(), body, nil)
}

// StartSession starts a session on graph for the game state
func StartSession(ctx context.Context, client *http.Client, baseURL, graph string, gameStateID uuid.UUID) (dialogue.Snapshot, int, error) {
	var snap dialogue.Snapshot
	body := map[string]string{"graph": graph, "gamestate_id": gameStateID.String()}
	status, err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/sessions", body, &snap)
	return snap, status, err
}

// SessionAction posts a session action (typing-complete, advance, select, end)
func SessionAction(ctx context.Context, client *http.Client, baseURL, sessionID, action string, body interface{}) (dialogue.Snapshot, int, error) {
	var snap dialogue.Snapshot
	url := fmt.Sprintf("%s/v1/sessions/%s/%s", baseURL, sessionID, action)
	status, err := doJSON(ctx, client, http.MethodPost, url, body, &snap)
	return snap, status, err
}

// EventRecorder buffers event types seen on a game's SSE stream
type EventRecorder struct {
	mu     sync.Mutex
	events []string
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// ListenToEvents opens the game's SSE stream and records every event after "connected".
// It returns once the server has confirmed the subscription.
func ListenToEvents(ctx context.Context, baseURL string, gameStateID uuid.UUID) (*EventRecorder, error) {
	ctx, cancel := context.WithCancel(ctx)
	rec := &EventRecorder{cancel: cancel, done: make(chan struct{})}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/events/gamestate/"+gameStateID.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream stays open for the whole suite
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open SSE stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("SSE endpoint returned %d", resp.StatusCode)
	}

	connected := make(chan struct{})
	go func() {
		defer close(rec.done)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		seenConnected := false
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "event: ") {
				continue
			}
			eventType := strings.TrimPrefix(line, "event: ")
			if eventType == "connected" {
				if !seenConnected {
					seenConnected = true
					close(connected)
				}
				continue
			}
			rec.mu.Lock()
			rec.events = append(rec.events, eventType)
			rec.mu.Unlock()
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			rec.mu.Lock()
			rec.err = err
			rec.mu.Unlock()
		}
	}()

	select {
	case <-connected:
		return rec, nil
	case <-rec.done:
		cancel()
		return nil, fmt.Errorf("SSE stream closed before connecting")
	case <-time.After(ConnectTimeout):
		cancel()
		return nil, fmt.Errorf("timeout waiting for SSE connection (waited %v)", ConnectTimeout)
	}
}

// Expect waits until the buffered events equal want, then clears the buffer
func (r *EventRecorder) Expect(ctx context.Context, want []string) error {
	timeout := time.After(EventTimeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		got := slices.Clone(r.events)
		streamErr := r.err
		r.mu.Unlock()

		if slices.Equal(got, want) {
			r.Drain()
			return nil
		}
		if streamErr != nil {
			return fmt.Errorf("event stream failed: %w", streamErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("expected events %v, got %v", want, got)
		case <-ticker.C:
		}
	}
}

// Drain discards buffered events
func (r *EventRecorder) Drain() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Close stops listening
func (r *EventRecorder) Close() {
	r.cancel()
	<-r.done
}
