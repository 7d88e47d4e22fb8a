package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jwebster45206/dialogue-engine/internal/services/events"
	"github.com/jwebster45206/dialogue-engine/internal/services/sessions"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// openEventStream connects to an SSE endpoint and returns a reader of (event, data) pairs
func openEventStream(t *testing.T, ctx context.Context, url string) func() (string, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	return func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
	}
}

func TestParseGameStateID(t *testing.T) {
	id := uuid.New()

	got, err := parseGameStateID("/v1/events/gamestate/"+id.String(), "events")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseGameStateID("/v1/events/gamestate/"+id.String(), "ws")
	assert.Error(t, err)
	_, err = parseGameStateID("/v1/events/gamestate/nope", "events")
	assert.Error(t, err)
	_, err = parseGameStateID("/v1/events", "events")
	assert.Error(t, err)
}

func TestEventsHandler_BadRequests(t *testing.T) {
	h := NewEventsHandler(setupRedis(t), testLogger())

	rr := do(t, h, http.MethodPost, "/v1/events/gamestate/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/events/gamestate/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEventsHandler_StreamsEvents(t *testing.T) {
	client := setupRedis(t)
	broadcaster := events.NewBroadcaster(client, testLogger())
	srv := httptest.NewServer(NewEventsHandler(client, testLogger()))
	defer srv.Close()

	gameID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	readEvent := openEventStream(t, ctx, srv.URL+"/v1/events/gamestate/"+gameID)

	name, _ := readEvent()
	require.Equal(t, "connected", name)

	require.NoError(t, broadcaster.Publish(ctx, state.Event{
		Type:   state.EventNodeDisplayed,
		GameID: gameID,
		Data:   map[string]interface{}{"node": "hello"},
	}))

	name, data := readEvent()
	assert.Equal(t, string(state.EventNodeDisplayed), name)
	assert.Contains(t, data, `"node":"hello"`)
}

func TestEventsHandler_StreamsPatchedEffects(t *testing.T) {
	client := setupRedis(t)
	broadcaster := events.NewBroadcaster(client, testLogger())
	store := newTestStorage(t)
	manager := sessions.NewManager(store, testLogger()).WithForwarder(broadcaster)
	gameStates := NewGameStateHandler(testLogger(), store, manager)

	srv := httptest.NewServer(NewEventsHandler(client, testLogger()))
	defer srv.Close()

	rr := do(t, gameStates, http.MethodPost, "/v1/gamestate", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id, _ := decode[map[string]interface{}](t, rr)["id"].(string)
	require.NotEmpty(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	readEvent := openEventStream(t, ctx, srv.URL+"/v1/events/gamestate/"+id)
	name, _ := readEvent()
	require.Equal(t, "connected", name)

	rr = do(t, gameStates, http.MethodPatch, "/v1/gamestate/"+id, PatchGameStateRequest{Effects: []state.Effect{
		{Op: state.EffectDiscoverPreference, Preference: &state.PreferenceRef{Bachelor: "cole", IsLike: true, Description: "jazz"}},
		{Op: state.EffectUpdateLoveScore, Meter: "cole", LoveScoreAmount: 1},
	}})
	require.Equal(t, http.StatusOK, rr.Code)

	name, data := readEvent()
	assert.Equal(t, string(state.EventPreferenceDiscovered), name)
	assert.Contains(t, data, `"description":"jazz"`)

	name, data = readEvent()
	assert.Equal(t, string(state.EventLoveChanged), name)
	assert.Contains(t, data, `"current":4`)
}

func TestWSHandler_StreamsEvents(t *testing.T) {
	client := setupRedis(t)
	broadcaster := events.NewBroadcaster(client, testLogger())
	srv := httptest.NewServer(NewWSHandler(client, testLogger()))
	defer srv.Close()

	gameID := uuid.NewString()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws/gamestate/" + gameID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]interface{}
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello["type"])

	require.NoError(t, broadcaster.Publish(context.Background(), state.Event{
		Type:      state.EventSessionEnded,
		GameID:    gameID,
		SessionID: "s-1",
		Data:      map[string]interface{}{"reason": "ended"},
	}))

	var got state.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, state.EventSessionEnded, got.Type)
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "ended", got.Data["reason"])
}

func TestWSHandler_RejectsBadPath(t *testing.T) {
	h := NewWSHandler(setupRedis(t), testLogger())

	rr := do(t, h, http.MethodGet, "/v1/ws/gamestate/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
