package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBroadcaster(t *testing.T) (*redis.Client, *Broadcaster) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return client, NewBroadcaster(client, logger)
}

func receive(t *testing.T, pubsub *redis.PubSub) state.Event {
	t.Helper()
	select {
	case msg := <-pubsub.Channel():
		e, err := Decode(msg.Payload)
		require.NoError(t, err)
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return state.Event{}
}

func TestBroadcaster_Publish(t *testing.T) {
	client, b := setupBroadcaster(t)
	ctx := context.Background()

	pubsub := Subscribe(ctx, client, "game-1")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	err = b.Publish(ctx, state.Event{
		Type:      state.EventNodeDisplayed,
		GameID:    "game-1",
		SessionID: "s-1",
		Data:      map[string]interface{}{"node": "hello"},
	})
	require.NoError(t, err)

	e := receive(t, pubsub)
	assert.Equal(t, state.EventNodeDisplayed, e.Type)
	assert.Equal(t, "s-1", e.SessionID)
	assert.Equal(t, "hello", e.Data["node"])
}

func TestBroadcaster_PublishRequiresGameID(t *testing.T) {
	_, b := setupBroadcaster(t)
	assert.Error(t, b.Publish(context.Background(), state.Event{Type: state.EventWarning}))
}

func TestBroadcaster_Forward(t *testing.T) {
	client, b := setupBroadcaster(t)
	ctx := context.Background()

	pubsub := Subscribe(ctx, client, "game-2")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	bus := state.NewEventBus()
	bus.Subscribe(b.Forward("game-2"))
	bus.Publish(state.Event{Type: state.EventLoveChanged, Data: map[string]interface{}{"current": 4}})

	e := receive(t, pubsub)
	assert.Equal(t, state.EventLoveChanged, e.Type)
	assert.Equal(t, "game-2", e.GameID)
	assert.EqualValues(t, 4, e.Data["current"])
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("{not json")
	assert.Error(t, err)
}
