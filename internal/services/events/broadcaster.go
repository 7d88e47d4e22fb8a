package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/redis/go-redis/v9"
)

// publishTimeout bounds a single publish made from a bus listener
const publishTimeout = 2 * time.Second

// Channel returns the Redis pub/sub channel carrying events for one gamestate
func Channel(gameID string) string {
	return fmt.Sprintf("game-events:%s", gameID)
}

// Broadcaster publishes dialogue and gamestate events to Redis Pub/Sub for SSE and WebSocket distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Publish sends the event to its gamestate's channel
func (b *Broadcaster) Publish(ctx context.Context, event state.Event) error {
	if event.GameID == "" {
		return errors.New("event has no game id")
	}
	channel := Channel(event.GameID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"session_id", event.SessionID,
	)

	return nil
}

// Forward returns a bus listener that publishes every event under gameID.
// Publish failures are logged; the dialogue never waits on or fails because of a subscriber.
func (b *Broadcaster) Forward(gameID string) state.Listener {
	return func(e state.Event) {
		if e.GameID == "" {
			e.GameID = gameID
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		_ = b.Publish(ctx, e)
	}
}

// Subscribe opens a subscription to one gamestate's events. The caller must close it.
func Subscribe(ctx context.Context, client *redis.Client, gameID string) *redis.PubSub {
	return client.Subscribe(ctx, Channel(gameID))
}

// Decode parses a pub/sub payload back into an event
func Decode(payload string) (state.Event, error) {
	var e state.Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return state.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}
