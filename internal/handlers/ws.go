package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jwebster45206/dialogue-engine/internal/services/events"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WSHandler streams a game state's events over a WebSocket, one JSON event per text frame.
// Inbound frames are ignored; the stream ends when the client closes the connection.
type WSHandler struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewWSHandler(redisClient *redis.Client, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		redisClient: redisClient,
		logger:      logger,
	}
}

// ServeHTTP handles GET /v1/ws/gamestate/{gameStateID}
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	gameStateID, err := parseGameStateID(r.URL.Path, "ws")
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := events.Subscribe(ctx, h.redisClient, gameStateID.String())
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Error("Failed to subscribe", "error", err)
		return
	}

	h.logger.Info("WebSocket connection established",
		"game_state_id", gameStateID.String(),
		"remote_addr", r.RemoteAddr)

	// Reader: only watches for the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, map[string]interface{}{
		"type":    "connected",
		"game_id": gameStateID.String(),
	}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	msgChan := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket client disconnected", "game_state_id", gameStateID.String())
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			event, err := events.Decode(msg.Payload)
			if err != nil {
				h.logger.Error("Failed to decode event", "error", err, "payload", msg.Payload)
				continue
			}
			if err := h.write(conn, event); err != nil {
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				h.logger.Debug("WebSocket ping failed", "error", err)
				return
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(v); err != nil {
		h.logger.Debug("WebSocket write failed", "error", err)
		return err
	}
	return nil
}
