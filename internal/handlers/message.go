package handlers

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sablecore/aoi-engine/internal/config"
	"github.com/sablecore/aoi-engine/internal/metrics"
	"github.com/sablecore/aoi-engine/internal/service"
	"github.com/gorilla/websocket"
)

const (
	GetSessions   = "listSessions"
	CreateSession = "createSession"
	JoinSession   = "joinSession"
	StartSession  = "startSession"
	UpdatePlayer  = "update"
	PlayerSound   = "sound"
)

// Handle messages from a player
// Connection timeout is managed by WebSocket read deadline + ping/pong:
// - Read deadline is set to ReadTimeout (60s)
// - Client must send a message or pong within that time
// - We send pings every PingRate (30s) to keep connection alive
// - If client doesn't respond, read deadline expires and connection closes
func handlePlayerMessages(player *service.Player) {
	defer HandleDisconnect(player)

	// Start ping ticker
	ticker := time.NewTicker(config.PingRate)
	defer ticker.Stop()

	service.Logger.Info("started message handler", zap.String("player_id", player.ID))

	// Channel to signal message read
	messageChan := make(chan []byte, 10)
	errorChan := make(chan error, 1)

	// Read messages in a goroutine
	go func() {
		for {
			_, messageData, err := player.Conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			service.Logger.Debug("received message", zap.String("player_id", player.ID), zap.ByteString("payload", messageData))
			messageChan <- messageData
		}
	}()

	for {
		select {
		case messageData := <-messageChan:
			// Reset read deadline on each message
			player.Conn.SetReadDeadline(time.Now().Add(config.ReadTimeout))

			// Track bytes received
			metrics.BytesReceived.Add(float64(len(messageData)))

			var msg service.Message
			if err := json.Unmarshal(messageData, &msg); err != nil {
				service.Logger.Warn("error parsing message", zap.String("player_id", player.ID), zap.Error(err))
				continue
			}

			// Track message received
			metrics.MessagesReceived.WithLabelValues(msg.Type).Inc()

			// Track processing duration
			start := time.Now()
			handleMessage(player, &msg)
			duration := time.Since(start).Seconds()
			metrics.MessageProcessingDuration.WithLabelValues(msg.Type).Observe(duration)

		case err := <-errorChan:
			// Only log unexpected errors (not normal closes)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				service.Logger.Warn("websocket error", zap.String("player_id", player.ID), zap.Error(err))
			}
			return

		case <-ticker.C:
			// Send ping - use WriteControl with ReadTimeout deadline
			service.Logger.Debug("sending ping", zap.String("player_id", player.ID))
			err := player.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(config.ReadTimeout))
			if err != nil {
				// Only log if it's not a "connection closed" error
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					service.Logger.Warn("ping failed", zap.String("player_id", player.ID), zap.Error(err))
				}
				return
			}
		}
	}
}

// Handle different message types
func handleMessage(player *service.Player, msg *service.Message) {
	switch msg.Type {
	case GetSessions:
		handleListSessions(player)
	case CreateSession:
		handleCreateSession(player, msg)
	case JoinSession:
		handleJoinSession(player, msg)
	case StartSession:
		handleStartSession(player, msg)
	case UpdatePlayer:
		handleUpdate(player, msg)
	case PlayerSound:
		handleSound(player, msg)
	}
}
