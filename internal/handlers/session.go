package handlers

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sablecore/aoi-engine/internal/events"
	"github.com/sablecore/aoi-engine/internal/service"
	"github.com/gorilla/websocket"
)

// Handle list sessions request
func handleListSessions(player *service.Player) {
	sessions := service.State.ListSessions()

	payload := events.FormatUpdateSessionList(sessions)

	err := player.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		service.Logger.Warn("error sending session list", zap.String("player_id", player.ID), zap.Error(err))
	}
}

// Handle create session request
func handleCreateSession(player *service.Player, msg *service.Message) {
	// Set player username from the message
	if msg.Username != "" {
		player.SetUsername(msg.Username)
	}

	session := service.NewGameSession(msg.SessionName, player.ID)

	service.Logger.Info("creating session",
		zap.String("session_id", session.ID),
		zap.String("session_name", msg.SessionName),
		zap.String("player_id", player.ID),
	)

	// Creator immediately joins the session (idling state)
	player.JoinSession(session)

	service.State.AddSession(session)

	service.Logger.Info("session created and creator joined",
		zap.String("session_id", session.ID),
		zap.String("session_name", msg.SessionName),
		zap.String("player_id", player.ID),
		zap.String("username", player.Username),
	)
}

// Handle join session request
func handleJoinSession(player *service.Player, msg *service.Message) {
	session, exists := service.State.GetSession(msg.SessionID)
	if !exists {
		payload := events.FormatSessionNotFound()
		err := player.WriteMessage(websocket.TextMessage, payload)
		if err != nil {
			service.Logger.Warn("error sending session not found message", zap.String("player_id", player.ID), zap.Error(err))
		}
		return
	}

	// Set player username
	player.SetUsername(msg.Username)

	// Add player to session
	player.JoinSession(session)
	service.Logger.Info("player joined session",
		zap.String("player_id", player.ID),
		zap.String("username", msg.Username),
		zap.String("session_id", msg.SessionID),
	)
}

// Handle start session request
func handleStartSession(player *service.Player, msg *service.Message) {
	session, exists := service.State.GetSession(msg.SessionID)
	if !exists {
		payload := events.FormatSessionNotFound()
		err := player.WriteMessage(websocket.TextMessage, payload)
		if err != nil {
			service.Logger.Warn("error sending session not found message", zap.String("player_id", player.ID), zap.Error(err))
		}
		return
	}

	// Check if player is the creator
	if !session.IsCreator(player.ID) {
		payload, _ := json.Marshal(map[string]interface{}{
			"type":    events.ErrorMessage,
			"message": "Only the session creator can start the game",
		})
		err := player.WriteMessage(websocket.TextMessage, payload)
		if err != nil {
			service.Logger.Warn("error sending not-creator message", zap.String("player_id", player.ID), zap.Error(err))
		}
		return
	}

	// Start the session
	session.Start()

	// Notify all players in the session that game has started
	payload := events.FormatSessionStarted(session.ID)
	session.Broadcast(payload)

	service.Logger.Info("session started", zap.String("session_id", session.ID), zap.String("creator_id", player.ID))
}
