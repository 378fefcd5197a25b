package events

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Logger is the structured logger used for payload-marshaling
// failures. Set once at startup by main; defaults to a no-op logger so
// packages that format events directly in tests don't need to
// configure one. A separate var from service.Logger since service
// imports events, and events importing service back would cycle.
var Logger = zap.NewNop()

const (
	UpdateSessionList = "updateSessionList"
	SessionCreated    = "sessionCreated"
	SessionJoined     = "sessionJoined"
	PlayerJoined      = "playerJoined"
	PlayerUpdated     = "playerUpdate"
	PlayerLeft        = "playerLeft"
	SessionStarted    = "sessionStarted"
	PlayerSound       = "playSound"
	ErrorMessage      = "error"
	AoiEnter          = "aoiEnter"
	AoiLeave          = "aoiLeave"
)

// FormatAoiEnter reports that otherID has entered one of the
// recipient's sensors.
func FormatAoiEnter(sensorID uint64, otherID string, otherData map[string]interface{}) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":     AoiEnter,
		"sensorId": sensorID,
		"id":       otherID,
		"player":   otherData,
	})
	if err != nil {
		Logger.Warn("Error marshaling aoi enter message", zap.Error(err))
		return nil
	}
	return response
}

// FormatAoiLeave reports that otherID has left one of the recipient's
// sensors.
func FormatAoiLeave(sensorID uint64, otherID string) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":     AoiLeave,
		"sensorId": sensorID,
		"id":       otherID,
	})
	if err != nil {
		Logger.Warn("Error marshaling aoi leave message", zap.Error(err))
		return nil
	}
	return response
}

func FormatPlayerLeft(playerID string) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type": PlayerLeft,
		"id":   playerID,
	})
	if err != nil {
		Logger.Warn("Error marshaling player left message", zap.Error(err))
		return nil
	}
	return response
}

func FormatUpdateSessionList(sessions []map[string]interface{}) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":     UpdateSessionList,
		"sessions": sessions,
	})
	if err != nil {
		Logger.Warn("Error marshaling session list", zap.Error(err))
		return nil
	}
	return response
}

func FormatSessionNotFound() []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":    ErrorMessage,
		"message": "Session not found. Please check the ID and try again.",
	})
	if err != nil {
		Logger.Warn("Error marshaling session not found message", zap.Error(err))
		return nil
	}
	return response
}

func FormatCreateSession(sessionID, sessionName string) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"type":        SessionCreated,
		"sessionId":   sessionID,
		"sessionName": sessionName,
	})
	if err != nil {
		Logger.Warn("Error marshaling session created message", zap.Error(err))
		return nil
	}
	return payload
}

func FormatJoinSession(sessionID, playerID string, existingPlayers []map[string]interface{}, started bool) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":      SessionJoined,
		"sessionId": sessionID,
		"playerId":  playerID,
		"players":   existingPlayers,
		"started":   started,
	})
	if err != nil {
		Logger.Warn("Error marshaling session joined message", zap.Error(err))
		return nil
	}
	return response
}

func FormatSessionStarted(sessionID string) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":      SessionStarted,
		"sessionId": sessionID,
	})
	if err != nil {
		Logger.Warn("Error marshaling session started message", zap.Error(err))
		return nil
	}
	return response
}

func FormatPlayerJoined(playerData map[string]interface{}) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":   PlayerJoined,
		"player": playerData,
	})
	if err != nil {
		Logger.Warn("Error marshaling player joined message", zap.Error(err))
		return nil
	}
	return response
}

func FormatPlayerUpdated(playerID string, position, rotation, modelRotation map[string]float64, animation string) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":          PlayerUpdated,
		"id":            playerID,
		"position":      position,
		"rotation":      rotation,
		"modelRotation": modelRotation,
		"animation":     animation,
	})
	if err != nil {
		Logger.Warn("Error marshaling player updated message", zap.Error(err))
		return nil
	}
	return response
}

func FormatPlaySound(playerID, soundType string, position map[string]float64) []byte {
	response, err := json.Marshal(map[string]interface{}{
		"type":      PlayerSound,
		"id":        playerID,
		"soundType": soundType,
		"position":  position,
	})
	if err != nil {
		Logger.Warn("Error marshaling play sound message", zap.Error(err))
		return nil
	}
	return response
}
