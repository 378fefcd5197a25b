package handlers

import (
	"go.uber.org/zap"

	"github.com/sablecore/aoi-engine/internal/events"
	"github.com/sablecore/aoi-engine/internal/service"
)

// Handle position update. The area-of-interest engine is tick-driven:
// this only feeds the new position in. Who gets told about it is
// decided by the session's own ticker, in handleAoiUpdate, not here.
func handleUpdate(player *service.Player, msg *service.Message) {
	player.UpdateState(msg.Position, msg.Rotation, msg.ModelRotation, msg.Animation)
	session := player.GetSession()

	if session != nil {
		session.UpdatePos(player.Nuid, msg.Position["x"], msg.Position["y"], msg.Position["z"])
	}
}

// Handle sound event. Scoped to area-of-interest: only players who
// currently have the source inside one of their sensors hear it, plus
// the source player itself, rather than the whole session.
func handleSound(player *service.Player, msg *service.Message) {
	session := player.GetSession()

	if session != nil {
		payload := events.FormatPlaySound(player.ID, msg.SoundType, msg.Position)
		recipients := append(session.PlayerIDsWhoSee(player.Nuid), player.ID)
		session.BroadcastToPlayers(payload, recipients)
	}
}

// Handle player disconnect
func HandleDisconnect(player *service.Player) {
	// Prevent duplicate disconnect handling
	if player.IsDisconnected() {
		return
	}

	session := player.GetSession()

	service.Logger.Info("player disconnected", zap.String("player_id", player.ID))

	// Close WebSocket connection properly
	player.CloseConnection()

	// Mark player as disconnected
	player.MarkDisconnected()

	if session != nil {
		// RemovePlayer will handle session cleanup if creator leaves idling session
		// or if session becomes empty after removal
		session.RemovePlayer(player.ID)

		// Note: RemovePlayer already calls State.RemoveSession() when appropriate
		// (when creator leaves idling session), so we only clean up empty STARTED sessions here
		if session.IsEmpty() && session.IsStarted() {
			service.State.RemoveSession(session.ID)
		}
	} else {
		service.State.RemoveLobbyPlayer(player.ID)
	}
}
