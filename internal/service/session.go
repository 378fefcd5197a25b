package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
	"github.com/sablecore/aoi-engine/internal/aoi"
	"github.com/sablecore/aoi-engine/internal/aoi/cross"
	"github.com/sablecore/aoi-engine/internal/config"
	"github.com/sablecore/aoi-engine/internal/engine"
	"github.com/sablecore/aoi-engine/internal/events"
	"github.com/sablecore/aoi-engine/internal/metrics"
	"github.com/sablecore/aoi-engine/internal/utils"
)

// defaultSensorID is the sensor_id every player's own view uses. It is
// scoped to the owning player, so reusing the same constant across
// every player in every session is not a collision.
const defaultSensorID aoi.Nuid = 1

// defaultViewRadius is the radius of every player's own sensor. It is
// fixed: no client message can change it.
const defaultViewRadius = 100.0

func aoiEngineConfig(a config.Aoi, log *zap.Logger) engine.Config {
	cfg := engine.Config{
		TickInterval:    time.Duration(a.TickInterval),
		SquaresCellSize: a.CellSize,
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = config.DefaultAoiTickInterval
	}
	switch a.Variant {
	case "cross":
		cfg.Variant = engine.VariantCross
		cfg.Cross = cross.Config{
			XMin: a.BoundsXMin, XMax: a.BoundsXMax,
			ZMin: a.BoundsZMin, ZMax: a.BoundsZMax,
			BeaconX: a.BeaconGridX, BeaconZ: a.BeaconGridZ,
			BeaconRadius: a.BeaconRadius,
		}
	default:
		cfg.Variant = engine.VariantSquares
	}
	return cfg
}

// Thread-safe session structure
type GameSession struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	CreatorID   string             `json:"creatorId"`
	Players     map[string]*Player `json:"-"`
	PlayerCount int                `json:"playerCount"`
	CreatedAt   time.Time          `json:"createdAt"`
	Started     bool               `json:"started"`
	mu          sync.RWMutex       `json:"-"`

	byNuid map[aoi.Nuid]*Player

	// seenBy maps a player's nuid to the set of owner nuids that
	// currently have that player inside some sensor, kept live by
	// handleAoiUpdate's enter/leave deltas. It lets callers scope a
	// broadcast to only the players who can currently see someone,
	// instead of the whole session.
	seenBy map[aoi.Nuid]map[aoi.Nuid]bool

	aoi    *engine.Engine
	cancel context.CancelFunc
}

func NewGameSession(name, creatorID string) *GameSession {
	sessionID := utils.GenerateSessionID()

	// Track session creation
	metrics.TotalSessions.Inc()
	metrics.ActiveSessions.Inc()

	s := &GameSession{
		ID:          sessionID,
		Name:        name,
		CreatorID:   creatorID,
		Players:     make(map[string]*Player),
		byNuid:      make(map[aoi.Nuid]*Player),
		seenBy:      make(map[aoi.Nuid]map[aoi.Nuid]bool),
		PlayerCount: 0,
		CreatedAt:   time.Now(),
		Started:     false,
	}

	s.aoi = engine.New(aoiEngineConfig(AoiConfig, Logger), Logger, s.handleAoiUpdate)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.aoi.Run(ctx)

	return s
}

// handleAoiUpdate runs on the engine's own goroutine once per tick. It
// fans each sensor's enters and leaves out to the owning player,
// attaching each entered player's own info to its enter payload (a
// leave payload carries only the ID), and keeps seenBy in sync so
// other callers can scope a broadcast to who currently sees whom.
func (s *GameSession) handleAoiUpdate(updates aoi.UpdateInfos) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for nuid, info := range updates {
		owner, ok := s.byNuid[nuid]
		if !ok {
			continue
		}
		for _, su := range info.SensorUpdateList {
			metrics.AoiEnters.WithLabelValues(AoiConfig.Variant).Add(float64(len(su.Enters)))
			metrics.AoiLeaves.WithLabelValues(AoiConfig.Variant).Add(float64(len(su.Leaves)))

			for _, otherNuid := range su.Enters {
				other, ok := s.byNuid[otherNuid]
				if !ok {
					continue
				}
				if s.seenBy[otherNuid] == nil {
					s.seenBy[otherNuid] = make(map[aoi.Nuid]bool)
				}
				s.seenBy[otherNuid][nuid] = true

				payload := events.FormatAoiEnter(su.SensorID, other.ID, other.ExportInfo())
				if err := owner.WriteMessage(websocket.TextMessage, payload); err != nil {
					Logger.Warn("error sending aoi enter", zap.String("player_id", owner.ID), zap.Error(err))
				}
			}
			for _, otherNuid := range su.Leaves {
				delete(s.seenBy[otherNuid], nuid)

				other, ok := s.byNuid[otherNuid]
				otherID := ""
				if ok {
					otherID = other.ID
				}
				payload := events.FormatAoiLeave(su.SensorID, otherID)
				if err := owner.WriteMessage(websocket.TextMessage, payload); err != nil {
					Logger.Warn("error sending aoi leave", zap.String("player_id", owner.ID), zap.Error(err))
				}
			}
		}
	}
}

// PlayerIDsWhoSee returns the IDs of every player that currently has
// nuid inside one of their sensors, per the live enter/leave deltas
// handleAoiUpdate has applied so far.
func (s *GameSession) PlayerIDsWhoSee(nuid aoi.Nuid) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := s.seenBy[nuid]
	ids := make([]string, 0, len(owners))
	for ownerNuid := range owners {
		if owner, ok := s.byNuid[ownerNuid]; ok {
			ids = append(ids, owner.ID)
		}
	}
	return ids
}

// Start the game session
func (s *GameSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Started = true
	Logger.Info("session started", zap.String("session_id", s.ID), zap.String("creator_id", s.CreatorID))
}

// Check if session is started
func (s *GameSession) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Started
}

// Check if player is the creator
func (s *GameSession) IsCreator(playerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.CreatorID == playerID
}

// Add player to session (thread-safe)
func (s *GameSession) AddPlayer(player *Player) {
	// Get existing players in session
	existingPlayers := s.ExportPlayerInfos()

	s.mu.Lock()
	s.Players[player.ID] = player
	s.byNuid[player.Nuid] = player
	s.PlayerCount = len(s.Players)
	started := s.Started
	s.mu.Unlock()

	State.RemoveLobbyPlayer(player.ID)

	s.aoi.AddPlayer(player.Nuid, player.Position["x"], player.Position["y"], player.Position["z"])
	s.aoi.AddSensor(player.Nuid, defaultSensorID, defaultViewRadius)

	// Notify the joining player (include session started status)
	payload := events.FormatJoinSession(s.ID, player.ID, existingPlayers, started)
	err := player.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		Logger.Warn("error sending session joined message", zap.String("player_id", player.ID), zap.Error(err))
		return
	}

	// Notify other players in the session
	playerData := player.ExportInfo()
	payload = events.FormatPlayerJoined(playerData)
	s.Broadcast(payload)

	// Also notify lobby players (especially the session creator waiting in the main menu)
	// This allows the main menu to show live player counts and names
	State.Broadcast(payload)

	Logger.Info("player added to session",
		zap.String("player_id", player.ID),
		zap.String("session_id", s.ID),
		zap.Int("session_players", s.PlayerCount),
	)
}

// Remove player from session (thread-safe)
func (s *GameSession) RemovePlayer(playerID string) {
	// Check if this is the creator leaving an idling session
	isCreator := s.IsCreator(playerID)
	isStarted := s.IsStarted()

	s.mu.Lock()
	player, ok := s.Players[playerID]
	delete(s.Players, playerID)
	if ok {
		delete(s.byNuid, player.Nuid)
		delete(s.seenBy, player.Nuid)
		// The removed player's own sensors never get a final leave
		// computed (Tick skips removed owners outright), so drop it
		// from every other player's seenBy set directly here instead.
		for _, owners := range s.seenBy {
			delete(owners, player.Nuid)
		}
	}
	s.PlayerCount = len(s.Players)
	s.mu.Unlock()

	if ok {
		s.aoi.RemovePlayer(player.Nuid)
	}

	// If creator leaves an idling session, delete the entire session
	if isCreator && !isStarted {
		Logger.Info("creator left idling session, deleting session",
			zap.String("player_id", playerID),
			zap.String("session_id", s.ID),
		)
		State.RemoveSession(s.ID)
		return
	}

	// Notify other players in the session
	payload := events.FormatPlayerLeft(playerID)
	s.Broadcast(payload)

	// Also notify lobby players so they see the updated player count
	State.Broadcast(payload)

	Logger.Info("player removed from session",
		zap.String("player_id", playerID),
		zap.String("session_id", s.ID),
		zap.Int("session_players", s.PlayerCount),
	)
}

// Close stops this session's AOI engine goroutine. Called once a
// session is deleted from State so its ticker doesn't run forever.
func (s *GameSession) Close() {
	s.cancel()
}

// UpdatePos pushes a fresh position into the session's AOI engine. A
// no-op if the player isn't tracked (already left).
func (s *GameSession) UpdatePos(nuid aoi.Nuid, x, y, z float64) {
	s.aoi.UpdatePos(nuid, x, y, z)
}

// Get player count (thread-safe)
func (s *GameSession) GetPlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.PlayerCount
}

// Check if session is empty (thread-safe)
func (s *GameSession) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Players) == 0
}

func (s *GameSession) ExportInfo() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"id":          s.ID,
		"name":        s.Name,
		"creatorId":   s.CreatorID,
		"playerCount": s.PlayerCount,
		"createdAt":   s.CreatedAt,
		"started":     s.Started,
	}
}

func (s *GameSession) ExportPlayerInfos() []map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerInfos := make([]map[string]interface{}, 0, len(s.Players))
	for _, player := range s.Players {
		playerInfos = append(playerInfos, player.ExportInfo())
	}
	return playerInfos
}

func (s *GameSession) Broadcast(message []byte) {
	s.mu.RLock()
	recipientCount := len(s.Players)
	s.mu.RUnlock()

	if message == nil {
		Logger.Warn("broadcast message is nil, skipping broadcast", zap.String("session_id", s.ID))
		return
	}

	// Track broadcast metrics
	metrics.BroadcastRecipients.Observe(float64(recipientCount))

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Send messages in parallel
	var wg sync.WaitGroup
	for _, player := range s.Players {
		wg.Add(1)
		go func(p *Player) {
			defer wg.Done()

			err := p.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				Logger.Warn("error broadcasting to player", zap.String("player_id", p.ID), zap.Error(err))
			}
		}(player)
	}
	wg.Wait()
}

// BroadcastToPlayers sends a message only to specific players (for Area of Interest)
func (s *GameSession) BroadcastToPlayers(message []byte, playerIDs []string) {
	if message == nil {
		Logger.Warn("broadcast message is nil, skipping targeted broadcast", zap.String("session_id", s.ID))
		return
	}

	// Track broadcast metrics
	metrics.BroadcastRecipients.Observe(float64(len(playerIDs)))

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Send messages in parallel only to specified players
	var wg sync.WaitGroup
	for _, playerID := range playerIDs {
		if player, exists := s.Players[playerID]; exists {
			wg.Add(1)
			go func(p *Player) {
				defer wg.Done()

				err := p.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					Logger.Warn("error broadcasting to player", zap.String("player_id", p.ID), zap.Error(err))
				}
			}(player)
		}
	}
	wg.Wait()
}
