package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
	"github.com/sablecore/aoi-engine/internal/config"
	"github.com/sablecore/aoi-engine/internal/events"
)

// AoiConfig is the area-of-interest configuration every new
// GameSession builds its engine from. Set once at startup by main.
var AoiConfig config.Aoi

// Logger is the structured logger every session's AOI engine reports
// tick panics through. Set once at startup by main; defaults to a
// no-op logger so tests that construct sessions directly don't need
// to configure one.
var Logger = zap.NewNop()

// Message types
type Message struct {
	Type          string                   `json:"type"`
	SessionID     string                   `json:"sessionId,omitempty"`
	SessionName   string                   `json:"sessionName,omitempty"`
	Sessions      []map[string]interface{} `json:"sessions,omitempty"`
	Username      string                   `json:"username,omitempty"`
	Position      map[string]float64       `json:"position,omitempty"`
	Rotation      map[string]float64       `json:"rotation,omitempty"`
	ModelRotation map[string]float64       `json:"modelRotation,omitempty"`
	Animation     string                   `json:"animation,omitempty"`
	SoundType     string                   `json:"soundType,omitempty"`
	ID            string                   `json:"id,omitempty"`
	Player        map[string]interface{}   `json:"player,omitempty"`
	Players       []map[string]interface{} `json:"players,omitempty"`
	PlayerID      string                   `json:"playerId,omitempty"`
	Message       string                   `json:"message,omitempty"`
}

// Global state with thread-safe access
type GameState struct {
	LobbyPlayers map[string]*Player
	Sessions     map[string]*GameSession
	mu           sync.RWMutex
}

var State = &GameState{
	LobbyPlayers: make(map[string]*Player),
	Sessions:     make(map[string]*GameSession),
	mu:           sync.RWMutex{},
}

func (s *GameState) AddLobbyPlayer(player *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LobbyPlayers[player.ID] = player
	Logger.Info("player added to lobby", zap.String("player_id", player.ID))
}

func (s *GameState) RemoveLobbyPlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.LobbyPlayers, playerID)
	Logger.Info("player removed from lobby", zap.String("player_id", playerID))
}

func (s *GameState) GetCounts() (players int, sessions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.LobbyPlayers), len(s.Sessions)
}

func (s *GameState) ListSessions() []map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]map[string]interface{}, 0, len(s.Sessions))
	for _, session := range s.Sessions {
		sessionInfo := session.ExportInfo()
		sessions = append(sessions, sessionInfo)
	}
	return sessions
}

func (s *GameState) GetSession(sessionID string) (*GameSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.Sessions[sessionID]
	return session, exists
}

func (s *GameState) AddSession(session *GameSession) {
	s.mu.Lock()
	s.Sessions[session.ID] = session
	s.mu.Unlock()

	payload := events.FormatUpdateSessionList(s.ListSessions())
	s.Broadcast(payload)

	Logger.Info("session added to state", zap.String("session_id", session.ID))
}

func (s *GameState) RemoveSession(sessionID string) {
	s.mu.Lock()
	session, ok := s.Sessions[sessionID]
	delete(s.Sessions, sessionID)
	s.mu.Unlock()

	if ok {
		session.Close()
	}

	payload := events.FormatUpdateSessionList(s.ListSessions())
	s.Broadcast(payload)

	Logger.Info("session removed from state", zap.String("session_id", sessionID))
}

// Broadcast to all lobby clients
func (s *GameState) Broadcast(message []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if message == nil {
		Logger.Warn("broadcast message is nil, skipping broadcast")
		return
	}

	var wg sync.WaitGroup
	for _, player := range s.LobbyPlayers {
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

// Cleanup inactive sessions (players are cleaned up on disconnect via HandleDisconnect)
func CleanupLoop() {
	ticker := time.NewTicker(config.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		// Only cleanup inactive sessions - players are removed immediately on disconnect
		State.mu.RLock()
		sessionsToRemove := make([]string, 0)
		for sessionID, session := range State.Sessions {
			if session.IsEmpty() {
				sessionsToRemove = append(sessionsToRemove, sessionID)
			}
		}
		State.mu.RUnlock()

		if len(sessionsToRemove) > 0 {
			for _, sessionID := range sessionsToRemove {
				State.RemoveSession(sessionID)
				Logger.Info("session deleted, no players remaining", zap.String("session_id", sessionID))
			}
		}
	}
}
