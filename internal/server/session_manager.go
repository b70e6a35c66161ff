package server

import (
	"errors"
	"sync"
)

type SessionInfo struct {
	Token    string
	RoomCode string
	PlayerID string
	Username string
}

type SessionManager struct {
	sessions map[string]SessionInfo // Token -> SessionInfo
	mu       sync.RWMutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]SessionInfo),
	}
}

func (sm *SessionManager) StoreSession(info SessionInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[info.Token] = info
}

func (sm *SessionManager) GetSession(token string) (SessionInfo, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[token]
	if !exists {
		return SessionInfo{}, errors.New("TOKEN_NOT_FOUND: Invalid session token")
	}

	return session, nil
}

// Used for players who intentionally leave
func (sm *SessionManager) RemoveSession(token string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, token)
}

// FindByName locates a session bound to a room by display name. Reconnects
// after a network drop arrive with a fresh connection id and sometimes no
// token, so name is the reconciliation key.
func (sm *SessionManager) FindByName(roomCode, username string) (SessionInfo, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		if session.RoomCode == roomCode && session.Username == username {
			return session, true
		}
	}
	return SessionInfo{}, false
}

func (sm *SessionManager) GetAllSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]SessionInfo, 0, len(sm.sessions))
	for _, session := range sm.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}
