package server

import (
	"sync"

	"github.com/coder/websocket"
)

type PlayerConnection struct {
	RoomCode string
	PlayerID string
	Username string
	Token    string
}

type ConnectionManager struct {
	connections map[string]*websocket.Conn  // connectionID → socket
	players     map[string]PlayerConnection // connectionID → player info
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		players:     make(map[string]PlayerConnection),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

// AddConnectionWithToken binds a socket and its session token in one step.
// Returns the previous connection id holding the token, if any, so the
// caller can evict the stale socket.
func (cm *ConnectionManager) AddConnectionWithToken(id string, conn *websocket.Conn, token string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	previous := ""
	for connID, player := range cm.players {
		if player.Token == token && connID != id {
			previous = connID
			break
		}
	}

	cm.connections[id] = conn
	player := cm.players[id]
	player.Token = token
	cm.players[id] = player

	return previous
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.connections, id)
	delete(cm.players, id)
}

// GetTokenByConnection returns the session token for a connection.
func (cm *ConnectionManager) GetTokenByConnection(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if player, exists := cm.players[connectionID]; exists {
		return player.Token
	}
	return ""
}

// GetConnectionByToken returns the connection id holding a token.
func (cm *ConnectionManager) GetConnectionByToken(token string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for connID, player := range cm.players {
		if player.Token == token {
			return connID
		}
	}
	return ""
}

// GetConnection returns the websocket for a connection id.
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.connections[connectionID]
}
