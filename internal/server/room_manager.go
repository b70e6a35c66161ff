package server

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ludo-server/internal/ludo"
	"ludo-server/internal/tournament"
)

type RoomStatus string

const (
	StatusLobby     RoomStatus = "lobby"
	StatusPlaying   RoomStatus = "playing"
	StatusCompleted RoomStatus = "completed"
)

// defaultStartDelay is the grace period between a gated room reaching its
// expected player count and the actual start, so late arrivals' clients can
// finish initializing.
const defaultStartDelay = 3 * time.Second

// Room wraps one live game with its connectivity and gating state. All
// operations on one room run under its mutex, so each room behaves as a
// single event sequence while distinct rooms proceed in parallel.
type Room struct {
	Game      *ludo.Game
	RoomCode  string
	Status    RoomStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	// Expected is the gate threshold; zero means the room is not gated.
	Expected     int
	connected    map[string]bool // playerID -> currently connected
	startPending bool
	// gateGeneration invalidates fired timers that lost a cancellation
	// race: a timer only acts if its generation is still current.
	gateGeneration int
	startTimer     *time.Timer

	mu sync.Mutex
}

func (r *Room) connectedCount() int {
	count := 0
	for _, up := range r.connected {
		if up {
			count++
		}
	}
	return count
}

type RoomManager struct {
	rooms      map[string]*Room
	usedCodes  map[string]bool
	startDelay time.Duration
	// onGateStart runs after a gated room's delay elapses with the
	// threshold still met; onGateCancel runs when a pending start is
	// called off. Both run outside the room lock.
	onGateStart  func(*Room)
	onGateCancel func(*Room)
	mu           sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:      make(map[string]*Room),
		usedCodes:  make(map[string]bool),
		startDelay: defaultStartDelay,
	}
}

// SetGateCallbacks wires broadcast hooks. Must be called before any gated
// room is created.
func (rm *RoomManager) SetGateCallbacks(onStart, onCancel func(*Room)) {
	rm.onGateStart = onStart
	rm.onGateCancel = onCancel
}

// NewRoomCode reserves a fresh unique code. Used directly and handed to the
// tournament orchestrator for match room codes.
func (rm *RoomManager) NewRoomCode() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	code := GenerateRoomCode(rm.usedCodes)
	rm.usedCodes[code] = true
	return code
}

// CreateRoom opens a lobby room with the creator as host.
func (rm *RoomManager) CreateRoom(username string) (*Room, string, string, error) {
	if err := validateUsername(username); err != nil {
		return nil, "", "", err
	}

	code := rm.NewRoomCode()
	now := time.Now()
	room := &Room{
		Game:      ludo.NewGame(code),
		RoomCode:  code,
		Status:    StatusLobby,
		CreatedAt: now,
		UpdatedAt: now,
		connected: make(map[string]bool),
	}

	playerID := uuid.New().String()
	if _, err := room.Game.AddPlayer(playerID, username); err != nil {
		return nil, "", "", err
	}
	room.connected[playerID] = true

	rm.mu.Lock()
	rm.rooms[code] = room
	rm.mu.Unlock()

	return room, uuid.New().String(), playerID, nil
}

func (rm *RoomManager) GetRoom(code string) (*Room, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	room, exists := rm.rooms[NormalizeRoomCode(code)]
	if !exists {
		return nil, errors.New("ROOM_NOT_FOUND: Room not found")
	}
	return room, nil
}

// JoinRoom adds a player, or reconciles them onto an existing record when a
// player with the same display name is already seeded but not connected.
// Tournament rooms are seeded before their players connect, so their joins
// always take the reconcile path.
func (rm *RoomManager) JoinRoom(code, username string) (*Room, string, bool, error) {
	code = NormalizeRoomCode(code)
	if err := ValidateRoomCode(code); err != nil {
		return nil, "", false, err
	}
	if err := validateUsername(username); err != nil {
		return nil, "", false, err
	}

	room, err := rm.GetRoom(code)
	if err != nil {
		return nil, "", false, err
	}

	room.mu.Lock()

	// Reconcile by name: an existing record with no live connection is
	// re-bound instead of duplicated, keeping its tokens and progress.
	for _, p := range room.Game.Players {
		if p.Name == username && !room.connected[p.ID] {
			room.connected[p.ID] = true
			room.UpdatedAt = time.Now()
			rm.checkGateLocked(room)
			room.mu.Unlock()
			return room, p.ID, true, nil
		}
	}

	if room.Status != StatusLobby {
		room.mu.Unlock()
		return nil, "", false, errors.New("GAME_ALREADY_STARTED: Cannot join game in progress")
	}
	for _, p := range room.Game.Players {
		if p.Name == username {
			room.mu.Unlock()
			return nil, "", false, errors.New("USERNAME_TAKEN: Username already taken in this room")
		}
	}

	playerID := uuid.New().String()
	if _, err := room.Game.AddPlayer(playerID, username); err != nil {
		room.mu.Unlock()
		return nil, "", false, err
	}
	room.connected[playerID] = true
	room.UpdatedAt = time.Now()
	rm.checkGateLocked(room)
	room.mu.Unlock()

	return room, playerID, false, nil
}

// LeaveRoom removes the player entirely and rebuilds turn order. The last
// player out of a non-tournament room tears it down.
func (rm *RoomManager) LeaveRoom(code, playerID string) (*Room, error) {
	room, err := rm.GetRoom(code)
	if err != nil {
		return nil, err
	}

	room.mu.Lock()
	if err := room.Game.RemovePlayer(playerID); err != nil {
		room.mu.Unlock()
		return nil, err
	}
	delete(room.connected, playerID)
	room.UpdatedAt = time.Now()

	cancelled := rm.cancelGateLocked(room)
	empty := len(room.Game.Players) == 0 && room.Game.TournamentID == ""
	room.mu.Unlock()

	if cancelled && rm.onGateCancel != nil {
		rm.onGateCancel(room)
	}
	if empty {
		rm.removeRoom(code)
	}

	return room, nil
}

// MarkDisconnected flags a dropped connection without removing the player,
// so a reconnect can reclaim the seat. A pending gated start is cancelled
// when connectivity falls below the threshold.
func (rm *RoomManager) MarkDisconnected(code, playerID string) {
	room, err := rm.GetRoom(code)
	if err != nil {
		return
	}

	room.mu.Lock()
	room.connected[playerID] = false
	room.UpdatedAt = time.Now()

	cancelled := false
	if room.Expected > 0 && room.connectedCount() < room.Expected {
		cancelled = rm.cancelGateLocked(room)
	}
	room.mu.Unlock()

	if cancelled && rm.onGateCancel != nil {
		rm.onGateCancel(room)
	}
}

// MarkConnected re-binds a returning player, re-evaluating the gate.
func (rm *RoomManager) MarkConnected(code, playerID string) {
	room, err := rm.GetRoom(code)
	if err != nil {
		return
	}

	room.mu.Lock()
	room.connected[playerID] = true
	room.UpdatedAt = time.Now()
	rm.checkGateLocked(room)
	room.mu.Unlock()
}

// StartGame starts an ungated room on the host's request.
func (rm *RoomManager) StartGame(code, playerID string) (*Room, error) {
	room, err := rm.GetRoom(code)
	if err != nil {
		return nil, err
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	player, err := room.Game.PlayerByID(playerID)
	if err != nil {
		return nil, err
	}
	if !player.IsHost {
		return nil, errors.New("NOT_HOST: Only the host can start the game")
	}
	if err := room.Game.Start(); err != nil {
		return nil, err
	}
	room.Status = StatusPlaying
	room.UpdatedAt = time.Now()

	return room, nil
}

// BindMatch implements tournament.RoomBinder: it creates the match's room
// under the pre-assigned code, seeds the listed players and arms the gate
// with the group size.
func (rm *RoomManager) BindMatch(record *tournament.MatchRecord) error {
	now := time.Now()
	room := &Room{
		Game:      ludo.NewGame(record.RoomCode),
		RoomCode:  record.RoomCode,
		Status:    StatusLobby,
		CreatedAt: now,
		UpdatedAt: now,
		Expected:  len(record.Players),
		connected: make(map[string]bool),
	}
	room.Game.TournamentID = record.TournamentID
	room.Game.MatchID = record.ID

	for _, entry := range record.Players {
		if _, err := room.Game.AddPlayer(entry.ID, entry.Name); err != nil {
			return err
		}
		room.connected[entry.ID] = false
	}

	rm.mu.Lock()
	rm.rooms[record.RoomCode] = room
	rm.usedCodes[record.RoomCode] = true
	rm.mu.Unlock()

	return nil
}

// ArmGate sets the expected count for an existing room and evaluates it.
func (rm *RoomManager) ArmGate(code string, expected int) error {
	room, err := rm.GetRoom(code)
	if err != nil {
		return err
	}

	room.mu.Lock()
	room.Expected = expected
	rm.checkGateLocked(room)
	room.mu.Unlock()
	return nil
}

// checkGateLocked schedules the delayed start once connectivity reaches the
// threshold. Caller holds the room lock.
func (rm *RoomManager) checkGateLocked(room *Room) {
	if room.Expected == 0 || room.Status != StatusLobby || room.startPending {
		return
	}
	if room.connectedCount() < room.Expected {
		return
	}

	room.startPending = true
	room.gateGeneration++
	generation := room.gateGeneration
	room.startTimer = time.AfterFunc(rm.startDelay, func() {
		rm.fireGate(room, generation)
	})
}

// cancelGateLocked stops a pending start. Bumping the generation makes a
// timer that already fired but has not acted yet a no-op. Caller holds the
// room lock; returns whether a start was actually called off.
func (rm *RoomManager) cancelGateLocked(room *Room) bool {
	if !room.startPending {
		return false
	}
	room.startPending = false
	room.gateGeneration++
	if room.startTimer != nil {
		room.startTimer.Stop()
		room.startTimer = nil
	}
	return true
}

func (rm *RoomManager) fireGate(room *Room, generation int) {
	room.mu.Lock()
	if generation != room.gateGeneration || !room.startPending {
		// Cancelled between scheduling and firing.
		room.mu.Unlock()
		return
	}
	room.startPending = false
	room.startTimer = nil

	if err := room.Game.Start(); err != nil {
		room.mu.Unlock()
		return
	}
	room.Status = StatusPlaying
	room.UpdatedAt = time.Now()
	room.mu.Unlock()

	if rm.onGateStart != nil {
		rm.onGateStart(room)
	}
}

func (rm *RoomManager) removeRoom(code string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.rooms, NormalizeRoomCode(code))
	delete(rm.usedCodes, NormalizeRoomCode(code))
}

// CleanupIdleRooms drops completed or abandoned rooms that have not been
// touched within the given window. Returns how many were reaped.
func (rm *RoomManager) CleanupIdleRooms(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	reaped := 0
	for code, room := range rm.rooms {
		room.mu.Lock()
		idle := room.UpdatedAt.Before(cutoff)
		done := room.Status == StatusCompleted || room.connectedCount() == 0
		room.mu.Unlock()

		if idle && done {
			delete(rm.rooms, code)
			delete(rm.usedCodes, code)
			reaped++
		}
	}
	return reaped
}

func validateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("USERNAME_INVALID: Username cannot be empty")
	}
	if len(username) > 20 {
		return errors.New("USERNAME_INVALID: Username too long (max 20 characters)")
	}
	return nil
}
