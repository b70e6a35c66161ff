package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"ludo-server/internal/database"
	"ludo-server/internal/tournament"
)

type Server struct {
	port               int
	db                 database.Service
	connectionManager  *ConnectionManager
	roomManager        *RoomManager
	sessionManager     *SessionManager
	persistenceManager *PersistenceManager
	orchestrator       *tournament.Orchestrator
	rateLimiter        *RateLimiter
	health             *ConnectionHealth

	// allowForcedRolls honors the forced field of roll_dice, for staging
	// and match replays. Off in production.
	allowForcedRolls bool

	shutdownTasks chan struct{}
}

func NewServer() (*Server, *http.Server) {
	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}

	// Initialize database. A nil service means no persistence: everything
	// still works from memory.
	dbService := database.New()

	var persistenceManager *PersistenceManager
	var store tournament.Store
	if dbService != nil {
		persistenceManager = NewPersistenceManager(dbService.DB())
		if err := persistenceManager.EnsureSchema(); err != nil {
			log.Printf("Warning: schema setup failed, running without persistence: %v", err)
			persistenceManager = nil
		} else {
			store = persistenceManager
		}
	}

	roomManager := NewRoomManager()

	// The room manager doubles as the orchestrator's match binder: every
	// scheduled match becomes a gated room under its pre-assigned code.
	orchestrator := tournament.NewOrchestrator(store, roomManager,
		tournament.WithRoomCodes(roomManager.NewRoomCode))

	server := &Server{
		port:               port,
		db:                 dbService,
		connectionManager:  NewConnectionManager(),
		roomManager:        roomManager,
		sessionManager:     NewSessionManager(),
		persistenceManager: persistenceManager,
		orchestrator:       orchestrator,
		rateLimiter:        NewRateLimiter(30, 10*time.Second),
		health:             NewConnectionHealth(),
		allowForcedRolls:   os.Getenv("LUDO_ALLOW_FORCED_ROLLS") == "true",
		shutdownTasks:      make(chan struct{}),
	}

	roomManager.SetGateCallbacks(server.onGateStart, server.onGateCancel)

	// Start background tasks
	go server.periodicSaveTask()
	go server.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", server.port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server, httpServer
}

// onGateStart fires when a gated room's start delay elapsed with everyone
// still connected. The game has already been started by the gate.
func (s *Server) onGateStart(room *Room) {
	log.Printf("Room %s gate fired, game starting", room.RoomCode)

	if room.Game.TournamentID != "" {
		err := s.orchestrator.MarkMatchPlaying(room.Game.TournamentID, room.Game.MatchID)
		if err != nil {
			log.Printf("Failed to mark match %s playing: %v", room.Game.MatchID, err)
		}
	}

	s.broadcastToRoom(room, "match_ready", struct {
		Message string `json:"message"`
	}{Message: "All players connected. Game is starting!"})
	s.broadcastRoomState(room)
}

// onGateCancel fires when a pending gated start was called off, usually by
// a disconnect dropping the room below its threshold.
func (s *Server) onGateCancel(room *Room) {
	log.Printf("Room %s pending start cancelled", room.RoomCode)
	s.broadcastToRoom(room, "start_cancelled", StartCancelledNotification{
		RoomCode: room.RoomCode,
		Message:  "Start cancelled: waiting for players to reconnect",
	})
}

// periodicSaveTask persists the tournament pool every 30 seconds, catching
// state changes whose own save failed transiently.
func (s *Server) periodicSaveTask() {
	if s.persistenceManager == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownTasks:
			return
		case <-ticker.C:
			if err := s.persistenceManager.SavePool(s.orchestrator.Snapshot()); err != nil {
				log.Printf("Periodic save failed: %v", err)
			}
		}
	}
}

// cleanupTask reaps idle rooms and stale rate limiter entries hourly.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdownTasks:
			return
		case <-ticker.C:
			if reaped := s.roomManager.CleanupIdleRooms(24 * time.Hour); reaped > 0 {
				log.Printf("Cleanup task: reaped %d idle rooms", reaped)
			}
			s.rateLimiter.Cleanup()
		}
	}
}

// Shutdown stops the background tasks and flushes the tournament pool.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.shutdownTasks)

	if s.persistenceManager != nil {
		if err := s.persistenceManager.SavePool(s.orchestrator.Snapshot()); err != nil {
			log.Printf("Final save failed: %v", err)
		}
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
