package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"ludo-server/internal/ludo"
	"ludo-server/internal/tournament"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.HelloWorldHandler)

	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/websocket", s.websocketHandler)

	// Wrap the mux with CORS middleware
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"message": "Hello World"}
	jsonResp, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonResp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"status": "up", "persistence": "disabled"}
	if s.db != nil {
		health = s.db.Health()
		health["persistence"] = "enabled"
	}

	resp, err := json.Marshal(health)
	if err != nil {
		http.Error(w, "Failed to marshal health check response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(resp); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	defer func() {
		token := s.connectionManager.GetTokenByConnection(connectionID)

		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.health.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)

		// The session survives the socket: the seat is only flagged so a
		// reconnect can reclaim it.
		if token == "" {
			return
		}
		session, err := s.sessionManager.GetSession(token)
		if err != nil {
			// Player already left via leave_room before the socket closed.
			return
		}

		s.roomManager.MarkDisconnected(session.RoomCode, session.PlayerID)
		log.Printf("Player %s (%s) disconnected from room %s",
			session.PlayerID, session.Username, session.RoomCode)

		if room, err := s.roomManager.GetRoom(session.RoomCode); err == nil {
			s.broadcastToRoom(room, "player_disconnected", PlayerStatusNotification{
				PlayerID:  session.PlayerID,
				Username:  session.Username,
				Connected: false,
			})
		}
	}()

	for {
		// Read from client
		msgType, data, err := socket.Read(ctx)

		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(socket, ctx, "RATE_LIMITED: Too many messages, slow down")
			continue
		}
		s.health.UpdateActivity(connectionID)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		if err := ValidateMessageType(msg.Type); err != nil {
			log.Printf("Unknown message type '%s' from %s", msg.Type, connectionID)
			s.sendError(socket, ctx, err.Error())
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)

		// Route the message
		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID, msg.Payload)

		case "create_room":
			s.handleCreateRoom(socket, ctx, connectionID, msg.Payload)

		case "join_room":
			s.handleJoinRoom(socket, ctx, connectionID, msg.Payload)

		case "reconnect":
			s.handleReconnect(socket, ctx, connectionID, msg.Payload)

		case "leave_room":
			s.handleLeaveRoom(socket, ctx, connectionID, msg.Payload)

		case "start_game":
			s.handleStartGame(socket, ctx, connectionID, msg.Payload)

		case "roll_dice":
			s.handleRollDice(socket, ctx, connectionID, msg.Payload)

		case "move_token":
			s.handleMoveToken(socket, ctx, connectionID, msg.Payload)

		case "end_turn":
			s.handleEndTurn(socket, ctx, connectionID, msg.Payload)

		case "tournament_create":
			s.handleTournamentCreate(socket, ctx, connectionID, msg.Payload)

		case "tournament_join":
			s.handleTournamentJoin(socket, ctx, connectionID, msg.Payload)

		case "tournament_start":
			s.handleTournamentStart(socket, ctx, connectionID, msg.Payload)

		case "tournament_matches":
			s.handleTournamentMatches(socket, ctx, connectionID, msg.Payload)

		case "tournament_trash":
			s.handleTournamentLifecycle(socket, ctx, msg.Payload, "tournament_trashed", s.orchestrator.Trash)

		case "tournament_restore":
			s.handleTournamentLifecycle(socket, ctx, msg.Payload, "tournament_restored", s.orchestrator.Restore)

		case "tournament_delete":
			s.handleTournamentLifecycle(socket, ctx, msg.Payload, "tournament_deleted", s.orchestrator.Delete)

		case "report_result":
			s.handleReportResult(socket, ctx, connectionID, msg.Payload)
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string, msg json.RawMessage) {
	log.Printf("Ping from %s", connectionID)

	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Marshal error: %w", err)
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// broadcastToRoom fans a message out to every connected player in the room.
// Player names resolve to sessions, sessions to sockets.
func (s *Server) broadcastToRoom(room *Room, messageType string, payload interface{}) {
	room.mu.Lock()
	names := make([]string, 0, len(room.Game.Players))
	for _, p := range room.Game.Players {
		names = append(names, p.Name)
	}
	code := room.RoomCode
	room.mu.Unlock()

	msg := ServerMessage{
		Type:    messageType,
		Payload: payload,
	}

	for _, name := range names {
		session, ok := s.sessionManager.FindByName(code, name)
		if !ok {
			continue
		}
		connID := s.connectionManager.GetConnectionByToken(session.Token)
		if connID == "" {
			continue // Player not connected
		}
		conn := s.connectionManager.GetConnection(connID)
		if conn == nil {
			continue
		}

		// Use background context for broadcasts
		s.sendMessage(conn, context.Background(), msg)
	}
}

// buildRoomState snapshots a room for the wire.
func (s *Server) buildRoomState(room *Room) RoomStateMessage {
	room.mu.Lock()
	defer room.mu.Unlock()

	return RoomStateMessage{
		State:        room.Game,
		Status:       string(room.Status),
		Expected:     room.Expected,
		Connected:    room.connectedCount(),
		TournamentID: room.Game.TournamentID,
		MatchID:      room.Game.MatchID,
	}
}

func (s *Server) broadcastRoomState(room *Room) {
	s.broadcastToRoom(room, "room_state", s.buildRoomState(room))
}

func (s *Server) handleCreateRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid create_room payload")
		return
	}

	room, token, playerID, err := s.roomManager.CreateRoom(req.Username)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		RoomCode: room.RoomCode,
		PlayerID: playerID,
		Username: req.Username,
	})
	s.connectionManager.AddConnectionWithToken(connectionID, socket, token)

	response := ServerMessage{
		Type: "room_created",
		Payload: CreateRoomResponse{
			RoomCode: room.RoomCode,
			Token:    token,
			PlayerID: playerID,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_created: %v", err)
		return
	}

	s.broadcastRoomState(room)
}

func (s *Server) handleJoinRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid join_room payload")
		return
	}

	room, playerID, reconciled, err := s.roomManager.JoinRoom(req.RoomCode, req.Username)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// A reconciled player keeps their existing session token so any other
	// device holding it stays valid.
	token := ""
	if reconciled {
		if session, ok := s.sessionManager.FindByName(room.RoomCode, req.Username); ok {
			token = session.Token
		}
	}
	if token == "" {
		token = uuid.New().String()
	}

	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		RoomCode: room.RoomCode,
		PlayerID: playerID,
		Username: req.Username,
	})
	oldConnectionID := s.connectionManager.AddConnectionWithToken(connectionID, socket, token)
	s.evictConnection(oldConnectionID, connectionID)

	response := ServerMessage{
		Type: "room_joined",
		Payload: JoinRoomResponse{
			Success:    true,
			Token:      token,
			PlayerID:   playerID,
			Reconciled: reconciled,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_joined: %v", err)
		return
	}

	s.broadcastToRoom(room, "player_joined", PlayerStatusNotification{
		PlayerID:  playerID,
		Username:  req.Username,
		Connected: true,
	})
	s.broadcastRoomState(room)
}

// evictConnection closes a stale socket after its token moved to a new one.
func (s *Server) evictConnection(oldConnectionID, newConnectionID string) {
	if oldConnectionID == "" || oldConnectionID == newConnectionID {
		return
	}
	oldConn := s.connectionManager.GetConnection(oldConnectionID)
	if oldConn != nil {
		s.sendMessage(oldConn, context.Background(), ServerMessage{
			Type: "disconnected_elsewhere",
			Payload: struct {
				Message string `json:"message"`
			}{
				Message: "You connected on another device",
			},
		})
		oldConn.Close(websocket.StatusNormalClosure, "Connected from another device")
	}
	s.connectionManager.RemoveConnection(oldConnectionID)
}

func (s *Server) handleReconnect(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ReconnectRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid reconnect payload")
		return
	}

	session, err := s.sessionManager.GetSession(req.Token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Has this token already connected?
	oldConnectionID := s.connectionManager.AddConnectionWithToken(connectionID, socket, req.Token)
	s.evictConnection(oldConnectionID, connectionID)

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	s.roomManager.MarkConnected(session.RoomCode, session.PlayerID)

	response := ServerMessage{
		Type: "reconnected",
		Payload: ReconnectResponse{
			Success:  true,
			RoomCode: session.RoomCode,
			PlayerID: session.PlayerID,
			Message:  "Successfully reconnected",
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send reconnected response: %v", err)
	}

	s.broadcastToRoom(room, "player_reconnected", PlayerStatusNotification{
		PlayerID:  session.PlayerID,
		Username:  session.Username,
		Connected: true,
	})

	// Send current state to the reconnected player
	s.sendMessage(socket, ctx, ServerMessage{
		Type:    "room_state",
		Payload: s.buildRoomState(room),
	})
}

// sessionFor resolves a connection to its live session, the common preamble
// of every in-room handler.
func (s *Server) sessionFor(socket *websocket.Conn, ctx context.Context, connectionID string) (SessionInfo, bool) {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_IN_ROOM: No active room session")
		return SessionInfo{}, false
	}

	session, err := s.sessionManager.GetSession(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return SessionInfo{}, false
	}
	return session, true
}

func (s *Server) handleLeaveRoom(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	session, ok := s.sessionFor(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.LeaveRoom(session.RoomCode, session.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sessionManager.RemoveSession(session.Token)

	response := ServerMessage{
		Type: "room_left",
		Payload: struct {
			Success bool `json:"success"`
		}{Success: true},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send room_left: %v", err)
	}

	s.broadcastToRoom(room, "player_left", PlayerStatusNotification{
		PlayerID:  session.PlayerID,
		Username:  session.Username,
		Connected: false,
	})
	s.broadcastRoomState(room)
}

func (s *Server) handleStartGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	session, ok := s.sessionFor(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.StartGame(session.RoomCode, session.PlayerID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToRoom(room, "game_started", struct {
		Message string `json:"message"`
	}{Message: "Game is starting!"})
	s.broadcastRoomState(room)
}

func (s *Server) handleRollDice(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req RollDiceRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid roll_dice payload")
		return
	}

	session, ok := s.sessionFor(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if req.Forced != 0 && !s.allowForcedRolls {
		s.sendError(socket, ctx, "FORCED_ROLL_DISABLED: Forced rolls are not enabled on this server")
		return
	}

	room.mu.Lock()
	var outcome ludo.RollOutcome
	if req.Forced != 0 {
		outcome, err = room.Game.RollDiceForced(session.PlayerID, req.Forced)
	} else {
		outcome, err = room.Game.RollDice(session.PlayerID)
	}
	if err == nil {
		room.UpdatedAt = time.Now()
	}
	room.mu.Unlock()

	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToRoom(room, "dice_rolled", outcome)

	// Third consecutive six: the move was forfeited at roll time.
	if outcome.Skipped {
		s.broadcastToRoom(room, "turn_skipped", outcome)
	}
}

func (s *Server) handleMoveToken(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req MoveTokenRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid move_token payload")
		return
	}

	session, ok := s.sessionFor(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	outcome, err := room.Game.MoveToken(session.PlayerID, req.TokenIndex)
	if err == nil {
		room.UpdatedAt = time.Now()
		if outcome.GameOver {
			room.Status = StatusCompleted
		}
	}
	room.mu.Unlock()

	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// The client's claimed destination is advisory only; the server result
	// stands either way.
	if req.ClaimedPosition != 0 && req.ClaimedPosition != outcome.Position {
		log.Printf("Client %s claimed position %d for token %d, server computed %d",
			session.PlayerID, req.ClaimedPosition, req.TokenIndex, outcome.Position)
	}

	s.broadcastToRoom(room, "token_moved", outcome)

	for _, capture := range outcome.Captures {
		s.broadcastToRoom(room, "token_captured", capture)
	}
	if outcome.Finished {
		s.broadcastToRoom(room, "player_finished", struct {
			PlayerID       string `json:"playerId"`
			FinishPosition int    `json:"finishPosition"`
		}{PlayerID: session.PlayerID, FinishPosition: outcome.FinishPosition})
	}

	if outcome.GameOver {
		s.finishGame(room, outcome.Winners)
	}
}

// finishGame announces the result and, for tournament matches, reports the
// placements upstream so the bracket can advance.
func (s *Server) finishGame(room *Room, winners []string) {
	s.broadcastToRoom(room, "game_ended", GameEndedNotification{
		Winners:  winners,
		RoomCode: room.RoomCode,
	})

	room.mu.Lock()
	tournamentID := room.Game.TournamentID
	matchID := room.Game.MatchID
	placements := buildPlacements(room)
	room.mu.Unlock()

	if tournamentID == "" {
		return
	}

	result, err := s.orchestrator.ReportResult(tournamentID, matchID, placements)
	if err != nil {
		log.Printf("Failed to report match %s result: %v", matchID, err)
		return
	}

	if !result.RoundComplete {
		return
	}

	if result.TournamentFinished {
		s.broadcastToRoom(room, "tournament_finished", TournamentFinishedNotification{
			TournamentID: tournamentID,
			Winners:      result.Winners,
		})
		return
	}

	round := 0
	if len(result.NextRound) > 0 {
		round = result.NextRound[0].Round
	}
	s.broadcastToRoom(room, "round_scheduled", RoundScheduledNotification{
		TournamentID: tournamentID,
		Round:        round,
		Matches:      result.NextRound,
	})
}

// buildPlacements orders every player: finishers first in finish order,
// then the rest in seating order. Caller holds the room lock.
func buildPlacements(room *Room) []string {
	placements := make([]string, 0, len(room.Game.Players))
	placements = append(placements, room.Game.FinishOrder...)

	finished := make(map[string]bool, len(placements))
	for _, id := range placements {
		finished[id] = true
	}
	for _, p := range room.Game.Players {
		if !finished[p.ID] {
			placements = append(placements, p.ID)
		}
	}
	return placements
}

func (s *Server) handleEndTurn(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req EndTurnRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid end_turn payload")
		return
	}

	session, ok := s.sessionFor(socket, ctx, connectionID)
	if !ok {
		return
	}

	room, err := s.roomManager.GetRoom(session.RoomCode)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	room.mu.Lock()
	outcome, err := room.Game.EndTurn(session.PlayerID, req.Moved, req.NoExtraTurnOnSix)
	if err == nil {
		room.UpdatedAt = time.Now()
	}
	room.mu.Unlock()

	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToRoom(room, "turn_ended", outcome)
}

func (s *Server) handleTournamentCreate(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req TournamentCreateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid tournament_create payload")
		return
	}

	t, err := s.orchestrator.Create(req.Name, req.Target, req.StartsAt, req.Gated)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Gated tournaments hand the organizer a batch of one-time admission
	// tokens up front, one per expected entrant.
	var admissions []string
	if t.Gated {
		for i := 0; i < t.TotalPlayersTarget; i++ {
			token, err := s.orchestrator.IssueAdmission(t.ID, 24*time.Hour)
			if err != nil {
				log.Printf("Failed to issue admission for %s: %v", t.ID, err)
				break
			}
			admissions = append(admissions, token)
		}
	}

	response := ServerMessage{
		Type: "tournament_created",
		Payload: TournamentCreateResponse{
			TournamentID: t.ID,
			Admissions:   admissions,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send tournament_created: %v", err)
	}
}

func (s *Server) handleTournamentJoin(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req TournamentJoinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid tournament_join payload")
		return
	}

	entry, err := s.orchestrator.Register(req.TournamentID, req.Name, req.Phone, req.Admission)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	response := ServerMessage{
		Type: "tournament_joined",
		Payload: TournamentJoinResponse{
			EntryID: entry.ID,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send tournament_joined: %v", err)
	}
}

func (s *Server) handleTournamentStart(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req TournamentStartRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid tournament_start payload")
		return
	}

	matches, err := s.orchestrator.StartRound(req.TournamentID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	round := 0
	if len(matches) > 0 {
		round = matches[0].Round
	}
	response := ServerMessage{
		Type: "round_scheduled",
		Payload: RoundScheduledNotification{
			TournamentID: req.TournamentID,
			Round:        round,
			Matches:      matches,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send round_scheduled: %v", err)
	}
}

// handleTournamentMatches returns a tournament's bracket history. Persisted
// records are preferred since they survive restarts; without a database the
// in-memory records serve.
func (s *Server) handleTournamentMatches(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req TournamentLifecycleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid tournament_matches payload")
		return
	}

	var records []*tournament.MatchRecord
	if s.persistenceManager != nil {
		loaded, err := s.persistenceManager.LoadMatches(req.TournamentID)
		if err != nil {
			log.Printf("Failed to load matches for %s: %v", req.TournamentID, err)
		} else {
			records = loaded
		}
	}
	if records == nil {
		t, err := s.orchestrator.Get(req.TournamentID)
		if err != nil {
			s.sendError(socket, ctx, err.Error())
			return
		}
		records = t.Matches
	}

	response := ServerMessage{
		Type: "tournament_matches",
		Payload: TournamentMatchesResponse{
			TournamentID: req.TournamentID,
			Matches:      records,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send tournament_matches: %v", err)
	}
}

// handleTournamentLifecycle serves trash, restore and delete, which only
// differ in the orchestrator call and the acknowledgement type.
func (s *Server) handleTournamentLifecycle(socket *websocket.Conn, ctx context.Context, payload json.RawMessage, ackType string, op func(string) error) {
	var req TournamentLifecycleRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid tournament lifecycle payload")
		return
	}

	if err := op(req.TournamentID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	response := ServerMessage{
		Type: ackType,
		Payload: struct {
			TournamentID string `json:"tournamentId"`
		}{TournamentID: req.TournamentID},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send %s: %v", ackType, err)
	}
}

// handleReportResult lets an operator submit placements directly, e.g. for
// a match decided by forfeit instead of play.
func (s *Server) handleReportResult(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ReportResultRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid report_result payload")
		return
	}

	result, err := s.orchestrator.ReportResult(req.TournamentID, req.MatchID, req.Placements)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	response := ServerMessage{
		Type: "result_recorded",
		Payload: struct {
			AlreadyRecorded    bool `json:"alreadyRecorded"`
			RoundComplete      bool `json:"roundComplete"`
			TournamentFinished bool `json:"tournamentFinished"`
		}{
			AlreadyRecorded:    result.AlreadyRecorded,
			RoundComplete:      result.RoundComplete,
			TournamentFinished: result.TournamentFinished,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send result_recorded: %v", err)
	}

	if result.TournamentFinished {
		s.sendMessage(socket, ctx, ServerMessage{
			Type: "tournament_finished",
			Payload: TournamentFinishedNotification{
				TournamentID: req.TournamentID,
				Winners:      result.Winners,
			},
		})
	} else if len(result.NextRound) > 0 {
		s.sendMessage(socket, ctx, ServerMessage{
			Type: "round_scheduled",
			Payload: RoundScheduledNotification{
				TournamentID: req.TournamentID,
				Round:        result.NextRound[0].Round,
				Matches:      result.NextRound,
			},
		})
	}
}
