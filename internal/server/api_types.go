package server

import (
	"time"

	"ludo-server/internal/ludo"
	"ludo-server/internal/tournament"
)

// ============================================================================
// ERROR RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ============================================================================
// ROOM LIFECYCLE (create_room / join_room / reconnect / leave_room)
// ============================================================================
type CreateRoomRequest struct {
	Username string `json:"username"`
}

type CreateRoomResponse struct {
	RoomCode string `json:"roomCode"`
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

type JoinRoomResponse struct {
	Success    bool   `json:"success"`
	Token      string `json:"token"`
	PlayerID   string `json:"playerId"`
	Reconciled bool   `json:"reconciled"`
	Message    string `json:"message,omitempty"`
}

type ReconnectRequest struct {
	Token string `json:"token"`
}

type ReconnectResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	Message  string `json:"message,omitempty"`
}

type PlayerStatusNotification struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
}

type StartCancelledNotification struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

// ============================================================================
// GAME ACTIONS (start_game / roll_dice / move_token / end_turn)
// ============================================================================
type StartGameRequest struct {
	// No fields - session identifies host and room
}

type RollDiceRequest struct {
	// Forced substitutes an explicit die value; only honored for operator
	// connections.
	Forced int `json:"forced,omitempty"`
}

type MoveTokenRequest struct {
	TokenIndex int `json:"tokenIndex"`
	// ClaimedPosition is where the client thinks the token lands. The
	// server recomputes the destination and only logs a mismatch.
	ClaimedPosition int `json:"claimedPosition,omitempty"`
}

type EndTurnRequest struct {
	Moved            bool `json:"moved"`
	NoExtraTurnOnSix bool `json:"noExtraTurnOnSix"`
}

type RoomStateMessage struct {
	State        *ludo.Game `json:"state"`
	Status       string     `json:"status"`
	Expected     int        `json:"expected,omitempty"`
	Connected    int        `json:"connected,omitempty"`
	TournamentID string     `json:"tournamentId,omitempty"`
	MatchID      string     `json:"matchId,omitempty"`
}

type GameEndedNotification struct {
	Winners  []string `json:"winners"`
	RoomCode string   `json:"roomCode"`
}

// ============================================================================
// TOURNAMENTS (tournament_create / tournament_join / tournament_start /
//              report_result / tournament_trash / tournament_restore /
//              tournament_delete)
// ============================================================================
type TournamentCreateRequest struct {
	Name     string    `json:"name"`
	Target   int       `json:"target"`
	StartsAt time.Time `json:"startsAt"`
	Gated    bool      `json:"gated"`
}

type TournamentCreateResponse struct {
	TournamentID string `json:"tournamentId"`
	// Admissions is only filled for gated tournaments: one-time tokens the
	// organizer hands out to players.
	Admissions []string `json:"admissions,omitempty"`
}

type TournamentJoinRequest struct {
	TournamentID string `json:"tournamentId"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Admission    string `json:"admission,omitempty"`
}

type TournamentJoinResponse struct {
	EntryID string `json:"entryId"`
}

type TournamentStartRequest struct {
	TournamentID string `json:"tournamentId"`
}

type TournamentLifecycleRequest struct {
	TournamentID string `json:"tournamentId"`
}

type TournamentMatchesResponse struct {
	TournamentID string                    `json:"tournamentId"`
	Matches      []*tournament.MatchRecord `json:"matches"`
}

type ReportResultRequest struct {
	TournamentID string   `json:"tournamentId"`
	MatchID      string   `json:"matchId"`
	Placements   []string `json:"placements"`
}

type RoundScheduledNotification struct {
	TournamentID string                    `json:"tournamentId"`
	Round        int                       `json:"round"`
	Matches      []*tournament.MatchRecord `json:"matches"`
}

type TournamentFinishedNotification struct {
	TournamentID string                   `json:"tournamentId"`
	Winners      []tournament.PlayerEntry `json:"winners"`
}
