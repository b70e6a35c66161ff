package ludo

import (
	"errors"
	"fmt"
	"math/rand"

	"ludo-server/internal/board"
)

// Token tracks one piece. Position -1 means the token is still in its base;
// otherwise it is an index into the owner's color path. A finished token
// sits on the last path index and never moves again.
type Token struct {
	Position int  `json:"position"`
	Finished bool `json:"finished"`
}

type Player struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Color            board.Color `json:"color"`
	Tokens           [4]Token    `json:"tokens"`
	ConsecutiveSixes int         `json:"consecutiveSixes"`
	IsHost           bool        `json:"isHost"`
	// FinishPosition is 1-based once all four tokens are home, 0 before.
	FinishPosition int `json:"finishPosition"`
}

// TurnDisposition is the pending outcome of the current turn. Higher values
// outrank lower ones when several apply to the same move.
type TurnDisposition int

const (
	DispositionNone TurnDisposition = iota
	DispositionRetainSix
	DispositionRetainHome
	DispositionRetainCapture
)

var dispositionString = map[TurnDisposition]string{
	DispositionNone:          "none",
	DispositionRetainSix:     "six",
	DispositionRetainHome:    "home",
	DispositionRetainCapture: "capture",
}

func (d TurnDisposition) String() string {
	return dispositionString[d]
}

type Game struct {
	Code          string          `json:"code"`
	Players       []*Player       `json:"players"`
	TurnIndex     int             `json:"turnIndex"`
	Dice          int             `json:"dice"`
	AwaitingMove  bool            `json:"awaitingMove"`
	MoveValidated bool            `json:"moveValidated"`
	Disposition   TurnDisposition `json:"disposition"`
	FinishOrder   []string        `json:"finishOrder"`
	Started       bool            `json:"started"`
	TournamentID  string          `json:"tournamentId,omitempty"`
	MatchID       string          `json:"matchId,omitempty"`

	roll Roller
}

// Roller draws one die. Injected so tests and the operator override path can
// control outcomes; the default is uniform over [1,6].
type Roller func() int

type Option func(*Game)

func WithRoller(r Roller) Option {
	return func(g *Game) {
		g.roll = r
	}
}

func NewGame(code string, opts ...Option) *Game {
	g := &Game{
		Code:        code,
		Players:     make([]*Player, 0, 4),
		FinishOrder: make([]string, 0, 4),
		roll:        func() int { return rand.Intn(6) + 1 },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddPlayer appends a player in clockwise turn order. Colors are only
// provisional until Start, because the final player count decides the
// canonical assignment.
func (g *Game) AddPlayer(id, name string) (*Player, error) {
	if g.Started {
		return nil, errors.New("GAME_ALREADY_STARTED: Cannot join game in progress")
	}
	if len(g.Players) >= 4 {
		return nil, errors.New("ROOM_FULL: Room already has 4 players")
	}
	for _, p := range g.Players {
		if p.ID == id {
			return nil, errors.New("ALREADY_JOINED: Player is already in this room")
		}
	}

	player := &Player{
		ID:     id,
		Name:   name,
		IsHost: len(g.Players) == 0,
	}
	for i := range player.Tokens {
		player.Tokens[i] = Token{Position: -1}
	}
	g.Players = append(g.Players, player)
	g.reassignColors()

	return player, nil
}

// RemovePlayer drops a player and rebuilds turn order and colors. Used when
// a connection leaves a room that has not produced a result yet.
func (g *Game) RemovePlayer(id string) error {
	index := -1
	for i, p := range g.Players {
		if p.ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return errors.New("PLAYER_NOT_FOUND: Player is not in this room")
	}

	g.Players = append(g.Players[:index], g.Players[index+1:]...)
	if len(g.Players) > 0 {
		g.Players[0].IsHost = true
	}
	if g.TurnIndex >= len(g.Players) {
		g.TurnIndex = 0
	}
	if !g.Started {
		g.reassignColors()
	}
	return nil
}

// Start freezes the roster, assigns canonical colors and opens the first
// turn.
func (g *Game) Start() error {
	if g.Started {
		return errors.New("GAME_ALREADY_STARTED: Game is already running")
	}
	if len(g.Players) < 2 {
		return errors.New("NOT_ENOUGH_PLAYERS: Need at least 2 players to start")
	}
	if err := g.assignColors(); err != nil {
		return err
	}
	g.Started = true
	g.TurnIndex = 0
	return nil
}

func (g *Game) assignColors() error {
	colors, err := board.ColorsFor(len(g.Players))
	if err != nil {
		return err
	}
	for i, p := range g.Players {
		p.Color = colors[i]
	}
	return nil
}

// reassignColors is the lobby-time best effort; sizes outside 2-4 keep the
// previous assignment until Start validates the roster.
func (g *Game) reassignColors() {
	_ = g.assignColors()
}

func (g *Game) CurrentPlayer() *Player {
	if len(g.Players) == 0 {
		return nil
	}
	return g.Players[g.TurnIndex]
}

func (g *Game) PlayerByID(id string) (*Player, error) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("PLAYER_NOT_FOUND: No player %s in room %s", id, g.Code)
}

func (p *Player) allFinished() bool {
	for _, t := range p.Tokens {
		if !t.Finished {
			return false
		}
	}
	return true
}

// CheckWinCondition returns the ordered winners once enough players have
// brought all four tokens home: 1 finisher ends a 2-player game, 2 end a
// 3-player game, 3 end a 4-player game. Nil while the game is still live.
func (g *Game) CheckWinCondition() []string {
	threshold := len(g.Players) - 1
	if threshold < 1 || len(g.FinishOrder) < threshold {
		return nil
	}
	winners := make([]string, len(g.FinishOrder))
	copy(winners, g.FinishOrder)
	return winners
}
