package ludo

import (
	"errors"
	"fmt"

	"ludo-server/internal/board"
)

const maxConsecutiveSixes = 3

type RollOutcome struct {
	PlayerID      string `json:"playerId"`
	Dice          int    `json:"dice"`
	Skipped       bool   `json:"skipped"`
	MovableTokens []int  `json:"movableTokens"`
	NextPlayerID  string `json:"nextPlayerId,omitempty"`
}

type Capture struct {
	PlayerID   string `json:"playerId"`
	TokenIndex int    `json:"tokenIndex"`
}

type MoveOutcome struct {
	PlayerID       string    `json:"playerId"`
	TokenIndex     int       `json:"tokenIndex"`
	Position       int       `json:"position"`
	Finished       bool      `json:"finished"`
	FinishPosition int       `json:"finishPosition,omitempty"`
	Captures       []Capture `json:"captures,omitempty"`
	Winners        []string  `json:"winners,omitempty"`
	GameOver       bool      `json:"gameOver"`
}

type TurnOutcome struct {
	NextPlayerID string          `json:"nextPlayerId"`
	Retained     bool            `json:"retained"`
	Reason       TurnDisposition `json:"reason"`
}

// RollDice draws the die for the player whose turn it is. At most one roll
// can be outstanding per room; a third consecutive six forfeits the move and
// passes the turn immediately.
func (g *Game) RollDice(playerID string) (RollOutcome, error) {
	return g.rollDice(playerID, g.roll)
}

// RollDiceForced substitutes an explicit die value. The transport layer
// gates access to this path; the rules applied are identical to RollDice.
func (g *Game) RollDiceForced(playerID string, value int) (RollOutcome, error) {
	if value < 1 || value > 6 {
		return RollOutcome{}, fmt.Errorf("INVALID_DICE: Dice value must be 1-6, got %d", value)
	}
	return g.rollDice(playerID, func() int { return value })
}

func (g *Game) rollDice(playerID string, draw Roller) (RollOutcome, error) {
	if !g.Started {
		return RollOutcome{}, errors.New("GAME_NOT_STARTED: Game has not started yet")
	}
	current := g.CurrentPlayer()
	if current == nil || current.ID != playerID {
		return RollOutcome{}, errors.New("NOT_YOUR_TURN: It is not your turn to roll")
	}
	if g.AwaitingMove {
		return RollOutcome{}, errors.New("ROLL_PENDING: A roll is already awaiting a move")
	}

	dice := draw()
	if dice == 6 {
		current.ConsecutiveSixes++
	} else {
		current.ConsecutiveSixes = 0
	}

	g.Dice = dice

	// Third six in a row: no move opportunity, counter resets, turn passes.
	if current.ConsecutiveSixes >= maxConsecutiveSixes {
		current.ConsecutiveSixes = 0
		g.Disposition = DispositionNone
		g.advanceTurn()
		return RollOutcome{
			PlayerID:     playerID,
			Dice:         dice,
			Skipped:      true,
			NextPlayerID: g.CurrentPlayer().ID,
		}, nil
	}

	g.AwaitingMove = true
	g.MoveValidated = false
	g.Disposition = DispositionNone

	return RollOutcome{
		PlayerID:      playerID,
		Dice:          dice,
		MovableTokens: g.LegalMoves(current),
	}, nil
}

// LegalMoves lists the token indexes the player could move with the current
// dice. Empty means the roll has no playable move.
func (g *Game) LegalMoves(p *Player) []int {
	movable := make([]int, 0, len(p.Tokens))
	for i, token := range p.Tokens {
		if token.Finished {
			continue
		}
		if token.Position == -1 {
			if g.Dice == 6 {
				movable = append(movable, i)
			}
			continue
		}
		if token.Position+g.Dice <= board.PathLength-1 {
			movable = append(movable, i)
		}
	}
	return movable
}

// MoveToken advances one of the current player's tokens by the rolled dice.
// The destination is always recomputed server-side; clients only name the
// token. Rejections leave the game untouched.
func (g *Game) MoveToken(playerID string, tokenIndex int) (MoveOutcome, error) {
	if !g.Started {
		return MoveOutcome{}, errors.New("GAME_NOT_STARTED: Game has not started yet")
	}
	current := g.CurrentPlayer()
	if current == nil || current.ID != playerID {
		return MoveOutcome{}, errors.New("NOT_YOUR_TURN: It is not your turn to move")
	}
	if !g.AwaitingMove {
		return MoveOutcome{}, errors.New("NO_ACTIVE_ROLL: Roll the dice before moving")
	}
	// One roll buys one move; a retained turn must roll again first.
	if g.MoveValidated {
		return MoveOutcome{}, errors.New("MOVE_ALREADY_MADE: This roll has already been used")
	}
	if tokenIndex < 0 || tokenIndex >= len(current.Tokens) {
		return MoveOutcome{}, fmt.Errorf("INVALID_TOKEN: Token index %d out of range", tokenIndex)
	}

	token := &current.Tokens[tokenIndex]
	if token.Finished {
		return MoveOutcome{}, errors.New("TOKEN_FINISHED: That token has already reached home")
	}

	var destination int
	switch {
	case token.Position == -1 && g.Dice == 6:
		destination = 0
	case token.Position == -1:
		return MoveOutcome{}, errors.New("NEEDS_SIX: A token leaves base only on a six")
	default:
		destination = token.Position + g.Dice
	}

	if destination > board.PathLength-1 {
		return MoveOutcome{}, errors.New("EXACT_ROLL_REQUIRED: Token needs an exact roll to finish")
	}

	token.Position = destination

	outcome := MoveOutcome{
		PlayerID:   playerID,
		TokenIndex: tokenIndex,
		Position:   destination,
	}

	if destination == board.PathLength-1 {
		token.Finished = true
		outcome.Finished = true
		g.raiseDisposition(DispositionRetainHome)

		if current.allFinished() {
			current.FinishPosition = len(g.FinishOrder) + 1
			g.FinishOrder = append(g.FinishOrder, current.ID)
			outcome.FinishPosition = current.FinishPosition
		}
	}

	outcome.Captures = g.resolveCaptures(current, destination)
	if len(outcome.Captures) > 0 {
		g.raiseDisposition(DispositionRetainCapture)
	}

	g.MoveValidated = true

	if winners := g.CheckWinCondition(); winners != nil {
		outcome.Winners = winners
		outcome.GameOver = true
	}

	return outcome, nil
}

// resolveCaptures sends every opposing token on the landed cell back to
// base, except on safe cells, inside the mover's home stretch, or when the
// opponent has a stack of two or more tokens on that exact position.
func (g *Game) resolveCaptures(mover *Player, destination int) []Capture {
	if destination >= board.PathLength-board.HomeStretch {
		return nil
	}

	landed := board.PathFor(mover.Color)[destination]
	if board.IsSafeCell(landed) {
		return nil
	}

	var captures []Capture
	for _, opponent := range g.Players {
		if opponent.ID == mover.ID {
			continue
		}
		path := board.PathFor(opponent.Color)
		for i := range opponent.Tokens {
			victim := &opponent.Tokens[i]
			if victim.Position == -1 || victim.Finished {
				continue
			}
			if path[victim.Position] != landed {
				continue
			}
			if opponent.stackSize(victim.Position) >= 2 {
				continue
			}
			victim.Position = -1
			victim.Finished = false
			captures = append(captures, Capture{PlayerID: opponent.ID, TokenIndex: i})
		}
	}
	return captures
}

func (p *Player) stackSize(position int) int {
	count := 0
	for _, t := range p.Tokens {
		if !t.Finished && t.Position == position {
			count++
		}
	}
	return count
}

func (g *Game) raiseDisposition(d TurnDisposition) {
	if d > g.Disposition {
		g.Disposition = d
	}
}

// EndTurn resolves who plays next. Priority order: a six the client could
// not use forces a pass, then capture retains, then a home finish retains
// unless the mover just finished all four tokens, then a non-six passes,
// and a plain six retains.
func (g *Game) EndTurn(playerID string, moved, noExtraTurnOnSix bool) (TurnOutcome, error) {
	if !g.Started {
		return TurnOutcome{}, errors.New("GAME_NOT_STARTED: Game has not started yet")
	}
	current := g.CurrentPlayer()
	if current == nil || current.ID != playerID {
		return TurnOutcome{}, errors.New("NOT_YOUR_TURN: It is not your turn to end")
	}
	if !g.AwaitingMove {
		return TurnOutcome{}, errors.New("NO_ACTIVE_ROLL: There is no turn in progress")
	}
	if moved && !g.MoveValidated {
		return TurnOutcome{}, errors.New("MOVE_NOT_VALIDATED: Move was not accepted by the server")
	}

	reason := g.Disposition
	retain := false
	switch {
	case noExtraTurnOnSix:
		reason = DispositionNone
	case g.Disposition == DispositionRetainCapture:
		retain = true
	case g.Disposition == DispositionRetainHome:
		retain = !current.allFinished()
	case g.Dice != 6:
		reason = DispositionNone
	default:
		reason = DispositionRetainSix
		retain = !current.allFinished()
	}

	g.AwaitingMove = false
	g.MoveValidated = false
	g.Disposition = DispositionNone

	if !retain {
		g.advanceTurn()
	}

	return TurnOutcome{
		NextPlayerID: g.CurrentPlayer().ID,
		Retained:     retain,
		Reason:       reason,
	}, nil
}

// advanceTurn moves to the next player with at least one unfinished token.
// The scan wraps at most once, so a sole remaining player keeps the turn.
func (g *Game) advanceTurn() {
	for i := 1; i <= len(g.Players); i++ {
		candidate := (g.TurnIndex + i) % len(g.Players)
		if !g.Players[candidate].allFinished() {
			g.TurnIndex = candidate
			return
		}
	}
}
