package ludo_test

import (
	"testing"

	"ludo-server/internal/board"
	"ludo-server/internal/ludo"
)

func newStartedGame(t *testing.T, playerCount int, opts ...ludo.Option) *ludo.Game {
	t.Helper()

	names := []string{"Alice", "Bob", "Carol", "Dave"}
	game := ludo.NewGame("TEST", opts...)
	for i := 0; i < playerCount; i++ {
		if _, err := game.AddPlayer(names[i], names[i]); err != nil {
			t.Fatalf("AddPlayer(%s) failed: %v", names[i], err)
		}
	}
	if err := game.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return game
}

func scripted(values ...int) ludo.Roller {
	i := 0
	return func() int {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestAddPlayerAssignsColors(t *testing.T) {
	game := newStartedGame(t, 3)

	want := []board.Color{board.Blue, board.Red, board.Green}
	for i, p := range game.Players {
		if p.Color != want[i] {
			t.Errorf("Player %d has color %s, expected %s", i, p.Color, want[i])
		}
	}
	if !game.Players[0].IsHost {
		t.Error("First player should be host")
	}
}

func TestRollDiceBounds(t *testing.T) {
	game := newStartedGame(t, 2)

	for i := 0; i < 200; i++ {
		current := game.CurrentPlayer()
		outcome, err := game.RollDice(current.ID)
		if err != nil {
			t.Fatalf("Roll %d failed: %v", i, err)
		}
		if outcome.Dice < 1 || outcome.Dice > 6 {
			t.Fatalf("Roll %d produced dice %d outside 1-6", i, outcome.Dice)
		}
		if outcome.Skipped {
			continue
		}
		if _, err := game.EndTurn(current.ID, false, false); err != nil {
			t.Fatalf("EndTurn %d failed: %v", i, err)
		}
	}
}

func TestRollRejectsWrongTurn(t *testing.T) {
	game := newStartedGame(t, 2)

	if _, err := game.RollDice(game.Players[1].ID); err == nil {
		t.Error("Roll by non-current player should fail")
	}
}

func TestRollRejectsDoubleRoll(t *testing.T) {
	game := newStartedGame(t, 2, ludo.WithRoller(scripted(3)))
	alice := game.Players[0]

	if _, err := game.RollDice(alice.ID); err != nil {
		t.Fatalf("First roll failed: %v", err)
	}
	if _, err := game.RollDice(alice.ID); err == nil {
		t.Error("Second roll with a move pending should fail")
	}
}

func TestRollDiceForcedRange(t *testing.T) {
	game := newStartedGame(t, 2)

	for _, v := range []int{0, 7, -1} {
		if _, err := game.RollDiceForced(game.Players[0].ID, v); err == nil {
			t.Errorf("Forced roll of %d should fail", v)
		}
	}
}

func TestBaseEntryRequiresSix(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]

	if _, err := game.RollDiceForced(alice.ID, 3); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	if _, err := game.MoveToken(alice.ID, 0); err == nil {
		t.Error("Token should not leave base without a six")
	}
	if alice.Tokens[0].Position != -1 {
		t.Errorf("Rejected move changed position to %d", alice.Tokens[0].Position)
	}
}

// Scenario: player at base rolls a six, enters at path index 0 and keeps
// the turn.
func TestBaseEntryOnSixRetainsTurn(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]

	roll, err := game.RollDiceForced(alice.ID, 6)
	if err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	if len(roll.MovableTokens) != 4 {
		t.Errorf("All 4 base tokens should be movable on a six, got %v", roll.MovableTokens)
	}

	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if move.Position != 0 {
		t.Errorf("Base entry landed at %d, expected 0", move.Position)
	}

	turn, err := game.EndTurn(alice.ID, true, false)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if !turn.Retained {
		t.Error("A six should retain the turn")
	}
	if turn.Reason != ludo.DispositionRetainSix {
		t.Errorf("Retain reason %s, expected six", turn.Reason)
	}
	if turn.NextPlayerID != alice.ID {
		t.Errorf("Turn passed to %s, expected %s", turn.NextPlayerID, alice.ID)
	}
}

func TestExactRollRequiredToFinish(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]
	alice.Tokens[0].Position = board.PathLength - 3

	if _, err := game.RollDiceForced(alice.ID, 5); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	if _, err := game.MoveToken(alice.ID, 0); err == nil {
		t.Error("Overshooting the final cell should be rejected")
	}
	if alice.Tokens[0].Position != board.PathLength-3 {
		t.Errorf("Rejected overshoot changed position to %d", alice.Tokens[0].Position)
	}
	if alice.Tokens[0].Finished {
		t.Error("Rejected overshoot marked token finished")
	}
}

func TestFinishedTokenNeverMoves(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]
	alice.Tokens[0].Position = board.PathLength - 1
	alice.Tokens[0].Finished = true

	if _, err := game.RollDiceForced(alice.ID, 2); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	if _, err := game.MoveToken(alice.ID, 0); err == nil {
		t.Error("Moving a finished token should be rejected")
	}
	if alice.Tokens[0].Position != board.PathLength-1 || !alice.Tokens[0].Finished {
		t.Error("Finished token state changed by rejected move")
	}
}

func TestSecondMoveOnSameRollRejected(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]
	alice.Tokens[0].Position = 5
	alice.Tokens[1].Position = 10

	if _, err := game.RollDiceForced(alice.ID, 3); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	if _, err := game.MoveToken(alice.ID, 0); err != nil {
		t.Fatalf("First move failed: %v", err)
	}
	if _, err := game.MoveToken(alice.ID, 1); err == nil {
		t.Error("A second token moved off the same roll")
	}
	if alice.Tokens[1].Position != 10 {
		t.Errorf("Rejected second move changed position to %d", alice.Tokens[1].Position)
	}

	// The same token can't go again either.
	if _, err := game.MoveToken(alice.ID, 0); err == nil {
		t.Error("The moved token advanced twice off one roll")
	}
	if alice.Tokens[0].Position != 8 {
		t.Errorf("Token 0 should sit at 8, got %d", alice.Tokens[0].Position)
	}
}

func TestFinishGrantsHomeRetention(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]
	alice.Tokens[0].Position = board.PathLength - 2

	if _, err := game.RollDiceForced(alice.ID, 1); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if !move.Finished {
		t.Error("Token reaching the last index should be finished")
	}
	if move.FinishPosition != 0 {
		t.Errorf("Player finish recorded at %d with three tokens still out", move.FinishPosition)
	}

	turn, err := game.EndTurn(alice.ID, true, false)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if !turn.Retained || turn.Reason != ludo.DispositionRetainHome {
		t.Errorf("Finish should retain the turn with home reason, got retained=%v reason=%s",
			turn.Retained, turn.Reason)
	}
}

func TestFinishingAllTokensRecordsOrderAndAdvances(t *testing.T) {
	game := newStartedGame(t, 2)
	alice, bob := game.Players[0], game.Players[1]
	for i := 0; i < 3; i++ {
		alice.Tokens[i].Position = board.PathLength - 1
		alice.Tokens[i].Finished = true
	}
	alice.Tokens[3].Position = board.PathLength - 4

	if _, err := game.RollDiceForced(alice.ID, 3); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 3)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if move.FinishPosition != 1 {
		t.Errorf("First full finisher got position %d, expected 1", move.FinishPosition)
	}
	if !move.GameOver {
		t.Error("Sole finisher in a 2-player game should end it")
	}
	if len(move.Winners) != 1 || move.Winners[0] != alice.ID {
		t.Errorf("Winners %v, expected [%s]", move.Winners, alice.ID)
	}

	turn, err := game.EndTurn(alice.ID, true, false)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if turn.Retained {
		t.Error("A fully finished player should not retain the turn")
	}
	if turn.NextPlayerID != bob.ID {
		t.Errorf("Turn went to %s, expected %s", turn.NextPlayerID, bob.ID)
	}
}

// Scenario: landing on a lone opposing token on an unprotected cell sends it
// to base and grants a capture extra turn.
func TestCaptureSendsVictimToBase(t *testing.T) {
	game := newStartedGame(t, 2)
	alice, bob := game.Players[0], game.Players[1]

	// Blue path index 30 is ring cell 30; green path index 4 is ring cell
	// (26+4)%52 = 30. Cell 30 is not safe.
	alice.Tokens[0].Position = 25
	bob.Tokens[2].Position = 4

	if _, err := game.RollDiceForced(alice.ID, 5); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(move.Captures) != 1 {
		t.Fatalf("Expected 1 capture, got %d", len(move.Captures))
	}
	if move.Captures[0].PlayerID != bob.ID || move.Captures[0].TokenIndex != 2 {
		t.Errorf("Captured %+v, expected bob token 2", move.Captures[0])
	}
	if bob.Tokens[2].Position != -1 || bob.Tokens[2].Finished {
		t.Errorf("Victim token not reset: %+v", bob.Tokens[2])
	}

	turn, err := game.EndTurn(alice.ID, true, false)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if !turn.Retained || turn.Reason != ludo.DispositionRetainCapture {
		t.Errorf("Capture should retain the turn, got retained=%v reason=%s",
			turn.Retained, turn.Reason)
	}
}

func TestCaptureHitsEveryVictimOnCell(t *testing.T) {
	game := newStartedGame(t, 3)
	alice, bob, carol := game.Players[0], game.Players[1], game.Players[2]

	// Ring cell 30: red index 17, green index 4.
	alice.Tokens[0].Position = 25
	bob.Tokens[0].Position = 17
	carol.Tokens[1].Position = 4

	if _, err := game.RollDiceForced(alice.ID, 5); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(move.Captures) != 2 {
		t.Fatalf("Expected 2 captures, got %d: %+v", len(move.Captures), move.Captures)
	}
	if bob.Tokens[0].Position != -1 || carol.Tokens[1].Position != -1 {
		t.Error("Both victims should be back in base")
	}
}

func TestNoCaptureOnSafeCell(t *testing.T) {
	game := newStartedGame(t, 2)
	alice, bob := game.Players[0], game.Players[1]

	// Ring cell 34 is a safe star. Blue index 34, green index 8.
	alice.Tokens[0].Position = 30
	bob.Tokens[0].Position = 8

	if _, err := game.RollDiceForced(alice.ID, 4); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(move.Captures) != 0 {
		t.Errorf("Safe cell capture happened: %+v", move.Captures)
	}
	if bob.Tokens[0].Position != 8 {
		t.Errorf("Victim moved to %d on a safe cell", bob.Tokens[0].Position)
	}
}

func TestNoCaptureOfStack(t *testing.T) {
	game := newStartedGame(t, 2)
	alice, bob := game.Players[0], game.Players[1]

	alice.Tokens[0].Position = 25
	bob.Tokens[0].Position = 4
	bob.Tokens[1].Position = 4

	if _, err := game.RollDiceForced(alice.ID, 5); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(move.Captures) != 0 {
		t.Errorf("Stacked tokens were captured: %+v", move.Captures)
	}
	if bob.Tokens[0].Position != 4 || bob.Tokens[1].Position != 4 {
		t.Error("Stacked tokens should stay in place")
	}
}

func TestNoCaptureInHomeStretch(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]

	alice.Tokens[0].Position = board.PathLength - board.HomeStretch - 1

	if _, err := game.RollDiceForced(alice.ID, 1); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	move, err := game.MoveToken(alice.ID, 0)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if move.Position != board.PathLength-board.HomeStretch {
		t.Fatalf("Token landed at %d, expected first home stretch cell", move.Position)
	}
	if len(move.Captures) != 0 {
		t.Errorf("Capture inside home stretch: %+v", move.Captures)
	}
}

func TestThreeConsecutiveSixesSkipTurn(t *testing.T) {
	game := newStartedGame(t, 2, ludo.WithRoller(scripted(6)))
	alice, bob := game.Players[0], game.Players[1]

	// First two sixes play out normally, each retaining the turn.
	for i := 0; i < 2; i++ {
		roll, err := game.RollDice(alice.ID)
		if err != nil {
			t.Fatalf("Roll %d failed: %v", i+1, err)
		}
		if roll.Skipped {
			t.Fatalf("Roll %d skipped too early", i+1)
		}
		if _, err := game.MoveToken(alice.ID, i); err != nil {
			t.Fatalf("Move %d failed: %v", i+1, err)
		}
		turn, err := game.EndTurn(alice.ID, true, false)
		if err != nil {
			t.Fatalf("EndTurn %d failed: %v", i+1, err)
		}
		if !turn.Retained {
			t.Fatalf("Six %d did not retain the turn", i+1)
		}
	}

	// Third six: move skipped, counter reset, turn passes.
	roll, err := game.RollDice(alice.ID)
	if err != nil {
		t.Fatalf("Third roll failed: %v", err)
	}
	if !roll.Skipped {
		t.Fatal("Third consecutive six should skip the move")
	}
	if roll.NextPlayerID != bob.ID {
		t.Errorf("Turn went to %s, expected %s", roll.NextPlayerID, bob.ID)
	}
	if alice.ConsecutiveSixes != 0 {
		t.Errorf("Six counter is %d after penalty, expected 0", alice.ConsecutiveSixes)
	}
	if game.CurrentPlayer().ID != bob.ID {
		t.Error("Turn index should point at the next player")
	}
}

func TestNonSixResetsSixCounter(t *testing.T) {
	game := newStartedGame(t, 2, ludo.WithRoller(scripted(6, 6, 3)))
	alice := game.Players[0]

	for i, moved := range []int{0, 1} {
		if _, err := game.RollDice(alice.ID); err != nil {
			t.Fatalf("Roll %d failed: %v", i, err)
		}
		if _, err := game.MoveToken(alice.ID, moved); err != nil {
			t.Fatalf("Move %d failed: %v", i, err)
		}
		if _, err := game.EndTurn(alice.ID, true, false); err != nil {
			t.Fatalf("EndTurn %d failed: %v", i, err)
		}
	}

	if _, err := game.RollDice(alice.ID); err != nil {
		t.Fatalf("Non-six roll failed: %v", err)
	}
	if alice.ConsecutiveSixes != 0 {
		t.Errorf("Six counter is %d after a non-six, expected 0", alice.ConsecutiveSixes)
	}
}

func TestForcedPassOnUnplayableSix(t *testing.T) {
	game := newStartedGame(t, 2)
	alice, bob := game.Players[0], game.Players[1]

	if _, err := game.RollDiceForced(alice.ID, 6); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}

	// Client decided the six is unplayable; pass without a move.
	turn, err := game.EndTurn(alice.ID, false, true)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if turn.Retained {
		t.Error("Forced pass should not retain the turn")
	}
	if turn.NextPlayerID != bob.ID {
		t.Errorf("Turn went to %s, expected %s", turn.NextPlayerID, bob.ID)
	}
}

func TestEndTurnRequiresValidatedMove(t *testing.T) {
	game := newStartedGame(t, 2)
	alice := game.Players[0]

	if _, err := game.RollDiceForced(alice.ID, 4); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	if _, err := game.EndTurn(alice.ID, true, false); err == nil {
		t.Error("EndTurn claiming a move without validation should fail")
	}

	// A pass with no token selected is exempt.
	if _, err := game.EndTurn(alice.ID, false, false); err != nil {
		t.Errorf("Pass without a move failed: %v", err)
	}
}

func TestAdvanceSkipsFullyFinishedPlayers(t *testing.T) {
	game := newStartedGame(t, 4)
	bob := game.Players[1]
	for i := range bob.Tokens {
		bob.Tokens[i].Position = board.PathLength - 1
		bob.Tokens[i].Finished = true
	}
	game.FinishOrder = append(game.FinishOrder, bob.ID)
	bob.FinishPosition = 1

	alice := game.Players[0]
	if _, err := game.RollDiceForced(alice.ID, 2); err != nil {
		t.Fatalf("Roll failed: %v", err)
	}
	turn, err := game.EndTurn(alice.ID, false, false)
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if turn.NextPlayerID != game.Players[2].ID {
		t.Errorf("Turn went to %s, expected to skip the finished player", turn.NextPlayerID)
	}
}

// Scenario: in a 4-player room one fully finished player does not end the
// game; the threshold is three finishers.
func TestWinConditionThresholds(t *testing.T) {
	tests := []struct {
		playerCount int
		threshold   int
	}{
		{2, 1},
		{3, 2},
		{4, 3},
	}

	for _, tt := range tests {
		game := newStartedGame(t, tt.playerCount)

		for n := 0; n < tt.threshold; n++ {
			if winners := game.CheckWinCondition(); winners != nil {
				t.Errorf("%d players: game over after %d finishers, threshold is %d",
					tt.playerCount, n, tt.threshold)
			}
			p := game.Players[n]
			for i := range p.Tokens {
				p.Tokens[i].Position = board.PathLength - 1
				p.Tokens[i].Finished = true
			}
			p.FinishPosition = n + 1
			game.FinishOrder = append(game.FinishOrder, p.ID)
		}

		winners := game.CheckWinCondition()
		if winners == nil {
			t.Errorf("%d players: game not over after %d finishers", tt.playerCount, tt.threshold)
			continue
		}
		for i, id := range winners {
			if id != game.Players[i].ID {
				t.Errorf("%d players: winner %d is %s, expected finish order preserved",
					tt.playerCount, i, id)
			}
		}
	}
}

func TestRemovePlayerRebuildsOrder(t *testing.T) {
	game := ludo.NewGame("TEST")
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if _, err := game.AddPlayer(name, name); err != nil {
			t.Fatalf("AddPlayer failed: %v", err)
		}
	}

	if err := game.RemovePlayer("Alice"); err != nil {
		t.Fatalf("RemovePlayer failed: %v", err)
	}
	if len(game.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(game.Players))
	}
	if !game.Players[0].IsHost {
		t.Error("Host role should pass to the next player")
	}
	if game.Players[0].Color != board.Blue || game.Players[1].Color != board.Green {
		t.Error("Colors should be reassigned for the 2-player layout")
	}
}
