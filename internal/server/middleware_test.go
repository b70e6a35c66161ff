package server

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second)
	connID := "test-conn-1"

	for i := 0; i < 10; i++ {
		if !limiter.Allow(connID) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(connID) {
		t.Error("Request over the limit should be denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter(2, 100*time.Millisecond)
	connID := "test-conn-2"

	limiter.Allow(connID)
	limiter.Allow(connID)
	if limiter.Allow(connID) {
		t.Error("Third request should be denied")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow(connID) {
		t.Error("Request after window reset should be allowed")
	}
}

func TestRateLimiterIsolatesConnections(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second)

	if !limiter.Allow("conn-a") {
		t.Error("conn-a first request should be allowed")
	}
	if limiter.Allow("conn-a") {
		t.Error("conn-a second request should be denied")
	}
	if !limiter.Allow("conn-b") {
		t.Error("conn-b should not be affected by conn-a's usage")
	}
}

func TestRateLimiterRemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	connID := "test-conn-3"

	limiter.Allow(connID)
	limiter.RemoveConnection(connID)

	if !limiter.Allow(connID) {
		t.Error("Request after removal should start a fresh window")
	}
}

func TestConnectionHealthInactivity(t *testing.T) {
	health := NewConnectionHealth()
	connID := "test-conn-4"

	if health.IsInactive(connID, time.Millisecond) {
		t.Error("Untracked connection should not be inactive")
	}

	health.UpdateActivity(connID)
	if health.IsInactive(connID, time.Minute) {
		t.Error("Fresh activity should not be inactive")
	}

	time.Sleep(10 * time.Millisecond)
	if !health.IsInactive(connID, time.Millisecond) {
		t.Error("Stale activity should be inactive")
	}

	inactive := health.GetInactiveConnections(time.Millisecond)
	if len(inactive) != 1 || inactive[0] != connID {
		t.Errorf("Expected [%s], got %v", connID, inactive)
	}
}

func TestValidateMessageType(t *testing.T) {
	valid := []string{
		"ping", "create_room", "join_room", "reconnect", "leave_room",
		"start_game", "roll_dice", "move_token", "end_turn",
		"tournament_create", "tournament_join", "tournament_start",
		"tournament_matches", "tournament_trash", "tournament_restore",
		"tournament_delete", "report_result",
	}
	for _, msgType := range valid {
		if err := ValidateMessageType(msgType); err != nil {
			t.Errorf("Type %q should be valid: %v", msgType, err)
		}
	}

	for _, msgType := range []string{"", "rolldice", "create_game", "unknown"} {
		if err := ValidateMessageType(msgType); err == nil {
			t.Errorf("Type %q should be rejected", msgType)
		}
	}
}
