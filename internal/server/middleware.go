package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements per-connection rate limiting using a sliding window
// so one abusive client cannot starve the others.
type RateLimiter struct {
	maxRequests int                    // Maximum requests allowed per window
	window      time.Duration          // Time window for rate limiting
	requests    map[string][]time.Time // connectionID -> timestamps of recent requests
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow checks if a connection may send a message. Old timestamps are
// dropped on every call so memory stays bounded.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	timestamps := r.requests[connectionID]

	validTimestamps := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= r.maxRequests {
		r.requests[connectionID] = validTimestamps
		return false
	}

	validTimestamps = append(validTimestamps, now)
	r.requests[connectionID] = validTimestamps
	return true
}

// Cleanup removes connections with no recent activity.
func (r *RateLimiter) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	for connID, timestamps := range r.requests {
		allOld := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				allOld = false
				break
			}
		}
		if allOld {
			delete(r.requests, connID)
		}
	}
}

// RemoveConnection immediately removes rate limit data for a connection.
// Should be called when a websocket disconnects.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks last activity time for each connection, used for
// detecting dead connections.
type ConnectionHealth struct {
	lastActivity map[string]time.Time // connectionID -> last message time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

// UpdateActivity records that a connection is active. Called on every
// message received.
func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

// IsInactive reports whether a connection has been quiet longer than the
// timeout.
func (h *ConnectionHealth) IsInactive(connectionID string, timeout time.Duration) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lastActivity, exists := h.lastActivity[connectionID]
	if !exists {
		return false
	}

	return time.Since(lastActivity) > timeout
}

// GetInactiveConnections returns all connections inactive longer than the
// timeout, for batch cleanup.
func (h *ConnectionHealth) GetInactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	inactive := make([]string, 0)
	now := time.Now()

	for connID, lastActivity := range h.lastActivity {
		if now.Sub(lastActivity) > timeout {
			inactive = append(inactive, connID)
		}
	}

	return inactive
}

// RemoveConnection removes health tracking for a connection.
func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}

// ValidateMessageType returns a clear error for typos/unknown types.
func ValidateMessageType(msgType string) error {
	validTypes := map[string]bool{
		"ping":               true,
		"create_room":        true,
		"join_room":          true,
		"reconnect":          true,
		"leave_room":         true,
		"start_game":         true,
		"roll_dice":          true,
		"move_token":         true,
		"end_turn":           true,
		"tournament_create":  true,
		"tournament_join":    true,
		"tournament_start":   true,
		"tournament_matches": true,
		"tournament_trash":   true,
		"tournament_restore": true,
		"tournament_delete":  true,
		"report_result":      true,
	}

	if !validTypes[msgType] {
		return fmt.Errorf("INVALID_MESSAGE_TYPE: Unknown message type '%s'", msgType)
	}
	return nil
}
