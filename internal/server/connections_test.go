package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionManagerTokenBinding(t *testing.T) {
	cm := NewConnectionManager()

	old := cm.AddConnectionWithToken("conn-1", nil, "token-a")
	assert.Empty(t, old, "First connection holding a token has no predecessor")

	assert.Equal(t, "conn-1", cm.GetConnectionByToken("token-a"))
	assert.Equal(t, "token-a", cm.GetTokenByConnection("conn-1"))
}

func TestConnectionManagerDeviceSwitch(t *testing.T) {
	cm := NewConnectionManager()

	cm.AddConnectionWithToken("conn-1", nil, "token-a")

	// Same token from a second socket reports the first one for eviction.
	old := cm.AddConnectionWithToken("conn-2", nil, "token-a")
	assert.Equal(t, "conn-1", old)

	assert.Equal(t, "conn-2", cm.GetConnectionByToken("token-a"))
}

func TestConnectionManagerSameConnectionIsNoop(t *testing.T) {
	cm := NewConnectionManager()

	cm.AddConnectionWithToken("conn-1", nil, "token-a")
	old := cm.AddConnectionWithToken("conn-1", nil, "token-a")
	assert.Empty(t, old, "Rebinding the same connection should not evict itself")
}

func TestConnectionManagerRemove(t *testing.T) {
	cm := NewConnectionManager()

	cm.AddConnectionWithToken("conn-1", nil, "token-a")
	cm.RemoveConnection("conn-1")

	assert.Empty(t, cm.GetConnectionByToken("token-a"))
	assert.Empty(t, cm.GetTokenByConnection("conn-1"))
}
