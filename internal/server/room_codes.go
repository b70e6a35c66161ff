package server

import (
	"errors"
	"math/rand"
	"strings"
)

const roomCodeLength = 4

// GenerateRoomCode draws a fresh uppercase code outside usedCodes. With 26^4
// combinations against a few hundred live rooms the retry loop terminates
// almost immediately.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = 'A' + byte(rand.Intn(26))
		}
		if !usedCodes[string(code)] {
			return string(code)
		}
	}
}

// ValidateRoomCode rejects anything that could not have come from
// GenerateRoomCode, before any room lookup happens.
func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("ROOM_CODE_INVALID: Room code must be exactly 4 letters")
	}
	for _, ch := range strings.ToUpper(code) {
		if ch < 'A' || ch > 'Z' {
			return errors.New("ROOM_CODE_INVALID: Room code must contain only letters A-Z")
		}
	}
	return nil
}

// NormalizeRoomCode maps user input onto the stored form.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
