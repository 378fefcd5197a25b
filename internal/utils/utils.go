package utils

import (
	"github.com/google/uuid"
)

const sessionIDChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // No 0, O, I, 1
const playerIDChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSessionID returns a 6-character human-typeable session code.
// Randomness comes from a fresh UUID per call rather than a
// process-global math/rand seeded once at startup, so concurrent
// callers can't ever observe the same PRNG stream.
func GenerateSessionID() string {
	return randomString(sessionIDChars, 6)
}

// GeneratePlayerID returns a random, non-human-facing player ID.
func GeneratePlayerID() string {
	return randomString(playerIDChars, 9)
}

func randomString(chars string, n int) string {
	id := uuid.New()
	b := make([]byte, n)
	for i := range b {
		b[i] = chars[int(id[i%len(id)])%len(chars)]
	}
	return string(b)
}
