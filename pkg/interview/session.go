package interview

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SessionSeedRunes is how much resume text seeds a session key when no session id is given.
const SessionSeedRunes = 100

// DeriveSessionKey returns the store key for a session. The seed is sessionID when set,
// otherwise the first SessionSeedRunes runes of resumeText. The same inputs always give
// the same key, so two requests for one candidate and scenario share a plan.
func DeriveSessionKey(sessionID, resumeText, scenario string) string {
	seed := strings.TrimSpace(sessionID)
	if seed == "" {
		seed = prefixRunes(resumeText, SessionSeedRunes)
	}
	sum := blake2b.Sum256([]byte(seed + "_" + scenario))
	return hex.EncodeToString(sum[:16])
}

func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
