package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// TokenFingerprint is a short stable digest of a resume token. It is what
// logs, rate-limit keys and events carry instead of the bearer value.
func TokenFingerprint(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:8])
}
