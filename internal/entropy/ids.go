package entropy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// contentHash derives a deterministic window ID from its source file and
// position, so re-windowing the same transcript with the same parameters
// produces the same IDs and PutWindow upserts rather than duplicates.
func contentHash(sessionFile string, start, end int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", sessionFile, start, end)))
	return hex.EncodeToString(sum[:])[:32]
}
