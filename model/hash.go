package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash of an ordered list of identifiers, stable across processes
// and platforms. Parts are separated by a byte that can't appear in
// XML text, so ["ab", "c"] and ["a", "bc"] differ.
func HashIDs(ids ...string) string {
	h := sha256.New()
	for i, id := range ids {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Identifier for a route link that a document didn't name.
func PairRouteLinkRef(from, to string) string {
	return "RL-" + HashIDs(from, to)
}
