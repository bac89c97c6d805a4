package idempotency

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// GenerateKey hashes parts into a fixed-length key. Each part is length
// prefixed so ("ab", "c") and ("a", "bc") never collide.
func GenerateKey(namespace string, parts ...string) string {
	h := sha256.New()
	var n [4]byte
	for _, p := range append([]string{namespace}, parts...) {
		binary.BigEndian.PutUint32(n[:], uint32(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}
