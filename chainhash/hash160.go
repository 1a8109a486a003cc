package chainhash

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160"
)

// Hash160 calculates ripemd160(sha256(b)), the same digest btcutil's own
// Hash160 helper produces for a public-key-hash identifier.
func Hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
