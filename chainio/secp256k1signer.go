package chainio

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/Slashx124/mynta-core/chainhash"
)

// Secp256k1Signer is the concrete ECDSASigner a node wires in to back
// owner-key and HTLC sender/receiver signatures, the same curve btcd's own
// btcec package wraps around this library.
type Secp256k1Signer struct{}

// Sign produces a DER-encoded ECDSA signature over hash using sk.
func (Secp256k1Signer) Sign(sk [32]byte, hash chainhash.Hash) ([]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(sk[:])
	sig := ecdsa.Sign(priv, hash[:])
	return sig.Serialize(), nil
}

// Verify checks a DER-encoded ECDSA signature against a compressed or
// uncompressed secp256k1 public key.
func (Secp256k1Signer) Verify(pubKey []byte, hash chainhash.Hash, sig []byte) bool {
	pk, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(hash[:], pk)
}
