package specialtx

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chainhash"
)

// VerifyOwnerSignature checks a ProRegTx's compact owner signature: it
// recovers the signing public key from p.Sig over p's signing hash, then
// requires hash160(pubkey) == p.OwnerKeyID, the same recoverable-signature
// pattern btcwallet's legacy message-signing RPC uses for "signmessage".
func VerifyOwnerSignature(p *ProRegPayload) error {
	hash, err := p.SigningHash()
	if err != nil {
		return err
	}

	pub, _, err := ecdsa.RecoverCompact(p.Sig, hash[:])
	if err != nil {
		return cerrors.Wrap(cerrors.CryptoFailure, "recovering ProRegTx owner public key", err)
	}

	got := chainhash.Hash160(pub.SerializeCompressed())
	if len(got) != len(p.OwnerKeyID) || string(got) != string(p.OwnerKeyID[:]) {
		return cerrors.New(cerrors.CryptoFailure, "ProRegTx signature does not match ownerKeyId")
	}
	return nil
}
