package specialtx

import (
	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/cerrors"
)

// VerifyOperatorProofOfPossession checks that pop is a valid BLS
// proof-of-possession signature over pubKey. §4.1 requires this at
// registration time (and again on any operator key rotation) to keep an
// unproven, potentially rogue key out of §4.4's straight-aggregation
// quorum building.
func VerifyOperatorProofOfPossession(pubKey [48]byte, pop [96]byte) error {
	pk, err := bls.PublicKeyFromBytes(pubKey[:])
	if err != nil {
		return cerrors.Wrap(cerrors.CryptoFailure, "parsing operator public key", err)
	}
	sig, err := bls.SignatureFromBytes(pop[:])
	if err != nil {
		return cerrors.Wrap(cerrors.CryptoFailure, "parsing operator proof of possession", err)
	}
	if !bls.VerifyProofOfPossession(pk, sig) {
		return cerrors.New(cerrors.CryptoFailure, "operator proof of possession does not verify")
	}
	return nil
}
