package specialtx

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
)

func signedProReg(t *testing.T, priv *secp256k1.PrivateKey) *ProRegPayload {
	t.Helper()
	pub := priv.PubKey()
	var ownerKeyID KeyID
	copy(ownerKeyID[:], chainhash.Hash160(pub.SerializeCompressed()))

	p := &ProRegPayload{
		Version: 1,
		CollateralOutpoint: chainio.OutPoint{
			Hash:  chainhash.HashH([]byte("collateral")),
			Index: 0,
		},
		OwnerKeyID:       ownerKeyID,
		OperatorRewardBp: 0,
		PayoutScript:     []byte{0x01},
		InputsHash:       chainhash.HashH([]byte("inputs")),
	}

	hash, err := p.SigningHash()
	require.NoError(t, err)
	p.Sig = ecdsa.SignCompact(priv, hash[:], true)
	return p
}

func TestVerifyOwnerSignatureAccepts(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	p := signedProReg(t, priv)
	require.NoError(t, VerifyOwnerSignature(p))
}

func TestVerifyOwnerSignatureRejectsWrongKey(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	p := signedProReg(t, priv)
	hash, err := p.SigningHash()
	require.NoError(t, err)
	p.Sig = ecdsa.SignCompact(other, hash[:], true)

	require.Error(t, VerifyOwnerSignature(p))
}

func TestVerifyOwnerSignatureRejectsTamperedPayload(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	p := signedProReg(t, priv)
	p.OperatorRewardBp = 9999

	require.Error(t, VerifyOwnerSignature(p))
}
