package specialtx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
)

func TestProRegRoundTrip(t *testing.T) {
	p := &ProRegPayload{
		Version: 1,
		CollateralOutpoint: chainio.OutPoint{
			Hash:  chainhash.HashH([]byte("collateral")),
			Index: 0,
		},
		OwnerKeyID:       KeyID{1, 2, 3},
		VotingKeyID:      KeyID{4, 5, 6},
		OperatorRewardBp: 500,
		PayoutScript:     []byte{0x76, 0xa9, 0x14},
		InputsHash:       chainhash.HashH([]byte("inputs")),
		Sig:              []byte{0xde, 0xad, 0xbe, 0xef},
	}
	p.Addr.Port = 9999

	encoded, err := EncodePayload(p)
	require.NoError(t, err)

	got, err := ParsePayload(SpecialTx{Version: 3, TxType: ProviderRegister, ExtraPayload: encoded})
	require.NoError(t, err)

	gotReg, ok := got.(*ProRegPayload)
	require.True(t, ok)
	require.Equal(t, p, gotReg)
}

func TestUpdateRevokeRoundTrip(t *testing.T) {
	p := &ProUpRevPayload{
		Version:    1,
		ProTxHash:  chainhash.HashH([]byte("protx")),
		Reason:     RevocationCompromisedKeys,
		InputsHash: chainhash.HashH([]byte("inputs")),
		Sig:        []byte{1, 2, 3},
	}
	encoded, err := EncodePayload(p)
	require.NoError(t, err)

	got, err := ParsePayload(SpecialTx{Version: 3, TxType: UpdateRevoke, ExtraPayload: encoded})
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestIsSpecialRejectsOldVersion(t *testing.T) {
	require.False(t, IsSpecial(2, uint16(ProviderRegister)))
	require.True(t, IsSpecial(3, uint16(ProviderRegister)))
	require.False(t, IsSpecial(3, 99))
}

func TestValidateInputsHash(t *testing.T) {
	prevOuts := []chainio.OutPoint{{Hash: chainhash.HashH([]byte("a")), Index: 1}}
	want := ComputeInputsHash(prevOuts)

	p := &ProUpRevPayload{InputsHash: want}
	require.NoError(t, ValidateInputsHash(p, prevOuts))

	p.InputsHash = chainhash.HashH([]byte("wrong"))
	require.Error(t, ValidateInputsHash(p, prevOuts))
}
