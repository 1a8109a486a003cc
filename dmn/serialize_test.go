package dmn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
)

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	s := NewGenesisSnapshot()
	s.BlockHash = chainhash.HashH([]byte("block"))
	s.Height = 42
	s.TotalEverRegistered = 7

	rec := &Record{
		ProTxHash:            chainhash.HashH([]byte("mn1")),
		CollateralOutpoint:   chainio.OutPoint{Hash: chainhash.HashH([]byte("col1")), Index: 3},
		OperatorRewardBp:     2500,
		InternalID:           1,
		RegisteredHeight:     10,
		LastPaidHeight:       40,
		PoSeScore:            5,
		PoSeRevivedHeight:    0,
		PoSeBanHeight:        -1,
		OwnerKeyID:           [20]byte{9},
		OperatorPubKey:       [48]byte{8},
		VotingKeyID:          [20]byte{7},
		PayoutScript:         []byte{0x76, 0xa9},
		OperatorPayoutScript: []byte{0x51},
	}
	s.insert(rec)

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	require.Equal(t, s.BlockHash, got.BlockHash)
	require.Equal(t, s.Height, got.Height)
	require.Equal(t, s.TotalEverRegistered, got.TotalEverRegistered)

	gotRec, ok := got.Get(rec.ProTxHash)
	require.True(t, ok)
	require.Equal(t, rec, gotRec)

	gotByCollateral, ok := got.ByCollateral(rec.CollateralOutpoint)
	require.True(t, ok)
	require.Equal(t, rec, gotByCollateral)
}
