package dmn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordEligible(t *testing.T) {
	r := &Record{PoSeBanHeight: -1, RevocationReason: 0}
	require.True(t, r.Eligible())

	r.PoSeBanHeight = 10
	require.False(t, r.Eligible())

	r.PoSeBanHeight = -1
	r.RevocationReason = 2
	require.False(t, r.Eligible())
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := &Record{PayoutScript: []byte{1, 2, 3}}
	c := r.Clone()
	c.PayoutScript[0] = 0xff

	require.Equal(t, byte(1), r.PayoutScript[0])
	require.Equal(t, byte(0xff), c.PayoutScript[0])
}
