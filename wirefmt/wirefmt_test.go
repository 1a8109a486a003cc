package wirefmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000} {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestVarBytesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	data := []byte{1, 2, 3, 4, 5}
	require.NoError(t, WriteVarBytes(&buf, data))
	got, err := ReadVarBytes(&buf, 100, "test")
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestVarBytesRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarBytes(&buf, make([]byte, 50)))
	_, err := ReadVarBytes(&buf, 10, "test")
	require.Error(t, err)
}
