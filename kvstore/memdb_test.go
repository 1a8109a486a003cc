package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreBatchAndIterate(t *testing.T) {
	s := NewMemStore()

	b, err := s.Batch()
	require.NoError(t, err)
	require.NoError(t, b.Put([]byte("O:1"), []byte("a")))
	require.NoError(t, b.Put([]byte("O:2"), []byte("b")))
	require.NoError(t, b.Put([]byte("P:1"), []byte("c")))
	require.NoError(t, b.Commit())

	it, err := s.Iterate([]byte("O:"))
	require.NoError(t, err)
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, []string{"O:1", "O:2"}, got)

	v, ok, err := s.Get([]byte("P:1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", string(v))
}

func TestMemStoreSnapshotIsolated(t *testing.T) {
	s := NewMemStore()
	b, _ := s.Batch()
	_ = b.Put([]byte("k"), []byte("v1"))
	require.NoError(t, b.Commit())

	snap, err := s.Snapshot()
	require.NoError(t, err)
	defer snap.Release()

	b2, _ := s.Batch()
	_ = b2.Put([]byte("k"), []byte("v2"))
	require.NoError(t, b2.Commit())

	v, ok, err := snap.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", string(v))
}
