package chainlock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/llmq"
	"github.com/Slashx124/mynta-core/signing"
)

type member struct {
	proTxHash chainhash.Hash
	sk        *bls.SecretKey
}

func seededMember(t *testing.T, seed byte) member {
	t.Helper()
	ikm := make([]byte, 32)
	for i := range ikm {
		ikm[i] = seed
	}
	sk, err := bls.KeyGen(ikm)
	// KeyGen rejects a scalar at or above the curve order and leaves the
	// retry to the caller: re-derive ikm by hashing it until one is accepted.
	for i := 0; err != nil && i < 16; i++ {
		next := chainhash.SingleHashH(ikm)
		ikm = next[:]
		sk, err = bls.KeyGen(ikm)
	}
	require.NoError(t, err)
	var proTxHash chainhash.Hash
	copy(proTxHash[:], chainhash.HashH([]byte{seed}).CloneBytes())
	return member{proTxHash: proTxHash, sk: sk}
}

func buildTestQuorum(t *testing.T, members []member) *llmq.Quorum {
	t.Helper()
	q := &llmq.Quorum{
		Type:       chaincfg.LLMQType400_60,
		QuorumHash: chainhash.HashH([]byte("chainlock-quorum")),
	}
	var pks []*bls.PublicKey
	for _, m := range members {
		var pk [48]byte
		copy(pk[:], m.sk.PublicKey().Bytes())
		q.Members = append(q.Members, llmq.Member{ProTxHash: m.proTxHash, OperatorPubKey: pk, Valid: true})
		pks = append(pks, m.sk.PublicKey())
	}
	q.ValidMemberCount = len(q.Members)
	aggPK, err := bls.AggregatePubkeys(pks)
	require.NoError(t, err)
	q.AggregatedPubKey = aggPK
	return q
}

// buildTestQuorumWithInvalidMember mirrors buildTestQuorum but adds one
// extra member with an unparseable operator key, forcing verify_recovered
// down §4.5's non-full-quorum fallback path.
func buildTestQuorumWithInvalidMember(t *testing.T, members []member) *llmq.Quorum {
	t.Helper()
	q := buildTestQuorum(t, members)
	var badKey [48]byte
	var badProTxHash chainhash.Hash
	copy(badProTxHash[:], chainhash.HashH([]byte("invalid-operator-key")).CloneBytes())
	q.Members = append(q.Members, llmq.Member{ProTxHash: badProTxHash, OperatorPubKey: badKey, Valid: false})
	return q
}

func blockRef(height int32, seed byte) chainio.BlockRef {
	var h chainhash.Hash
	copy(h[:], chainhash.HashH([]byte{seed, byte(height)}).CloneBytes())
	return chainio.BlockRef{Hash: h, Height: height}
}

func signAtHeight(t *testing.T, members []member, quorum *llmq.Quorum, ref chainio.BlockRef) *Sig {
	t.Helper()
	signers := make([]*signing.Manager, len(members))
	managers := make([]*Manager, len(members))
	var requestID chainhash.Hash
	for i, m := range members {
		signers[i] = signing.NewManager(chaincfg.RegtestParams, m.proTxHash, m.sk)
		managers[i] = NewManager(signers[i], 0)
		rid, ok, err := managers[i].RequestSign(quorum, ref, nil)
		require.NoError(t, err)
		require.True(t, ok)
		requestID = rid
	}
	for recvIdx := range signers {
		for _, m := range members {
			signHash := signing.SignHash(quorum.Type, quorum.QuorumHash, requestID, ref.Hash)
			share := bls.Sign(m.sk, signHash)
			_ = signers[recvIdx].ProcessShare(quorum, requestID, ref.Hash, ref.Height, m.proTxHash, share)
		}
	}
	sig, err := managers[0].TryAssemble(quorum, ref)
	require.NoError(t, err)
	return sig
}

type fakeIndex struct {
	ancestors map[int32]chainio.BlockRef
}

func (f *fakeIndex) Tip() chainio.BlockRef { return chainio.BlockRef{} }
func (f *fakeIndex) BlockAtHeight(h int32) (chainio.BlockRef, bool) {
	r, ok := f.ancestors[h]
	return r, ok
}
func (f *fakeIndex) Ancestor(b chainio.BlockRef, h int32) (chainio.BlockRef, bool) {
	r, ok := f.ancestors[h]
	return r, ok
}
func (f *fakeIndex) LastCommonAncestor(a, b chainio.BlockRef) (chainio.BlockRef, bool) {
	return chainio.BlockRef{}, false
}

func TestProcessSigStoresAndTracksBest(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)
	ref := blockRef(100, 7)
	sig := signAtHeight(t, members, quorum, ref)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil), 0)
	require.NoError(t, m.ProcessSig(quorum, sig))

	hash, ok := m.LockedAt(100)
	require.True(t, ok)
	require.Equal(t, ref.Hash, hash)

	height, hash, ok := m.BestChainLock()
	require.True(t, ok)
	require.Equal(t, int32(100), height)
	require.Equal(t, ref.Hash, hash)
}

func TestProcessSigRejectsConflictingBlockAtSameHeight(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)
	refA := blockRef(100, 7)
	sigA := signAtHeight(t, members, quorum, refA)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil), 0)
	require.NoError(t, m.ProcessSig(quorum, sigA))

	refB := blockRef(100, 9) // same height, different block
	sigB := signAtHeight(t, members, quorum, refB)
	err := m.ProcessSig(quorum, sigB)
	require.Error(t, err)

	hash, ok := m.LockedAt(100)
	require.True(t, ok)
	require.Equal(t, refA.Hash, hash, "the original lock must never be replaced")
}

func TestProcessSigVerifiesNonFullQuorumAgainstSigners(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorumWithInvalidMember(t, members)
	require.NotEqual(t, quorum.ValidMemberCount, len(quorum.Members))

	ref := blockRef(200, 7)
	sig := signAtHeight(t, members, quorum, ref)
	require.NotEmpty(t, sig.Signers)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil), 0)
	require.NoError(t, m.ProcessSig(quorum, sig))

	hash, ok := m.LockedAt(200)
	require.True(t, ok)
	require.Equal(t, ref.Hash, hash)
}

func TestRequestSignNoOpBelowActivation(t *testing.T) {
	signer := signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil)
	m := NewManager(signer, 1000)
	_, ok, err := m.RequestSign(&llmq.Quorum{}, blockRef(5, 1), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCanReorgForbidsRemovingLockedHeight(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)
	ref := blockRef(50, 7)
	sig := signAtHeight(t, members, quorum, ref)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil), 0)
	require.NoError(t, m.ProcessSig(quorum, sig))

	newTip := chainio.BlockRef{Height: 60}
	oldTip := chainio.BlockRef{Height: 55}

	matching := &fakeIndex{ancestors: map[int32]chainio.BlockRef{50: ref}}
	require.True(t, m.CanReorg(matching, newTip, oldTip))

	diverging := &fakeIndex{ancestors: map[int32]chainio.BlockRef{50: blockRef(50, 99)}}
	require.False(t, m.CanReorg(diverging, newTip, oldTip))
}

func TestQueueAndDrainPending(t *testing.T) {
	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil), 0)
	m.QueuePending(blockRef(10, 1))
	m.QueuePending(blockRef(11, 2))
	drained := m.DrainPending()
	require.Len(t, drained, 2)
	require.Empty(t, m.DrainPending())
}
