package instantsend

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
		Type:       chaincfg.LLMQType50_60,
		QuorumHash: chainhash.HashH([]byte("instantsend-quorum")),
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
// extra member with an unparseable operator key, the realistic case (no
// subgroup check at registration time, prior to this change) that leaves
// ValidMemberCount below len(Members) and forces the non-full-quorum
// verify_recovered path.
func buildTestQuorumWithInvalidMember(t *testing.T, members []member) *llmq.Quorum {
	t.Helper()
	q := buildTestQuorum(t, members)
	var badKey [48]byte // all-zero is not a valid compressed G1 point
	var badProTxHash chainhash.Hash
	copy(badProTxHash[:], chainhash.HashH([]byte("invalid-operator-key")).CloneBytes())
	q.Members = append(q.Members, llmq.Member{ProTxHash: badProTxHash, OperatorPubKey: badKey, Valid: false})
	return q
}

func testTx(seed byte, numInputs int) chainio.Tx {
	var hash chainhash.Hash
	copy(hash[:], chainhash.HashH([]byte{seed, 'x'}).CloneBytes())
	inputs := make([]chainio.OutPoint, numInputs)
	for i := range inputs {
		var h chainhash.Hash
		copy(h[:], chainhash.HashH([]byte{seed, byte(i)}).CloneBytes())
		inputs[i] = chainio.OutPoint{Hash: h, Index: uint32(i)}
	}
	return chainio.Tx{Hash: hash, Inputs: inputs}
}

// recoverLockEndToEnd drives async_sign/process_share/try_recover across
// every member's manager exactly as a real gossiping network would,
// mirroring signing's own TestAsyncSignAndTryRecover harness.
func recoverLockEndToEnd(t *testing.T, members []member, quorum *llmq.Quorum, tx chainio.Tx, height int32) (*signing.Manager, *Lock) {
	t.Helper()
	managers := make([]*Manager, len(members))
	signers := make([]*signing.Manager, len(members))
	var requestID, msgHash chainhash.Hash
	for i, m := range members {
		signers[i] = signing.NewManager(chaincfg.RegtestParams, m.proTxHash, m.sk)
		managers[i] = NewManager(signers[i])
		rid, mh, err := managers[i].RequestLock(quorum, tx, height, nil)
		require.NoError(t, err)
		requestID, msgHash = rid, mh
	}

	for recvIdx := range signers {
		for _, m := range members {
			signHash := signing.SignHash(quorum.Type, quorum.QuorumHash, requestID, msgHash)
			share := bls.Sign(m.sk, signHash)
			_ = signers[recvIdx].ProcessShare(quorum, requestID, msgHash, height, m.proTxHash, share)
		}
	}

	lock, err := managers[0].TryAssembleLock(quorum, tx, requestID, msgHash, height)
	require.NoError(t, err)
	return signers[0], lock
}

func TestRequestIDIsOrderIndependent(t *testing.T) {
	var h1, h2 chainhash.Hash
	copy(h1[:], chainhash.HashH([]byte("a")).CloneBytes())
	copy(h2[:], chainhash.HashH([]byte("b")).CloneBytes())
	in := []chainio.OutPoint{{Hash: h1, Index: 0}, {Hash: h2, Index: 1}}
	reversed := []chainio.OutPoint{in[1], in[0]}
	require.Equal(t, RequestID(in), RequestID(reversed))
}

func TestEligibleRejectsCoinbaseAndTooManyInputs(t *testing.T) {
	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil))
	tx := testTx(1, 3)
	tx.IsCoinBase = true
	require.Error(t, m.Eligible(tx, 32))

	tx2 := testTx(2, 40)
	require.Error(t, m.Eligible(tx2, 32))

	tx3 := testTx(3, 3)
	require.NoError(t, m.Eligible(tx3, 32))
}

func TestProcessLockStoresAndIndexes(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)
	tx := testTx(10, 2)

	_, lock := recoverLockEndToEnd(t, members, quorum, tx, 50)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil))
	require.NoError(t, m.ProcessLock(quorum, lock))

	got, ok := m.LockForTx(tx.Hash)
	require.True(t, ok)
	require.Equal(t, lock.TxID, got.TxID)

	_, ok = m.LockForOutpoint(tx.Inputs[0])
	require.True(t, ok)
}

// TestProcessLockVerifiesNonFullQuorumAgainstSigners exercises §4.6's
// fallback verification path: when the quorum carries an invalid member
// (ValidMemberCount < len(Members)), the recovered lock must still verify
// against aggregate_pubkeys(signers) rather than the quorum's full
// AggregatedPubKey.
func TestProcessLockVerifiesNonFullQuorumAgainstSigners(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorumWithInvalidMember(t, members)
	require.NotEqual(t, quorum.ValidMemberCount, len(quorum.Members))

	tx := testTx(60, 2)
	_, lock := recoverLockEndToEnd(t, members, quorum, tx, 50)
	require.NotEmpty(t, lock.Signers)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil))
	require.NoError(t, m.ProcessLock(quorum, lock))

	got, ok := m.LockForTx(tx.Hash)
	require.True(t, ok)
	require.Equal(t, lock.TxID, got.TxID)
}

func TestProcessLockRejectsConflictingInput(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)

	txA := testTx(20, 1)
	_, lockA := recoverLockEndToEnd(t, members, quorum, txA, 50)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil))
	require.NoError(t, m.ProcessLock(quorum, lockA))

	// txB spends the same input as txA but has a different hash.
	txB := testTx(20, 1)
	copy(txB.Hash[:], chainhash.HashH([]byte("different-tx")).CloneBytes())
	_, lockB := recoverLockEndToEnd(t, members, quorum, txB, 51)

	err := m.ProcessLock(quorum, lockB)
	require.Error(t, err)

	// the original lock must still be in place, never replaced.
	got, ok := m.LockForTx(txA.Hash)
	require.True(t, ok)
	require.Equal(t, lockA.TxID, got.TxID)
}

func TestValidateBlockRejectsConflictingLockedInputs(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)

	txA := testTx(30, 1)
	_, lockA := recoverLockEndToEnd(t, members, quorum, txA, 50)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil))
	require.NoError(t, m.ProcessLock(quorum, lockA))

	txB := testTx(30, 1) // shares txA's input
	copy(txB.Hash[:], chainhash.HashH([]byte("conflicting-block-tx")).CloneBytes())

	block := chainio.Block{Txs: []chainio.Tx{txA, txB}}
	require.Error(t, m.ValidateBlock(block))
}

func TestFinalizedRequiresConfirmations(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)
	tx := testTx(40, 1)
	_, lock := recoverLockEndToEnd(t, members, quorum, tx, 100)

	m := NewManager(signing.NewManager(chaincfg.RegtestParams, chainhash.Hash{}, nil))
	require.NoError(t, m.ProcessLock(quorum, lock))

	require.False(t, m.Finalized(tx.Hash, 105, 10))
	require.True(t, m.Finalized(tx.Hash, 110, 10))
}
