package signing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/llmq"
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
		QuorumHash: chainhash.HashH([]byte("quorum")),
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

func TestAsyncSignAndTryRecover(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)

	requestID := chainhash.HashH([]byte("request"))
	msgHash := chainhash.HashH([]byte("msg"))

	managers := make([]*Manager, len(members))
	for i, m := range members {
		managers[i] = NewManager(chaincfg.RegtestParams, m.proTxHash, m.sk)
	}

	for i := range managers {
		require.NoError(t, managers[i].AsyncSign(quorum, requestID, msgHash, 10, nil))
	}

	// simulate gossip: every manager learns every other manager's share.
	for _, recv := range managers {
		for i, m := range members {
			signHash := SignHash(quorum.Type, quorum.QuorumHash, requestID, msgHash)
			share := bls.Sign(m.sk, signHash)
			_ = i
			_ = recv.ProcessShare(quorum, requestID, msgHash, 10, m.proTxHash, share)
		}
	}

	rs, err := managers[0].TryRecover(quorum, requestID, msgHash)
	require.NoError(t, err)
	require.True(t, VerifyRecovered(quorum, rs))
}

func TestProcessShareRejectsNonMember(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2)}
	quorum := buildTestQuorum(t, members)
	outsider := seededMember(t, 99)

	requestID := chainhash.HashH([]byte("request"))
	msgHash := chainhash.HashH([]byte("msg"))
	signHash := SignHash(quorum.Type, quorum.QuorumHash, requestID, msgHash)
	share := bls.Sign(outsider.sk, signHash)

	m := NewManager(chaincfg.RegtestParams, members[0].proTxHash, members[0].sk)
	err := m.ProcessShare(quorum, requestID, msgHash, 10, outsider.proTxHash, share)
	require.Error(t, err)
}

func TestTryRecoverBelowThresholdReturnsNotFound(t *testing.T) {
	members := []member{seededMember(t, 1), seededMember(t, 2), seededMember(t, 3)}
	quorum := buildTestQuorum(t, members)
	requestID := chainhash.HashH([]byte("request"))
	msgHash := chainhash.HashH([]byte("msg"))

	m := NewManager(chaincfg.RegtestParams, members[0].proTxHash, members[0].sk)
	require.NoError(t, m.AsyncSign(quorum, requestID, msgHash, 10, nil))

	_, err := m.TryRecover(quorum, requestID, msgHash)
	require.Error(t, err)
}

func TestCleanupEvictsOldSessions(t *testing.T) {
	members := []member{seededMember(t, 1)}
	quorum := buildTestQuorum(t, members)
	requestID := chainhash.HashH([]byte("request"))
	msgHash := chainhash.HashH([]byte("msg"))

	m := NewManager(chaincfg.RegtestParams, members[0].proTxHash, members[0].sk)
	require.NoError(t, m.AsyncSign(quorum, requestID, msgHash, 10, nil))
	require.Len(t, m.sessions, 1)

	m.Cleanup(10 + chaincfg.RegtestParams.SigningSessionHorizon + 1)
	require.Len(t, m.sessions, 0)
}
