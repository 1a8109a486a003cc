// Package signing implements §4.5's Signing Session Manager (C5): a
// per-request store of gossiped partial signatures, threshold recovery,
// and verification of the recovered aggregate against the signing
// quorum. The share bookkeeping follows the same locked-map-of-maps
// pattern claimtrie/node's Manager uses for its own pending-change
// tracking, generalized from claim changes to signature shares.
package signing

import (
	"bytes"
	"sync"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/llmq"
	"github.com/Slashx124/mynta-core/mnlog"
)

// RecoveredSig is the threshold-aggregated signature for one request,
// per §4.5's recovered map.
type RecoveredSig struct {
	LLMQType   uint8
	QuorumHash chainhash.Hash
	RequestID  chainhash.Hash
	MsgHash    chainhash.Hash
	Sig        *bls.Signature
	Signers    []chainhash.Hash // proTxHashes that contributed, for the non-full-quorum verify path
}

type session struct {
	quorum *llmq.Quorum
	shares map[chainhash.Hash]*bls.Signature // proTxHash -> share
	height int32
}

// Manager is C5's process-wide singleton.
type Manager struct {
	params chaincfg.Params

	mu        sync.Mutex
	sessions  map[chainhash.Hash]*session // requestId -> session
	recovered map[chainhash.Hash]*RecoveredSig

	selfProTxHash chainhash.Hash
	selfKey       *bls.SecretKey // nil if this node is not a masternode operator
}

// NewManager constructs C5's manager. selfKey may be nil for a node that
// is not itself a quorum member; async_sign then becomes a no-op share
// contribution and process_share/try_recover still work normally.
func NewManager(params chaincfg.Params, selfProTxHash chainhash.Hash, selfKey *bls.SecretKey) *Manager {
	return &Manager{
		params:        params,
		sessions:      make(map[chainhash.Hash]*session),
		recovered:     make(map[chainhash.Hash]*RecoveredSig),
		selfProTxHash: selfProTxHash,
		selfKey:       selfKey,
	}
}

// SignHash computes §3.4/§4.5's signHash = H(T ‖ quorumHash ‖ id ‖
// msgHash).
func SignHash(llmqType uint8, quorumHash, requestID, msgHash chainhash.Hash) chainhash.Hash {
	var buf bytes.Buffer
	buf.WriteByte(llmqType)
	buf.Write(quorumHash[:])
	buf.Write(requestID[:])
	buf.Write(msgHash[:])
	return chainhash.HashH(buf.Bytes())
}

// Broadcaster is the narrow slice of the NetworkBus collaborator (§6)
// async_sign needs: gossiping this node's own share to the rest of the
// quorum. A nil Broadcaster makes async_sign purely local, useful in
// tests.
type Broadcaster interface {
	BroadcastShare(quorumHash, requestID chainhash.Hash, proTxHash chainhash.Hash, share *bls.Signature)
}

// AsyncSign implements §4.5's async_sign(T, id, msgHash): if this node is
// a member of quorum, compute and store its own share, then broadcast it.
// Idempotent — calling twice for the same (quorum, id) is a no-op the
// second time.
func (m *Manager) AsyncSign(quorum *llmq.Quorum, requestID, msgHash chainhash.Hash, height int32, bus Broadcaster) error {
	m.mu.Lock()
	s := m.sessionFor(quorum, requestID, height)
	_, already := s.shares[m.selfProTxHash]
	m.mu.Unlock()
	if already || m.selfKey == nil {
		return nil
	}
	if !isMember(quorum, m.selfProTxHash) {
		return nil
	}

	signHash := SignHash(quorum.Type, quorum.QuorumHash, requestID, msgHash)
	share := bls.Sign(m.selfKey, signHash)

	if err := m.ProcessShare(quorum, requestID, msgHash, height, m.selfProTxHash, share); err != nil {
		return err
	}
	if bus != nil {
		bus.BroadcastShare(quorum.QuorumHash, requestID, m.selfProTxHash, share)
	}
	mnlog.SigsLog.Debugf("async_sign contributed share for request %s", requestID)
	return nil
}

// ProcessShare implements §4.5's process_share: verify share against that
// member's pubkey and signHash; reject mismatched or duplicated shares.
func (m *Manager) ProcessShare(quorum *llmq.Quorum, requestID, msgHash chainhash.Hash, height int32, proTxHash chainhash.Hash, share *bls.Signature) error {
	member, ok := memberOf(quorum, proTxHash)
	if !ok || !member.Valid {
		return cerrors.New(cerrors.ConsensusReject, "share from non-member or invalid-key member")
	}
	pk, err := bls.PublicKeyFromBytes(member.OperatorPubKey[:])
	if err != nil {
		return cerrors.Wrap(cerrors.CryptoFailure, "parsing member operator pubkey", err)
	}

	signHash := SignHash(quorum.Type, quorum.QuorumHash, requestID, msgHash)
	if !bls.VerifyInsecure(pk, signHash, share) {
		return cerrors.New(cerrors.CryptoFailure, "share does not verify against member pubkey")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessionFor(quorum, requestID, height)
	if existing, dup := s.shares[proTxHash]; dup {
		if !bytes.Equal(existing.Bytes(), share.Bytes()) {
			return cerrors.New(cerrors.Conflict, "conflicting duplicate share for the same request")
		}
		return nil
	}
	s.shares[proTxHash] = share
	return nil
}

// TryRecover implements §4.5's try_recover: if enough shares are in,
// aggregate and verify, returning the RecoveredSig. Returns
// (nil, cerrors.NotFound) while below threshold — not an error condition
// for the caller, just "not yet".
func (m *Manager) TryRecover(quorum *llmq.Quorum, requestID, msgHash chainhash.Hash) (*RecoveredSig, error) {
	params, ok := chaincfg.LLMQByType[quorum.Type]
	if !ok {
		return nil, cerrors.New(cerrors.Invariant, "unknown LLMQ type on quorum")
	}
	threshold := params.Threshold(quorum.ValidMemberCount)

	m.mu.Lock()
	if rs, ok := m.recovered[requestID]; ok {
		m.mu.Unlock()
		return rs, nil
	}
	s, ok := m.sessions[requestID]
	if !ok {
		m.mu.Unlock()
		return nil, cerrors.New(cerrors.NotFound, "no signing session for this request yet")
	}
	sigs := make([]*bls.Signature, 0, len(s.shares))
	signers := make([]chainhash.Hash, 0, len(s.shares))
	pks := make([]*bls.PublicKey, 0, len(s.shares))
	for proTxHash, sig := range s.shares {
		member, ok := memberOf(quorum, proTxHash)
		if !ok || !member.Valid {
			continue
		}
		pk, err := bls.PublicKeyFromBytes(member.OperatorPubKey[:])
		if err != nil {
			continue
		}
		sigs = append(sigs, sig)
		pks = append(pks, pk)
		signers = append(signers, proTxHash)
	}
	m.mu.Unlock()

	if len(sigs) < threshold {
		return nil, cerrors.New(cerrors.NotFound, "not enough shares to recover yet")
	}

	aggSig, err := bls.AggregateSigs(sigs)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.CryptoFailure, "aggregating shares", err)
	}

	signHash := SignHash(quorum.Type, quorum.QuorumHash, requestID, msgHash)
	if !bls.VerifySameMessage(aggSig, pks, signHash) {
		return nil, cerrors.New(cerrors.CryptoFailure, "recovered aggregate fails verification against contributing signers")
	}

	rs := &RecoveredSig{
		LLMQType:   quorum.Type,
		QuorumHash: quorum.QuorumHash,
		RequestID:  requestID,
		MsgHash:    msgHash,
		Sig:        aggSig,
		Signers:    signers,
	}

	m.mu.Lock()
	m.recovered[requestID] = rs
	m.mu.Unlock()

	mnlog.SigsLog.Infof("recovered signature for request %s from %d/%d shares", requestID, len(sigs), quorum.ValidMemberCount)
	return rs, nil
}

// VerifyRecovered implements §4.5's verify_recovered: rs.sig.verify_
// insecure(quorum.aggregatedPubKey, signHash) when the quorum is fully
// valid (validMemberCount == len(members)); otherwise verify against
// aggregate_pubkeys(signers), which the caller must have recorded in the
// lock (rs.Signers).
func VerifyRecovered(quorum *llmq.Quorum, rs *RecoveredSig) bool {
	signHash := SignHash(quorum.Type, quorum.QuorumHash, rs.RequestID, rs.MsgHash)

	if quorum.ValidMemberCount == len(quorum.Members) {
		return bls.VerifyInsecure(quorum.AggregatedPubKey, signHash, rs.Sig)
	}

	pks := make([]*bls.PublicKey, 0, len(rs.Signers))
	for _, proTxHash := range rs.Signers {
		member, ok := memberOf(quorum, proTxHash)
		if !ok {
			return false
		}
		pk, err := bls.PublicKeyFromBytes(member.OperatorPubKey[:])
		if err != nil {
			return false
		}
		pks = append(pks, pk)
	}
	return bls.VerifySameMessage(rs.Sig, pks, signHash)
}

// Cleanup implements §4.5's "evict sessions older than the current tip
// minus a small horizon".
func (m *Manager) Cleanup(tipHeight int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := tipHeight - m.params.SigningSessionHorizon
	for id, s := range m.sessions {
		if s.height < cutoff {
			delete(m.sessions, id)
			delete(m.recovered, id)
		}
	}
}

func (m *Manager) sessionFor(quorum *llmq.Quorum, requestID chainhash.Hash, height int32) *session {
	s, ok := m.sessions[requestID]
	if !ok {
		s = &session{quorum: quorum, shares: make(map[chainhash.Hash]*bls.Signature), height: height}
		m.sessions[requestID] = s
	}
	return s
}

func memberOf(q *llmq.Quorum, proTxHash chainhash.Hash) (llmq.Member, bool) {
	for _, m := range q.Members {
		if m.ProTxHash.IsEqual(&proTxHash) {
			return m, true
		}
	}
	return llmq.Member{}, false
}

func isMember(q *llmq.Quorum, proTxHash chainhash.Hash) bool {
	_, ok := memberOf(q, proTxHash)
	return ok
}
