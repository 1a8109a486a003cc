// Package chainlock implements §4.7's ChainLocks (C7): signing a
// CChainLockSig over each accepted block height through C5, a
// never-overwrite conflict rule on the (height, blockHash) pair, and the
// fork-choice hook that makes a locked chain un-reorgable. The pending-
// height queue mirrors claimtrie's own deferred-height bookkeeping: work
// that cannot complete at the height it was requested waits for a later
// tip update to retry.
package chainlock

import (
	"bytes"
	"sync"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/llmq"
	"github.com/Slashx124/mynta-core/mnlog"
	"github.com/Slashx124/mynta-core/signing"
)

const requestIDDomain = "clsig_request"

// Sig is a CChainLockSig, per §6's wire layout ("height(i32) ‖
// blockHash(32) ‖ sig(96)").
type Sig struct {
	Height    int32
	BlockHash chainhash.Hash
	Signature *bls.Signature
	Signers   []chainhash.Hash // contributing proTxHashes, for the non-full-quorum verify path
}

// RequestID computes §4.7's requestId = H("clsig_request" ‖ height).
func RequestID(height int32) chainhash.Hash {
	var buf bytes.Buffer
	buf.WriteString(requestIDDomain)
	var h [4]byte
	h[0] = byte(height)
	h[1] = byte(height >> 8)
	h[2] = byte(height >> 16)
	h[3] = byte(height >> 24)
	buf.Write(h[:])
	return chainhash.HashH(buf.Bytes())
}

// Manager is C7's process-wide singleton.
type Manager struct {
	signer *signing.Manager

	mu           sync.Mutex
	byHeight     map[int32]*Sig
	bestHeight   int32
	bestHash     chainhash.Hash
	haveBest     bool
	pending      map[int32]chainio.BlockRef // heights awaiting a quorum/signature, retried on tip updates
	activationAt int32
}

// NewManager constructs C7's manager. activationHeight is
// chaincfg.Params.ChainLockActivationHeight: heights below it never
// request or accept a ChainLock, per §4.7's "Activation" rule.
func NewManager(signer *signing.Manager, activationHeight int32) *Manager {
	return &Manager{
		signer:       signer,
		byHeight:     make(map[int32]*Sig),
		pending:      make(map[int32]chainio.BlockRef),
		activationAt: activationHeight,
	}
}

// RequestSign implements §4.7's signing trigger: requestId = H(height),
// msgHash = blockHash, signed by the quorum selected for this request at
// LLMQ_400_60. Below the activation height this is a no-op.
func (m *Manager) RequestSign(quorum *llmq.Quorum, ref chainio.BlockRef, bus signing.Broadcaster) (requestID chainhash.Hash, ok bool, err error) {
	if ref.Height < m.activationAt {
		return chainhash.Hash{}, false, nil
	}
	requestID = RequestID(ref.Height)
	msgHash := ref.Hash
	if err := m.signer.AsyncSign(quorum, requestID, msgHash, ref.Height, bus); err != nil {
		return requestID, false, err
	}
	return requestID, true, nil
}

// TryAssemble mirrors instantsend.TryAssembleLock: pull a recovered
// signature for this height's request out of C5 and package it as a Sig,
// without storing it yet.
func (m *Manager) TryAssemble(quorum *llmq.Quorum, ref chainio.BlockRef) (*Sig, error) {
	requestID := RequestID(ref.Height)
	rs, err := m.signer.TryRecover(quorum, requestID, ref.Hash)
	if err != nil {
		return nil, err
	}
	if !signing.VerifyRecovered(quorum, rs) {
		return nil, cerrors.New(cerrors.CryptoFailure, "recovered ChainLock signature failed verification")
	}
	return &Sig{Height: ref.Height, BlockHash: ref.Hash, Signature: rs.Sig, Signers: rs.Signers}, nil
}

// ProcessSig implements §4.7's verify-and-store step: a different
// blockHash at an already-locked height is always rejected, never
// replacing the existing lock — the strict no-reorg-past-a-lock rule.
func (m *Manager) ProcessSig(quorum *llmq.Quorum, sig *Sig) error {
	if sig.Height < m.activationAt {
		return cerrors.New(cerrors.ConsensusReject, "ChainLock below activation height")
	}
	requestID := RequestID(sig.Height)
	rs := &signing.RecoveredSig{
		LLMQType:   quorum.Type,
		QuorumHash: quorum.QuorumHash,
		RequestID:  requestID,
		MsgHash:    sig.BlockHash,
		Sig:        sig.Signature,
		Signers:    sig.Signers,
	}
	if !signing.VerifyRecovered(quorum, rs) {
		return cerrors.New(cerrors.CryptoFailure, "ChainLockSig failed quorum verification")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byHeight[sig.Height]; ok {
		if !existing.BlockHash.IsEqual(&sig.BlockHash) {
			return cerrors.New(cerrors.Conflict, "a ChainLock already exists for this height on a different block; it is never replaced")
		}
		return nil
	}
	m.byHeight[sig.Height] = sig
	if !m.haveBest || sig.Height > m.bestHeight {
		m.haveBest = true
		m.bestHeight = sig.Height
		m.bestHash = sig.BlockHash
	}
	delete(m.pending, sig.Height)
	mnlog.ClsgLog.Infof("accepted ChainLock at height %d for block %s", sig.Height, sig.BlockHash)
	return nil
}

// LockedAt returns the locked block hash for height, if any.
func (m *Manager) LockedAt(height int32) (chainhash.Hash, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.byHeight[height]
	if !ok {
		return chainhash.Hash{}, false
	}
	return sig.BlockHash, true
}

// BestChainLock returns the highest-height lock accepted so far.
func (m *Manager) BestChainLock() (height int32, hash chainhash.Hash, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bestHeight, m.bestHash, m.haveBest
}

// CanReorg implements §4.7's can_reorg(new_tip, old_tip) fork-choice
// hook: a reorg is forbidden if it would remove the best known ChainLock
// from the resulting chain. index resolves the new tip's ancestor at the
// locked height, which must be the locked block; a new tip below the
// locked height is refused.
func (m *Manager) CanReorg(index chainio.BlockIndex, newTip, oldTip chainio.BlockRef) bool {
	m.mu.Lock()
	height, hash, have := m.bestHeight, m.bestHash, m.haveBest
	m.mu.Unlock()
	if !have {
		return true
	}
	if newTip.Height < height {
		// the candidate chain doesn't reach the locked height, so it
		// cannot contain the locked block.
		return false
	}
	anc, ok := index.Ancestor(newTip, height)
	if !ok {
		return false
	}
	return anc.Hash.IsEqual(&hash)
}

// QueuePending records that height is awaiting a quorum/signature and
// should be retried on the next tip update, per §4.7's deferred-signing
// behavior when no quorum was yet available at block-connect time.
func (m *Manager) QueuePending(ref chainio.BlockRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[ref.Height] = ref
}

// DrainPending returns and clears all currently queued heights, for the
// caller to retry RequestSign against the current tip's quorum set.
func (m *Manager) DrainPending() []chainio.BlockRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chainio.BlockRef, 0, len(m.pending))
	for _, ref := range m.pending {
		out = append(out, ref)
	}
	m.pending = make(map[int32]chainio.BlockRef)
	return out
}
