// Package instantsend implements §4.6's InstantSend (C6): eligibility
// checks, the sign/recover protocol wired through signing.Manager, lock
// storage with conflict rejection, and mempool/block enforcement hooks.
// The lock store follows orderbook's four-table design one level down:
// two forward indexes (lockHash, outpoint) plus a reverse index (txid),
// the same shape database/engine callers use for secondary lookups over a
// single primary table. The three indexes are in-memory maps; locks are
// not written to the KV store and do not survive a restart.
package instantsend

import (
	"bytes"
	"sort"
	"sync"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/llmq"
	"github.com/Slashx124/mynta-core/mnlog"
	"github.com/Slashx124/mynta-core/signing"
)

const requestIDDomain = "islock_request"

// Lock is an InstantSendLock: the recovered signature over a specific
// transaction's inputs, per §6's wire layout ("varint_len(inputs) ‖
// inputs ‖ txid(32) ‖ quorumHash(32) ‖ sig(96)").
type Lock struct {
	Inputs     []chainio.OutPoint
	TxID       chainhash.Hash
	QuorumHash chainhash.Hash
	Sig        *bls.Signature
	Signers    []chainhash.Hash // contributing proTxHashes, for the non-full-quorum verify path
	Height     int32            // height at which the lock was accepted, for Finalized()
}

// Hash identifies a lock by its txid, the natural primary key since
// §4.6 never locks the same txid twice.
func (l *Lock) Hash() chainhash.Hash { return l.TxID }

// RequestID computes §4.6 step 1's requestId = H("islock_request" ‖
// sorted(inputs)).
func RequestID(inputs []chainio.OutPoint) chainhash.Hash {
	sorted := append([]chainio.OutPoint(nil), inputs...)
	sort.Slice(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].Hash[:], sorted[j].Hash[:]); c != 0 {
			return c < 0
		}
		return sorted[i].Index < sorted[j].Index
	})
	var buf bytes.Buffer
	buf.WriteString(requestIDDomain)
	for _, op := range sorted {
		buf.Write(op.Hash[:])
		var idx [4]byte
		idx[0] = byte(op.Index)
		idx[1] = byte(op.Index >> 8)
		idx[2] = byte(op.Index >> 16)
		idx[3] = byte(op.Index >> 24)
		buf.Write(idx[:])
	}
	return chainhash.HashH(buf.Bytes())
}

// MsgHash computes §4.6 step 1's msgHash = H(requestId ‖ txid).
func MsgHash(requestID, txID chainhash.Hash) chainhash.Hash {
	var buf bytes.Buffer
	buf.Write(requestID[:])
	buf.Write(txID[:])
	return chainhash.HashH(buf.Bytes())
}

// Eligible implements §4.6's eligibility check: non-coinbase, at most
// maxInputs inputs, and no input already locked by a lock whose txid
// differs.
func (m *Manager) Eligible(tx chainio.Tx, maxInputs int) error {
	if tx.IsCoinBase {
		return cerrors.New(cerrors.ConsensusReject, "coinbase transactions are not InstantSend-eligible")
	}
	if len(tx.Inputs) > maxInputs {
		return cerrors.New(cerrors.ConsensusReject, "too many inputs for InstantSend")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range tx.Inputs {
		if lockHash, ok := m.byOutpoint[in]; ok && lockHash != tx.Hash {
			return cerrors.New(cerrors.Conflict, "input already locked by a different transaction")
		}
	}
	return nil
}

// Manager is C6's process-wide singleton.
type Manager struct {
	signer *signing.Manager

	mu         sync.Mutex
	byLockHash map[chainhash.Hash]*Lock
	byOutpoint map[chainio.OutPoint]chainhash.Hash
	byTxID     map[chainhash.Hash]chainhash.Hash
}

// NewManager constructs C6's manager over an already-constructed C5
// signing manager, per §9's layered-singleton lifecycle.
func NewManager(signer *signing.Manager) *Manager {
	return &Manager{
		signer:     signer,
		byLockHash: make(map[chainhash.Hash]*Lock),
		byOutpoint: make(map[chainio.OutPoint]chainhash.Hash),
		byTxID:     make(map[chainhash.Hash]chainhash.Hash),
	}
}

// RequestLock implements §4.6 steps 1-2: compute the request/message
// hashes and kick off C5's async_sign. Call try_recover separately (e.g.
// once per new share, or once per tip) to see if the lock is ready.
func (m *Manager) RequestLock(quorum *llmq.Quorum, tx chainio.Tx, height int32, bus signing.Broadcaster) (requestID, msgHash chainhash.Hash, err error) {
	requestID = RequestID(tx.Inputs)
	msgHash = MsgHash(requestID, tx.Hash)
	if err := m.signer.AsyncSign(quorum, requestID, msgHash, height, bus); err != nil {
		return requestID, msgHash, err
	}
	return requestID, msgHash, nil
}

// TryAssembleLock implements §4.6 step 3: if C5 has recovered a signature
// for this request, assemble and return the InstantSendLock (not yet
// stored — call ProcessLock to do that, mirroring how a received lock
// from the network goes through the same validation path).
func (m *Manager) TryAssembleLock(quorum *llmq.Quorum, tx chainio.Tx, requestID, msgHash chainhash.Hash, height int32) (*Lock, error) {
	rs, err := m.signer.TryRecover(quorum, requestID, msgHash)
	if err != nil {
		return nil, err
	}
	if !signing.VerifyRecovered(quorum, rs) {
		return nil, cerrors.New(cerrors.CryptoFailure, "recovered InstantSend signature failed verification")
	}
	return &Lock{
		Inputs:     tx.Inputs,
		TxID:       tx.Hash,
		QuorumHash: quorum.QuorumHash,
		Sig:        rs.Sig,
		Signers:    rs.Signers,
		Height:     height,
	}, nil
}

// ProcessLock implements §4.6 step 3's receiver-side process_lock:
// rejects on failed quorum verification or input conflict, otherwise
// stores. An existing lock is never replaced.
func (m *Manager) ProcessLock(quorum *llmq.Quorum, lock *Lock) error {
	requestID := RequestID(lock.Inputs)
	msgHash := MsgHash(requestID, lock.TxID)
	rs := &signing.RecoveredSig{
		LLMQType:   quorum.Type,
		QuorumHash: quorum.QuorumHash,
		RequestID:  requestID,
		MsgHash:    msgHash,
		Sig:        lock.Sig,
		Signers:    lock.Signers,
	}
	if !signing.VerifyRecovered(quorum, rs) {
		return cerrors.New(cerrors.CryptoFailure, "InstantSendLock signature failed quorum verification")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, in := range lock.Inputs {
		if existing, ok := m.byOutpoint[in]; ok && existing != lock.Hash() {
			return cerrors.New(cerrors.Conflict, "input already locked by a different transaction; existing lock is never replaced")
		}
	}

	lockHash := lock.Hash()
	m.byLockHash[lockHash] = lock
	for _, in := range lock.Inputs {
		m.byOutpoint[in] = lockHash
	}
	m.byTxID[lock.TxID] = lockHash
	mnlog.IslkLog.Infof("stored InstantSendLock for tx %s over %d inputs", lock.TxID, len(lock.Inputs))
	return nil
}

// LockForTx returns the lock covering txid, if any.
func (m *Manager) LockForTx(txid chainhash.Hash) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lockHash, ok := m.byTxID[txid]
	if !ok {
		return nil, false
	}
	return m.byLockHash[lockHash], true
}

// LockForOutpoint returns the lock covering the given input, if any.
func (m *Manager) LockForOutpoint(op chainio.OutPoint) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lockHash, ok := m.byOutpoint[op]
	if !ok {
		return nil, false
	}
	return m.byLockHash[lockHash], true
}

// MempoolConflicts implements §4.6's mempool-enforcement rule: reject any
// tx whose inputs intersect a locked set, unless its own txid matches the
// lock.
func (m *Manager) MempoolConflicts(tx chainio.Tx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range tx.Inputs {
		lockHash, ok := m.byOutpoint[in]
		if ok && lockHash != tx.Hash {
			return cerrors.New(cerrors.ConsensusReject, "input is locked by a different transaction")
		}
	}
	return nil
}

// ValidateBlock implements §4.6's block-validation rule: a block may not
// include two transactions whose inputs were both locked by different
// txids.
func (m *Manager) ValidateBlock(block chainio.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[chainio.OutPoint]chainhash.Hash) // locked input -> spending txid
	for _, tx := range block.Txs {
		for _, in := range tx.Inputs {
			if _, locked := m.byOutpoint[in]; !locked {
				continue
			}
			if prior, ok := seen[in]; ok && prior != tx.Hash {
				return cerrors.New(cerrors.ConsensusReject, "block includes conflicting InstantSend-locked inputs")
			}
			seen[in] = tx.Hash
		}
	}
	return nil
}

// Finalized is the SPEC_FULL supplement drawn from original_source/: a
// lock becomes implicitly final once enough confirmations have passed
// that its island/no-island distinction no longer matters. This is a
// read-only convenience, not a new consensus rule.
func (m *Manager) Finalized(txid chainhash.Hash, tipHeight, confirmationsRequired int32) bool {
	lock, ok := m.LockForTx(txid)
	if !ok {
		return false
	}
	return tipHeight-lock.Height >= confirmationsRequired
}
