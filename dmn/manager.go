package dmn

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/kvstore"
	"github.com/Slashx124/mynta-core/mnlog"
	"github.com/Slashx124/mynta-core/specialtx"
)

var (
	keyAnchorPrefix = []byte("A:") // A:<height big-endian> -> serialized snapshot
	keyTipSnapshot  = []byte("T")  // T -> serialized snapshot (current tip)
	keyParentPrefix = []byte("U:") // U:<blockHash> -> parent block hash
)

// Manager is C3's process-wide singleton: the deterministic masternode
// registry. It owns the hot LRU of recent snapshots and the persisted
// anchor/tip snapshots, and implements every operation of §4.3's
// contract. The store/cache split follows claimtrie.go's ClaimTrie
// orchestrator, which keeps a working node tree in memory backed by a
// KV store for everything colder than the LRU.
type Manager struct {
	params chaincfg.Params
	store  kvstore.Store
	cache  *cache
}

// NewManager opens or initializes the registry against store, per §9's
// explicit init(store, coin_view, block_index, net) lifecycle (coin_view
// and block_index are threaded through individual calls rather than held,
// since this manager's own operations only ever need the collaborators
// for the one block being folded).
func NewManager(params chaincfg.Params, store kvstore.Store) *Manager {
	return &Manager{
		params: params,
		store:  store,
		cache:  newCache(params.SnapshotLRUSize),
	}
}

// Genesis returns L(0), the empty snapshot.
func (m *Manager) Genesis() *Snapshot {
	return NewGenesisSnapshot()
}

// SnapshotAt returns the cached or persisted snapshot for the given
// block. A true miss (neither cached nor anchored/tip) returns
// cerrors.NotFound: replaying from a cold ancestor requires the caller's
// own block source, since the block_index collaborator (§6) only hands
// back hashes and heights, not transaction bodies.
func (m *Manager) SnapshotAt(ref chainio.BlockRef) (*Snapshot, error) {
	if snap, ok := m.cache.Fetch(ref.Hash); ok {
		return snap, nil
	}
	if snap, err := m.loadAnchor(ref.Height); err == nil && snap.BlockHash.IsEqual(&ref.Hash) {
		m.cache.Insert(snap)
		return snap, nil
	}
	if snap, err := m.loadTip(); err == nil && snap.BlockHash.IsEqual(&ref.Hash) {
		m.cache.Insert(snap)
		return snap, nil
	}
	return nil, cerrors.New(cerrors.NotFound, "snapshot not cached or anchored; cold replay needs caller's block source")
}

// ApplyBlock is §4.3's apply_block(L_prev, block, height): the
// deterministic fold of every typed transaction in block order, plus the
// implicit collateral-spend revoke and the periodic PoSe decay pass.
func (m *Manager) ApplyBlock(prev *Snapshot, block chainio.Block, height int32, confirmations func(chainio.OutPoint) (int32, int64)) (*Snapshot, error) {
	next := prev.Clone()
	next.BlockHash = block.Hash
	next.Height = height

	for _, tx := range block.Txs {
		if !specialtx.IsSpecial(tx.Version, tx.TxType) {
			m.applyCollateralSpends(next, tx, height)
			continue
		}

		payload, err := specialtx.ParsePayload(specialtx.SpecialTx{
			Version: tx.Version, TxType: specialtx.Type(tx.TxType), ExtraPayload: tx.ExtraPayload,
		})
		if err != nil {
			return nil, err
		}
		if err := specialtx.ValidateInputsHash(payload, tx.Inputs); err != nil {
			return nil, err
		}

		switch p := payload.(type) {
		case *specialtx.ProRegPayload:
			if err := m.applyRegister(next, tx.Hash, p, height, confirmations); err != nil {
				return nil, err
			}
		case *specialtx.ProUpServPayload:
			if err := m.applyUpdateService(next, p); err != nil {
				return nil, err
			}
		case *specialtx.ProUpRegPayload:
			if err := m.applyUpdateRegistrar(next, p, height); err != nil {
				return nil, err
			}
		case *specialtx.ProUpRevPayload:
			if err := m.applyUpdateRevoke(next, p, height); err != nil {
				return nil, err
			}
		}

		m.applyCollateralSpends(next, tx, height)
	}

	if m.params.PoSeDecayInterval > 0 && height%m.params.PoSeDecayInterval == 0 {
		m.decayScores(next, height)
	}

	m.cache.Insert(next)
	if err := m.storeParentLink(block.Hash, prev.BlockHash); err != nil {
		return nil, err
	}
	if height%chaincfg.LLMQ400_60.DKGInterval == 0 {
		if err := m.storeAnchor(next); err != nil {
			return nil, err
		}
	}
	if err := m.storeTip(next); err != nil {
		return nil, err
	}

	mnlog.DmnrLog.Debugf("applied block %s height %d, %d eligible masternodes", block.Hash, height, next.ValidCount())
	return next, nil
}

// UndoBlock is §4.3's undo_block(L_new, block): returns L_prev for a
// reorg disconnect. It relies on the parent-link table populated by
// ApplyBlock rather than literally reversing the fold, mirroring how
// claimtrie.go's ClaimTrie favors restoring a prior immutable snapshot
// over replaying inverse operations.
func (m *Manager) UndoBlock(current *Snapshot, block chainio.Block) (*Snapshot, error) {
	parentHash, err := m.loadParentLink(block.Hash)
	if err != nil {
		return nil, err
	}
	if parentHash.IsEqual(&chainhash.Hash{}) {
		prev := m.Genesis()
		m.cache.Insert(prev)
		return prev, nil
	}
	prev, ok := m.cache.Fetch(parentHash)
	if !ok {
		return nil, cerrors.New(cerrors.NotFound, "parent snapshot not cached; cold replay needs caller's block source")
	}
	m.cache.DropFrom(current.Height)
	return prev, nil
}

func (m *Manager) applyRegister(snap *Snapshot, txHash chainhash.Hash, p *specialtx.ProRegPayload, height int32, confirmations func(chainio.OutPoint) (int32, int64)) error {
	if len(p.Sig) > 0 {
		if err := specialtx.VerifyOwnerSignature(p); err != nil {
			return err
		}
	}
	if err := specialtx.VerifyOperatorProofOfPossession(p.OperatorPubKey, p.OperatorPoP); err != nil {
		return err
	}

	svcKey := specialtxServiceKey{ip: p.Addr.IP, port: p.Addr.Port}
	if snap.uniqueConflict(p.CollateralOutpoint, p.OwnerKeyID, svcKey) {
		return cerrors.New(cerrors.ConsensusReject, "collateral, owner key, or service address already registered")
	}
	if confirmations != nil {
		confs, value := confirmations(p.CollateralOutpoint)
		if confs < m.params.CollateralConfirmations {
			return cerrors.New(cerrors.ConsensusReject, "collateral outpoint lacks required confirmations")
		}
		if value != m.params.CollateralAmount {
			return cerrors.New(cerrors.ConsensusReject, "collateral outpoint value does not match required collateral amount")
		}
	}

	rec := &Record{
		ProTxHash:          txHash,
		CollateralOutpoint: p.CollateralOutpoint,
		OperatorRewardBp:   p.OperatorRewardBp,
		InternalID:         snap.TotalEverRegistered,
		RegisteredHeight:   height,
		LastPaidHeight:     height,
		PoSeScore:          0,
		PoSeRevivedHeight:  0,
		PoSeBanHeight:      -1,
		RevocationReason:   0,
		OwnerKeyID:         p.OwnerKeyID,
		OperatorPubKey:     p.OperatorPubKey,
		VotingKeyID:        p.VotingKeyID,
		ServiceAddr:        p.Addr,
		PayoutScript:       append([]byte(nil), p.PayoutScript...),
	}
	snap.TotalEverRegistered++
	snap.insert(rec)
	return nil
}

func (m *Manager) applyUpdateService(snap *Snapshot, p *specialtx.ProUpServPayload) error {
	old, ok := snap.Get(p.ProTxHash)
	if !ok {
		return cerrors.New(cerrors.NotFound, "UPDATE_SERVICE references unknown proTxHash")
	}
	svcKey := specialtxServiceKey{ip: p.Addr.IP, port: p.Addr.Port}
	if existing, ok := snap.byService[svcKey]; ok && existing != old.ProTxHash {
		return cerrors.New(cerrors.ConsensusReject, "service address already registered to another masternode")
	}

	updated := old.Clone()
	updated.ServiceAddr = p.Addr
	if len(p.OperatorPayoutScript) > 0 {
		updated.OperatorPayoutScript = append([]byte(nil), p.OperatorPayoutScript...)
	}
	snap.replace(old, updated)
	return nil
}

func (m *Manager) applyUpdateRegistrar(snap *Snapshot, p *specialtx.ProUpRegPayload, height int32) error {
	old, ok := snap.Get(p.ProTxHash)
	if !ok {
		return cerrors.New(cerrors.NotFound, "UPDATE_REGISTRAR references unknown proTxHash")
	}

	updated := old.Clone()
	operatorChanged := false
	if p.HasNewOperatorPubKey && p.NewOperatorPubKey != old.OperatorPubKey {
		if err := specialtx.VerifyOperatorProofOfPossession(p.NewOperatorPubKey, p.NewOperatorPoP); err != nil {
			return err
		}
		updated.OperatorPubKey = p.NewOperatorPubKey
		operatorChanged = true
	}
	if p.HasNewVotingKeyID {
		updated.VotingKeyID = p.NewVotingKeyID
	}
	if len(p.NewPayoutScript) > 0 {
		updated.PayoutScript = append([]byte(nil), p.NewPayoutScript...)
	}
	if operatorChanged {
		updated.PoSeScore = 0
		updated.PoSeBanHeight = -1
		updated.PoSeRevivedHeight = height
	}
	snap.replace(old, updated)
	return nil
}

func (m *Manager) applyUpdateRevoke(snap *Snapshot, p *specialtx.ProUpRevPayload, height int32) error {
	old, ok := snap.Get(p.ProTxHash)
	if !ok {
		return cerrors.New(cerrors.NotFound, "UPDATE_REVOKE references unknown proTxHash")
	}
	updated := old.Clone()
	updated.RevocationReason = p.Reason
	updated.PoSeBanHeight = height
	snap.replace(old, updated)
	return nil
}

// applyCollateralSpends removes any record whose collateral outpoint is
// spent by tx, per §4.3: "any input spending a tracked collateralOutpoint
// removes the record (equivalent to a synthetic revoke at h)".
func (m *Manager) applyCollateralSpends(snap *Snapshot, tx chainio.Tx, height int32) {
	for _, in := range tx.Inputs {
		if rec, ok := snap.ByCollateral(in); ok {
			mnlog.DmnrLog.Debugf("collateral for %s spent at height %d, removing record", rec.ProTxHash, height)
			snap.remove(rec.ProTxHash)
		}
	}
}

// BumpPoSe implements §4.3's bump_pose(proTxHash, Δ) callback, owned by
// C4/C5's signing timeout paths.
func (m *Manager) BumpPoSe(snap *Snapshot, proTxHash chainhash.Hash, delta int32, height int32) error {
	old, ok := snap.Get(proTxHash)
	if !ok {
		return cerrors.New(cerrors.NotFound, "bump_pose on unknown proTxHash")
	}
	updated := old.Clone()
	updated.PoSeScore += delta
	if updated.PoSeScore > m.params.PoSeBanThreshold {
		updated.PoSeScore = m.params.PoSeBanThreshold
	}
	if updated.PoSeScore >= m.params.PoSeBanThreshold {
		updated.PoSeBanHeight = height
	}
	snap.replace(old, updated)
	return nil
}

// ReviveOnSign implements §4.3's "a successful signing contribution while
// banned resets score to 0 and sets poseRevivedHeight=h".
func (m *Manager) ReviveOnSign(snap *Snapshot, proTxHash chainhash.Hash, height int32) error {
	old, ok := snap.Get(proTxHash)
	if !ok {
		return cerrors.New(cerrors.NotFound, "revive on unknown proTxHash")
	}
	if old.PoSeBanHeight == -1 {
		return nil
	}
	updated := old.Clone()
	updated.PoSeScore = 0
	updated.PoSeBanHeight = -1
	updated.PoSeRevivedHeight = height
	snap.replace(old, updated)
	return nil
}

// decayScores is the SPEC_FULL supplement drawn from original_source/:
// non-banned records decay toward zero by PoSeDecayAmount once per
// PoSeDecayInterval.
func (m *Manager) decayScores(snap *Snapshot, height int32) {
	var toDecay []*Record
	for _, r := range snap.byProTxHash {
		if r.PoSeBanHeight == -1 && r.PoSeScore > 0 {
			toDecay = append(toDecay, r)
		}
	}
	for _, old := range toDecay {
		updated := old.Clone()
		updated.PoSeScore -= m.params.PoSeDecayAmount
		if updated.PoSeScore < 0 {
			updated.PoSeScore = 0
		}
		snap.replace(old, updated)
	}
}

// PayeeFor implements §4.3's payee_for(blockHash): argmin over eligible
// records of H(proTxHash‖blockHash), tie-broken by lexicographically
// smaller proTxHash. It is a pure function of snap and blockHash, per §6
// property 2.
func PayeeFor(snap *Snapshot, blockHash chainhash.Hash) (chainhash.Hash, error) {
	type scored struct {
		proTxHash chainhash.Hash
		score     chainhash.Hash
	}
	var candidates []scored
	snap.ForEach(true, func(r *Record) {
		var buf bytes.Buffer
		buf.Write(r.ProTxHash[:])
		buf.Write(blockHash[:])
		candidates = append(candidates, scored{proTxHash: r.ProTxHash, score: chainhash.HashH(buf.Bytes())})
	})
	if len(candidates) == 0 {
		return chainhash.Hash{}, cerrors.New(cerrors.NotFound, "no eligible masternode to select as payee")
	}

	sort.Slice(candidates, func(i, j int) bool {
		if cmp := bytes.Compare(candidates[i].score[:], candidates[j].score[:]); cmp != 0 {
			return cmp < 0
		}
		return candidates[i].proTxHash.Less(candidates[j].proTxHash)
	})
	return candidates[0].proTxHash, nil
}

// PayoutScriptFor returns the script the coinbase must pay for winner,
// per §4.3: operatorPayoutScript when operatorRewardBp == 10000 and that
// script is non-empty, otherwise payoutScript.
func PayoutScriptFor(r *Record) []byte {
	if r.OperatorRewardBp == 10000 && len(r.OperatorPayoutScript) > 0 {
		return r.OperatorPayoutScript
	}
	return r.PayoutScript
}

func anchorKey(height int32) []byte {
	k := make([]byte, len(keyAnchorPrefix)+4)
	copy(k, keyAnchorPrefix)
	binary.BigEndian.PutUint32(k[len(keyAnchorPrefix):], uint32(height))
	return k
}

func parentLinkKey(hash chainhash.Hash) []byte {
	k := make([]byte, len(keyParentPrefix)+chainhash.HashSize)
	copy(k, keyParentPrefix)
	copy(k[len(keyParentPrefix):], hash[:])
	return k
}

func (m *Manager) putOne(key, value []byte) error {
	b, err := m.store.Batch()
	if err != nil {
		return err
	}
	if err := b.Put(key, value); err != nil {
		b.Discard()
		return err
	}
	return b.Commit()
}

func (m *Manager) storeParentLink(blockHash, parentHash chainhash.Hash) error {
	return m.putOne(parentLinkKey(blockHash), parentHash[:])
}

func (m *Manager) loadParentLink(blockHash chainhash.Hash) (chainhash.Hash, error) {
	v, ok, err := m.store.Get(parentLinkKey(blockHash))
	if err != nil {
		return chainhash.Hash{}, err
	}
	if !ok {
		return chainhash.Hash{}, cerrors.New(cerrors.NotFound, "parent link not found")
	}
	var h chainhash.Hash
	if err := h.SetBytes(v); err != nil {
		return chainhash.Hash{}, err
	}
	return h, nil
}

func (m *Manager) storeAnchor(snap *Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return m.putOne(anchorKey(snap.Height), data)
}

func (m *Manager) loadAnchor(height int32) (*Snapshot, error) {
	data, ok, err := m.store.Get(anchorKey(height))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cerrors.New(cerrors.NotFound, "anchor snapshot not found")
	}
	return DecodeSnapshot(data)
}

func (m *Manager) storeTip(snap *Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	return m.putOne(keyTipSnapshot, data)
}

func (m *Manager) loadTip() (*Snapshot, error) {
	data, ok, err := m.store.Get(keyTipSnapshot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cerrors.New(cerrors.NotFound, "tip snapshot not found")
	}
	return DecodeSnapshot(data)
}
