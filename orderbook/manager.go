package orderbook

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/kvstore"
	"github.com/Slashx124/mynta-core/mnlog"
)

var (
	prefixOffer   = []byte("O:")
	prefixPair    = []byte("P:")
	prefixFunding = []byte("U:")
	prefixUndo    = []byte("D:")
	keyHeight     = []byte("H")
)

// Manager is C9's process-wide singleton: the persistent order book over
// a single ordered KV store, guarded by one top-level mutex per §5's
// resource model (acquired after C3..C7 in the fixed ordering).
type Manager struct {
	store kvstore.Store

	mu     sync.Mutex
	height int32
}

// NewManager constructs C9's manager, loading the persisted height.
func NewManager(store kvstore.Store) (*Manager, error) {
	m := &Manager{store: store}
	raw, ok, err := store.Get(keyHeight)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.TransientStorage, "loading order book height", err)
	}
	if ok && len(raw) == 4 {
		m.height = int32(binary.LittleEndian.Uint32(raw))
	}
	return m, nil
}

func offerKey(hash chainhash.Hash) []byte {
	return append(append([]byte{}, prefixOffer...), hash[:]...)
}

func pairKey(pair string, hash chainhash.Hash) []byte {
	k := append(append([]byte{}, prefixPair...), []byte(pair)...)
	k = append(k, ':')
	return append(k, hash[:]...)
}

func fundingKey(hash chainhash.Hash) []byte {
	return append(append([]byte{}, prefixFunding...), hash[:]...)
}

func undoKey(height int32, hash chainhash.Hash) []byte {
	k := append(append([]byte{}, prefixUndo...), heightBytes(height)...)
	return append(k, hash[:]...)
}

func heightBytes(height int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(height))
	return buf[:]
}

func encodeOutpoint(op chainio.OutPoint) []byte {
	var buf bytes.Buffer
	buf.Write(op.Hash[:])
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], op.Index)
	buf.Write(idx[:])
	return buf.Bytes()
}

// AddOffer implements §4.9's add_offer: writes O, P, U; fails on
// duplicate. isLive reports whether fundingOutpoint is currently unspent
// and owned by the offer's maker — the caller supplies this via the coin
// view collaborator, since Manager itself holds no UTXO state.
func (m *Manager) AddOffer(offer *Offer, isLive bool) error {
	if !isLive {
		return cerrors.New(cerrors.ConsensusReject, "funding outpoint is not live or not owned by the offer maker")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok, err := m.store.Get(offerKey(offer.OfferHash)); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "checking for duplicate offer", err)
	} else if ok {
		return cerrors.New(cerrors.Conflict, "offer already exists")
	}

	batch, err := m.store.Batch()
	if err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "opening batch", err)
	}
	encoded, err := EncodeOffer(offer)
	if err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.Invariant, "encoding offer", err)
	}
	if err := batch.Put(offerKey(offer.OfferHash), encoded); err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.TransientStorage, "writing offer", err)
	}
	pair := PairKey(offer.MakerAsset, offer.TakerAsset)
	if err := batch.Put(pairKey(pair, offer.OfferHash), nil); err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.TransientStorage, "writing pair index", err)
	}
	if err := batch.Put(fundingKey(offer.OfferHash), encodeOutpoint(offer.FundingOutpoint)); err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.TransientStorage, "writing funding index", err)
	}
	if err := batch.Commit(); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "committing AddOffer batch", err)
	}
	mnlog.ObokLog.Infof("added offer %s (pair %s)", offer.OfferHash, pair)
	return nil
}

// Offer returns the stored offer, if any.
func (m *Manager) Offer(hash chainhash.Hash) (*Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok, err := m.store.Get(offerKey(hash))
	if err != nil {
		return nil, cerrors.Wrap(cerrors.TransientStorage, "reading offer", err)
	}
	if !ok {
		return nil, cerrors.New(cerrors.NotFound, "offer not found")
	}
	return DecodeOffer(raw)
}

// ConnectBlock implements §4.9's connect_block: for each input in each
// tx, check the funding index; a match marks the offer filled and drops
// it from the active pair index, after logging its prior state for
// DisconnectBlock. Also sweeps offers past their timeout. All writes
// commit in a single atomic batch.
func (m *Manager) ConnectBlock(block chainio.Block, height int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.store.Batch()
	if err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "opening ConnectBlock batch", err)
	}

	for _, tx := range block.Txs {
		for _, in := range tx.Inputs {
			offerHash, offer, found, err := m.offerByFunding(in)
			if err != nil {
				batch.Discard()
				return err
			}
			if !found || offer.IsFilled {
				continue
			}
			if err := m.recordFill(batch, offerHash, offer, tx.Hash, height); err != nil {
				batch.Discard()
				return err
			}
		}
	}

	if err := m.sweepExpiredInto(batch, height); err != nil {
		batch.Discard()
		return err
	}

	if err := batch.Put(keyHeight, heightBytes32(height)); err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.TransientStorage, "writing order book height", err)
	}
	if err := batch.Commit(); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "committing ConnectBlock batch", err)
	}
	m.height = height
	return nil
}

func heightBytes32(height int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(height))
	return buf[:]
}

func (m *Manager) offerByFunding(op chainio.OutPoint) (chainhash.Hash, *Offer, bool, error) {
	iter, err := m.store.Iterate(prefixFunding)
	if err != nil {
		return chainhash.Hash{}, nil, false, cerrors.Wrap(cerrors.TransientStorage, "scanning funding index", err)
	}
	defer iter.Release()
	target := encodeOutpoint(op)
	for iter.Next() {
		if bytes.Equal(iter.Value(), target) {
			hash := chainhash.Hash{}
			copy(hash[:], iter.Key()[len(prefixFunding):])
			raw, ok, err := m.store.Get(offerKey(hash))
			if err != nil {
				return chainhash.Hash{}, nil, false, cerrors.Wrap(cerrors.TransientStorage, "reading matched offer", err)
			}
			if !ok {
				continue
			}
			offer, err := DecodeOffer(raw)
			if err != nil {
				return chainhash.Hash{}, nil, false, cerrors.Wrap(cerrors.Invariant, "decoding matched offer", err)
			}
			return hash, offer, true, nil
		}
	}
	return chainhash.Hash{}, nil, false, nil
}

// recordFill writes the undo-log entry D:<height>:<offerHash> = oldIsFilled,
// then marks the offer filled and drops its pair-index entry.
func (m *Manager) recordFill(batch kvstore.Batch, offerHash chainhash.Hash, offer *Offer, fillTxHash chainhash.Hash, height int32) error {
	var undo byte
	if offer.IsFilled {
		undo = 1
	}
	if err := batch.Put(undoKey(height, offerHash), []byte{undo}); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "writing undo log entry", err)
	}

	pair := PairKey(offer.MakerAsset, offer.TakerAsset)
	if err := batch.Delete(pairKey(pair, offerHash)); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "removing pair index entry", err)
	}

	offer.IsFilled = true
	offer.FillTxHash = fillTxHash
	encoded, err := EncodeOffer(offer)
	if err != nil {
		return cerrors.Wrap(cerrors.Invariant, "encoding filled offer", err)
	}
	if err := batch.Put(offerKey(offerHash), encoded); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "writing filled offer", err)
	}
	mnlog.ObokLog.Infof("offer %s filled by tx %s at height %d", offerHash, fillTxHash, height)
	return nil
}

// sweepExpiredInto marks every still-active, unfilled offer past its
// timeout as inactive, within the same batch as ConnectBlock's fill
// detection.
func (m *Manager) sweepExpiredInto(batch kvstore.Batch, height int32) error {
	iter, err := m.store.Iterate(prefixOffer)
	if err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "scanning offers for expiry", err)
	}
	defer iter.Release()
	for iter.Next() {
		offer, err := DecodeOffer(iter.Value())
		if err != nil {
			continue
		}
		if offer.IsFilled || !offer.IsActive || !offer.Expired(height) {
			continue
		}
		offer.IsActive = false
		encoded, err := EncodeOffer(offer)
		if err != nil {
			return cerrors.Wrap(cerrors.Invariant, "encoding expired offer", err)
		}
		if err := batch.Put(offerKey(offer.OfferHash), encoded); err != nil {
			return cerrors.Wrap(cerrors.TransientStorage, "writing expired offer", err)
		}
		pair := PairKey(offer.MakerAsset, offer.TakerAsset)
		if err := batch.Delete(pairKey(pair, offer.OfferHash)); err != nil {
			return cerrors.Wrap(cerrors.TransientStorage, "removing expired offer's pair index entry", err)
		}
	}
	return nil
}

// SweepExpired is the SPEC_FULL supplement exposing sweepExpiredInto as
// its own atomic batch, for a caller that wants to run expiry cleanup
// outside a block-connect cycle (e.g. a maintenance tick).
func (m *Manager) SweepExpired(height int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, err := m.store.Batch()
	if err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "opening SweepExpired batch", err)
	}
	if err := m.sweepExpiredInto(batch, height); err != nil {
		batch.Discard()
		return err
	}
	if err := batch.Commit(); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "committing SweepExpired batch", err)
	}
	return nil
}

// DisconnectBlock implements §4.9's disconnect_block: inverse of
// ConnectBlock's fill detection, restoring offers marked filled at this
// height via the undo log, and dropping the undo entries once applied.
func (m *Manager) DisconnectBlock(block chainio.Block, height int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.store.Batch()
	if err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "opening DisconnectBlock batch", err)
	}

	iter, err := m.store.Iterate(undoPrefixForHeight(height))
	if err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.TransientStorage, "scanning undo log", err)
	}
	type restoreOp struct {
		hash       chainhash.Hash
		oldIsFille bool
	}
	var restores []restoreOp
	for iter.Next() {
		key := iter.Key()
		var hash chainhash.Hash
		copy(hash[:], key[len(undoPrefixForHeight(height)):])
		restores = append(restores, restoreOp{hash: hash, oldIsFille: len(iter.Value()) == 1 && iter.Value()[0] == 1})
	}
	iter.Release()

	for _, r := range restores {
		raw, ok, err := m.store.Get(offerKey(r.hash))
		if err != nil {
			batch.Discard()
			return cerrors.Wrap(cerrors.TransientStorage, "reading offer to restore", err)
		}
		if !ok {
			continue
		}
		offer, err := DecodeOffer(raw)
		if err != nil {
			batch.Discard()
			return cerrors.Wrap(cerrors.Invariant, "decoding offer to restore", err)
		}
		offer.IsFilled = r.oldIsFille
		offer.IsActive = !offer.IsFilled
		offer.FillTxHash = chainhash.Hash{}
		encoded, err := EncodeOffer(offer)
		if err != nil {
			batch.Discard()
			return cerrors.Wrap(cerrors.Invariant, "encoding restored offer", err)
		}
		if err := batch.Put(offerKey(r.hash), encoded); err != nil {
			batch.Discard()
			return cerrors.Wrap(cerrors.TransientStorage, "writing restored offer", err)
		}
		if offer.IsActive {
			pair := PairKey(offer.MakerAsset, offer.TakerAsset)
			if err := batch.Put(pairKey(pair, r.hash), nil); err != nil {
				batch.Discard()
				return cerrors.Wrap(cerrors.TransientStorage, "restoring pair index entry", err)
			}
		}
		if err := batch.Delete(undoKey(height, r.hash)); err != nil {
			batch.Discard()
			return cerrors.Wrap(cerrors.TransientStorage, "clearing undo log entry", err)
		}
	}

	if err := batch.Put(keyHeight, heightBytes32(height-1)); err != nil {
		batch.Discard()
		return cerrors.Wrap(cerrors.TransientStorage, "rewinding order book height", err)
	}
	if err := batch.Commit(); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "committing DisconnectBlock batch", err)
	}
	m.height = height - 1
	return nil
}

func undoPrefixForHeight(height int32) []byte {
	return append(append([]byte{}, prefixUndo...), heightBytes(height)...)
}

// UtxoSpent implements §4.9's utxo_spent direct coin-view hook:
// equivalent effect to ConnectBlock's fill detection, for a spend path
// that doesn't go through block connection (e.g. a mempool-accepted
// spend the coin view reports immediately).
func (m *Manager) UtxoSpent(op chainio.OutPoint, txHash chainhash.Hash, height int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	offerHash, offer, found, err := m.offerByFunding(op)
	if err != nil {
		return err
	}
	if !found || offer.IsFilled {
		return nil
	}

	batch, err := m.store.Batch()
	if err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "opening UtxoSpent batch", err)
	}
	if err := m.recordFill(batch, offerHash, offer, txHash, height); err != nil {
		batch.Discard()
		return err
	}
	if err := batch.Commit(); err != nil {
		return cerrors.Wrap(cerrors.TransientStorage, "committing UtxoSpent batch", err)
	}
	return nil
}

// Height returns the order book's last-connected height, for startup
// replay against the block index between this value and the current tip.
func (m *Manager) Height() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}
