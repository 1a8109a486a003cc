package dmn

import (
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
)

// Snapshot is L(h) from §3.2: a value-typed functional map proTxHash →
// record plus the three secondary indexes and the monotonic counter. Go
// has no native persistent map, so Snapshot follows §9's fallback:
// copy-on-write at the map level (Clone does a shallow map copy sharing
// *Record pointers) plus record-level copy-on-write (a record is cloned
// before any in-place mutation). Two snapshots that have not diverged
// still share every *Record they agree on.
type Snapshot struct {
	BlockHash chainhash.Hash
	Height    int32

	byProTxHash  map[chainhash.Hash]*Record
	byCollateral map[chainio.OutPoint]chainhash.Hash
	byService    map[specialtxServiceKey]chainhash.Hash
	byOwnerKey   map[ownerKeyKey]chainhash.Hash

	TotalEverRegistered uint64
}

// specialtxServiceKey and ownerKeyKey exist only so ServiceAddress and
// KeyID (which contain byte arrays) can key a Go map directly.
type specialtxServiceKey struct {
	ip   [16]byte
	port uint16
}
type ownerKeyKey [20]byte

// NewGenesisSnapshot returns L(0): the empty snapshot, per §3.2.
func NewGenesisSnapshot() *Snapshot {
	return &Snapshot{
		byProTxHash:  map[chainhash.Hash]*Record{},
		byCollateral: map[chainio.OutPoint]chainhash.Hash{},
		byService:    map[specialtxServiceKey]chainhash.Hash{},
		byOwnerKey:   map[ownerKeyKey]chainhash.Hash{},
	}
}

// Clone returns a snapshot that can be mutated independently of s, sharing
// every *Record that isn't touched.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		BlockHash:           s.BlockHash,
		Height:              s.Height,
		TotalEverRegistered: s.TotalEverRegistered,
		byProTxHash:         make(map[chainhash.Hash]*Record, len(s.byProTxHash)),
		byCollateral:        make(map[chainio.OutPoint]chainhash.Hash, len(s.byCollateral)),
		byService:           make(map[specialtxServiceKey]chainhash.Hash, len(s.byService)),
		byOwnerKey:           make(map[ownerKeyKey]chainhash.Hash, len(s.byOwnerKey)),
	}
	for k, v := range s.byProTxHash {
		c.byProTxHash[k] = v
	}
	for k, v := range s.byCollateral {
		c.byCollateral[k] = v
	}
	for k, v := range s.byService {
		c.byService[k] = v
	}
	for k, v := range s.byOwnerKey {
		c.byOwnerKey[k] = v
	}
	return c
}

// Get returns the record for proTxHash, or (nil, false).
func (s *Snapshot) Get(proTxHash chainhash.Hash) (*Record, bool) {
	r, ok := s.byProTxHash[proTxHash]
	return r, ok
}

// ByCollateral returns the record bound to the given collateral outpoint.
func (s *Snapshot) ByCollateral(op chainio.OutPoint) (*Record, bool) {
	h, ok := s.byCollateral[op]
	if !ok {
		return nil, false
	}
	return s.Get(h)
}

// ByService returns the record advertising the given service address.
func (s *Snapshot) ByService(ip [16]byte, port uint16) (*Record, bool) {
	h, ok := s.byService[specialtxServiceKey{ip: ip, port: port}]
	if !ok {
		return nil, false
	}
	return s.Get(h)
}

// ByOwnerKey returns the record owned by the given owner key id.
func (s *Snapshot) ByOwnerKey(id [20]byte) (*Record, bool) {
	h, ok := s.byOwnerKey[ownerKeyKey(id)]
	if !ok {
		return nil, false
	}
	return s.Get(h)
}

// ValidCount returns the number of eligible records, per §4.3's
// valid_count.
func (s *Snapshot) ValidCount() int {
	n := 0
	for _, r := range s.byProTxHash {
		if r.Eligible() {
			n++
		}
	}
	return n
}

// ForEach calls fn for every record, optionally restricted to eligible
// ones, per §4.3's for_each(onlyValid, fn). Iteration order is undefined,
// matching a plain map's iteration guarantees; callers needing determinism
// must sort.
func (s *Snapshot) ForEach(onlyValid bool, fn func(*Record)) {
	for _, r := range s.byProTxHash {
		if onlyValid && !r.Eligible() {
			continue
		}
		fn(r)
	}
}

// insert adds a brand new record (used by apply's REGISTER case and by
// DecodeSnapshot).
func (s *Snapshot) insert(r *Record) {
	s.byProTxHash[r.ProTxHash] = r
	s.byCollateral[r.CollateralOutpoint] = r.ProTxHash
	s.byService[specialtxServiceKey{ip: r.ServiceAddr.IP, port: r.ServiceAddr.Port}] = r.ProTxHash
	s.byOwnerKey[ownerKeyKey(r.OwnerKeyID)] = r.ProTxHash
}

// replace swaps the record stored at proTxHash for a mutated clone,
// updating whichever secondary indexes changed.
func (s *Snapshot) replace(old, updated *Record) {
	s.byProTxHash[updated.ProTxHash] = updated

	if old.ServiceAddr != updated.ServiceAddr {
		delete(s.byService, specialtxServiceKey{ip: old.ServiceAddr.IP, port: old.ServiceAddr.Port})
		s.byService[specialtxServiceKey{ip: updated.ServiceAddr.IP, port: updated.ServiceAddr.Port}] = updated.ProTxHash
	}
	if old.OwnerKeyID != updated.OwnerKeyID {
		delete(s.byOwnerKey, ownerKeyKey(old.OwnerKeyID))
		s.byOwnerKey[ownerKeyKey(updated.OwnerKeyID)] = updated.ProTxHash
	}
}

// remove deletes a record entirely (used by apply's "spending collateral
// deletes the record" rule of §3.1).
func (s *Snapshot) remove(proTxHash chainhash.Hash) {
	r, ok := s.byProTxHash[proTxHash]
	if !ok {
		return
	}
	delete(s.byProTxHash, proTxHash)
	delete(s.byCollateral, r.CollateralOutpoint)
	delete(s.byService, specialtxServiceKey{ip: r.ServiceAddr.IP, port: r.ServiceAddr.Port})
	delete(s.byOwnerKey, ownerKeyKey(r.OwnerKeyID))
}

// uniqueConflict reports whether registering a record with the given
// collateral/owner/service would violate §3.1's global-uniqueness
// invariant.
func (s *Snapshot) uniqueConflict(op chainio.OutPoint, ownerKeyID [20]byte, addr specialtxServiceKey) bool {
	if _, ok := s.byCollateral[op]; ok {
		return true
	}
	if _, ok := s.byOwnerKey[ownerKeyKey(ownerKeyID)]; ok {
		return true
	}
	if _, ok := s.byService[addr]; ok {
		return true
	}
	return false
}
