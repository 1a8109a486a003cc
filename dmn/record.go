// Package dmn implements §4.3's Deterministic Masternode Registry (C3):
// immutable per-block snapshots of the masternode set, folded forward and
// backward by typed transactions, with deterministic payee selection. The
// snapshot/cache/repo split follows claimtrie/node's Manager/Cache/Repo
// trio, generalized from claim nodes to masternode records.
package dmn

import (
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/specialtx"
)

// Record is a single masternode's state, per §3.1. Fields split into an
// immutable identity half and a mutable state half; only the mutable half
// changes across the record's lifetime.
type Record struct {
	// Immutable per-record identity.
	ProTxHash          chainhash.Hash
	CollateralOutpoint chainio.OutPoint
	OperatorRewardBp   uint16
	InternalID         uint64

	// Mutable state.
	RegisteredHeight     int32
	LastPaidHeight        int32
	PoSeScore             int32
	PoSeRevivedHeight     int32
	PoSeBanHeight         int32 // -1 = not banned
	RevocationReason      specialtx.RevocationReason
	OwnerKeyID            specialtx.KeyID
	OperatorPubKey        [48]byte
	VotingKeyID           specialtx.KeyID
	ServiceAddr           specialtx.ServiceAddress
	PayoutScript          []byte
	OperatorPayoutScript  []byte
}

// Eligible reports whether the record may currently be selected as payee
// or counted as a quorum candidate, per §3.1: "eligible iff poseBanHeight
// == -1 AND revocationReason == 0".
func (r *Record) Eligible() bool {
	return r.PoSeBanHeight == -1 && r.RevocationReason == 0
}

// Clone returns a deep copy of r, used whenever a snapshot's record needs
// to be mutated without affecting the snapshot it came from (structural
// sharing with copy-on-write, per §9's design note for persistent maps).
func (r *Record) Clone() *Record {
	c := *r
	c.PayoutScript = append([]byte(nil), r.PayoutScript...)
	c.OperatorPayoutScript = append([]byte(nil), r.OperatorPayoutScript...)
	return &c
}
