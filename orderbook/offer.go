// Package orderbook implements §4.9's persistent, UTXO-bound atomic-swap
// order book (C9): offer storage across four logical KV tables, block
// connect/disconnect handling with an undo log, and a direct coin-view
// spend hook. The four-table layout and the undo-log-by-height idea are
// grounded on dmn's own anchor/parent-link persistence pattern, applied
// one level up to swap offers instead of masternode snapshots.
package orderbook

import (
	"sort"
	"strings"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
)

// nativeAssetPlaceholder is §4.9's normalization of an empty asset
// identifier ("makerAsset (empty = native)") to a stable sort key.
const nativeAssetPlaceholder = "MYNTA"

// Offer is §3.8's atomic-swap offer.
type Offer struct {
	OfferHash       chainhash.Hash
	MakerAsset      string // empty = native
	MakerAmount     int64
	MakerAddress    [20]byte
	TakerAsset      string
	TakerAmount     int64
	HashLock        [32]byte
	TimeoutBlocks   int32
	CreatedHeight   int32
	IsActive        bool
	IsFilled        bool
	FillTxHash      chainhash.Hash
	FundingOutpoint chainio.OutPoint
}

// PairKey implements §4.9's pairKey = sortAlpha(a, b) with empty/native
// normalized to "MYNTA", joined by ':'.
func PairKey(makerAsset, takerAsset string) string {
	a, b := normalizeAsset(makerAsset), normalizeAsset(takerAsset)
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

func normalizeAsset(asset string) string {
	if asset == "" {
		return nativeAssetPlaceholder
	}
	return asset
}

// Expired reports whether height >= created + timeout, §4.9's cleanup
// condition.
func (o *Offer) Expired(height int32) bool {
	return height >= o.CreatedHeight+o.TimeoutBlocks
}

// Clone returns an independent copy, since Manager hands offers out by
// value semantics at its API boundary (copy-out, not shared pointers),
// mirroring dmn.Record's own exported Clone convention.
func (o *Offer) Clone() *Offer {
	c := *o
	return &c
}
