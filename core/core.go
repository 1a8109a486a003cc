// Package core wires the six process-wide managers (C3..C9, minus the
// stateless C1/C2 primitives) into a single lifecycle, per §9's "global
// state is limited to six process-wide singletons... explicit init(store,
// coin_view, block_index, net) -> ... -> shutdown(); no implicit
// construction". The orchestration follows claimtrie.go's own ClaimTrie
// struct: one façade owning every subsystem manager, constructed once at
// startup and torn down once at shutdown.
package core

import (
	"sync"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/chainlock"
	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/dmn"
	"github.com/Slashx124/mynta-core/instantsend"
	"github.com/Slashx124/mynta-core/kvstore"
	"github.com/Slashx124/mynta-core/llmq"
	"github.com/Slashx124/mynta-core/orderbook"
	"github.com/Slashx124/mynta-core/signing"
)

// Core is the node-facing façade over C3..C9. Every exported method that
// mutates state acquires its components' locks in the fixed order §5
// mandates: C3 (dmn) before C4 (llmq) before C5 (signing) before C6
// (instantsend) before C7 (chainlock) before C9 (orderbook). llmq itself
// holds no mutex (its Quorum values are immutable once built, tracked
// here instead), so the ordering in practice runs dmn -> signing ->
// instantsend -> chainlock -> orderbook.
type Core struct {
	Params chaincfg.Params

	DMN        *dmn.Manager
	Signing    *signing.Manager
	InstantSend *instantsend.Manager
	ChainLock  *chainlock.Manager
	OrderBook  *orderbook.Manager

	quorumsMu sync.Mutex
	quorums   map[uint8][]*llmq.Quorum // active quorums by LLMQ type, most recent last

	blockIndex chainio.BlockIndex
	bus        signing.Broadcaster
}

// Init constructs every manager over the given collaborators, per §9's
// lifecycle contract. selfProTxHash/selfKey may be zero/nil for a node
// that does not operate a masternode itself.
func Init(params chaincfg.Params, store kvstore.Store, blockIndex chainio.BlockIndex, bus signing.Broadcaster, selfProTxHash chainhash.Hash, selfKey *bls.SecretKey) (*Core, error) {
	obook, err := orderbook.NewManager(store)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.TransientStorage, "initializing order book", err)
	}

	signer := signing.NewManager(params, selfProTxHash, selfKey)

	c := &Core{
		Params:      params,
		DMN:         dmn.NewManager(params, store),
		Signing:     signer,
		InstantSend: instantsend.NewManager(signer),
		ChainLock:   chainlock.NewManager(signer, params.ChainLockActivationHeight),
		OrderBook:   obook,
		quorums:     make(map[uint8][]*llmq.Quorum),
		blockIndex:  blockIndex,
		bus:         bus,
	}
	return c, nil
}

// Shutdown releases the underlying store handle, per §9's explicit
// shutdown() step. Managers hold no other closable resources.
func (c *Core) Shutdown(store kvstore.Store) error {
	return store.Close()
}

// candidatesFromSnapshot adapts §4.4's "every eligible masternode in
// L(h)" into llmq.Candidate values, the small bridge llmq's own package
// doc anticipates to keep llmq decoupled from dmn.
func candidatesFromSnapshot(snap *dmn.Snapshot) []llmq.Candidate {
	var out []llmq.Candidate
	snap.ForEach(true, func(r *dmn.Record) {
		out = append(out, llmq.Candidate{ProTxHash: r.ProTxHash, OperatorPubKey: r.OperatorPubKey})
	})
	return out
}

// BuildQuorumAt constructs a quorum of llmqType at height from the
// masternode snapshot taken at height-1 (the same "as of prior block"
// convention payee_for uses), and tracks it as active, keeping the most
// recent SigningActiveCount per type. height is not checked against the
// type's DKG interval: a quorum is built at whatever height is passed.
func (c *Core) BuildQuorumAt(llmqType uint8, height int32, blockHash chainhash.Hash, snap *dmn.Snapshot) (*llmq.Quorum, error) {
	params, ok := chaincfg.LLMQByType[llmqType]
	if !ok {
		return nil, cerrors.New(cerrors.Invariant, "unknown LLMQ type")
	}
	q, err := llmq.BuildQuorum(params, height, blockHash, candidatesFromSnapshot(snap))
	if err != nil {
		return nil, err
	}

	c.quorumsMu.Lock()
	defer c.quorumsMu.Unlock()
	active := append(c.quorums[llmqType], q)
	if len(active) > params.SigningActiveCount {
		active = active[len(active)-params.SigningActiveCount:]
	}
	c.quorums[llmqType] = active
	return q, nil
}

// ActiveQuorums returns the currently tracked active quorums of llmqType,
// most-recent last.
func (c *Core) ActiveQuorums(llmqType uint8) []*llmq.Quorum {
	c.quorumsMu.Lock()
	defer c.quorumsMu.Unlock()
	out := make([]*llmq.Quorum, len(c.quorums[llmqType]))
	copy(out, c.quorums[llmqType])
	return out
}

// SelectQuorumForRequest implements §4.4's quorum-selection-for-a-request
// step, scoped to the active set of llmqType.
func (c *Core) SelectQuorumForRequest(llmqType uint8, requestID chainhash.Hash) (*llmq.Quorum, error) {
	return llmq.SelectForRequest(c.ActiveQuorums(llmqType), requestID)
}

// ApplyBlock drives the block-connect path: C3 folds the typed
// transactions, C6 checks the block against stored InstantSend locks, C9
// reacts to spends of offer funding outputs, and C5 evicts stale signing
// sessions, matching §5's "apply_block(h) completes before apply_block(h+1)
// starts".
func (c *Core) ApplyBlock(prev *dmn.Snapshot, block chainio.Block, height int32, confirmations func(chainio.OutPoint) (int32, int64)) (*dmn.Snapshot, error) {
	next, err := c.DMN.ApplyBlock(prev, block, height, confirmations)
	if err != nil {
		return nil, err
	}
	if err := c.InstantSend.ValidateBlock(block); err != nil {
		return nil, err
	}
	if err := c.OrderBook.ConnectBlock(block, height); err != nil {
		return nil, err
	}
	c.Signing.Cleanup(height)
	return next, nil
}

// UndoBlock is ApplyBlock's inverse, in reverse component order.
func (c *Core) UndoBlock(current *dmn.Snapshot, block chainio.Block, height int32) (*dmn.Snapshot, error) {
	if err := c.OrderBook.DisconnectBlock(block, height); err != nil {
		return nil, err
	}
	return c.DMN.UndoBlock(current, block)
}
