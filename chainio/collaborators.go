// Package chainio pins down the shapes of the external collaborators §1
// and §6 describe but explicitly exclude from this module's scope: block
// index lookup, the coin view, the network bus, and ECDSA signing. Every
// consensus package in this module depends only on these interfaces, never
// on a concrete daemon, wallet, or P2P implementation.
package chainio

import "github.com/Slashx124/mynta-core/chainhash"

// OutPoint identifies a transaction output: a tx hash plus an output
// index, the same pairing §3.1 uses for collateralOutpoint.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// BlockRef is the minimal identity of a block: its hash and height.
type BlockRef struct {
	Hash   chainhash.Hash
	Height int32
}

// BlockIndex is the collaborator described in §6: "tip() → BlockRef;
// block_at_height(h); ancestor(block, h); last_common_ancestor(a, b)".
type BlockIndex interface {
	Tip() BlockRef
	BlockAtHeight(h int32) (BlockRef, bool)
	Ancestor(b BlockRef, h int32) (BlockRef, bool)
	LastCommonAncestor(a, b BlockRef) (BlockRef, bool)
}

// Coin is the value, script, and spentness of a single UTXO, the shape
// §6's coin view collaborator returns from Get.
type Coin struct {
	Value      int64
	PkScript   []byte
	IsCoinBase bool
	Height     int32
	Spent      bool
}

// CoinView is the collaborator described in §6: "get(outpoint) →
// Option<Coin{...}>".
type CoinView interface {
	Get(op OutPoint) (Coin, bool)
}

// NetworkBus is the collaborator described in §6: "broadcast(topic,
// bytes); relay(topic, bytes)". Inbound delivery is the mirror image,
// modeled as a plain callback registered by the receiving component.
type NetworkBus interface {
	Broadcast(topic string, payload []byte)
	Relay(topic string, payload []byte)
}

// ECDSASigner is the secp256k1 sign/verify collaborator described in §6
// (owner keys, HTLC signatures). Secp256k1Signer, the implementation in
// this package, produces and accepts DER-encoded signatures, not compact
// ones; compact ProRegTx owner signatures are checked by
// specialtx.VerifyOwnerSignature instead.
type ECDSASigner interface {
	Sign(sk [32]byte, hash chainhash.Hash) ([]byte, error)
	Verify(pubKey []byte, hash chainhash.Hash, sig []byte) bool
}

// Tx is the minimal transaction shape every consensus-enforcement
// component folds over: its prevouts (for inputsHash / collateral-spend
// checks), and, when it is a special transaction, its type and payload.
// Full script/witness validation is the base-UTXO-validation collaborator
// excluded by §1's Non-goals; this module only needs enough of a tx to
// drive its own typed-payload and lock bookkeeping.
type Tx struct {
	Hash         chainhash.Hash
	Version      uint16
	TxType       uint16
	ExtraPayload []byte
	Inputs       []OutPoint
	Outputs      []TxOut
	IsCoinBase   bool
}

// TxOut is an output's value and script, the minimum needed to recognize
// a collateral output or a coinbase payee script.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// Block is the minimal block shape apply_block/undo_block fold over: its
// identity plus its transactions in order. Header/PoW fields are the base
// UTXO collaborator's concern, excluded by §1's Non-goals.
type Block struct {
	Hash   chainhash.Hash
	Height int32
	Txs    []Tx
}
