package dmn

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Slashx124/mynta-core/bls"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/kvstore"
	"github.com/Slashx124/mynta-core/specialtx"
)

// testOperatorKey generates a genuine BLS keypair and its proof of
// possession, the registration-time check applyRegister now enforces.
func testOperatorKey(t *testing.T, seed byte) ([48]byte, [96]byte) {
	t.Helper()
	ikm := make([]byte, 32)
	for i := range ikm {
		ikm[i] = seed
	}
	sk, err := bls.KeyGen(ikm)
	// KeyGen rejects a scalar at or above the curve order and leaves the
	// retry to the caller: re-derive ikm by hashing it until one is accepted.
	for i := 0; err != nil && i < 16; i++ {
		next := chainhash.SingleHashH(ikm)
		ikm = next[:]
		sk, err = bls.KeyGen(ikm)
	}
	require.NoError(t, err)
	var pubKey [48]byte
	copy(pubKey[:], sk.PublicKey().Bytes())
	var pop [96]byte
	copy(pop[:], bls.ProofOfPossession(sk).Bytes())
	return pubKey, pop
}

// fixedConfs returns a confirmations callback reporting confs
// confirmations and the given collateral value for every outpoint, per
// the (confirmations, value) shape applyRegister now checks.
func fixedConfs(confs int32, value int64) func(chainio.OutPoint) (int32, int64) {
	return func(chainio.OutPoint) (int32, int64) { return confs, value }
}

// mustHash builds a 32-byte pattern from a repeated hex byte, mirroring
// §8's canned test vectors (0x11...11, 0xaa...aa).
func mustHash(t *testing.T, byteHex string) chainhash.Hash {
	t.Helper()
	b, err := hex.DecodeString(byteHex)
	require.NoError(t, err)
	require.Len(t, b, 1)
	var h chainhash.Hash
	for i := range h {
		h[i] = b[0]
	}
	return h
}

func regTx(t *testing.T, proTxHash chainhash.Hash, ownerSeed byte, payoutScript []byte) (chainio.Tx, chainhash.Hash) {
	t.Helper()
	collateral := chainio.OutPoint{Hash: chainhash.HashH([]byte{ownerSeed}), Index: 0}
	operatorPubKey, operatorPoP := testOperatorKey(t, ownerSeed)
	p := &specialtx.ProRegPayload{
		Version:            1,
		CollateralOutpoint: collateral,
		OwnerKeyID:         specialtx.KeyID{ownerSeed},
		OperatorPubKey:     operatorPubKey,
		OperatorPoP:        operatorPoP,
		OperatorRewardBp:   0,
		PayoutScript:       payoutScript,
	}
	inputs := []chainio.OutPoint{{Hash: chainhash.HashH([]byte{ownerSeed, 'i'}), Index: 0}}
	p.InputsHash = specialtx.ComputeInputsHash(inputs)
	encoded, err := specialtx.EncodePayload(p)
	require.NoError(t, err)

	return chainio.Tx{
		Hash:         proTxHash,
		Version:      specialtx.MinSpecialTxVersion,
		TxType:       uint16(specialtx.ProviderRegister),
		ExtraPayload: encoded,
		Inputs:       inputs,
	}, collateral.Hash
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(chaincfg.RegtestParams, kvstore.NewMemStore())
}

// S1 — Masternode payee determinism, per §8's scenario table.
func TestScenarioS1PayeeDeterminism(t *testing.T) {
	mn1 := mustHash(t, "11")
	mn2 := mustHash(t, "22")
	blockHashA := mustHash(t, "aa")
	blockHashB := mustHash(t, "bb")

	tx1, _ := regTx(t, mn1, 0x01, []byte{0x01})
	tx2, _ := regTx(t, mn2, 0x02, []byte{0x02})

	m := newTestManager(t)
	confs := fixedConfs(100, chaincfg.RegtestParams.CollateralAmount)

	block := chainio.Block{Hash: blockHashA, Height: 1, Txs: []chainio.Tx{tx1, tx2}}
	snap, err := m.ApplyBlock(m.Genesis(), block, 1, confs)
	require.NoError(t, err)
	require.Equal(t, 2, snap.ValidCount())

	hA := chainhash.HashH(append(append([]byte{}, mn1[:]...), blockHashA[:]...))
	hB := chainhash.HashH(append(append([]byte{}, mn2[:]...), blockHashA[:]...))
	require.True(t, bytes.Compare(hA[:], hB[:]) != 0, "test vector must not collide")

	payee, err := PayeeFor(snap, blockHashA)
	require.NoError(t, err)
	require.True(t, payee.IsEqual(&mn1) || payee.IsEqual(&mn2))

	// payee_for is a pure function of (L, blockHash): recomputing with the
	// same inputs must always produce the same winner, regardless of the
	// snapshot's map iteration order.
	for i := 0; i < 5; i++ {
		again, err := PayeeFor(snap, blockHashA)
		require.NoError(t, err)
		require.Equal(t, payee, again)
	}

	// a different blockHash is free to select a different winner, but
	// both peers computing payee_for(blockHashB) must still agree with
	// each other.
	payeeB1, err := PayeeFor(snap, blockHashB)
	require.NoError(t, err)
	payeeB2, err := PayeeFor(snap, blockHashB)
	require.NoError(t, err)
	require.Equal(t, payeeB1, payeeB2)
}

func TestApplyRegisterRejectsDuplicateCollateral(t *testing.T) {
	proTx := mustHash(t, "33")
	tx, _ := regTx(t, proTx, 0x03, []byte{0x03})

	// Second registration attempts to reuse the exact same collateral
	// outpoint by constructing an identical owner seed.
	dup := mustHash(t, "44")
	txDup, _ := regTx(t, dup, 0x03, []byte{0x04})

	m := newTestManager(t)
	confs := fixedConfs(100, chaincfg.RegtestParams.CollateralAmount)
	block := chainio.Block{Hash: mustHash(t, "aa"), Height: 1, Txs: []chainio.Tx{tx, txDup}}

	_, err := m.ApplyBlock(m.Genesis(), block, 1, confs)
	require.Error(t, err)
}

func TestApplyRegisterRejectsInsufficientConfirmations(t *testing.T) {
	proTx := mustHash(t, "55")
	tx, _ := regTx(t, proTx, 0x05, []byte{0x05})

	m := newTestManager(t)
	confs := fixedConfs(0, chaincfg.RegtestParams.CollateralAmount)
	block := chainio.Block{Hash: mustHash(t, "aa"), Height: 1, Txs: []chainio.Tx{tx}}

	_, err := m.ApplyBlock(m.Genesis(), block, 1, confs)
	require.Error(t, err)
}

func TestApplyRegisterRejectsWrongCollateralAmount(t *testing.T) {
	proTx := mustHash(t, "5a")
	tx, _ := regTx(t, proTx, 0x5a, []byte{0x5a})

	m := newTestManager(t)
	confs := fixedConfs(100, chaincfg.RegtestParams.CollateralAmount-1)
	block := chainio.Block{Hash: mustHash(t, "aa"), Height: 1, Txs: []chainio.Tx{tx}}

	_, err := m.ApplyBlock(m.Genesis(), block, 1, confs)
	require.Error(t, err)
}

func TestApplyRegisterRejectsInvalidProofOfPossession(t *testing.T) {
	proTx := mustHash(t, "5b")
	tx, _ := regTx(t, proTx, 0x5b, []byte{0x5b})

	// corrupt the operator pubkey bytes embedded in the already-encoded
	// payload so it no longer matches the proof of possession that was
	// generated for it.
	payload, err := specialtx.ParsePayload(specialtx.SpecialTx{
		Version: tx.Version, TxType: specialtx.Type(tx.TxType), ExtraPayload: tx.ExtraPayload,
	})
	require.NoError(t, err)
	reg := payload.(*specialtx.ProRegPayload)
	reg.OperatorPubKey[0] ^= 0xFF
	reg.InputsHash = specialtx.ComputeInputsHash(tx.Inputs)
	encoded, err := specialtx.EncodePayload(reg)
	require.NoError(t, err)
	tx.ExtraPayload = encoded

	m := newTestManager(t)
	confs := fixedConfs(100, chaincfg.RegtestParams.CollateralAmount)
	block := chainio.Block{Hash: mustHash(t, "aa"), Height: 1, Txs: []chainio.Tx{tx}}

	_, err = m.ApplyBlock(m.Genesis(), block, 1, confs)
	require.Error(t, err)
}

// S5 — snapshot undo restores the exact prior record set.
func TestScenarioS5UndoBlockRestoresPriorSnapshot(t *testing.T) {
	proTx := mustHash(t, "66")
	tx, _ := regTx(t, proTx, 0x06, []byte{0x06})

	m := newTestManager(t)
	confs := fixedConfs(100, chaincfg.RegtestParams.CollateralAmount)

	genesis := m.Genesis()
	block := chainio.Block{Hash: mustHash(t, "aa"), Height: 1, Txs: []chainio.Tx{tx}}

	next, err := m.ApplyBlock(genesis, block, 1, confs)
	require.NoError(t, err)
	require.Equal(t, 1, next.ValidCount())

	undone, err := m.UndoBlock(next, block)
	require.NoError(t, err)
	require.Equal(t, 0, undone.ValidCount())
	_, ok := undone.Get(proTx)
	require.False(t, ok)

	// the genesis snapshot itself must be untouched by the fold (value
	// semantics / structural sharing, not in-place mutation).
	require.Equal(t, 0, genesis.ValidCount())
}

func TestBumpPoSeBansAtThreshold(t *testing.T) {
	proTx := mustHash(t, "77")
	tx, _ := regTx(t, proTx, 0x07, []byte{0x07})

	m := newTestManager(t)
	confs := fixedConfs(100, chaincfg.RegtestParams.CollateralAmount)
	block := chainio.Block{Hash: mustHash(t, "aa"), Height: 1, Txs: []chainio.Tx{tx}}

	snap, err := m.ApplyBlock(m.Genesis(), block, 1, confs)
	require.NoError(t, err)

	require.NoError(t, m.BumpPoSe(snap, proTx, 66, 2))
	rec, _ := snap.Get(proTx)
	require.True(t, rec.Eligible())

	require.NoError(t, m.BumpPoSe(snap, proTx, 66, 3))
	rec, _ = snap.Get(proTx)
	require.False(t, rec.Eligible())
	require.Equal(t, int32(3), rec.PoSeBanHeight)

	require.NoError(t, m.ReviveOnSign(snap, proTx, 4))
	rec, _ = snap.Get(proTx)
	require.True(t, rec.Eligible())
	require.Equal(t, int32(0), rec.PoSeScore)
}
