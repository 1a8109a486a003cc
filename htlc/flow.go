package htlc

import (
	"bytes"
	"crypto/sha256"

	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
)

// RefundSequence is the nSequence value §4.8 requires on a refund input
// so CLTV's "nSequence < 0xFFFFFFFF" precondition holds.
const RefundSequence = 0xFFFFFFFE

// ClaimWitness builds §4.8's claim witness: <sig> <pubkey> <preimage>
// OP_TRUE, as a sequence of scriptSig data pushes (the final OP_TRUE is
// itself a push of the "true" small-integer opcode).
func ClaimWitness(sig, pubKey, preimage []byte) []byte {
	b := &scriptBuilder{}
	b.addData(sig).addData(pubKey).addData(preimage).addOp(opTrueByte)
	return b.b
}

// RefundWitness builds §4.8's refund witness: <sig> <pubkey> OP_FALSE.
func RefundWitness(sig, pubKey []byte) []byte {
	b := &scriptBuilder{}
	b.addData(sig).addData(pubKey).addOp(opFalseByte)
	return b.b
}

// ExtractPreimage implements §4.8's "parse scriptSig as a sequence of
// data pushes; the third push is the preimage when the final opcode is
// OP_TRUE". Returns an error for a refund witness or a malformed one.
func ExtractPreimage(scriptSig []byte) ([]byte, error) {
	pushes, final, err := parseDataPushes(scriptSig)
	if err != nil {
		return nil, err
	}
	if final != opTrueByte {
		return nil, cerrors.New(cerrors.ConsensusReject, "scriptSig is not a claim witness")
	}
	if len(pushes) != 3 {
		return nil, cerrors.New(cerrors.ConsensusReject, "claim witness must have exactly three data pushes")
	}
	return pushes[2], nil
}

// parseDataPushes walks a sequence of canonical data-push opcodes
// followed by one trailing non-push opcode (OP_TRUE/OP_FALSE here),
// mirroring the push-decoding half of the teacher's opcode interpreter
// without pulling in the full script VM.
func parseDataPushes(script []byte) (pushes [][]byte, final byte, err error) {
	i := 0
	for i < len(script) {
		op := script[i]
		switch {
		case op == op0 && i != len(script)-1:
			pushes = append(pushes, nil)
			i++
		case op >= opDATA1 && op < opPUSHDATA1:
			n := int(op)
			if i+1+n > len(script) {
				return nil, 0, cerrors.New(cerrors.ConsensusReject, "truncated data push in scriptSig")
			}
			pushes = append(pushes, script[i+1:i+1+n])
			i += 1 + n
		case op == opPUSHDATA1:
			if i+2 > len(script) {
				return nil, 0, cerrors.New(cerrors.ConsensusReject, "truncated OP_PUSHDATA1 in scriptSig")
			}
			n := int(script[i+1])
			if i+2+n > len(script) {
				return nil, 0, cerrors.New(cerrors.ConsensusReject, "truncated OP_PUSHDATA1 payload in scriptSig")
			}
			pushes = append(pushes, script[i+2:i+2+n])
			i += 2 + n
		case op == opTrueByte || op == opFalseByte:
			if i != len(script)-1 {
				return nil, 0, cerrors.New(cerrors.ConsensusReject, "trailing opcode must be the final byte of scriptSig")
			}
			return pushes, op, nil
		default:
			return nil, 0, cerrors.New(cerrors.ConsensusReject, "unexpected opcode in HTLC witness")
		}
	}
	return nil, 0, cerrors.New(cerrors.ConsensusReject, "scriptSig missing its trailing OP_TRUE/OP_FALSE opcode")
}

// ValidateOutput implements §4.8's "validate HTLC output" rule: P2SH
// form, exact amount, and — when redeemScript is known — exact script
// bytes via its scriptHash160.
func ValidateOutput(out chainio.TxOut, expectedAmount int64, redeemScript []byte) error {
	if out.Value != expectedAmount {
		return cerrors.New(cerrors.ConsensusReject, "HTLC output amount mismatch")
	}
	if !isP2SH(out.PkScript) {
		return cerrors.New(cerrors.ConsensusReject, "HTLC output is not P2SH")
	}
	if redeemScript == nil {
		return nil
	}
	want := ScriptHash160(redeemScript)
	got := p2shHash(out.PkScript)
	if got == nil || !bytes.Equal(got, want[:]) {
		return cerrors.New(cerrors.ConsensusReject, "HTLC output script hash does not match redeem script")
	}
	return nil
}

// isP2SH recognizes OP_HASH160 <20 bytes> OP_EQUAL.
func isP2SH(pkScript []byte) bool {
	return len(pkScript) == 23 &&
		pkScript[0] == opHASH160 &&
		pkScript[1] == byte((opDATA1-1)+20) &&
		pkScript[22] == opEQUALbyte
}

func p2shHash(pkScript []byte) []byte {
	if !isP2SH(pkScript) {
		return nil
	}
	return pkScript[2:22]
}

// HashPreimage computes §3.7's hashLock = SHA256(preimage) check value.
func HashPreimage(preimage []byte) [32]byte {
	return sha256.Sum256(preimage)
}

// VerifyWitnessSignature checks a claim or refund witness's <sig><pubkey>
// pair against the OP_DUP OP_HASH160 <pkh> branch the redeem script
// enforces: hash160(pubkey) must equal pkh, and signer.Verify must accept
// sig over sigHash for pubkey. This stands in for the two OP_CHECKSIG
// branches a full script VM would execute, scoped to just the HTLC
// redeem script's shape.
func VerifyWitnessSignature(signer chainio.ECDSASigner, sig, pubKey []byte, pkh [pubKeyHashLen]byte, sigHash chainhash.Hash) error {
	got := chainhash.Hash160(pubKey)
	if len(got) != pubKeyHashLen || !bytes.Equal(got, pkh[:]) {
		return cerrors.New(cerrors.ConsensusReject, "witness public key does not match redeem script's key hash")
	}
	if !signer.Verify(pubKey, sigHash, sig) {
		return cerrors.New(cerrors.CryptoFailure, "witness signature verification failed")
	}
	return nil
}
