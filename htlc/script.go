// Package htlc implements §4.8's hash-time-locked contract scripts and
// flows (C8): redeem-script construction, claim/refund transaction
// witnesses, preimage extraction, and output validation. The script
// builder is adapted from btcsuite-btcd's scriptbuilder.go — same
// AddOp/AddData/AddInt64 accumulator, trimmed to the handful of opcodes
// an HTLC redeem script actually needs.
package htlc

import (
	"encoding/binary"

	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chaincfg"
	"github.com/Slashx124/mynta-core/chainhash"
)

// Opcodes used by the HTLC redeem script, numbered per btcsuite-btcd's
// opcode.go. OP_CHECKLOCKTIMEVERIFY repurposes the OP_NOP2 slot per
// BIP65, the same reassignment every CLTV-capable UTXO chain made.
const (
	opIF                  = 0x63
	opELSE                = 0x67
	opENDIF               = 0x68
	opDROP                = 0x75
	opDUP                 = 0x76
	opEQUALbyte           = 0x87
	opEQUALVERIFY         = 0x88
	opHASH160             = 0xa9
	opCHECKSIG            = 0xac
	opCHECKLOCKTIMEVERIFY = 0xb1
	opSHA256              = 0xa8
	opPUSHDATA1           = 0x4c
	opPUSHDATA2           = 0x4d
	opPUSHDATA4           = 0x4e
	opDATA1               = 0x01
	op1                   = 0x51
	op0                   = 0x00
)

// scriptBuilder is a minimal AddOp/AddData/AddInt64 accumulator, the
// same shape as btcd's ScriptBuilder.
type scriptBuilder struct {
	b []byte
}

func (s *scriptBuilder) addOp(op byte) *scriptBuilder {
	s.b = append(s.b, op)
	return s
}

func (s *scriptBuilder) addData(data []byte) *scriptBuilder {
	n := len(data)
	switch {
	case n == 0:
		s.b = append(s.b, op0)
		return s
	case n < opPUSHDATA1:
		s.b = append(s.b, byte((opDATA1-1)+n))
	case n <= 0xff:
		s.b = append(s.b, opPUSHDATA1, byte(n))
	case n <= 0xffff:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(n))
		s.b = append(s.b, opPUSHDATA2)
		s.b = append(s.b, buf[:]...)
	default:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(n))
		s.b = append(s.b, opPUSHDATA4)
		s.b = append(s.b, buf[:]...)
	}
	s.b = append(s.b, data...)
	return s
}

func (s *scriptBuilder) addInt64(v int64) *scriptBuilder {
	if v == 0 {
		s.b = append(s.b, op0)
		return s
	}
	if v >= 1 && v <= 16 {
		s.b = append(s.b, byte((op1-1)+v))
		return s
	}
	return s.addData(scriptNum(v))
}

// scriptNum encodes v the same little-endian, sign-magnitude way Bitcoin
// script numbers do.
func scriptNum(v int64) []byte {
	if v == 0 {
		return nil
	}
	negative := v < 0
	absVal := v
	if negative {
		absVal = -v
	}
	var out []byte
	for absVal > 0 {
		out = append(out, byte(absVal&0xff))
		absVal >>= 8
	}
	if out[len(out)-1]&0x80 != 0 {
		if negative {
			out = append(out, 0x80)
		} else {
			out = append(out, 0x00)
		}
	} else if negative {
		out[len(out)-1] |= 0x80
	}
	return out
}

// pubKeyHashLen is the width of a HASH160 (RIPEMD160(SHA256)) public-key
// hash. CreateHTLCScript takes already-computed receiver/sender key hashes
// (the ECDSA collaborator of §6 owns key/address derivation);
// VerifyWitnessSignature computes one with chainhash.Hash160.
const pubKeyHashLen = 20

// CreateHTLCScript implements §3.7/§4.8's redeem-script layout:
//
//	OP_IF
//	    OP_SHA256 <hashLock> OP_EQUALVERIFY
//	    OP_DUP OP_HASH160 <receiverPKH> OP_EQUALVERIFY OP_CHECKSIG
//	OP_ELSE
//	    <timeoutHeight> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	    OP_DUP OP_HASH160 <senderPKH> OP_EQUALVERIFY OP_CHECKSIG
//	OP_ENDIF
func CreateHTLCScript(hashLock [32]byte, receiverPKH, senderPKH [pubKeyHashLen]byte, absoluteTimeout int64) ([]byte, error) {
	if err := validateTimeout(absoluteTimeout); err != nil {
		return nil, err
	}
	b := &scriptBuilder{}
	b.addOp(opIF).
		addOp(opSHA256).addData(hashLock[:]).addOp(opEQUALVERIFY).
		addOp(opDUP).addOp(opHASH160).addData(receiverPKH[:]).addOp(opEQUALVERIFY).addOp(opCHECKSIG).
		addOp(opELSE).
		addInt64(absoluteTimeout).addOp(opCHECKLOCKTIMEVERIFY).addOp(opDROP).
		addOp(opDUP).addOp(opHASH160).addData(senderPKH[:]).addOp(opEQUALVERIFY).addOp(opCHECKSIG).
		addOp(opENDIF)
	return b.b, nil
}

func validateTimeout(absoluteTimeout int64) error {
	if absoluteTimeout <= 0 {
		return cerrors.New(cerrors.ConsensusReject, "HTLC absolute timeout must be a positive block height")
	}
	return nil
}

// ValidateTimeoutSpan implements §4.8's policy bound "10 <= timeoutBlocks
// <= 5040", checked against the creation height.
func ValidateTimeoutSpan(params chaincfg.Params, createdHeight, absoluteTimeout int32) error {
	span := absoluteTimeout - createdHeight
	if span < params.HTLCMinTimeoutBlocks || span > params.HTLCMaxTimeoutBlocks {
		return cerrors.New(cerrors.ConsensusReject, "HTLC timeout span outside policy bounds")
	}
	return nil
}

// ScriptHash160 computes the P2SH address payload: RIPEMD160(SHA256(
// redeemScript)), the same calcHash160 double-hash the teacher's opcode
// interpreter uses for address derivation.
func ScriptHash160(redeemScript []byte) [20]byte {
	var out [20]byte
	copy(out[:], chainhash.Hash160(redeemScript))
	return out
}

// IsHashLockValid checks §4.8's "hashLock must be 32 bytes" rule; since
// hashLock is already a fixed-size array in this package's API the check
// is really about the caller's raw-bytes entry point.
func IsHashLockValid(hashLock []byte) bool {
	return len(hashLock) == 32
}

// opTrueByte and opFalseByte identify the witness's final opcode, per
// §4.8's claim/refund witnesses.
const (
	opTrueByte  = op1
	opFalseByte = op0
)
