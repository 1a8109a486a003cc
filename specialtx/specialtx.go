// Package specialtx implements §4.2's special-transaction codec: typed
// transactions that carry an extraPayload after the usual inputs/outputs,
// used to register and update masternodes. The encode/decode shape
// follows wire/msgtx.go's reader/writer helper idiom (now in wirefmt),
// the way btcd recognizes and parses its own typed message payloads.
package specialtx

import (
	"bytes"
	"io"

	"github.com/Slashx124/mynta-core/cerrors"
	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/wirefmt"
)

// Type identifies the kind of special transaction payload, per §4.2.
type Type uint16

const (
	ProviderRegister  Type = 1
	UpdateService     Type = 2
	UpdateRegistrar   Type = 3
	UpdateRevoke      Type = 4
)

// MinSpecialTxVersion is the minimum transaction version carrying a
// special-transaction payload, per §4.2 ("version >= 3").
const MinSpecialTxVersion = 3

// KeyID is a 160-bit key identifier (ownerKeyId, votingKeyId), the same
// width as a P2PKH hash.
type KeyID [20]byte

// ServiceAddress is a masternode's advertised network service endpoint.
type ServiceAddress struct {
	IP   [16]byte // IPv4-mapped IPv6 or native IPv6
	Port uint16
}

func writeServiceAddress(w io.Writer, a ServiceAddress) error {
	if _, err := w.Write(a.IP[:]); err != nil {
		return err
	}
	return wirefmt.WriteUint16(w, a.Port)
}

func readServiceAddress(r io.Reader) (ServiceAddress, error) {
	var a ServiceAddress
	if _, err := io.ReadFull(r, a.IP[:]); err != nil {
		return a, err
	}
	port, err := wirefmt.ReadUint16(r)
	a.Port = port
	return a, err
}

func writeKeyID(w io.Writer, id KeyID) error {
	_, err := w.Write(id[:])
	return err
}

func readKeyID(r io.Reader) (KeyID, error) {
	var id KeyID
	_, err := io.ReadFull(r, id[:])
	return id, err
}

const (
	maxScriptLen  = 10000
	maxPayloadLen = 1 << 20
)

// Payload is implemented by every special-transaction payload type.
type Payload interface {
	Type() Type
	// Encode serializes the payload in declaration order, per §6's
	// "ProRegTx payload: as §4.2 in declaration order".
	Encode(w io.Writer) error
	// Decode parses the payload from r, leaving the signature field(s)
	// for the caller to still validate against InputsHash/owner key.
	Decode(r io.Reader) error
	// InputsHashField returns the payload's inputsHash, for the
	// replay-protection check shared by every payload type.
	InputsHashField() chainhash.Hash
}

// SpecialTx is a parsed typed transaction: a recognized version/type pair
// plus its extraPayload bytes.
type SpecialTx struct {
	Version      uint16
	TxType       Type
	ExtraPayload []byte
}

// IsSpecial reports whether a transaction with the given version carries
// a recognized special-transaction type.
func IsSpecial(version uint16, txType uint16) bool {
	if version < MinSpecialTxVersion {
		return false
	}
	switch Type(txType) {
	case ProviderRegister, UpdateService, UpdateRegistrar, UpdateRevoke:
		return true
	default:
		return false
	}
}

// ParsePayload decodes stx.ExtraPayload into its typed Payload, per §4.2.
func ParsePayload(stx SpecialTx) (Payload, error) {
	if !IsSpecial(stx.Version, uint16(stx.TxType)) {
		return nil, cerrors.New(cerrors.ProtocolMismatch, "not a recognized special transaction")
	}

	var p Payload
	switch stx.TxType {
	case ProviderRegister:
		p = &ProRegPayload{}
	case UpdateService:
		p = &ProUpServPayload{}
	case UpdateRegistrar:
		p = &ProUpRegPayload{}
	case UpdateRevoke:
		p = &ProUpRevPayload{}
	default:
		return nil, cerrors.New(cerrors.ProtocolMismatch, "unhandled special transaction type")
	}

	r := bytes.NewReader(stx.ExtraPayload)
	if err := p.Decode(r); err != nil {
		return nil, cerrors.Wrap(cerrors.ProtocolMismatch, "decoding special transaction payload", err)
	}
	if r.Len() != 0 {
		return nil, cerrors.New(cerrors.ProtocolMismatch, "trailing bytes after special transaction payload")
	}
	return p, nil
}

// EncodePayload serializes p back into extraPayload bytes.
func EncodePayload(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ComputeInputsHash computes H(concat(prevout for each input)), the
// replay-protection digest every payload's inputsHash must equal, per
// §4.2.
func ComputeInputsHash(prevOuts []chainio.OutPoint) chainhash.Hash {
	var buf bytes.Buffer
	for _, op := range prevOuts {
		buf.Write(op.Hash[:])
		_ = wirefmt.WriteUint32(&buf, op.Index)
	}
	return chainhash.HashH(buf.Bytes())
}

// ValidateInputsHash checks a payload's inputsHash against the actual
// previous outputs spent by the enclosing transaction.
func ValidateInputsHash(p Payload, prevOuts []chainio.OutPoint) error {
	want := ComputeInputsHash(prevOuts)
	got := p.InputsHashField()
	if !got.IsEqual(&want) {
		return cerrors.New(cerrors.ConsensusReject, "inputsHash mismatch")
	}
	return nil
}
