package specialtx

import (
	"io"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/wirefmt"
)

// ProUpServPayload is the UPDATE_SERVICE payload of §4.2: updates the
// service address (and optionally the operator payout script) of an
// existing masternode, signed by the current operator key.
type ProUpServPayload struct {
	Version               uint16
	ProTxHash             chainhash.Hash
	Addr                  ServiceAddress
	OperatorPayoutScript  []byte // optional; empty means "no operator payout"
	InputsHash            chainhash.Hash
	Sig                   []byte // BLS signature by the current operator key
}

func (p *ProUpServPayload) Type() Type { return UpdateService }

func (p *ProUpServPayload) InputsHashField() chainhash.Hash { return p.InputsHash }

// SigningHash returns H(payload − sig), the digest the operator key
// signs over.
func (p *ProUpServPayload) SigningHash() (chainhash.Hash, error) {
	unsigned := *p
	unsigned.Sig = nil
	encoded, err := EncodePayload(&unsigned)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.HashH(encoded), nil
}

func (p *ProUpServPayload) Encode(w io.Writer) error {
	if err := wirefmt.WriteUint16(w, p.Version); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.ProTxHash); err != nil {
		return err
	}
	if err := writeServiceAddress(w, p.Addr); err != nil {
		return err
	}
	if err := wirefmt.WriteVarBytes(w, p.OperatorPayoutScript); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.InputsHash); err != nil {
		return err
	}
	return wirefmt.WriteVarBytes(w, p.Sig)
}

func (p *ProUpServPayload) Decode(r io.Reader) error {
	var err error
	if p.Version, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}
	if p.ProTxHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	if p.Addr, err = readServiceAddress(r); err != nil {
		return err
	}
	if p.OperatorPayoutScript, err = wirefmt.ReadVarBytes(r, maxScriptLen, "operatorPayoutScript"); err != nil {
		return err
	}
	if p.InputsHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	p.Sig, err = wirefmt.ReadVarBytes(r, maxPayloadLen, "sig")
	return err
}
