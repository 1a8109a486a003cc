package specialtx

import (
	"io"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/wirefmt"
)

// RevocationReason enumerates the §4.2 UPDATE_REVOKE reasons.
type RevocationReason uint16

const (
	RevocationNotSpecified       RevocationReason = 0
	RevocationTerminationOfService RevocationReason = 1
	RevocationCompromisedKeys    RevocationReason = 2
	RevocationChangeOfKeys       RevocationReason = 3
)

// ProUpRevPayload is the UPDATE_REVOKE payload of §4.2: marks a
// masternode ineligible, signed by the current operator key.
type ProUpRevPayload struct {
	Version    uint16
	ProTxHash  chainhash.Hash
	Reason     RevocationReason // 0..3
	InputsHash chainhash.Hash
	Sig        []byte // BLS signature by the current operator key
}

func (p *ProUpRevPayload) Type() Type { return UpdateRevoke }

func (p *ProUpRevPayload) InputsHashField() chainhash.Hash { return p.InputsHash }

// SigningHash returns H(payload − sig).
func (p *ProUpRevPayload) SigningHash() (chainhash.Hash, error) {
	unsigned := *p
	unsigned.Sig = nil
	encoded, err := EncodePayload(&unsigned)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.HashH(encoded), nil
}

func (p *ProUpRevPayload) Encode(w io.Writer) error {
	if err := wirefmt.WriteUint16(w, p.Version); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.ProTxHash); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, uint16(p.Reason)); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.InputsHash); err != nil {
		return err
	}
	return wirefmt.WriteVarBytes(w, p.Sig)
}

func (p *ProUpRevPayload) Decode(r io.Reader) error {
	var err error
	if p.Version, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}
	if p.ProTxHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	reason, err := wirefmt.ReadUint16(r)
	if err != nil {
		return err
	}
	p.Reason = RevocationReason(reason)
	if p.InputsHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	p.Sig, err = wirefmt.ReadVarBytes(r, maxScriptLen, "sig")
	return err
}
