package specialtx

import (
	"io"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/wirefmt"
)

// ProRegPayload is the PROVIDER_REGISTER payload of §4.2: registers a new
// masternode bound to a collateral outpoint, signed by the owner key.
type ProRegPayload struct {
	Version           uint16
	Mode              uint16 // reserved, always 0 for this spec
	CollateralOutpoint chainio.OutPoint
	Addr              ServiceAddress
	OwnerKeyID        KeyID
	OperatorPubKey    [48]byte // compressed BLS G1
	OperatorPoP       [96]byte // compressed BLS G2 proof of possession over OperatorPubKey
	VotingKeyID       KeyID
	OperatorRewardBp  uint16 // 0..10000 basis points
	PayoutScript      []byte
	InputsHash        chainhash.Hash
	Sig               []byte // compact ECDSA signature by the owner key
}

func (p *ProRegPayload) Type() Type { return ProviderRegister }

func (p *ProRegPayload) InputsHashField() chainhash.Hash { return p.InputsHash }

// SigningHash returns H(payload − sig), the digest the owner key signs
// over, per §4.2 ("sig is a compact ECDSA signature by the owner key over
// H(payload − sig)").
func (p *ProRegPayload) SigningHash() (chainhash.Hash, error) {
	unsigned := *p
	unsigned.Sig = nil
	encoded, err := EncodePayload(&unsigned)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.HashH(encoded), nil
}

func (p *ProRegPayload) Encode(w io.Writer) error {
	if err := wirefmt.WriteUint16(w, p.Version); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, p.Mode); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.CollateralOutpoint.Hash); err != nil {
		return err
	}
	if err := wirefmt.WriteUint32(w, p.CollateralOutpoint.Index); err != nil {
		return err
	}
	if err := writeServiceAddress(w, p.Addr); err != nil {
		return err
	}
	if err := writeKeyID(w, p.OwnerKeyID); err != nil {
		return err
	}
	if _, err := w.Write(p.OperatorPubKey[:]); err != nil {
		return err
	}
	if _, err := w.Write(p.OperatorPoP[:]); err != nil {
		return err
	}
	if err := writeKeyID(w, p.VotingKeyID); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, p.OperatorRewardBp); err != nil {
		return err
	}
	if err := wirefmt.WriteVarBytes(w, p.PayoutScript); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.InputsHash); err != nil {
		return err
	}
	return wirefmt.WriteVarBytes(w, p.Sig)
}

func (p *ProRegPayload) Decode(r io.Reader) error {
	var err error
	if p.Version, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}
	if p.Mode, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}
	if p.CollateralOutpoint.Hash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	if p.CollateralOutpoint.Index, err = wirefmt.ReadUint32(r); err != nil {
		return err
	}
	if p.Addr, err = readServiceAddress(r); err != nil {
		return err
	}
	if p.OwnerKeyID, err = readKeyID(r); err != nil {
		return err
	}
	if _, err = io.ReadFull(r, p.OperatorPubKey[:]); err != nil {
		return err
	}
	if _, err = io.ReadFull(r, p.OperatorPoP[:]); err != nil {
		return err
	}
	if p.VotingKeyID, err = readKeyID(r); err != nil {
		return err
	}
	if p.OperatorRewardBp, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}
	if p.PayoutScript, err = wirefmt.ReadVarBytes(r, maxScriptLen, "payoutScript"); err != nil {
		return err
	}
	if p.InputsHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	p.Sig, err = wirefmt.ReadVarBytes(r, maxScriptLen, "sig")
	return err
}
