package specialtx

import (
	"io"

	"github.com/Slashx124/mynta-core/chainhash"
	"github.com/Slashx124/mynta-core/wirefmt"
)

// ProUpRegPayload is the UPDATE_REGISTRAR payload of §4.2: replaces any of
// the operator pubkey, voting key, or payout script on an existing
// masternode, signed by the current owner key.
type ProUpRegPayload struct {
	Version           uint16
	ProTxHash         chainhash.Hash
	Mode              uint16 // reserved, always 0 for this spec

	HasNewOperatorPubKey bool
	NewOperatorPubKey    [48]byte
	NewOperatorPoP       [96]byte

	HasNewVotingKeyID bool
	NewVotingKeyID    KeyID

	NewPayoutScript []byte // empty means "do not change"

	InputsHash chainhash.Hash
	Sig        []byte // compact ECDSA signature by the current owner key
}

func (p *ProUpRegPayload) Type() Type { return UpdateRegistrar }

func (p *ProUpRegPayload) InputsHashField() chainhash.Hash { return p.InputsHash }

// SigningHash returns H(payload − sig).
func (p *ProUpRegPayload) SigningHash() (chainhash.Hash, error) {
	unsigned := *p
	unsigned.Sig = nil
	encoded, err := EncodePayload(&unsigned)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.HashH(encoded), nil
}

func (p *ProUpRegPayload) Encode(w io.Writer) error {
	if err := wirefmt.WriteUint16(w, p.Version); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.ProTxHash); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, p.Mode); err != nil {
		return err
	}

	if err := writeOptionalBool(w, p.HasNewOperatorPubKey); err != nil {
		return err
	}
	if p.HasNewOperatorPubKey {
		if _, err := w.Write(p.NewOperatorPubKey[:]); err != nil {
			return err
		}
		if _, err := w.Write(p.NewOperatorPoP[:]); err != nil {
			return err
		}
	}

	if err := writeOptionalBool(w, p.HasNewVotingKeyID); err != nil {
		return err
	}
	if p.HasNewVotingKeyID {
		if err := writeKeyID(w, p.NewVotingKeyID); err != nil {
			return err
		}
	}

	if err := wirefmt.WriteVarBytes(w, p.NewPayoutScript); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, p.InputsHash); err != nil {
		return err
	}
	return wirefmt.WriteVarBytes(w, p.Sig)
}

func (p *ProUpRegPayload) Decode(r io.Reader) error {
	var err error
	if p.Version, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}
	if p.ProTxHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	if p.Mode, err = wirefmt.ReadUint16(r); err != nil {
		return err
	}

	if p.HasNewOperatorPubKey, err = readOptionalBool(r); err != nil {
		return err
	}
	if p.HasNewOperatorPubKey {
		if _, err = io.ReadFull(r, p.NewOperatorPubKey[:]); err != nil {
			return err
		}
		if _, err = io.ReadFull(r, p.NewOperatorPoP[:]); err != nil {
			return err
		}
	}

	if p.HasNewVotingKeyID, err = readOptionalBool(r); err != nil {
		return err
	}
	if p.HasNewVotingKeyID {
		if p.NewVotingKeyID, err = readKeyID(r); err != nil {
			return err
		}
	}

	if p.NewPayoutScript, err = wirefmt.ReadVarBytes(r, maxScriptLen, "newPayoutScript"); err != nil {
		return err
	}
	if p.InputsHash, err = wirefmt.ReadHash(r); err != nil {
		return err
	}
	p.Sig, err = wirefmt.ReadVarBytes(r, maxScriptLen, "sig")
	return err
}

func writeOptionalBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	_, err := w.Write([]byte{b})
	return err
}

func readOptionalBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}
