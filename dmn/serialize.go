package dmn

import (
	"bytes"
	"io"

	"github.com/Slashx124/mynta-core/specialtx"
	"github.com/Slashx124/mynta-core/wirefmt"
)

// EncodeSnapshot serializes a snapshot as §4.3's "Caching" note
// describes: "(blockHash, height, totalEverRegistered, records,
// uniqueProps)". The secondary indexes are not stored directly; Decode
// rebuilds them from the record list, since they are a pure function of
// it.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := wirefmt.WriteHash(&buf, s.BlockHash); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteInt32(&buf, s.Height); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteUint64(&buf, s.TotalEverRegistered); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteUint64(&buf, uint64(len(s.byProTxHash))); err != nil {
		return nil, err
	}
	for _, r := range s.byProTxHash {
		if err := encodeRecord(&buf, r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	r := bytes.NewReader(data)
	s := NewGenesisSnapshot()

	var err error
	if s.BlockHash, err = wirefmt.ReadHash(r); err != nil {
		return nil, err
	}
	if s.Height, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	if s.TotalEverRegistered, err = wirefmt.ReadUint64(r); err != nil {
		return nil, err
	}
	count, err := wirefmt.ReadUint64(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < count; i++ {
		rec, err := decodeRecord(r)
		if err != nil {
			return nil, err
		}
		s.insert(rec)
	}
	return s, nil
}

func encodeRecord(w io.Writer, r *Record) error {
	if err := wirefmt.WriteHash(w, r.ProTxHash); err != nil {
		return err
	}
	if err := wirefmt.WriteHash(w, r.CollateralOutpoint.Hash); err != nil {
		return err
	}
	if err := wirefmt.WriteUint32(w, r.CollateralOutpoint.Index); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, r.OperatorRewardBp); err != nil {
		return err
	}
	if err := wirefmt.WriteUint64(w, r.InternalID); err != nil {
		return err
	}
	if err := wirefmt.WriteInt32(w, r.RegisteredHeight); err != nil {
		return err
	}
	if err := wirefmt.WriteInt32(w, r.LastPaidHeight); err != nil {
		return err
	}
	if err := wirefmt.WriteInt32(w, r.PoSeScore); err != nil {
		return err
	}
	if err := wirefmt.WriteInt32(w, r.PoSeRevivedHeight); err != nil {
		return err
	}
	if err := wirefmt.WriteInt32(w, r.PoSeBanHeight); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, uint16(r.RevocationReason)); err != nil {
		return err
	}
	if _, err := w.Write(r.OwnerKeyID[:]); err != nil {
		return err
	}
	if _, err := w.Write(r.OperatorPubKey[:]); err != nil {
		return err
	}
	if _, err := w.Write(r.VotingKeyID[:]); err != nil {
		return err
	}
	if _, err := w.Write(r.ServiceAddr.IP[:]); err != nil {
		return err
	}
	if err := wirefmt.WriteUint16(w, r.ServiceAddr.Port); err != nil {
		return err
	}
	if err := wirefmt.WriteVarBytes(w, r.PayoutScript); err != nil {
		return err
	}
	return wirefmt.WriteVarBytes(w, r.OperatorPayoutScript)
}

func decodeRecord(r io.Reader) (*Record, error) {
	rec := &Record{}
	var err error
	if rec.ProTxHash, err = wirefmt.ReadHash(r); err != nil {
		return nil, err
	}
	if rec.CollateralOutpoint.Hash, err = wirefmt.ReadHash(r); err != nil {
		return nil, err
	}
	if rec.CollateralOutpoint.Index, err = wirefmt.ReadUint32(r); err != nil {
		return nil, err
	}
	if rec.OperatorRewardBp, err = wirefmt.ReadUint16(r); err != nil {
		return nil, err
	}
	if rec.InternalID, err = wirefmt.ReadUint64(r); err != nil {
		return nil, err
	}
	if rec.RegisteredHeight, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	if rec.LastPaidHeight, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	if rec.PoSeScore, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	if rec.PoSeRevivedHeight, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	if rec.PoSeBanHeight, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	reason, err := wirefmt.ReadUint16(r)
	if err != nil {
		return nil, err
	}
	rec.RevocationReason = specialtx.RevocationReason(reason)
	if _, err = io.ReadFull(r, rec.OwnerKeyID[:]); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, rec.OperatorPubKey[:]); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, rec.VotingKeyID[:]); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, rec.ServiceAddr.IP[:]); err != nil {
		return nil, err
	}
	if rec.ServiceAddr.Port, err = wirefmt.ReadUint16(r); err != nil {
		return nil, err
	}
	if rec.PayoutScript, err = wirefmt.ReadVarBytes(r, 1<<20, "payoutScript"); err != nil {
		return nil, err
	}
	rec.OperatorPayoutScript, err = wirefmt.ReadVarBytes(r, 1<<20, "operatorPayoutScript")
	return rec, err
}
