package orderbook

import (
	"bytes"
	"io"

	"github.com/Slashx124/mynta-core/chainio"
	"github.com/Slashx124/mynta-core/wirefmt"
)

const maxAssetLen = 256

// EncodeOffer serializes an Offer for the O:<offerHash> table.
func EncodeOffer(o *Offer) ([]byte, error) {
	var buf bytes.Buffer
	if err := wirefmt.WriteHash(&buf, o.OfferHash); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteVarBytes(&buf, []byte(o.MakerAsset)); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteInt64(&buf, o.MakerAmount); err != nil {
		return nil, err
	}
	if _, err := buf.Write(o.MakerAddress[:]); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteVarBytes(&buf, []byte(o.TakerAsset)); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteInt64(&buf, o.TakerAmount); err != nil {
		return nil, err
	}
	if _, err := buf.Write(o.HashLock[:]); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteInt32(&buf, o.TimeoutBlocks); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteInt32(&buf, o.CreatedHeight); err != nil {
		return nil, err
	}
	var flags byte
	if o.IsActive {
		flags |= 0x01
	}
	if o.IsFilled {
		flags |= 0x02
	}
	if err := buf.WriteByte(flags); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteHash(&buf, o.FillTxHash); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteHash(&buf, o.FundingOutpoint.Hash); err != nil {
		return nil, err
	}
	if err := wirefmt.WriteUint32(&buf, o.FundingOutpoint.Index); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeOffer is EncodeOffer's inverse.
func DecodeOffer(data []byte) (*Offer, error) {
	r := bytes.NewReader(data)
	o := &Offer{}
	var err error
	if o.OfferHash, err = wirefmt.ReadHash(r); err != nil {
		return nil, err
	}
	makerAsset, err := wirefmt.ReadVarBytes(r, maxAssetLen, "makerAsset")
	if err != nil {
		return nil, err
	}
	o.MakerAsset = string(makerAsset)
	if o.MakerAmount, err = wirefmt.ReadInt64(r); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, o.MakerAddress[:]); err != nil {
		return nil, err
	}
	takerAsset, err := wirefmt.ReadVarBytes(r, maxAssetLen, "takerAsset")
	if err != nil {
		return nil, err
	}
	o.TakerAsset = string(takerAsset)
	if o.TakerAmount, err = wirefmt.ReadInt64(r); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, o.HashLock[:]); err != nil {
		return nil, err
	}
	if o.TimeoutBlocks, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	if o.CreatedHeight, err = wirefmt.ReadInt32(r); err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	o.IsActive = flags&0x01 != 0
	o.IsFilled = flags&0x02 != 0
	if o.FillTxHash, err = wirefmt.ReadHash(r); err != nil {
		return nil, err
	}
	var op chainio.OutPoint
	if op.Hash, err = wirefmt.ReadHash(r); err != nil {
		return nil, err
	}
	if op.Index, err = wirefmt.ReadUint32(r); err != nil {
		return nil, err
	}
	o.FundingOutpoint = op
	return o, nil
}
