package token

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/lightningnetwork/lnd/tlv"
)

// typeTxID is the record type of the transaction id in every stream.
const typeTxID tlv.Type = 0

// maxRecordLen bounds the length of a single record so that a corrupt
// length prefix can't make us allocate arbitrary amounts of memory.
const maxRecordLen = 1 << 16

// rawRecord is a single type/value pair of a record stream.
type rawRecord struct {
	typ   tlv.Type
	value []byte
}

// encodeRecords serializes the records as a canonical tlv stream ordered by
// type.
func encodeRecords(w io.Writer, records []rawRecord) error {
	tlvRecords := make([]tlv.Record, 0, len(records))
	for i := range records {
		tlvRecords = append(tlvRecords, tlv.MakePrimitiveRecord(
			records[i].typ, &records[i].value,
		))
	}
	tlv.SortRecords(tlvRecords)

	stream, err := tlv.NewStream(tlvRecords...)
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// decodeRecords parses a tlv stream. Unlike a tlv.Stream it hands back every
// record, known or not, so callers can skip types they don't understand
// regardless of their parity. Types must be strictly increasing.
func decodeRecords(b []byte) ([]rawRecord, error) {
	var (
		r       = bytes.NewReader(b)
		buf     [8]byte
		records []rawRecord
		last    uint64
		first   = true
	)

	for r.Len() > 0 {
		typ, err := tlv.ReadVarInt(r, &buf)
		if err != nil {
			return nil, fmt.Errorf("record type: %w", err)
		}

		if !first && typ <= last {
			return nil, fmt.Errorf("record type %d out of order",
				typ)
		}
		first = false
		last = typ

		length, err := tlv.ReadVarInt(r, &buf)
		if err != nil {
			return nil, fmt.Errorf("record %d length: %w", typ, err)
		}

		if length > maxRecordLen || length > uint64(r.Len()) {
			return nil, fmt.Errorf("record %d length %d exceeds "+
				"stream", typ, length)
		}

		value := make([]byte, length)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, err
		}

		records = append(records, rawRecord{
			typ:   tlv.Type(typ),
			value: value,
		})
	}

	return records, nil
}

var errNoTxID = errors.New("missing transaction id")

// splitTxID removes the transaction id record from a decoded stream.
func splitTxID(records []rawRecord) ([]byte, []rawRecord, error) {
	if len(records) == 0 || records[0].typ != typeTxID {
		return nil, nil, errNoTxID
	}

	return records[0].value, records[1:], nil
}

// paramType packs a slot and a kind into the record type of a peer message
// parameter.
func paramType(slot, kind uint8) tlv.Type {
	return tlv.Type(uint64(slot)<<8 | uint64(kind))
}

// splitParamType is the inverse of paramType.
func splitParamType(t tlv.Type) (uint8, uint8, bool) {
	if uint64(t) > math.MaxUint16 {
		return 0, 0, false
	}

	return uint8(uint64(t) >> 8), uint8(t), true
}
