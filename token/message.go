package token

import (
	"bytes"
	"fmt"

	"github.com/lightninglabs/beamswap/swapparams"
)

// Message is a list of swap parameters sent from one wallet of a swap to the
// other.
type Message struct {
	// ID is the swap the parameters belong to.
	ID swapparams.TxID

	// Params are the parameters, in any slot.
	Params []swapparams.Param
}

// EncodeMessage serializes a peer message with the token record codec. Each
// parameter is keyed by its slot and kind.
func EncodeMessage(m *Message) ([]byte, error) {
	records := []rawRecord{{typ: typeTxID, value: m.ID[:]}}
	seen := make(map[uint64]struct{}, len(m.Params))

	for _, p := range m.Params {
		if p.Value.Type() != p.Kind.Type() {
			return nil, fmt.Errorf("%w: %v", swapparams.ErrTypeMismatch,
				p.Kind)
		}
		if !p.Slot.Valid() {
			return nil, fmt.Errorf("%w: %v", swapparams.ErrInvalidSlot,
				p.Slot)
		}

		typ := paramType(uint8(p.Slot), uint8(p.Kind))
		if _, ok := seen[uint64(typ)]; ok {
			return nil, fmt.Errorf("duplicate parameter %v/%v",
				p.Kind, p.Slot)
		}
		seen[uint64(typ)] = struct{}{}

		records = append(records, rawRecord{
			typ:   typ,
			value: p.Value.Encode(),
		})
	}

	var buf bytes.Buffer
	buf.WriteByte(Version)
	if err := encodeRecords(&buf, records); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeMessage parses a peer message. Parameters of unknown kinds or slots
// are dropped.
func DecodeMessage(b []byte) (*Message, error) {
	if len(b) == 0 {
		return nil, parseErr("empty message")
	}
	if b[0] != Version {
		return nil, parseErr("unsupported version %d", b[0])
	}

	records, err := decodeRecords(b[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rawID, records, err := splitTxID(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	id, err := swapparams.TxIDFromBytes(rawID)
	if err != nil {
		return nil, parseErr("transaction id: %v", err)
	}

	m := &Message{ID: id}
	for _, r := range records {
		s, k, ok := splitParamType(r.typ)
		if !ok {
			continue
		}

		kind, slot := swapparams.Kind(k), swapparams.Slot(s)
		if !kind.Known() || !slot.Valid() {
			continue
		}

		v, err := swapparams.DecodeValue(kind.Type(), r.value)
		if err != nil {
			return nil, parseErr("%v/%v: %v", kind, slot, err)
		}

		m.Params = append(m.Params, swapparams.Param{
			Kind:  kind,
			Slot:  slot,
			Value: v,
		})
	}

	return m, nil
}
