package swapdb

import (
	"errors"
	"fmt"

	"github.com/lightninglabs/beamswap/swapparams"
)

// errSkipParam is returned for stored parameters of kinds this version does
// not know. They are dropped on load.
var errSkipParam = errors.New("unknown parameter kind")

// paramKey serializes the key of a parameter: kind || slot.
func paramKey(p swapparams.Param) []byte {
	return []byte{byte(p.Kind), byte(p.Slot)}
}

// paramValue serializes the value of a parameter: type || value.
func paramValue(p swapparams.Param) []byte {
	encoded := p.Value.Encode()

	b := make([]byte, 0, 1+len(encoded))
	b = append(b, byte(p.Value.Type()))

	return append(b, encoded...)
}

// decodeParam deserializes a parameter stored with paramKey and paramValue.
func decodeParam(k, v []byte) (swapparams.Param, error) {
	if len(k) != 2 || len(v) == 0 {
		return swapparams.Param{}, fmt.Errorf("malformed parameter "+
			"record %x", k)
	}

	return newParam(k[0], k[1], v[0], v[1:])
}

// newParam validates and decodes the fields of a stored parameter.
func newParam(kind, slot, typ uint8, raw []byte) (swapparams.Param,
	error) {

	p := swapparams.Param{
		Kind: swapparams.Kind(kind),
		Slot: swapparams.Slot(slot),
	}
	if !p.Kind.Known() {
		return p, fmt.Errorf("%w: %d", errSkipParam, kind)
	}
	if !p.Slot.Valid() {
		return p, fmt.Errorf("%w: %d", swapparams.ErrInvalidSlot, slot)
	}
	if swapparams.ValueType(typ) != p.Kind.Type() {
		return p, fmt.Errorf("%w: stored %v as %v",
			swapparams.ErrTypeMismatch, p.Kind,
			swapparams.ValueType(typ))
	}

	value, err := swapparams.DecodeValue(swapparams.ValueType(typ), raw)
	if err != nil {
		return p, fmt.Errorf("%v/%v: %w", p.Kind, p.Slot, err)
	}
	p.Value = value

	return p, nil
}

// appendParam adds a decoded parameter to the list, dropping unknown kinds.
func appendParam(params []swapparams.Param, p swapparams.Param,
	err error) ([]swapparams.Param, error) {

	switch {
	case errors.Is(err, errSkipParam):
		log.Debugf("Skipping stored parameter: %v", err)
		return params, nil

	case err != nil:
		return nil, err
	}

	return append(params, p), nil
}
