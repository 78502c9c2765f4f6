package token

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/mr-tron/base58"
)

const (
	// Version is the only token format version we produce and accept.
	Version byte = 1

	checksumLen = 4
)

var (
	// ErrParse is returned for any token that can't be decoded. The
	// wrapped error carries the details.
	ErrParse = errors.New("unable to parse token")

	// ErrIncompleteOffer is returned when a store lacks a field the
	// counterparty needs to materialize the swap.
	ErrIncompleteOffer = errors.New("incomplete swap offer")

	// ErrRoleMismatch is returned when the store doesn't belong to the
	// role the token is emitted for.
	ErrRoleMismatch = errors.New("store doesn't match emitter role")
)

// copiedKinds are the default slot parameters copied verbatim into a token.
var copiedKinds = []swapparams.Kind{
	swapparams.KindMinHeight,
	swapparams.KindPeerResponseTime,
	swapparams.KindCreateTime,
	swapparams.KindLifetime,
	swapparams.KindAmount,
	swapparams.KindSwapAmount,
	swapparams.KindSwapCoin,
}

// requiredKinds must be present in a store for an offer to be emitted.
var requiredKinds = []swapparams.Kind{
	swapparams.KindIsInitiator,
	swapparams.KindIsSender,
	swapparams.KindIsBeamSide,
	swapparams.KindAmount,
	swapparams.KindSwapAmount,
	swapparams.KindSwapCoin,
	swapparams.KindMinHeight,
	swapparams.KindLifetime,
	swapparams.KindPeerResponseTime,
}

func parseErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %v", ErrParse, fmt.Sprintf(format, args...))
}

// Encode projects the offer fields of a swap into a token for the
// counterparty. Sender and BEAM side flags are inverted so the receiver
// materializes the other side of the swap, the receiver's peer id is the
// emitter's own id and the token always marks its holder as the initiator of
// the negotiation.
func Encode(s *swapparams.Store, role swap.Role) (string, error) {
	for _, kind := range requiredKinds {
		if !s.Has(kind, swapparams.SlotDefault) {
			return "", fmt.Errorf("%w: %v missing",
				ErrIncompleteOffer, kind)
		}
	}

	isInitiator, _, err := s.Bool(
		swapparams.KindIsInitiator, swapparams.SlotDefault,
	)
	if err != nil {
		return "", err
	}

	switch {
	case role == swap.RoleInitiator && !isInitiator,
		role == swap.RoleAcceptor && isInitiator:

		return "", fmt.Errorf("%w: %v", ErrRoleMismatch, role)
	}

	isSender, _, err := s.Bool(
		swapparams.KindIsSender, swapparams.SlotDefault,
	)
	if err != nil {
		return "", err
	}

	isBeamSide, _, err := s.Bool(
		swapparams.KindIsBeamSide, swapparams.SlotDefault,
	)
	if err != nil {
		return "", err
	}

	id := s.ID()
	records := []rawRecord{{typ: typeTxID, value: id[:]}}

	add := func(kind swapparams.Kind, v swapparams.Value) {
		records = append(records, rawRecord{
			typ:   paramType(0, uint8(kind)),
			value: v.Encode(),
		})
	}

	peerID, ok := s.Get(swapparams.KindMyID, swapparams.SlotDefault)
	if !ok {
		peerID, ok = s.Get(
			swapparams.KindPeerID, swapparams.SlotDefault,
		)
	}
	if ok {
		add(swapparams.KindPeerID, peerID)
	}

	add(swapparams.KindIsInitiator, swapparams.BoolValue(true))
	add(swapparams.KindIsSender, swapparams.BoolValue(!isSender))
	add(swapparams.KindIsBeamSide, swapparams.BoolValue(!isBeamSide))
	add(swapparams.KindTransactionType, swapparams.EnumValue(
		uint64(swap.TypeAtomicSwap),
	))

	for _, kind := range copiedKinds {
		v, ok := s.Get(kind, swapparams.SlotDefault)
		if !ok {
			continue
		}
		add(kind, v)
	}

	var buf bytes.Buffer
	buf.WriteByte(Version)
	if err := encodeRecords(&buf, records); err != nil {
		return "", err
	}

	sum := chainhash.DoubleHashB(buf.Bytes())
	buf.Write(sum[:checksumLen])

	return base58.Encode(buf.Bytes()), nil
}

// Decode parses a token into a fresh store holding exactly the fields the
// token carries. Unknown fields are ignored.
func Decode(token string) (*swapparams.Store, error) {
	raw, err := base58.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if len(raw) < 1+checksumLen {
		return nil, parseErr("token too short")
	}

	payload := raw[:len(raw)-checksumLen]
	sum := chainhash.DoubleHashB(payload)
	if !bytes.Equal(sum[:checksumLen], raw[len(raw)-checksumLen:]) {
		return nil, parseErr("checksum mismatch")
	}

	if payload[0] != Version {
		return nil, parseErr("unsupported version %d", payload[0])
	}

	records, err := decodeRecords(payload[1:])
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

	s := swapparams.NewStore(id)
	for _, r := range records {
		slot, k, ok := splitParamType(r.typ)
		if !ok || slot != 0 {
			continue
		}

		kind := swapparams.Kind(k)
		if !kind.Known() {
			continue
		}

		v, err := swapparams.DecodeValue(kind.Type(), r.value)
		if err != nil {
			return nil, parseErr("%v: %v", kind, err)
		}

		if err := s.Set(kind, swapparams.SlotDefault, v); err != nil {
			return nil, parseErr("%v: %v", kind, err)
		}
	}

	return s, nil
}

// PeekTxID returns the transaction id of a token without materializing its
// parameters.
func PeekTxID(token string) (swapparams.TxID, error) {
	s, err := Decode(token)
	if err != nil {
		return swapparams.TxID{}, err
	}

	return s.ID(), nil
}
