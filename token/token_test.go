package token

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

type offer struct {
	isSender   bool
	isBeamSide bool
	amount     uint64
	swapAmount uint64
	coin       swap.Coin
	minHeight  uint64
	lifetime   uint64
	response   uint64
	createTime uint64
}

func newOfferStore(t *testing.T, o offer) *swapparams.Store {
	t.Helper()

	s := swapparams.NewStore(swapparams.NewTxID())
	d := swapparams.SlotDefault

	require.NoError(t, s.SetBytes(swapparams.KindMyID, d, []byte{0xaa, 1}))
	require.NoError(t, s.SetBool(swapparams.KindIsInitiator, d, true))
	require.NoError(t, s.SetBool(swapparams.KindIsSender, d, o.isSender))
	require.NoError(t, s.SetBool(
		swapparams.KindIsBeamSide, d, o.isBeamSide,
	))
	require.NoError(t, s.SetUint64(swapparams.KindAmount, d, o.amount))
	require.NoError(t, s.SetUint64(
		swapparams.KindSwapAmount, d, o.swapAmount,
	))
	require.NoError(t, s.SetEnum(
		swapparams.KindSwapCoin, d, uint64(o.coin),
	))
	require.NoError(t, s.SetUint64(
		swapparams.KindMinHeight, d, o.minHeight,
	))
	require.NoError(t, s.SetUint64(swapparams.KindLifetime, d, o.lifetime))
	require.NoError(t, s.SetUint64(
		swapparams.KindPeerResponseTime, d, o.response,
	))
	require.NoError(t, s.SetUint64(
		swapparams.KindCreateTime, d, o.createTime,
	))

	// Local only state that must not leak into the token.
	require.NoError(t, s.SetUint64(
		swapparams.KindConfirmations, swapparams.SlotForeignLock, 2,
	))
	require.NoError(t, s.SetHash(
		swapparams.KindSecret, swapparams.SlotDefault, [32]byte{1},
	))

	return s
}

func requireParam(t *testing.T, s *swapparams.Store, kind swapparams.Kind,
	expected swapparams.Value) {

	t.Helper()

	v, ok := s.Get(kind, swapparams.SlotDefault)
	require.True(t, ok, "%v missing", kind)
	require.True(t, expected.Equal(v), "%v: %v != %v", kind, expected, v)
}

// TestTokenRoundTrip asserts that every offer field survives a round trip
// with the sender and BEAM side flags inverted.
func TestTokenRoundTrip(t *testing.T) {
	offers := []offer{
		{
			isSender: true, isBeamSide: true,
			amount: 100_000_000, swapAmount: 1_000_000,
			coin: swap.CoinBitcoin, minHeight: 1000,
			lifetime: 1440, response: 120,
			createTime: 1_700_000_000,
		},
		{
			isSender: false, isBeamSide: false,
			amount: 1, swapAmount: 1 << 50,
			coin: swap.CoinLitecoin, minHeight: 0,
			lifetime: 0, response: 1,
		},
		{
			isSender: false, isBeamSide: true,
			amount: 1 << 63, swapAmount: 7,
			coin: swap.CoinQtum, minHeight: 1 << 40,
			lifetime: 720, response: 1440,
			createTime: 1,
		},
	}

	for _, o := range offers {
		s := newOfferStore(t, o)

		tok, err := Encode(s, swap.RoleInitiator)
		require.NoError(t, err)

		decoded, err := Decode(tok)
		require.NoError(t, err)
		require.Equal(t, s.ID(), decoded.ID())

		requireParam(t, decoded, swapparams.KindIsSender,
			swapparams.BoolValue(!o.isSender))
		requireParam(t, decoded, swapparams.KindIsBeamSide,
			swapparams.BoolValue(!o.isBeamSide))
		requireParam(t, decoded, swapparams.KindIsInitiator,
			swapparams.BoolValue(true))
		requireParam(t, decoded, swapparams.KindPeerID,
			swapparams.BytesValue([]byte{0xaa, 1}))
		requireParam(t, decoded, swapparams.KindTransactionType,
			swapparams.EnumValue(uint64(swap.TypeAtomicSwap)))

		for _, kind := range copiedKinds {
			expected, ok := s.Get(kind, swapparams.SlotDefault)
			require.True(t, ok)
			requireParam(t, decoded, kind, expected)
		}

		require.False(t, decoded.Has(
			swapparams.KindSecret, swapparams.SlotDefault,
		))
		require.False(t, decoded.Has(
			swapparams.KindConfirmations,
			swapparams.SlotForeignLock,
		))
		require.False(t, decoded.Has(
			swapparams.KindMyID, swapparams.SlotDefault,
		))

		// Encoding is deterministic.
		again, err := Encode(s, swap.RoleInitiator)
		require.NoError(t, err)
		require.Equal(t, tok, again)
	}
}

// TestTokenRoles asserts that the emitter role must match the store.
func TestTokenRoles(t *testing.T) {
	s := newOfferStore(t, offer{amount: 1, swapAmount: 2})

	_, err := Encode(s, swap.RoleAcceptor)
	require.ErrorIs(t, err, ErrRoleMismatch)

	// A counter offer shared by the acceptor still marks its holder as
	// initiator and names the acceptor as peer.
	require.NoError(t, s.SetBool(
		swapparams.KindIsInitiator, swapparams.SlotDefault, false,
	))
	tok, err := Encode(s, swap.RoleAcceptor)
	require.NoError(t, err)

	decoded, err := Decode(tok)
	require.NoError(t, err)
	requireParam(t, decoded, swapparams.KindIsInitiator,
		swapparams.BoolValue(true))

	_, err = Encode(s, swap.RoleInitiator)
	require.ErrorIs(t, err, ErrRoleMismatch)
}

// TestTokenIncomplete asserts that offers lacking required fields are
// refused.
func TestTokenIncomplete(t *testing.T) {
	// Without the heights the acceptor couldn't tell when the offer
	// expires.
	missing := []swapparams.Kind{
		swapparams.KindSwapAmount,
		swapparams.KindMinHeight,
		swapparams.KindLifetime,
		swapparams.KindPeerResponseTime,
	}

	for _, kind := range missing {
		s := newOfferStore(t, offer{
			amount:     1,
			swapAmount: 2,
			minHeight:  1000,
			lifetime:   1440,
			response:   120,
		})
		s.Clear(kind, swapparams.SlotDefault)

		_, err := Encode(s, swap.RoleInitiator)
		require.ErrorIs(t, err, ErrIncompleteOffer, kind.String())
		require.ErrorContains(t, err, kind.String())
	}
}

// craft builds a token from raw records.
func craft(t *testing.T, version byte, records []rawRecord) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteByte(version)
	require.NoError(t, encodeRecords(&buf, records))

	sum := chainhash.DoubleHashB(buf.Bytes())
	buf.Write(sum[:checksumLen])

	return base58.Encode(buf.Bytes())
}

// TestTokenUnknownFields asserts that fields we don't understand are skipped.
func TestTokenUnknownFields(t *testing.T) {
	id := swapparams.NewTxID()
	amount := swapparams.Uint64Value(42).Encode()

	tok := craft(t, Version, []rawRecord{
		{typ: typeTxID, value: id[:]},
		{typ: paramType(0, uint8(swapparams.KindAmount)), value: amount},
		{typ: 100, value: []byte("future field")},
		{typ: 101, value: []byte{1}},
		{typ: paramType(3, uint8(swapparams.KindFee)), value: amount},
	})

	decoded, err := Decode(tok)
	require.NoError(t, err)
	require.Equal(t, id, decoded.ID())
	require.Equal(t, 1, decoded.Len())
	requireParam(t, decoded, swapparams.KindAmount,
		swapparams.Uint64Value(42))
}

// TestTokenParseErrors asserts that malformed tokens fail with ErrParse and
// never yield a store.
func TestTokenParseErrors(t *testing.T) {
	id := swapparams.NewTxID()
	valid, err := Encode(
		newOfferStore(t, offer{amount: 1, swapAmount: 2}),
		swap.RoleInitiator,
	)
	require.NoError(t, err)

	raw, err := base58.Decode(valid)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0xff
	corrupted := base58.Encode(raw)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"bad alphabet", "0OIl"},
		{"short", base58.Encode([]byte{1, 2})},
		{"checksum", corrupted},
		{"version", craft(t, 2, []rawRecord{
			{typ: typeTxID, value: id[:]},
		})},
		{"missing id", craft(t, Version, []rawRecord{
			{typ: 9, value: make([]byte, 8)},
		})},
		{"short id", craft(t, Version, []rawRecord{
			{typ: typeTxID, value: []byte{1, 2, 3}},
		})},
		{"malformed value", craft(t, Version, []rawRecord{
			{typ: typeTxID, value: id[:]},
			{typ: 9, value: []byte{1}},
		})},
	}

	for _, test := range tests {
		s, err := Decode(test.token)
		require.ErrorIs(t, err, ErrParse, test.name)
		require.Nil(t, s, test.name)
	}
}

// TestMessageRoundTrip asserts that peer messages keep parameters of every
// slot.
func TestMessageRoundTrip(t *testing.T) {
	msg := &Message{
		ID: swapparams.NewTxID(),
		Params: []swapparams.Param{
			{
				Kind:  swapparams.KindPeerLockReady,
				Slot:  swapparams.SlotDefault,
				Value: swapparams.BoolValue(true),
			},
			{
				Kind:  swapparams.KindKernelID,
				Slot:  swapparams.SlotBeamLock,
				Value: swapparams.HashValue([32]byte{5}),
			},
			{
				Kind:  swapparams.KindExternalTxID,
				Slot:  swapparams.SlotForeignLock,
				Value: swapparams.StringValue("deadbeef"),
			},
		},
	}

	b, err := EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := DecodeMessage(b)
	require.NoError(t, err)
	require.Equal(t, msg.ID, decoded.ID)
	require.Len(t, decoded.Params, 3)

	// Records come back ordered by slot and kind.
	require.Equal(t, swapparams.KindPeerLockReady, decoded.Params[0].Kind)
	require.Equal(t, swapparams.SlotBeamLock, decoded.Params[1].Slot)
	require.True(t, msg.Params[2].Value.Equal(decoded.Params[2].Value))

	// Duplicates are refused.
	msg.Params = append(msg.Params, msg.Params[0])
	_, err = EncodeMessage(msg)
	require.Error(t, err)

	_, err = DecodeMessage(nil)
	require.ErrorIs(t, err, ErrParse)
}

type knownSet map[swapparams.TxID]struct{}

func (k knownSet) HasSwap(id swapparams.TxID) bool {
	_, ok := k[id]
	return ok
}

// TestAccept asserts that tokens for existing swaps are flagged.
func TestAccept(t *testing.T) {
	s := newOfferStore(t, offer{amount: 1, swapAmount: 2})
	tok, err := Encode(s, swap.RoleInitiator)
	require.NoError(t, err)

	known := knownSet{}

	b, err := Accept(tok, known)
	require.NoError(t, err)
	require.False(t, b.PreviouslyAccepted)

	known[s.ID()] = struct{}{}

	b, err = Accept(tok, known)
	require.NoError(t, err)
	require.True(t, b.PreviouslyAccepted)

	_, err = Accept("garbage!", known)
	require.ErrorIs(t, err, ErrParse)
}
