package swapparams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStoreTypedAccess asserts that every kind only accepts and returns the
// value type it is bound to.
func TestStoreTypedAccess(t *testing.T) {
	s := NewStore(NewTxID())

	require.NoError(t, s.SetUint64(KindAmount, SlotDefault, 100_000_000))
	require.NoError(t, s.SetBool(KindIsBeamSide, SlotDefault, true))
	require.NoError(t, s.SetString(
		KindExternalTxID, SlotForeignLock, "abcd",
	))

	amt, ok, err := s.Uint64(KindAmount, SlotDefault)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 100_000_000, amt)

	beamSide, ok, err := s.Bool(KindIsBeamSide, SlotDefault)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, beamSide)

	// Writing a value of the wrong type fails and leaves the store
	// untouched.
	err = s.Set(KindAmount, SlotDefault, BoolValue(true))
	require.ErrorIs(t, err, ErrTypeMismatch)

	amt, _, err = s.Uint64(KindAmount, SlotDefault)
	require.NoError(t, err)
	require.EqualValues(t, 100_000_000, amt)

	// Reading with the wrong accessor fails too.
	_, _, err = s.Bool(KindAmount, SlotDefault)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, _, err = s.String(KindIsBeamSide, SlotDefault)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

// TestStoreAbsence asserts that absent keys are distinct from zero values.
func TestStoreAbsence(t *testing.T) {
	s := NewStore(NewTxID())

	fee, ok, err := s.Uint64(KindFee, SlotBeamLock)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, fee)

	require.NoError(t, s.SetUint64(KindFee, SlotBeamLock, 0))

	_, ok, err = s.Uint64(KindFee, SlotBeamLock)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.Has(KindFee, SlotBeamLock))
	require.False(t, s.Has(KindFee, SlotBeamRedeem))
}

// TestStoreInvalidKeys asserts that unknown kinds and slots are rejected.
func TestStoreInvalidKeys(t *testing.T) {
	s := NewStore(NewTxID())

	err := s.Set(Kind(200), SlotDefault, Uint64Value(1))
	require.ErrorIs(t, err, ErrUnknownKind)

	err = s.Set(KindAmount, Slot(0), Uint64Value(1))
	require.ErrorIs(t, err, ErrInvalidSlot)

	err = s.Set(KindAmount, Slot(8), Uint64Value(1))
	require.ErrorIs(t, err, ErrInvalidSlot)

	err = s.Set(KindAmount, SlotDefault, Value{})
	require.ErrorIs(t, err, ErrTypeMismatch)

	require.Zero(t, s.Len())
}

// TestStoreDirtyTracking asserts that only real changes mark the store dirty.
func TestStoreDirtyTracking(t *testing.T) {
	s := NewStore(NewTxID())
	require.False(t, s.Dirty())

	require.NoError(t, s.SetUint64(KindMinHeight, SlotDefault, 1000))
	require.True(t, s.Dirty())

	s.MarkClean()

	// Idempotent overwrite.
	require.NoError(t, s.SetUint64(KindMinHeight, SlotDefault, 1000))
	require.False(t, s.Dirty())

	require.NoError(t, s.SetUint64(KindMinHeight, SlotDefault, 1001))
	require.True(t, s.Dirty())

	s.MarkClean()
	s.Clear(KindLifetime, SlotDefault)
	require.False(t, s.Dirty())

	s.Clear(KindMinHeight, SlotDefault)
	require.True(t, s.Dirty())
	require.False(t, s.Has(KindMinHeight, SlotDefault))
}

// TestStoreParamsRestore asserts that a store survives a round trip through
// its parameter list and that the list is ordered by slot and kind.
func TestStoreParamsRestore(t *testing.T) {
	id := NewTxID()
	s := NewStore(id)

	require.NoError(t, s.SetUint64(KindConfirmations, SlotForeignLock, 3))
	require.NoError(t, s.SetUint64(KindAmount, SlotDefault, 5))
	require.NoError(t, s.SetHash(KindKernelID, SlotBeamLock, [32]byte{1}))
	require.NoError(t, s.SetBytes(KindPeerID, SlotDefault, []byte{2, 3}))

	params := s.Params()
	require.Len(t, params, 4)
	require.Equal(t, KindPeerID, params[0].Kind)
	require.Equal(t, KindAmount, params[1].Kind)
	require.Equal(t, SlotBeamLock, params[2].Slot)
	require.Equal(t, SlotForeignLock, params[3].Slot)

	restored, err := NewStoreFromParams(id, params)
	require.NoError(t, err)
	require.False(t, restored.Dirty())
	require.Equal(t, id, restored.ID())
	require.Equal(t, params, restored.Params())
}

// TestStoreClone asserts that a clone doesn't share state with its origin.
func TestStoreClone(t *testing.T) {
	s := NewStore(NewTxID())
	require.NoError(t, s.SetBytes(KindPeerID, SlotDefault, []byte{1, 2}))

	c := s.Clone()
	require.NoError(t, c.SetBytes(KindPeerID, SlotDefault, []byte{9}))

	peer, ok, err := s.Bytes(KindPeerID, SlotDefault)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2}, peer)
}

// TestValueEncoding asserts that every value type decodes to what was
// encoded and that malformed encodings are rejected.
func TestValueEncoding(t *testing.T) {
	values := []Value{
		Uint64Value(1 << 40),
		BoolValue(true),
		BoolValue(false),
		BytesValue([]byte{0xde, 0xad}),
		HashValue([32]byte{0xff, 1}),
		StringValue("b5f0"),
		EnumValue(3),
	}

	for _, v := range values {
		decoded, err := DecodeValue(v.Type(), v.Encode())
		require.NoError(t, err)
		require.True(t, v.Equal(decoded), "%v != %v", v, decoded)
	}

	_, err := DecodeValue(TypeUint64, []byte{1, 2})
	require.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeValue(TypeBool, []byte{2})
	require.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeValue(TypeHash, make([]byte, 31))
	require.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = DecodeValue(TypeString, []byte{0xff, 0xfe})
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

// TestTxIDParse asserts that both the hex and the uuid form of an id parse.
func TestTxIDParse(t *testing.T) {
	id := NewTxID()

	parsed, err := ParseTxID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = ParseTxID("nope")
	require.Error(t, err)

	require.Len(t, id.Short(), 8)
	require.False(t, id.IsZero())
	require.True(t, TxID{}.IsZero())
}
