package swapparams

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrTypeMismatch is returned when a value of one type is written to
	// or read from a parameter kind bound to another type.
	ErrTypeMismatch = errors.New("parameter type mismatch")

	// ErrUnknownKind is returned for parameter kinds outside of the kind
	// enumeration.
	ErrUnknownKind = errors.New("unknown parameter kind")

	// ErrInvalidSlot is returned for slots outside of the slot
	// enumeration.
	ErrInvalidSlot = errors.New("invalid sub-transaction slot")

	// ErrInvalidEncoding is returned when a serialized value can't be
	// decoded into the type of its kind.
	ErrInvalidEncoding = errors.New("invalid parameter encoding")

	byteOrder = binary.BigEndian
)

// ValueType is the type tag of a parameter value.
type ValueType uint8

const (
	// TypeInvalid is the type of the zero Value.
	TypeInvalid ValueType = 0

	// TypeUint64 is an unsigned integer (amounts, heights, counts).
	TypeUint64 ValueType = 1

	// TypeBool is a flag.
	TypeBool ValueType = 2

	// TypeBytes is an opaque byte blob (identities).
	TypeBytes ValueType = 3

	// TypeHash is a 32 byte hash (kernel ids, hash locks).
	TypeHash ValueType = 4

	// TypeString is a textual id (foreign chain tx ids).
	TypeString ValueType = 5

	// TypeEnum is a member of one of the swap enumerations.
	TypeEnum ValueType = 6
)

func (t ValueType) String() string {
	switch t {
	case TypeUint64:
		return "uint64"

	case TypeBool:
		return "bool"

	case TypeBytes:
		return "bytes"

	case TypeHash:
		return "hash"

	case TypeString:
		return "string"

	case TypeEnum:
		return "enum"

	default:
		return "invalid"
	}
}

// Value is a type tagged parameter value. The zero Value is invalid and can't
// be stored.
type Value struct {
	typ  ValueType
	num  uint64
	raw  []byte
	str  string
	hash [32]byte
}

// Uint64Value returns an integer value.
func Uint64Value(v uint64) Value {
	return Value{typ: TypeUint64, num: v}
}

// BoolValue returns a flag value.
func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}

	return Value{typ: TypeBool, num: n}
}

// BytesValue returns a blob value. The slice is copied.
func BytesValue(v []byte) Value {
	return Value{typ: TypeBytes, raw: append([]byte(nil), v...)}
}

// HashValue returns a hash value.
func HashValue(v [32]byte) Value {
	return Value{typ: TypeHash, hash: v}
}

// StringValue returns a string value.
func StringValue(v string) Value {
	return Value{typ: TypeString, str: v}
}

// EnumValue returns an enumeration value.
func EnumValue(v uint64) Value {
	return Value{typ: TypeEnum, num: v}
}

// Type returns the type tag of the value.
func (v Value) Type() ValueType {
	return v.typ
}

func (v Value) expect(t ValueType) error {
	if v.typ != t {
		return fmt.Errorf("%w: want %v, have %v", ErrTypeMismatch, t,
			v.typ)
	}

	return nil
}

// Uint64 returns the integer held by the value.
func (v Value) Uint64() (uint64, error) {
	if err := v.expect(TypeUint64); err != nil {
		return 0, err
	}

	return v.num, nil
}

// Bool returns the flag held by the value.
func (v Value) Bool() (bool, error) {
	if err := v.expect(TypeBool); err != nil {
		return false, err
	}

	return v.num == 1, nil
}

// Bytes returns a copy of the blob held by the value.
func (v Value) Bytes() ([]byte, error) {
	if err := v.expect(TypeBytes); err != nil {
		return nil, err
	}

	return append([]byte(nil), v.raw...), nil
}

// Hash returns the hash held by the value.
func (v Value) Hash() ([32]byte, error) {
	if err := v.expect(TypeHash); err != nil {
		return [32]byte{}, err
	}

	return v.hash, nil
}

// Str returns the string held by the value.
func (v Value) Str() (string, error) {
	if err := v.expect(TypeString); err != nil {
		return "", err
	}

	return v.str, nil
}

// Enum returns the enumeration member held by the value.
func (v Value) Enum() (uint64, error) {
	if err := v.expect(TypeEnum); err != nil {
		return 0, err
	}

	return v.num, nil
}

// Equal returns true if both values have the same type and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}

	switch v.typ {
	case TypeBytes:
		return bytes.Equal(v.raw, o.raw)

	case TypeString:
		return v.str == o.str

	case TypeHash:
		return v.hash == o.hash

	default:
		return v.num == o.num
	}
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.typ {
	case TypeUint64, TypeEnum:
		return fmt.Sprintf("%d", v.num)

	case TypeBool:
		return fmt.Sprintf("%v", v.num == 1)

	case TypeBytes:
		return fmt.Sprintf("%x", v.raw)

	case TypeHash:
		return fmt.Sprintf("%x", v.hash[:])

	case TypeString:
		return v.str

	default:
		return "<invalid>"
	}
}

// Encode serializes the value without its type tag. Integers and enums are 8
// byte big endian, flags a single byte.
func (v Value) Encode() []byte {
	switch v.typ {
	case TypeUint64, TypeEnum:
		b := make([]byte, 8)
		byteOrder.PutUint64(b, v.num)
		return b

	case TypeBool:
		return []byte{byte(v.num)}

	case TypeBytes:
		return append([]byte(nil), v.raw...)

	case TypeHash:
		return append([]byte(nil), v.hash[:]...)

	case TypeString:
		return []byte(v.str)

	default:
		return nil
	}
}

// DecodeValue deserializes a value of the given type.
func DecodeValue(t ValueType, b []byte) (Value, error) {
	switch t {
	case TypeUint64, TypeEnum:
		if len(b) != 8 {
			return Value{}, fmt.Errorf("%w: %v needs 8 bytes, "+
				"got %d", ErrInvalidEncoding, t, len(b))
		}

		return Value{typ: t, num: byteOrder.Uint64(b)}, nil

	case TypeBool:
		if len(b) != 1 || b[0] > 1 {
			return Value{}, fmt.Errorf("%w: malformed bool",
				ErrInvalidEncoding)
		}

		return BoolValue(b[0] == 1), nil

	case TypeBytes:
		return BytesValue(b), nil

	case TypeHash:
		if len(b) != 32 {
			return Value{}, fmt.Errorf("%w: hash needs 32 bytes, "+
				"got %d", ErrInvalidEncoding, len(b))
		}

		var h [32]byte
		copy(h[:], b)

		return HashValue(h), nil

	case TypeString:
		if !utf8.Valid(b) {
			return Value{}, fmt.Errorf("%w: string is not utf8",
				ErrInvalidEncoding)
		}

		return StringValue(string(b)), nil

	default:
		return Value{}, fmt.Errorf("%w: type %d", ErrInvalidEncoding,
			t)
	}
}
