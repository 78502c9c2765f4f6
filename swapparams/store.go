package swapparams

import (
	"fmt"
	"sort"
)

// Param is a single (kind, slot, value) entry of a Store.
type Param struct {
	Kind  Kind
	Slot  Slot
	Value Value
}

type paramKey struct {
	kind Kind
	slot Slot
}

// Store is the typed parameter bag of a single swap. Every key holds exactly
// one value of the type bound to its kind, or nothing. A Store is owned by
// one swap and is not safe for concurrent use.
type Store struct {
	id     TxID
	values map[paramKey]Value
	dirty  bool
}

// NewStore creates an empty store for the given transaction.
func NewStore(id TxID) *Store {
	return &Store{
		id:     id,
		values: make(map[paramKey]Value),
	}
}

// NewStoreFromParams restores a store from a persisted parameter list. The
// returned store is clean.
func NewStoreFromParams(id TxID, params []Param) (*Store, error) {
	s := NewStore(id)
	for _, p := range params {
		if err := s.Set(p.Kind, p.Slot, p.Value); err != nil {
			return nil, fmt.Errorf("restore %v/%v: %w", p.Kind,
				p.Slot, err)
		}
	}
	s.dirty = false

	return s, nil
}

// ID returns the transaction id the store belongs to.
func (s *Store) ID() TxID {
	return s.id
}

func check(kind Kind, slot Slot) error {
	if !kind.Known() {
		return fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSlot, slot)
	}

	return nil
}

// Get returns the value stored under (kind, slot).
func (s *Store) Get(kind Kind, slot Slot) (Value, bool) {
	v, ok := s.values[paramKey{kind, slot}]
	return v, ok
}

// Has returns true if (kind, slot) holds a value.
func (s *Store) Has(kind Kind, slot Slot) bool {
	_, ok := s.values[paramKey{kind, slot}]
	return ok
}

// Set stores a value under (kind, slot), replacing any previous value. The
// value must have the type bound to the kind.
func (s *Store) Set(kind Kind, slot Slot, v Value) error {
	if err := check(kind, slot); err != nil {
		return err
	}
	if v.Type() != kind.Type() {
		return fmt.Errorf("%w: %v holds %v, got %v", ErrTypeMismatch,
			kind, kind.Type(), v.Type())
	}

	key := paramKey{kind, slot}
	if old, ok := s.values[key]; ok && old.Equal(v) {
		return nil
	}

	s.values[key] = v
	s.dirty = true

	return nil
}

// Clear removes the value under (kind, slot).
func (s *Store) Clear(kind Kind, slot Slot) {
	key := paramKey{kind, slot}
	if _, ok := s.values[key]; !ok {
		return
	}

	delete(s.values, key)
	s.dirty = true
}

// Dirty returns true if the store changed since it was created, restored or
// last marked clean.
func (s *Store) Dirty() bool {
	return s.dirty
}

// MarkClean resets the dirty flag, typically after the store was persisted.
func (s *Store) MarkClean() {
	s.dirty = false
}

// Len returns the number of stored parameters.
func (s *Store) Len() int {
	return len(s.values)
}

// Params returns all parameters ordered by slot and kind.
func (s *Store) Params() []Param {
	params := make([]Param, 0, len(s.values))
	for k, v := range s.values {
		params = append(params, Param{
			Kind: k.kind, Slot: k.slot, Value: v,
		})
	}

	sort.Slice(params, func(i, j int) bool {
		if params[i].Slot != params[j].Slot {
			return params[i].Slot < params[j].Slot
		}
		return params[i].Kind < params[j].Kind
	})

	return params
}

// Clone returns a deep copy of the store carrying the same dirty state.
func (s *Store) Clone() *Store {
	c := NewStore(s.id)
	for k, v := range s.values {
		if v.typ == TypeBytes {
			v.raw = append([]byte(nil), v.raw...)
		}
		c.values[k] = v
	}
	c.dirty = s.dirty

	return c
}

// typed reads one value and checks its type against the kind.
func (s *Store) typed(kind Kind, slot Slot, t ValueType) (Value, bool,
	error) {

	if kind.Type() != t {
		return Value{}, false, fmt.Errorf("%w: %v holds %v, "+
			"requested %v", ErrTypeMismatch, kind, kind.Type(), t)
	}

	v, ok := s.Get(kind, slot)
	return v, ok, nil
}

// Uint64 reads an integer parameter.
func (s *Store) Uint64(kind Kind, slot Slot) (uint64, bool, error) {
	v, ok, err := s.typed(kind, slot, TypeUint64)
	if err != nil || !ok {
		return 0, false, err
	}

	n, err := v.Uint64()
	return n, err == nil, err
}

// Bool reads a flag parameter.
func (s *Store) Bool(kind Kind, slot Slot) (bool, bool, error) {
	v, ok, err := s.typed(kind, slot, TypeBool)
	if err != nil || !ok {
		return false, false, err
	}

	b, err := v.Bool()
	return b, err == nil, err
}

// Bytes reads a blob parameter.
func (s *Store) Bytes(kind Kind, slot Slot) ([]byte, bool, error) {
	v, ok, err := s.typed(kind, slot, TypeBytes)
	if err != nil || !ok {
		return nil, false, err
	}

	b, err := v.Bytes()
	return b, err == nil, err
}

// Hash reads a hash parameter.
func (s *Store) Hash(kind Kind, slot Slot) ([32]byte, bool, error) {
	v, ok, err := s.typed(kind, slot, TypeHash)
	if err != nil || !ok {
		return [32]byte{}, false, err
	}

	h, err := v.Hash()
	return h, err == nil, err
}

// String reads a string parameter.
func (s *Store) String(kind Kind, slot Slot) (string, bool, error) {
	v, ok, err := s.typed(kind, slot, TypeString)
	if err != nil || !ok {
		return "", false, err
	}

	str, err := v.Str()
	return str, err == nil, err
}

// Enum reads an enumeration parameter.
func (s *Store) Enum(kind Kind, slot Slot) (uint64, bool, error) {
	v, ok, err := s.typed(kind, slot, TypeEnum)
	if err != nil || !ok {
		return 0, false, err
	}

	n, err := v.Enum()
	return n, err == nil, err
}

// SetUint64 stores an integer parameter.
func (s *Store) SetUint64(kind Kind, slot Slot, v uint64) error {
	return s.Set(kind, slot, Uint64Value(v))
}

// SetBool stores a flag parameter.
func (s *Store) SetBool(kind Kind, slot Slot, v bool) error {
	return s.Set(kind, slot, BoolValue(v))
}

// SetBytes stores a blob parameter.
func (s *Store) SetBytes(kind Kind, slot Slot, v []byte) error {
	return s.Set(kind, slot, BytesValue(v))
}

// SetHash stores a hash parameter.
func (s *Store) SetHash(kind Kind, slot Slot, v [32]byte) error {
	return s.Set(kind, slot, HashValue(v))
}

// SetString stores a string parameter.
func (s *Store) SetString(kind Kind, slot Slot, v string) error {
	return s.Set(kind, slot, StringValue(v))
}

// SetEnum stores an enumeration parameter.
func (s *Store) SetEnum(kind Kind, slot Slot, v uint64) error {
	return s.Set(kind, slot, EnumValue(v))
}
