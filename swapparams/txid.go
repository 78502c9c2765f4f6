package swapparams

import (
	"fmt"

	"github.com/google/uuid"
)

// TxID is the 128-bit identifier of a swap. It is generated by the initiator
// and travels inside the negotiation token.
type TxID [16]byte

// NewTxID returns a fresh random transaction id.
func NewTxID() TxID {
	return TxID(uuid.New())
}

// ParseTxID parses the hex or canonical uuid form of a transaction id.
func ParseTxID(s string) (TxID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TxID{}, fmt.Errorf("invalid transaction id %q: %w", s,
			err)
	}

	return TxID(id), nil
}

// TxIDFromBytes converts a 16 byte slice into a transaction id.
func TxIDFromBytes(b []byte) (TxID, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return TxID{}, err
	}

	return TxID(id), nil
}

// String returns the hex encoding of the id, the format used by the BEAM
// wallet for transaction ids.
func (t TxID) String() string {
	return fmt.Sprintf("%x", t[:])
}

// Short returns a shortened id suitable for log prefixes.
func (t TxID) Short() string {
	return t.String()[:8]
}

// IsZero returns true for the all-zero id.
func (t TxID) IsZero() bool {
	return t == TxID{}
}
