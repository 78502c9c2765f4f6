package swapdb

import (
	"context"
	"errors"

	"github.com/lightninglabs/beamswap/swapparams"
)

var (
	// ErrSwapExists is returned when creating a swap whose id is already
	// stored.
	ErrSwapExists = errors.New("swap already exists")

	// ErrSwapNotFound is returned for swaps that are not stored.
	ErrSwapNotFound = errors.New("swap not found")
)

// SwapStore is the primary database interface used by the swap manager. A
// swap is stored as the list of its parameters, each keyed by kind and
// sub-transaction slot.
type SwapStore interface {
	// CreateSwap stores a new swap.
	CreateSwap(ctx context.Context, params *swapparams.Store) error

	// PersistSwap replaces the stored parameters of an existing swap.
	PersistSwap(ctx context.Context, params *swapparams.Store) error

	// LoadSwap returns the parameters of one swap.
	LoadSwap(ctx context.Context, id swapparams.TxID) (*swapparams.Store,
		error)

	// FetchSwaps returns all stored swaps.
	FetchSwaps(ctx context.Context) ([]*swapparams.Store, error)

	// DeleteSwap removes a swap.
	DeleteSwap(ctx context.Context, id swapparams.TxID) error

	// Close closes the underlying database.
	Close() error
}
