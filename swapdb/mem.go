package swapdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/lightninglabs/beamswap/swapparams"
)

// MemStore is a volatile swap store. It keeps copies of the stored parameter
// sets, so callers can't modify stored swaps without persisting them.
type MemStore struct {
	mu    sync.Mutex
	swaps map[swapparams.TxID]*swapparams.Store

	// order holds the ids in creation order.
	order []swapparams.TxID
}

// A compile-time flag to ensure that MemStore implements the SwapStore
// interface.
var _ SwapStore = (*MemStore)(nil)

// NewMemStore creates an empty volatile swap store.
func NewMemStore() *MemStore {
	return &MemStore{
		swaps: make(map[swapparams.TxID]*swapparams.Store),
	}
}

// CreateSwap stores a new swap.
func (m *MemStore) CreateSwap(_ context.Context,
	params *swapparams.Store) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	id := params.ID()
	if _, ok := m.swaps[id]; ok {
		return fmt.Errorf("%w: %v", ErrSwapExists, id)
	}

	m.swaps[id] = snapshot(params)
	m.order = append(m.order, id)

	return nil
}

// PersistSwap replaces the stored parameters of an existing swap.
func (m *MemStore) PersistSwap(_ context.Context,
	params *swapparams.Store) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	id := params.ID()
	if _, ok := m.swaps[id]; !ok {
		return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
	}
	m.swaps[id] = snapshot(params)

	return nil
}

// LoadSwap returns the parameters of one swap.
func (m *MemStore) LoadSwap(_ context.Context,
	id swapparams.TxID) (*swapparams.Store, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	params, ok := m.swaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrSwapNotFound, id)
	}

	return snapshot(params), nil
}

// FetchSwaps returns all stored swaps in creation order.
func (m *MemStore) FetchSwaps(_ context.Context) ([]*swapparams.Store,
	error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	swaps := make([]*swapparams.Store, 0, len(m.order))
	for _, id := range m.order {
		swaps = append(swaps, snapshot(m.swaps[id]))
	}

	return swaps, nil
}

// DeleteSwap removes a swap.
func (m *MemStore) DeleteSwap(_ context.Context, id swapparams.TxID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.swaps[id]; !ok {
		return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
	}
	delete(m.swaps, id)

	for i, stored := range m.order {
		if stored == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error {
	return nil
}

// snapshot returns a clean copy of a parameter set.
func snapshot(params *swapparams.Store) *swapparams.Store {
	c := params.Clone()
	c.MarkClean()

	return c
}
