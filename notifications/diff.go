package notifications

import (
	"fmt"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swapparams"
)

// ChangeType is the kind of a change batch.
type ChangeType uint8

const (
	// ChangeReset replaces the whole set of swaps.
	ChangeReset ChangeType = iota

	// ChangeAdded carries swaps that were not known before.
	ChangeAdded

	// ChangeRemoved carries swaps that are gone.
	ChangeRemoved

	// ChangeUpdated carries swaps whose view changed.
	ChangeUpdated
)

func (c ChangeType) String() string {
	switch c {
	case ChangeReset:
		return "Reset"

	case ChangeAdded:
		return "Added"

	case ChangeRemoved:
		return "Removed"

	case ChangeUpdated:
		return "Updated"

	default:
		return fmt.Sprintf("ChangeType(%d)", uint8(c))
	}
}

// Change is a batch of swap views of one change type.
type Change struct {
	Type  ChangeType
	Views []*atomicswap.SwapView
}

// Changes is the difference between two sets of swaps.
type Changes struct {
	Added   []*atomicswap.SwapView
	Removed []*atomicswap.SwapView
	Updated []*atomicswap.SwapView
}

// Empty returns true if the sets were equal.
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Updated) == 0
}

// Batches returns the non-empty batches in the order removed, added,
// updated.
func (c *Changes) Batches() []*Change {
	var batches []*Change
	add := func(t ChangeType, views []*atomicswap.SwapView) {
		if len(views) == 0 {
			return
		}
		batches = append(batches, &Change{Type: t, Views: views})
	}

	add(ChangeRemoved, c.Removed)
	add(ChangeAdded, c.Added)
	add(ChangeUpdated, c.Updated)

	return batches
}

// Diff compares two sets of swap views by id. A swap present in both sets
// is updated only if its view differs. Removed swaps are reported with
// their previous view, in the order of prev.
func Diff(prev, next []*atomicswap.SwapView) *Changes {
	prevByID := make(map[swapparams.TxID]*atomicswap.SwapView, len(prev))
	for _, v := range prev {
		prevByID[v.ID] = v
	}

	changes := &Changes{}
	seen := make(map[swapparams.TxID]struct{}, len(next))
	for _, v := range next {
		seen[v.ID] = struct{}{}

		old, ok := prevByID[v.ID]
		switch {
		case !ok:
			changes.Added = append(changes.Added, v)

		case *old != *v:
			changes.Updated = append(changes.Updated, v)
		}
	}

	for _, v := range prev {
		if _, ok := seen[v.ID]; !ok {
			changes.Removed = append(changes.Removed, v)
		}
	}

	return changes
}
