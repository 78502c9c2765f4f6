package swaprpc

import (
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swap"
)

// OfferRequest creates a swap offer.
type OfferRequest struct {
	// IsBeamSide is true if we give BEAM for the foreign coin.
	IsBeamSide bool

	Coin             swap.Coin
	Amount           uint64
	SwapAmount       uint64
	Lifetime         uint64
	PeerResponseTime uint64
}

// OfferResponse carries the id of a created or accepted swap. The token is
// only set for created swaps.
type OfferResponse struct {
	ID    string
	Token string
}

// AcceptRequest accepts the offer of a peer.
type AcceptRequest struct {
	Token string
}

// SwapRequest addresses one swap by its id.
type SwapRequest struct {
	ID string
}

// SwapResponse carries the view of one swap.
type SwapResponse struct {
	Swap *atomicswap.SwapView
}

// TokenResponse carries the offer token of a swap.
type TokenResponse struct {
	Token string
}

// ListSwapsRequest lists all swaps.
type ListSwapsRequest struct{}

// ListSwapsResponse carries the views of all swaps.
type ListSwapsResponse struct {
	Swaps []*atomicswap.SwapView
}

// SubscribeSwapsRequest subscribes to the changes of the swap set.
type SubscribeSwapsRequest struct{}

// SwapUpdate is one change of the swap set. The first update of a
// subscription resets the set.
type SwapUpdate struct {
	// Type is Reset, Added, Removed or Updated.
	Type  string
	Swaps []*atomicswap.SwapView
}

// Empty is returned by calls without a result.
type Empty struct{}
