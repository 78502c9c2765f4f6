package token

import (
	"github.com/lightninglabs/beamswap/swapparams"
)

// KnownSwaps reports whether a swap already exists in the wallet.
type KnownSwaps interface {
	HasSwap(id swapparams.TxID) bool
}

// Bootstrap is the outcome of accepting a token.
type Bootstrap struct {
	// Params are the decoded token parameters.
	Params *swapparams.Store

	// PreviouslyAccepted is true if the wallet already holds a swap with
	// the token's transaction id. Such a token must not create a second
	// swap.
	PreviouslyAccepted bool
}

// Accept decodes a token and checks it against the swaps of the wallet.
func Accept(token string, known KnownSwaps) (*Bootstrap, error) {
	params, err := Decode(token)
	if err != nil {
		return nil, err
	}

	return &Bootstrap{
		Params:             params,
		PreviouslyAccepted: known.HasSwap(params.ID()),
	}, nil
}
