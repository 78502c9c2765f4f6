package swap

import "fmt"

// TransactionType is the wallet transaction type tag carried by offers.
type TransactionType uint8

const (
	// TypeSimple is a plain BEAM transfer.
	TypeSimple TransactionType = 0

	// TypeAtomicSwap is a cross-chain atomic swap.
	TypeAtomicSwap TransactionType = 2
)

func (t TransactionType) String() string {
	switch t {
	case TypeSimple:
		return "Simple"

	case TypeAtomicSwap:
		return "AtomicSwap"

	default:
		return "Unknown"
	}
}

// Role is the side of the negotiation a wallet is on.
type Role uint8

const (
	// RoleInitiator created the offer.
	RoleInitiator Role = iota

	// RoleAcceptor materialized the swap from a token.
	RoleAcceptor
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "Initiator"

	case RoleAcceptor:
		return "Acceptor"

	default:
		return "Unknown"
	}
}

// FailureReason describes why a swap left the happy path. The numeric values
// are persisted.
type FailureReason uint8

const (
	// FailureUnknown is used when no better reason is known.
	FailureUnknown FailureReason = iota

	// FailureTransactionExpired is a protocol deadline that elapsed.
	FailureTransactionExpired

	// FailureCanceled is a cancellation by the local user.
	FailureCanceled

	// FailureChainRejected is a sub-transaction rejected by its chain.
	FailureChainRejected

	// FailureInsufficientFee is a sub-transaction rejected for its fee.
	FailureInsufficientFee

	// FailureDoubleSpend is a sub-transaction whose inputs were spent
	// elsewhere.
	FailureDoubleSpend

	// FailureParametersMismatch is a handshake where the peers disagree on
	// the offer.
	FailureParametersMismatch

	// FailurePeerCanceled is a cancellation by the counterparty.
	FailurePeerCanceled

	// FailureInvalidSecret is a revealed secret that doesn't match the
	// hash lock.
	FailureInvalidSecret
)

var failureReasonText = map[FailureReason]string{
	FailureUnknown:            "Unknown reason",
	FailureTransactionExpired: "Transaction expired",
	FailureCanceled:           "Canceled",
	FailureChainRejected:      "Rejected by the chain",
	FailureInsufficientFee:    "Insufficient fee",
	FailureDoubleSpend:        "Inputs were double spent",
	FailureParametersMismatch: "Swap parameters mismatch",
	FailurePeerCanceled:       "Canceled by the peer",
	FailureInvalidSecret:      "Invalid secret",
}

// Known returns true for members of the enumeration.
func (f FailureReason) Known() bool {
	_, ok := failureReasonText[f]
	return ok
}

// String returns the human readable failure description.
func (f FailureReason) String() string {
	text, ok := failureReasonText[f]
	if !ok {
		return fmt.Sprintf("FailureReason(%d)", uint8(f))
	}

	return text
}
