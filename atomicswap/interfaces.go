package atomicswap

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/token"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Store is the persistence the swap manager needs.
type Store interface {
	// CreateSwap stores a new swap.
	CreateSwap(ctx context.Context, params *swapparams.Store) error

	// PersistSwap overwrites the stored parameters of a swap.
	PersistSwap(ctx context.Context, params *swapparams.Store) error

	// FetchSwaps returns all stored swaps.
	FetchSwaps(ctx context.Context) ([]*swapparams.Store, error)

	// DeleteSwap removes a swap.
	DeleteSwap(ctx context.Context, id swapparams.TxID) error
}

// ChainClient is the view of one chain the swap protocol relies on. Errors
// returned by the client are treated as transient unless they wrap a
// RejectedError.
type ChainClient interface {
	// CurrentHeight returns the height of the chain tip.
	CurrentHeight(ctx context.Context) (uint64, error)

	// GetConfirmations returns the number of confirmations of a
	// transaction. Zero means the transaction is known but unconfirmed.
	GetConfirmations(ctx context.Context, txID string) (uint32, error)

	// Broadcast publishes a raw transaction and returns its id on the
	// chain. The label is attached where the backend supports it.
	Broadcast(ctx context.Context, raw []byte, label string) (string,
		error)
}

// BlockSource is implemented by chain clients that push new tip heights.
type BlockSource interface {
	// Blocks delivers the height of each new chain tip.
	Blocks() <-chan uint64
}

// Contract is the hash and time locked contract holding the foreign leg.
type Contract struct {
	// TxID is the id of the transaction funding the contract.
	TxID string

	// SecretHash is the hash lock shared with the BEAM leg.
	SecretHash lntypes.Hash

	// RedeemKey is the key of the BEAM side, which claims the contract
	// with the secret.
	RedeemKey [33]byte

	// RefundKey is the key of the foreign side, which takes the contract
	// back from LockHeight on.
	RefundKey [33]byte

	// LockHeight is the foreign height from which the contract can be
	// refunded.
	LockHeight uint64

	// Amount is the least value the contract output must hold.
	Amount uint64

	// HeightHint is a foreign height at or below the height the funding
	// transaction was included at.
	HeightHint uint64
}

// ContractWatcher is implemented by foreign chain clients that check the
// funding transaction against the contract and follow its spends.
type ContractWatcher interface {
	// WatchContract starts following the funding transaction of the
	// contract. Once it confirms without funding the contract, its
	// confirmations are reported as a RejectedError. Watching a contract
	// twice is a no-op.
	WatchContract(ctx context.Context, contract *Contract) error
}

// KeySource is implemented by builders that spend the foreign contract with
// keys of the local wallet.
type KeySource interface {
	// ContractKey returns the compressed public key the wallet spends the
	// contract of the swap with in the given slot.
	ContractKey(ctx context.Context, id swapparams.TxID,
		slot swapparams.Slot) ([33]byte, error)
}

// SecretFinder is implemented by chain clients able to extract a swap secret
// revealed by a redeem transaction.
type SecretFinder interface {
	// FindSecret returns the preimage of the hash if it was revealed on
	// chain, or nil if it has not been seen yet.
	FindSecret(ctx context.Context, hash lntypes.Hash) (*lntypes.Preimage,
		error)
}

// SubTxRequest asks the builder for one sub-transaction of a swap.
type SubTxRequest struct {
	// ID is the swap the sub-transaction belongs to.
	ID swapparams.TxID

	// Slot is the sub-transaction to build.
	Slot swapparams.Slot

	// Params is a read-only copy of the swap parameters.
	Params *swapparams.Store
}

// SubTx is a signed sub-transaction ready for broadcast.
type SubTx struct {
	// Raw is the serialized transaction.
	Raw []byte

	// ID is the id the transaction will have on its chain: the hex
	// kernel id for BEAM transactions.
	ID string

	// Fee is the fee, or fee rate for foreign chains, paid.
	Fee uint64

	// LockExpiryHeight is the height after which a lock transaction can
	// be refunded. It is only set for lock transactions.
	LockExpiryHeight uint64
}

// SubTxBuilder constructs the sub-transactions of a swap. Building is
// deterministic per swap and slot, so the builder can be asked again for a
// transaction it already built.
type SubTxBuilder interface {
	BuildSubTx(ctx context.Context, req *SubTxRequest) (*SubTx, error)
}

// PeerMessenger exchanges swap parameters with the counterparty wallet.
type PeerMessenger interface {
	// SendMessage delivers a message to the peer with the given id.
	SendMessage(ctx context.Context, peerID []byte,
		msg *token.Message) error

	// Messages returns the messages addressed to the local wallet.
	Messages(ctx context.Context) (<-chan *token.Message, error)
}

// ChangeNotifier receives the views of all swaps whenever they may have
// changed.
type ChangeNotifier interface {
	// Reset replaces the whole set. It is only called on a cold load.
	Reset(views []*SwapView)

	// Update reconciles the set with the given views.
	Update(views []*SwapView)
}

// ErrRejected is the error wrapped by every RejectedError.
var ErrRejected = errors.New("transaction rejected")

// RejectedError is a definitive rejection of a transaction by its chain.
type RejectedError struct {
	// Reason classifies the rejection.
	Reason swap.FailureReason

	// Err is the chain's error.
	Err error
}

// NewRejectedError returns a definitive rejection with the given reason.
func NewRejectedError(reason swap.FailureReason, err error) *RejectedError {
	return &RejectedError{
		Reason: reason,
		Err:    err,
	}
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v (%v): %v", ErrRejected, e.Reason, e.Err)
}

// Is makes errors.Is(err, ErrRejected) hold for every rejection.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// rejection returns the rejection wrapped by err, if any.
func rejection(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}

	return nil, false
}
