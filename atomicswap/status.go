package atomicswap

import (
	"encoding/hex"
	"fmt"

	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
)

// TxStatus is the coarse status of a swap shown to users.
type TxStatus uint8

const (
	// StatusPending is a swap whose handshake is not complete.
	StatusPending TxStatus = iota

	// StatusInProgress is a swap negotiating its locks.
	StatusInProgress

	// StatusRegistering is a swap with transactions on chain.
	StatusRegistering

	// StatusCompleted is a redeemed swap.
	StatusCompleted

	// StatusCanceled is a swap canceled by either side.
	StatusCanceled

	// StatusFailed is a swap that failed or was refunded.
	StatusFailed
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "Pending"

	case StatusInProgress:
		return "InProgress"

	case StatusRegistering:
		return "Registering"

	case StatusCompleted:
		return "Completed"

	case StatusCanceled:
		return "Canceled"

	case StatusFailed:
		return "Failed"

	default:
		return fmt.Sprintf("TxStatus(%d)", uint8(s))
	}
}

// StatusOf projects a swap state onto its status.
func StatusOf(state fsm.StateType) TxStatus {
	switch state {
	case Initial:
		return StatusPending

	case BuildingBeamLockTx, BuildingForeignLockTx, HandlingContractTx:
		return StatusInProgress

	case SendingBeamLockTx, SendingForeignLockTx, SendingRedeemTx,
		SendingBeamRedeemTx, SendingRefundTx, SendingBeamRefundTx:

		return StatusRegistering

	case Completed:
		return StatusCompleted

	case Cancelled:
		return StatusCanceled

	default:
		return StatusFailed
	}
}

// SwapView is a read-only projection of a swap for display. Views of the
// same swap compare equal with == as long as nothing visible changed.
type SwapView struct {
	ID swapparams.TxID

	State  fsm.StateType
	Status TxStatus

	IsInitiator bool
	IsBeamSide  bool

	PeerID string

	Coin       swap.Coin
	Amount     uint64
	SwapAmount uint64

	// SentAmount and ReceivedAmount are formatted with their unit.
	SentAmount     string
	ReceivedAmount string

	// FeeRate is the fee rate of our foreign transaction with its unit.
	FeeRate string

	MinHeight        uint64
	Lifetime         uint64
	PeerResponseTime uint64
	CreateTime       uint64

	// FailureReason is set only for failed swaps.
	FailureReason string

	IsExpired         bool
	IsInProgress      bool
	IsPending         bool
	IsCancelAvailable bool
	IsDeleteAvailable bool

	LockTxID   string
	RedeemTxID string
	RefundTxID string

	LockConfirmations   uint32
	RedeemConfirmations uint32
	RefundConfirmations uint32

	BeamLockKernelID   string
	BeamRedeemKernelID string
	BeamRefundKernelID string

	IsLockTxProofReceived   bool
	IsRefundTxProofReceived bool
}

// NewSwapView projects the parameters of a swap. cancelAvailable comes from
// the live state machine.
func NewSwapView(params *swapparams.Store, cancelAvailable bool) *SwapView {
	v := &SwapView{
		ID:                params.ID(),
		State:             stateOf(params),
		IsCancelAvailable: cancelAvailable,
	}
	v.Status = StatusOf(v.State)

	getBool := func(kind swapparams.Kind) bool {
		b, _, _ := params.Bool(kind, swapparams.SlotDefault)
		return b
	}
	getUint64 := func(kind swapparams.Kind, slot swapparams.Slot) uint64 {
		n, _, _ := params.Uint64(kind, slot)
		return n
	}

	v.IsInitiator = getBool(swapparams.KindIsInitiator)
	v.IsBeamSide = getBool(swapparams.KindIsBeamSide)

	if peer, ok, _ := params.Bytes(
		swapparams.KindPeerID, swapparams.SlotDefault,
	); ok {
		v.PeerID = hex.EncodeToString(peer)
	}

	const slot = swapparams.SlotDefault

	coin, _, _ := params.Enum(swapparams.KindSwapCoin, slot)
	v.Coin = swap.Coin(coin)

	v.Amount = getUint64(swapparams.KindAmount, slot)
	v.SwapAmount = getUint64(swapparams.KindSwapAmount, slot)
	v.MinHeight = getUint64(swapparams.KindMinHeight, slot)
	v.Lifetime = getUint64(swapparams.KindLifetime, slot)
	v.PeerResponseTime = getUint64(swapparams.KindPeerResponseTime, slot)
	v.CreateTime = getUint64(swapparams.KindCreateTime, slot)

	beamAmount := swap.FormatBeamAmount(v.Amount)
	coinAmount := swap.FormatCoinAmount(v.SwapAmount, v.Coin)
	if v.IsBeamSide {
		v.SentAmount, v.ReceivedAmount = beamAmount, coinAmount
	} else {
		v.SentAmount, v.ReceivedAmount = coinAmount, beamAmount
	}

	// Our foreign transaction is the redeem on the BEAM side and the lock
	// on the foreign side.
	feeSlot := swapparams.SlotForeignLock
	if v.IsBeamSide {
		feeSlot = swapparams.SlotForeignRedeem
	}
	if fee, ok, _ := params.Uint64(swapparams.KindFee, feeSlot); ok {
		v.FeeRate = fmt.Sprintf("%d %s", fee, v.Coin.FeeRateLabel())
	}

	internal, hasInternal, _ := params.Enum(
		swapparams.KindInternalFailureReason, swapparams.SlotDefault,
	)
	v.IsExpired = hasInternal &&
		swap.FailureReason(internal) == swap.FailureTransactionExpired
	v.IsPending = v.Status == StatusPending && !v.IsExpired
	v.IsInProgress = !v.IsExpired && (v.Status == StatusPending ||
		v.Status == StatusInProgress || v.Status == StatusRegistering)
	v.IsDeleteAvailable = v.IsExpired || v.Status == StatusFailed ||
		v.Status == StatusCompleted || v.Status == StatusCanceled
	v.FailureReason = failureReason(params, v.State)

	// The lock, redeem and refund shown are the foreign ones, the BEAM
	// ones are shown by kernel id.
	v.LockTxID = externalID(params, swapparams.SlotForeignLock)
	v.RedeemTxID = externalID(params, swapparams.SlotForeignRedeem)
	v.RefundTxID = externalID(params, swapparams.SlotForeignRefund)
	v.LockConfirmations = uint32(getUint64(
		swapparams.KindConfirmations, swapparams.SlotForeignLock,
	))
	v.RedeemConfirmations = uint32(getUint64(
		swapparams.KindConfirmations, swapparams.SlotForeignRedeem,
	))
	v.RefundConfirmations = uint32(getUint64(
		swapparams.KindConfirmations, swapparams.SlotForeignRefund,
	))

	v.BeamLockKernelID = kernelID(params, swapparams.SlotBeamLock)
	v.BeamRedeemKernelID = kernelID(params, swapparams.SlotBeamRedeem)
	v.BeamRefundKernelID = kernelID(params, swapparams.SlotBeamRefund)

	v.IsLockTxProofReceived = params.Has(
		swapparams.KindKernelProofHeight, swapparams.SlotBeamLock,
	)
	v.IsRefundTxProofReceived = params.Has(
		swapparams.KindKernelProofHeight, swapparams.SlotBeamRefund,
	)

	return v
}

// failureReason returns the text of the reason a failed swap failed. A
// protocol detected reason wins over a chain or peer reported one. Swaps
// that are not failed have no reason.
func failureReason(params *swapparams.Store, state fsm.StateType) string {
	if StatusOf(state) != StatusFailed {
		return ""
	}

	internal, ok, _ := params.Enum(
		swapparams.KindInternalFailureReason, swapparams.SlotDefault,
	)
	if ok {
		return swap.FailureReason(internal).String()
	}

	if state == Refunded {
		return "Refunded"
	}

	external, ok, _ := params.Enum(
		swapparams.KindFailureReason, swapparams.SlotDefault,
	)
	if ok {
		return swap.FailureReason(external).String()
	}

	return swap.FailureUnknown.String()
}

// FailureReason returns the failure reason text of a swap, empty unless the
// swap failed.
func FailureReason(params *swapparams.Store) string {
	return failureReason(params, stateOf(params))
}

func stateOf(params *swapparams.Store) fsm.StateType {
	id, ok, err := params.Enum(swapparams.KindState, swapparams.SlotDefault)
	if err != nil || !ok {
		return Initial
	}

	state, err := StateFromID(id)
	if err != nil {
		return Initial
	}

	return state
}

func externalID(params *swapparams.Store, slot swapparams.Slot) string {
	id, _, _ := params.String(swapparams.KindExternalTxID, slot)
	return id
}

func kernelID(params *swapparams.Store, slot swapparams.Slot) string {
	id, ok, _ := params.Hash(swapparams.KindKernelID, slot)
	if !ok {
		return ""
	}

	return hex.EncodeToString(id[:])
}
