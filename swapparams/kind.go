package swapparams

import "fmt"

// Kind identifies a negotiable or derived swap parameter. The numeric value
// is used as the persisted and wire-level identifier of the parameter, so
// existing values must never be renumbered.
type Kind uint8

const (
	// KindPeerID is the identity key of the counterparty wallet.
	KindPeerID Kind = 1

	// KindMyID is the identity key of the local wallet.
	KindMyID Kind = 2

	// KindIsInitiator is true for the side that created the offer.
	KindIsInitiator Kind = 3

	// KindIsSender is true for the side that sends the swap coin.
	KindIsSender Kind = 4

	// KindIsBeamSide is true for the side that owns the BEAM leg.
	KindIsBeamSide Kind = 5

	// KindTransactionType tags the transaction as an atomic swap.
	KindTransactionType Kind = 6

	// KindSwapCoin is the foreign coin of the swap.
	KindSwapCoin Kind = 7

	// KindSwapAmount is the foreign coin amount in its base unit.
	KindSwapAmount Kind = 8

	// KindAmount is the BEAM amount in groth.
	KindAmount Kind = 9

	// KindFee is the fee (or fee rate for foreign sub-transactions) of a
	// single sub-transaction.
	KindFee Kind = 10

	// KindMinHeight is the BEAM height at which the swap was negotiated.
	KindMinHeight Kind = 11

	// KindLifetime is the number of BEAM blocks the swap stays valid.
	KindLifetime Kind = 12

	// KindPeerResponseTime is the number of BEAM blocks the peer has to
	// respond to the offer.
	KindPeerResponseTime Kind = 13

	// KindCreateTime is the unix creation time of the offer.
	KindCreateTime Kind = 14

	// KindInternalFailureReason is a protocol detected failure.
	KindInternalFailureReason Kind = 15

	// KindFailureReason is a failure propagated from a sub-transaction or
	// the peer.
	KindFailureReason Kind = 16

	// KindKernelID is the kernel id of a BEAM sub-transaction.
	KindKernelID Kind = 17

	// KindConfirmations is the last observed confirmation count of a
	// sub-transaction.
	KindConfirmations Kind = 18

	// KindState is the current protocol state of the swap.
	KindState Kind = 19

	// KindExternalTxID is the foreign chain id of a sub-transaction.
	KindExternalTxID Kind = 20

	// KindKernelProofHeight is the height at which inclusion of a
	// sub-transaction was proven.
	KindKernelProofHeight Kind = 21

	// KindLockExpiryHeight is the height, in the chain of the slot, after
	// which a lock can be refunded.
	KindLockExpiryHeight Kind = 22

	// KindSecretHash is the hash lock shared by both legs.
	KindSecretHash Kind = 23

	// KindSecret is the preimage of the hash lock.
	KindSecret Kind = 24

	// KindPeerAccepted records that both sides agreed on the offer.
	KindPeerAccepted Kind = 25

	// KindPeerLockReady records that the peer is ready to fund its leg.
	KindPeerLockReady Kind = 26

	// KindContractKey is the public key a side spends the foreign lock
	// contract with. It is stored in the slot of the spend: the redeem
	// slot for the BEAM side, the refund slot for the foreign side.
	KindContractKey Kind = 27
)

// kindInfo binds a parameter kind to its name and its only value type.
type kindInfo struct {
	name string
	typ  ValueType
}

var kinds = map[Kind]kindInfo{
	KindPeerID:                {"PeerID", TypeBytes},
	KindMyID:                  {"MyID", TypeBytes},
	KindIsInitiator:           {"IsInitiator", TypeBool},
	KindIsSender:              {"IsSender", TypeBool},
	KindIsBeamSide:            {"IsBeamSide", TypeBool},
	KindTransactionType:       {"TransactionType", TypeEnum},
	KindSwapCoin:              {"SwapCoin", TypeEnum},
	KindSwapAmount:            {"SwapAmount", TypeUint64},
	KindAmount:                {"Amount", TypeUint64},
	KindFee:                   {"Fee", TypeUint64},
	KindMinHeight:             {"MinHeight", TypeUint64},
	KindLifetime:              {"Lifetime", TypeUint64},
	KindPeerResponseTime:      {"PeerResponseTime", TypeUint64},
	KindCreateTime:            {"CreateTime", TypeUint64},
	KindInternalFailureReason: {"InternalFailureReason", TypeEnum},
	KindFailureReason:         {"FailureReason", TypeEnum},
	KindKernelID:              {"KernelID", TypeHash},
	KindConfirmations:         {"Confirmations", TypeUint64},
	KindState:                 {"State", TypeEnum},
	KindExternalTxID:          {"ExternalTxID", TypeString},
	KindKernelProofHeight:     {"KernelProofHeight", TypeUint64},
	KindLockExpiryHeight:      {"LockExpiryHeight", TypeUint64},
	KindSecretHash:            {"SecretHash", TypeHash},
	KindSecret:                {"Secret", TypeHash},
	KindPeerAccepted:          {"PeerAccepted", TypeBool},
	KindPeerLockReady:         {"PeerLockReady", TypeBool},
	KindContractKey:           {"ContractKey", TypeBytes},
}

// Known returns true if the kind is part of the closed kind enumeration.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

// Type returns the value type bound to the kind.
func (k Kind) Type() ValueType {
	info, ok := kinds[k]
	if !ok {
		return TypeInvalid
	}

	return info.typ
}

func (k Kind) String() string {
	info, ok := kinds[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}

	return info.name
}

// Slot identifies the sub-transaction a parameter belongs to. Like Kind, the
// numeric values are persisted and sent over the wire.
type Slot uint8

const (
	// SlotDefault holds the top-level parameters of a swap.
	SlotDefault Slot = 1

	// SlotBeamLock is the BEAM lock sub-transaction.
	SlotBeamLock Slot = 2

	// SlotBeamRefund is the BEAM refund sub-transaction.
	SlotBeamRefund Slot = 3

	// SlotBeamRedeem is the BEAM redeem sub-transaction.
	SlotBeamRedeem Slot = 4

	// SlotForeignLock is the foreign chain lock (HTLC) transaction.
	SlotForeignLock Slot = 5

	// SlotForeignRefund is the foreign chain refund transaction.
	SlotForeignRefund Slot = 6

	// SlotForeignRedeem is the foreign chain redeem transaction.
	SlotForeignRedeem Slot = 7
)

// Valid returns true for the default slot and the six sub-transaction slots.
func (s Slot) Valid() bool {
	return s >= SlotDefault && s <= SlotForeignRedeem
}

// IsBeam returns true if the slot is a sub-transaction on the BEAM chain.
func (s Slot) IsBeam() bool {
	return s == SlotBeamLock || s == SlotBeamRefund || s == SlotBeamRedeem
}

// IsForeign returns true if the slot is a sub-transaction on the foreign
// chain.
func (s Slot) IsForeign() bool {
	return s == SlotForeignLock || s == SlotForeignRefund ||
		s == SlotForeignRedeem
}

func (s Slot) String() string {
	switch s {
	case SlotDefault:
		return "Default"

	case SlotBeamLock:
		return "BeamLock"

	case SlotBeamRefund:
		return "BeamRefund"

	case SlotBeamRedeem:
		return "BeamRedeem"

	case SlotForeignLock:
		return "ForeignLock"

	case SlotForeignRefund:
		return "ForeignRefund"

	case SlotForeignRedeem:
		return "ForeignRedeem"

	default:
		return fmt.Sprintf("Slot(%d)", uint8(s))
	}
}

// SubTxSlots lists every sub-transaction slot in wire order.
var SubTxSlots = []Slot{
	SlotBeamLock, SlotBeamRefund, SlotBeamRedeem,
	SlotForeignLock, SlotForeignRefund, SlotForeignRedeem,
}
