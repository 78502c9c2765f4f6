package subtx

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/lightninglabs/beamswap/swapparams"
)

var (
	// ErrNotSubTx is returned for observations of the default slot.
	ErrNotSubTx = errors.New("slot is not a sub-transaction")

	// ErrInvalidKernelID is returned for BEAM observations whose id is not
	// a hex encoded kernel id.
	ErrInvalidKernelID = errors.New("invalid kernel id")
)

// Observation is a chain client's report on a sub-transaction.
type Observation struct {
	// Slot is the sub-transaction observed.
	Slot swapparams.Slot

	// TxID is the id of the observed transaction on its chain: the hex
	// kernel id for BEAM slots, the transaction id for foreign slots.
	TxID string

	// Confirmations is the current number of confirmations. Zero means
	// the transaction is known but not mined.
	Confirmations uint32

	// Height is the height of the chain tip the observation was made at.
	Height uint64
}

// Reorg reports that the confirmation count of an observed transaction went
// down.
type Reorg struct {
	// Slot is the sub-transaction affected.
	Slot swapparams.Slot

	// TxID is the id of the transaction that lost confirmations.
	TxID string

	// Previous is the last confirmation count recorded.
	Previous uint32

	// Current is the confirmation count after the reorg.
	Current uint32
}

func (r *Reorg) String() string {
	return fmt.Sprintf("reorg of %v (%v): %d -> %d confirmations", r.Slot,
		r.TxID, r.Previous, r.Current)
}

// RequiredConfs is the number of confirmations after which a sub-transaction
// counts as proven, per chain.
type RequiredConfs struct {
	// Beam applies to the BEAM sub-transactions.
	Beam uint32

	// Foreign applies to the foreign chain sub-transactions.
	Foreign uint32
}

// ForSlot returns the requirement of a slot.
func (r RequiredConfs) ForSlot(slot swapparams.Slot) uint32 {
	if slot.IsBeam() {
		return r.Beam
	}

	return r.Foreign
}

// Tracker keeps the observed state of the sub-transactions of one swap. All
// of it lives in the swap's parameter store, so it survives restarts with
// the store.
type Tracker struct {
	params   *swapparams.Store
	required RequiredConfs
}

// NewTracker returns a tracker writing to the given store.
func NewTracker(params *swapparams.Store, required RequiredConfs) *Tracker {
	if required.Beam == 0 {
		required.Beam = 1
	}
	if required.Foreign == 0 {
		required.Foreign = 1
	}

	return &Tracker{
		params:   params,
		required: required,
	}
}

// Required returns the confirmation requirement of a slot.
func (t *Tracker) Required(slot swapparams.Slot) uint32 {
	return t.required.ForSlot(slot)
}

// RecordObservation applies an observation. Confirmations are monotonic per
// observed transaction: a lower count than recorded is applied but reported
// as a Reorg, and a proof recorded earlier is revoked if the count drops
// below the requirement. An observation of another transaction for the same
// slot replaces the previous one. Repeating an observation is a no-op.
func (t *Tracker) RecordObservation(obs Observation) (*Reorg, error) {
	if !obs.Slot.Valid() || obs.Slot == swapparams.SlotDefault {
		return nil, fmt.Errorf("%w: %v", ErrNotSubTx, obs.Slot)
	}

	prevID, seen := t.ObservedID(obs.Slot)
	prevConfs, _ := t.Confirmations(obs.Slot)

	var reorg *Reorg
	switch {
	case !seen || prevID != obs.TxID:
		if err := t.setObservedID(obs.Slot, obs.TxID); err != nil {
			return nil, err
		}
		t.params.Clear(swapparams.KindKernelProofHeight, obs.Slot)

	case obs.Confirmations < prevConfs:
		reorg = &Reorg{
			Slot:     obs.Slot,
			TxID:     obs.TxID,
			Previous: prevConfs,
			Current:  obs.Confirmations,
		}

	case obs.Confirmations == prevConfs:
		return nil, nil
	}

	err := t.params.SetUint64(
		swapparams.KindConfirmations, obs.Slot,
		uint64(obs.Confirmations),
	)
	if err != nil {
		return nil, err
	}

	required := t.Required(obs.Slot)
	switch {
	case obs.Confirmations < required:
		t.params.Clear(swapparams.KindKernelProofHeight, obs.Slot)

	case !t.IsProofReceived(obs.Slot):
		err := t.params.SetUint64(
			swapparams.KindKernelProofHeight, obs.Slot,
			inclusionHeight(obs.Height, obs.Confirmations),
		)
		if err != nil {
			return nil, err
		}
	}

	return reorg, nil
}

// inclusionHeight returns the height of the block that included a
// transaction with the given number of confirmations at the tip height.
func inclusionHeight(tip uint64, confs uint32) uint64 {
	if confs == 0 || tip < uint64(confs)-1 {
		return tip
	}

	return tip - uint64(confs) + 1
}

func (t *Tracker) setObservedID(slot swapparams.Slot, id string) error {
	if !slot.IsBeam() {
		return t.params.SetString(swapparams.KindExternalTxID, slot, id)
	}

	b, err := hex.DecodeString(id)
	if err != nil || len(b) != 32 {
		return fmt.Errorf("%w: %q", ErrInvalidKernelID, id)
	}

	var kernel [32]byte
	copy(kernel[:], b)

	return t.params.SetHash(swapparams.KindKernelID, slot, kernel)
}

// ObservedID returns the id of the transaction observed for a slot.
func (t *Tracker) ObservedID(slot swapparams.Slot) (string, bool) {
	if slot.IsBeam() {
		kernel, ok, err := t.params.Hash(swapparams.KindKernelID, slot)
		if err != nil || !ok {
			return "", false
		}

		return hex.EncodeToString(kernel[:]), true
	}

	id, ok, err := t.params.String(swapparams.KindExternalTxID, slot)
	if err != nil || !ok {
		return "", false
	}

	return id, true
}

// Confirmations returns the last recorded confirmation count of a slot.
func (t *Tracker) Confirmations(slot swapparams.Slot) (uint32, bool) {
	confs, ok, err := t.params.Uint64(swapparams.KindConfirmations, slot)
	if err != nil || !ok {
		return 0, false
	}

	return uint32(confs), true
}

// ProofHeight returns the height at which inclusion of the slot's
// transaction was proven.
func (t *Tracker) ProofHeight(slot swapparams.Slot) (uint64, bool) {
	h, ok, err := t.params.Uint64(swapparams.KindKernelProofHeight, slot)
	if err != nil {
		return 0, false
	}

	return h, ok
}

// IsProofReceived returns true once the slot's transaction reached its
// required confirmations.
func (t *Tracker) IsProofReceived(slot swapparams.Slot) bool {
	return t.params.Has(swapparams.KindKernelProofHeight, slot)
}

// IsObserved returns true once any transaction was observed for the slot.
func (t *Tracker) IsObserved(slot swapparams.Slot) bool {
	_, ok := t.ObservedID(slot)
	return ok
}
