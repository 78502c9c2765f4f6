package subtx

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/stretchr/testify/require"
)

var kernelID = strings.Repeat("ab", 32)

func newTracker(required RequiredConfs) (*Tracker, *swapparams.Store) {
	params := swapparams.NewStore(swapparams.NewTxID())
	return NewTracker(params, required), params
}

// TestTrackerProof tests that a proof is recorded once the requirement is
// met, with the inclusion height derived from the tip.
func TestTrackerProof(t *testing.T) {
	tracker, _ := newTracker(RequiredConfs{Beam: 1, Foreign: 3})

	slot := swapparams.SlotForeignLock
	for confs := uint32(0); confs < 3; confs++ {
		reorg, err := tracker.RecordObservation(Observation{
			Slot:          slot,
			TxID:          "btc-lock",
			Confirmations: confs,
			Height:        800_000 + uint64(confs),
		})
		require.NoError(t, err)
		require.Nil(t, reorg)
		require.False(t, tracker.IsProofReceived(slot))
	}

	_, err := tracker.RecordObservation(Observation{
		Slot: slot, TxID: "btc-lock", Confirmations: 3,
		Height: 800_003,
	})
	require.NoError(t, err)
	require.True(t, tracker.IsProofReceived(slot))

	h, ok := tracker.ProofHeight(slot)
	require.True(t, ok)
	require.EqualValues(t, 800_001, h)

	// Further confirmations don't move the proof height.
	_, err = tracker.RecordObservation(Observation{
		Slot: slot, TxID: "btc-lock", Confirmations: 4,
		Height: 800_004,
	})
	require.NoError(t, err)

	h, _ = tracker.ProofHeight(slot)
	require.EqualValues(t, 800_001, h)

	// The BEAM lock is proven with a single confirmation.
	_, err = tracker.RecordObservation(Observation{
		Slot: swapparams.SlotBeamLock, TxID: kernelID,
		Confirmations: 1, Height: 1005,
	})
	require.NoError(t, err)
	require.True(t, tracker.IsProofReceived(swapparams.SlotBeamLock))

	h, _ = tracker.ProofHeight(swapparams.SlotBeamLock)
	require.EqualValues(t, 1005, h)

	id, ok := tracker.ObservedID(swapparams.SlotBeamLock)
	require.True(t, ok)
	require.Equal(t, kernelID, id)
}

// TestTrackerReorg tests that lost confirmations are reported and revoke the
// proof.
func TestTrackerReorg(t *testing.T) {
	tracker, params := newTracker(RequiredConfs{Foreign: 2})
	slot := swapparams.SlotForeignRedeem

	_, err := tracker.RecordObservation(Observation{
		Slot: slot, TxID: "redeem", Confirmations: 2, Height: 10,
	})
	require.NoError(t, err)
	require.True(t, tracker.IsProofReceived(slot))

	params.MarkClean()

	// A repeated observation changes nothing.
	reorg, err := tracker.RecordObservation(Observation{
		Slot: slot, TxID: "redeem", Confirmations: 2, Height: 10,
	})
	require.NoError(t, err)
	require.Nil(t, reorg)
	require.False(t, params.Dirty())

	reorg, err = tracker.RecordObservation(Observation{
		Slot: slot, TxID: "redeem", Confirmations: 1, Height: 10,
	})
	require.NoError(t, err)
	require.Equal(t, &Reorg{
		Slot: slot, TxID: "redeem", Previous: 2, Current: 1,
	}, reorg)
	require.False(t, tracker.IsProofReceived(slot))

	confs, ok := tracker.Confirmations(slot)
	require.True(t, ok)
	require.EqualValues(t, 1, confs)
}

// TestTrackerReplace tests that another transaction for the same slot
// replaces the previous observation.
func TestTrackerReplace(t *testing.T) {
	tracker, _ := newTracker(RequiredConfs{Foreign: 1})
	slot := swapparams.SlotForeignRefund

	_, err := tracker.RecordObservation(Observation{
		Slot: slot, TxID: "a", Confirmations: 1, Height: 5,
	})
	require.NoError(t, err)
	require.True(t, tracker.IsProofReceived(slot))

	reorg, err := tracker.RecordObservation(Observation{
		Slot: slot, TxID: "b", Confirmations: 0, Height: 6,
	})
	require.NoError(t, err)
	require.Nil(t, reorg)
	require.False(t, tracker.IsProofReceived(slot))

	id, _ := tracker.ObservedID(slot)
	require.Equal(t, "b", id)
}

// TestTrackerInvalid tests rejected observations.
func TestTrackerInvalid(t *testing.T) {
	tracker, params := newTracker(RequiredConfs{})

	_, err := tracker.RecordObservation(Observation{
		Slot: swapparams.SlotDefault, TxID: "x",
	})
	require.ErrorIs(t, err, ErrNotSubTx)

	_, err = tracker.RecordObservation(Observation{
		Slot: swapparams.SlotBeamRedeem, TxID: "not hex",
	})
	require.ErrorIs(t, err, ErrInvalidKernelID)
	require.Zero(t, params.Len())
}

// TestTrackerMonotonic checks that with non-decreasing confirmations the
// proof appears no later than the observation reaching the requirement and
// never disappears, and that it only disappears together with a reorg when
// confirmations go down.
func TestTrackerMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 200; run++ {
		required := uint32(rng.Intn(6) + 1)
		tracker, _ := newTracker(RequiredConfs{Foreign: required})
		slot := swapparams.SlotForeignLock

		var (
			confs  uint32
			proven bool
		)
		for step := 0; step < 20; step++ {
			next := confs + uint32(rng.Intn(3))
			allowReorg := run%2 == 1 && rng.Intn(4) == 0
			if allowReorg && confs > 0 {
				next = uint32(rng.Intn(int(confs)))
			}

			reorg, err := tracker.RecordObservation(Observation{
				Slot:          slot,
				TxID:          "lock",
				Confirmations: next,
				Height:        uint64(100 + step),
			})
			require.NoError(t, err)

			isProven := tracker.IsProofReceived(slot)
			if next >= required {
				require.True(t, isProven)
			}
			if proven && !isProven {
				require.NotNil(t, reorg)
			}
			if next < confs {
				require.NotNil(t, reorg)
			} else {
				require.Nil(t, reorg)
			}

			confs, proven = next, isProven
		}
	}
}
