package atomicswap

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
)

// contractSearchDepth is how far below the tip a chain client looks for the
// funding transaction of a contract whose inclusion height we don't know.
const contractSearchDepth = 1008

// usesContractKeys returns true if our builder spends the foreign contract
// with keys the peers exchange.
func (f *FSM) usesContractKeys() bool {
	_, ok := f.cfg.Builder.(KeySource)
	return ok
}

// ownKeySlot is the slot of the spend of the foreign contract that is ours.
func (f *FSM) ownKeySlot() swapparams.Slot {
	if f.isBeamSide() {
		return swapparams.SlotForeignRedeem
	}

	return swapparams.SlotForeignRefund
}

// peerKeySlot is the slot of the spend of the foreign contract that is the
// peer's.
func (f *FSM) peerKeySlot() swapparams.Slot {
	if f.isBeamSide() {
		return swapparams.SlotForeignRefund
	}

	return swapparams.SlotForeignRedeem
}

// loadContractKey asks the builder for our contract key once.
func (f *FSM) loadContractKey(ctx context.Context) error {
	keys, ok := f.cfg.Builder.(KeySource)
	if !ok {
		return nil
	}

	slot := f.ownKeySlot()
	if f.params.Has(swapparams.KindContractKey, slot) {
		return nil
	}

	key, err := keys.ContractKey(ctx, f.ID(), slot)
	if err != nil {
		return err
	}

	return f.params.SetBytes(swapparams.KindContractKey, slot, key[:])
}

// contractKey returns the contract key of a slot if it is a valid public
// key.
func (f *FSM) contractKey(slot swapparams.Slot) ([33]byte, bool) {
	var key [33]byte

	b, ok, err := f.params.Bytes(swapparams.KindContractKey, slot)
	if err != nil || !ok || len(b) != len(key) {
		return key, false
	}

	if _, err := btcec.ParsePubKey(b); err != nil {
		return key, false
	}
	copy(key[:], b)

	return key, true
}

// contract returns the foreign lock contract once all of its terms are
// known.
func (f *FSM) contract(ctx context.Context, chain ChainClient) (*Contract,
	bool) {

	txID, ok := f.tracker.ObservedID(swapparams.SlotForeignLock)
	if !ok {
		return nil, false
	}

	hash, ok := f.secretHash()
	if !ok {
		return nil, false
	}

	redeemKey, ok := f.contractKey(swapparams.SlotForeignRedeem)
	if !ok {
		return nil, false
	}
	refundKey, ok := f.contractKey(swapparams.SlotForeignRefund)
	if !ok {
		return nil, false
	}

	lockHeight, ok := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotForeignLock,
	)
	if !ok {
		return nil, false
	}
	amount, ok := f.uint64Param(
		swapparams.KindSwapAmount, swapparams.SlotDefault,
	)
	if !ok {
		return nil, false
	}

	hint, ok := f.uint64Param(
		swapparams.KindKernelProofHeight, swapparams.SlotForeignLock,
	)
	if !ok {
		height, err := chain.CurrentHeight(ctx)
		if err != nil {
			return nil, false
		}

		hint = 0
		if height > contractSearchDepth {
			hint = height - contractSearchDepth
		}
	}

	return &Contract{
		TxID:       txID,
		SecretHash: hash,
		RedeemKey:  redeemKey,
		RefundKey:  refundKey,
		LockHeight: lockHeight,
		Amount:     amount,
		HeightHint: hint,
	}, true
}

// watchContract hands the foreign lock contract to a chain that checks it.
// It runs on every poll of a foreign transaction, so a restarted chain
// client picks the contract up again.
func (f *FSM) watchContract(ctx context.Context, chain ChainClient) {
	watcher, ok := chain.(ContractWatcher)
	if !ok {
		return
	}

	contract, ok := f.contract(ctx, chain)
	if !ok {
		return
	}

	if err := watcher.WatchContract(ctx, contract); err != nil {
		f.Debugf("unable to watch contract: %v", err)
	}
}

// foreignLockMargin returns by how many foreign blocks the foreign lock
// outlives our lock plus the confirmation of our redeem. A negative margin
// lets the peer refund before we are able to redeem.
func (f *FSM) foreignLockMargin(ctx context.Context, chain ChainClient,
	beamHeight uint64) (int64, error) {

	coin, err := swapCoin(f.params)
	if err != nil {
		return 0, err
	}

	foreignHeight, err := chain.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}

	beamExpiry, _ := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotBeamLock,
	)
	foreignExpiry, _ := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotForeignLock,
	)

	var beamLeft time.Duration
	if beamExpiry > beamHeight {
		beamLeft = time.Duration(beamExpiry-beamHeight) *
			swap.BeamBlockInterval
	}

	needed := swap.DurationToBlocks(beamLeft, coin.BlockInterval()) +
		uint64(f.cfg.requiredConfs(coin).Foreign)

	return int64(foreignExpiry) - int64(foreignHeight) - int64(needed),
		nil
}
