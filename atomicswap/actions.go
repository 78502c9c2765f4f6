package atomicswap

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/labels"
	"github.com/lightninglabs/beamswap/subtx"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightningnetwork/lnd/lntypes"
)

var (
	// ErrNoForeignChain is returned for swaps of a coin without a
	// configured chain client.
	ErrNoForeignChain = errors.New("no chain client for coin")

	// ErrMissingParam is returned when a parameter every swap carries is
	// absent.
	ErrMissingParam = errors.New("missing swap parameter")
)

// CancelRequest is the event context of OnCancel.
type CancelRequest struct {
	// ByPeer is true if the counterparty canceled the swap.
	ByPeer bool
}

// InitialAction waits for both sides to agree on the offer. The acceptor
// keeps announcing its acceptance, the initiator checks the announced terms
// against its own. The swap expires if the handshake does not complete
// within the peer response time.
func (f *FSM) InitialAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	height, ok := f.beamHeight(ctx)
	if !ok {
		return fsm.NoOp
	}

	minHeight, err := f.requireUint64(swapparams.KindMinHeight)
	if err != nil {
		return f.HandleError(err)
	}
	responseTime, err := f.requireUint64(swapparams.KindPeerResponseTime)
	if err != nil {
		return f.HandleError(err)
	}

	if swap.DeadlinePassed(height, minHeight+responseTime) {
		f.Infof("no handshake before height %d",
			minHeight+responseTime)

		return f.failInternal(swap.FailureTransactionExpired)
	}

	if !f.peerAccepted() {
		if !f.isInitiator() {
			f.sendAccept(ctx)
			return fsm.NoOp
		}

		if f.peerOffer == nil {
			return fsm.NoOp
		}

		offer := f.peerOffer
		f.peerOffer = nil

		if err := f.checkOffer(offer); err != nil {
			f.Warnf("peer offer rejected: %v", err)
			return f.failExternal(swap.FailureParametersMismatch)
		}

		peerID, _, _ := offer.Bytes(
			swapparams.KindMyID, swapparams.SlotDefault,
		)
		err := f.params.SetBytes(
			swapparams.KindPeerID, swapparams.SlotDefault, peerID,
		)
		if err != nil {
			return f.HandleError(err)
		}
		err = f.params.SetBool(
			swapparams.KindPeerAccepted, swapparams.SlotDefault, true,
		)
		if err != nil {
			return f.HandleError(err)
		}

		f.Infof("handshake completed")
		f.sendAck(ctx)
	}

	if f.isBeamSide() {
		return OnBuildBeamLock
	}

	return OnBuildForeignLock
}

// handshakeKinds are the terms both sides must agree on.
var handshakeKinds = []swapparams.Kind{
	swapparams.KindAmount,
	swapparams.KindSwapAmount,
	swapparams.KindSwapCoin,
	swapparams.KindMinHeight,
	swapparams.KindLifetime,
}

// checkOffer compares the terms the acceptor announced with our own.
func (f *FSM) checkOffer(offer *swapparams.Store) error {
	for _, kind := range handshakeKinds {
		ours, ok := f.params.Get(kind, swapparams.SlotDefault)
		if !ok {
			return fmt.Errorf("%w: %v", ErrMissingParam, kind)
		}

		theirs, ok := offer.Get(kind, swapparams.SlotDefault)
		if !ok || !ours.Equal(theirs) {
			return fmt.Errorf("%v mismatch: %v != %v", kind, theirs,
				ours)
		}
	}

	peerBeamSide, ok, err := offer.Bool(
		swapparams.KindIsBeamSide, swapparams.SlotDefault,
	)
	if err != nil || !ok {
		return fmt.Errorf("%w: peer %v", ErrMissingParam,
			swapparams.KindIsBeamSide)
	}
	if peerBeamSide == f.isBeamSide() {
		return errors.New("both sides own the same leg")
	}

	peerID, ok, err := offer.Bytes(
		swapparams.KindMyID, swapparams.SlotDefault,
	)
	if err != nil || !ok || len(peerID) == 0 {
		return fmt.Errorf("%w: peer %v", ErrMissingParam,
			swapparams.KindMyID)
	}

	return nil
}

// BuildLockAction builds our lock transaction and waits for the peer to be
// ready to fund its own. The foreign side also generates the secret here.
func (f *FSM) BuildLockAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	height, ok := f.beamHeight(ctx)
	if !ok {
		return fsm.NoOp
	}

	if swap.DeadlineReached(height, f.swapExpiryHeight()) {
		f.Infof("swap lifetime ended at height %d",
			f.swapExpiryHeight())

		return f.failInternal(swap.FailureTransactionExpired)
	}

	slot := f.lockSlot()
	if !f.params.Has(swapparams.KindLockExpiryHeight, slot) {
		if err := f.loadContractKey(ctx); err != nil {
			f.Debugf("unable to get contract key: %v", err)
			return fsm.NoOp
		}

		// The contract pays to the key of the BEAM side.
		peerKey := f.peerKeySlot()
		if !f.isBeamSide() && f.usesContractKeys() &&
			!f.params.Has(swapparams.KindContractKey, peerKey) {

			return fsm.NoOp
		}

		if !f.isBeamSide() && !f.hasSecret() {
			if err := f.generateSecret(); err != nil {
				return f.HandleError(err)
			}
		}

		tx, err := f.build(ctx, slot)
		if err != nil {
			return f.handleBuildError(slot, err)
		}

		if err := f.recordLock(slot, tx); err != nil {
			return f.HandleError(err)
		}

		f.Infof("built %v transaction %v", slot, tx.ID)
	}

	f.sendLockInfo(ctx)

	if !f.peerLockReady() {
		return fsm.NoOp
	}

	return OnLockBuilt
}

// recordLock stores what the peer needs to know about our lock.
func (f *FSM) recordLock(slot swapparams.Slot, tx *SubTx) error {
	expiry := tx.LockExpiryHeight
	if slot.IsBeam() && expiry == 0 {
		expiry = f.swapExpiryHeight()
	}
	if expiry == 0 {
		return fmt.Errorf("%w: %v of %v", ErrMissingParam,
			swapparams.KindLockExpiryHeight, slot)
	}

	if slot.IsBeam() {
		kernel, err := parseKernelID(tx.ID)
		if err != nil {
			return err
		}

		err = f.params.SetHash(swapparams.KindKernelID, slot, kernel)
		if err != nil {
			return err
		}
	} else {
		err := f.params.SetString(swapparams.KindExternalTxID, slot, tx.ID)
		if err != nil {
			return err
		}
	}

	err := f.params.SetUint64(swapparams.KindFee, slot, tx.Fee)
	if err != nil {
		return err
	}

	return f.params.SetUint64(swapparams.KindLockExpiryHeight, slot, expiry)
}

// HandleContractAction drives the funding of the foreign contract. The
// foreign side publishes it, the BEAM side waits until it is confirmed.
func (f *FSM) HandleContractAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	chain, err := f.foreignChain()
	if err != nil {
		f.Errorf("%v", err)
		return fsm.NoOp
	}

	if f.isBeamSide() {
		return f.awaitForeignLock(ctx, chain)
	}

	return f.publishForeignLock(ctx, chain)
}

// awaitForeignLock is the BEAM side of HandlingContractTx.
func (f *FSM) awaitForeignLock(ctx context.Context,
	chain ChainClient) fsm.EventType {

	height, ok := f.beamHeight(ctx)
	if !ok {
		return fsm.NoOp
	}

	// Nothing of ours is locked yet, so an expired lock just fails the
	// swap.
	expiry, _ := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotBeamLock,
	)
	if swap.DeadlineReached(height, expiry) {
		f.Infof("foreign lock not confirmed before height %d", expiry)
		return f.failInternal(swap.FailureTransactionExpired)
	}

	f.sendLockInfo(ctx)

	if !f.params.Has(swapparams.KindSecretHash, swapparams.SlotDefault) ||
		!f.params.Has(
			swapparams.KindLockExpiryHeight,
			swapparams.SlotForeignLock,
		) || !f.tracker.IsObserved(swapparams.SlotForeignLock) {

		return fsm.NoOp
	}

	if f.usesContractKeys() {
		peerKey := f.peerKeySlot()
		if !f.params.Has(swapparams.KindContractKey, peerKey) {
			return fsm.NoOp
		}

		if _, ok := f.contractKey(peerKey); !ok {
			f.Warnf("invalid contract key of peer")
			return f.failExternal(swap.FailureParametersMismatch)
		}
	}

	confirmed, err := f.observe(ctx, chain, swapparams.SlotForeignLock)
	if rejected, ok := rejection(err); ok {
		f.Errorf("foreign lock rejected: %v", err)
		return f.failExternal(rejected.Reason)
	}
	if !confirmed {
		return fsm.NoOp
	}

	margin, err := f.foreignLockMargin(ctx, chain, height)
	if err != nil {
		f.Debugf("unable to check foreign lock expiry: %v", err)
		return fsm.NoOp
	}
	if margin < 0 {
		f.Warnf("foreign lock expires %d blocks too early", -margin)
		return f.failExternal(swap.FailureParametersMismatch)
	}

	f.Infof("foreign lock confirmed")

	return OnForeignLockConfirmed
}

// publishForeignLock is the foreign side of HandlingContractTx.
func (f *FSM) publishForeignLock(ctx context.Context,
	chain ChainClient) fsm.EventType {

	if !f.published(swapparams.SlotForeignLock) {
		height, err := chain.CurrentHeight(ctx)
		if err != nil {
			f.Debugf("unable to get foreign height: %v", err)
			return fsm.NoOp
		}

		expiry, _ := f.uint64Param(
			swapparams.KindLockExpiryHeight,
			swapparams.SlotForeignLock,
		)
		if swap.DeadlineReached(height, expiry) {
			f.Infof("foreign lock expired before it was published")
			return f.failInternal(swap.FailureTransactionExpired)
		}

		err = f.publish(ctx, chain, swapparams.SlotForeignLock)
		if err != nil {
			if rejected, ok := rejection(err); ok {
				f.Errorf("foreign lock rejected: %v", err)
				return f.failExternal(rejected.Reason)
			}

			f.Debugf("unable to publish foreign lock: %v", err)
			return fsm.NoOp
		}

		f.Infof("foreign lock published")
	}

	f.sendLockInfo(ctx)

	return OnForeignLockPublished
}

// SendBeamLockAction publishes the BEAM lock once the foreign lock is
// confirmed, then waits for the secret. If the lock expires before the
// secret is revealed it is refunded.
func (f *FSM) SendBeamLockAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	height, ok := f.beamHeight(ctx)
	if !ok {
		return fsm.NoOp
	}

	expiry, _ := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotBeamLock,
	)

	if !f.published(swapparams.SlotBeamLock) {
		if swap.DeadlineReached(height, expiry) {
			f.Infof("lock expired before it was published")
			return f.failInternal(swap.FailureTransactionExpired)
		}

		foreign, err := f.foreignChain()
		if err != nil {
			f.Errorf("%v", err)
			return fsm.NoOp
		}

		// A reorg may have undone the foreign lock since we last
		// looked.
		confirmed, err := f.observe(
			ctx, foreign, swapparams.SlotForeignLock,
		)
		if rejected, ok := rejection(err); ok {
			f.Errorf("foreign lock rejected: %v", err)
			return f.failExternal(rejected.Reason)
		}
		if !confirmed {
			f.Debugf("foreign lock lost its confirmations")
			return fsm.NoOp
		}

		err = f.publish(ctx, f.cfg.BeamChain, swapparams.SlotBeamLock)
		if err != nil {
			if rejected, ok := rejection(err); ok {
				f.Errorf("lock rejected: %v", err)
				return f.failExternal(rejected.Reason)
			}

			f.Debugf("unable to publish lock: %v", err)
			return fsm.NoOp
		}

		f.Infof("lock published")
	}

	f.poll(ctx, f.cfg.BeamChain, swapparams.SlotBeamLock)

	if f.hasSecret() || f.findSecret(ctx) {
		f.Infof("secret revealed")
		return OnSecretRevealed
	}

	if swap.DeadlineReached(height, expiry) {
		f.Infof("lock expired at height %d without a redeem", expiry)
		return OnLockExpired
	}

	return fsm.NoOp
}

// SendForeignLockAction waits until both locks are confirmed. If our lock
// expires first it is refunded.
func (f *FSM) SendForeignLockAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	foreign, err := f.foreignChain()
	if err != nil {
		f.Errorf("%v", err)
		return fsm.NoOp
	}

	if f.foreignLockExpired(ctx, foreign) {
		f.Infof("lock expired without a redeem")
		return OnLockExpired
	}

	f.sendLockInfo(ctx)

	ownConfirmed := f.poll(ctx, foreign, swapparams.SlotForeignLock)

	if !f.tracker.IsObserved(swapparams.SlotBeamLock) {
		return fsm.NoOp
	}
	peerConfirmed := f.poll(ctx, f.cfg.BeamChain, swapparams.SlotBeamLock)

	if !ownConfirmed || !peerConfirmed {
		return fsm.NoOp
	}

	// The peer may refund its lock from its expiry on, redeeming it then
	// would only reveal the secret.
	height, ok := f.beamHeight(ctx)
	if !ok {
		return fsm.NoOp
	}
	beamExpiry, _ := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotBeamLock,
	)
	if swap.DeadlineReached(height, beamExpiry) {
		f.Debugf("peer lock expired, waiting for our own to expire")
		return fsm.NoOp
	}

	f.Infof("both locks confirmed")

	return OnLocksConfirmed
}

// RedeemAction publishes the redeem transaction of the peer's lock and
// waits for it to be proven.
func (f *FSM) RedeemAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	slot, chain, err := f.redeemTarget()
	if err != nil {
		f.Errorf("%v", err)
		return fsm.NoOp
	}

	// As long as our redeem is not out, the secret is not public and our
	// own lock is still ours to refund. Once the peer may refund its
	// lock, the redeem would only reveal the secret.
	if !f.isBeamSide() && !f.published(slot) {
		height, ok := f.beamHeight(ctx)
		if !ok {
			return fsm.NoOp
		}

		foreign, err := f.foreignChain()
		if err != nil {
			f.Errorf("%v", err)
			return fsm.NoOp
		}

		if f.foreignLockExpired(ctx, foreign) {
			f.Infof("lock expired before redeem")
			return OnLockExpired
		}

		expiry, _ := f.uint64Param(
			swapparams.KindLockExpiryHeight,
			swapparams.SlotBeamLock,
		)
		if swap.DeadlineReached(height, expiry) {
			f.Debugf("peer lock expired before redeem, waiting " +
				"for our own to expire")

			return fsm.NoOp
		}
	}

	if !f.published(slot) {
		err := f.publish(ctx, chain, slot)
		switch {
		case err == nil:
			f.Infof("%v published", slot)

		case errors.Is(err, ErrRejected):
			f.Warnf("%v rejected, retrying: %v", slot, err)
			return fsm.NoOp

		default:
			f.Debugf("unable to publish %v: %v", slot, err)
			return fsm.NoOp
		}
	}

	if !f.isBeamSide() {
		f.sendSecret(ctx)
	}

	if !f.poll(ctx, chain, slot) {
		return fsm.NoOp
	}

	f.Infof("%v confirmed", slot)

	return OnRedeemConfirmed
}

// RefundAction publishes the refund transaction of our lock and waits for
// it to be proven.
func (f *FSM) RefundAction(ctx context.Context,
	_ fsm.EventContext) fsm.EventType {

	slot, chain, err := f.refundTarget()
	if err != nil {
		f.Errorf("%v", err)
		return fsm.NoOp
	}

	if !f.published(slot) {
		err := f.publish(ctx, chain, slot)
		switch {
		case err == nil:
			f.Infof("%v published", slot)

		case errors.Is(err, ErrRejected):
			// The peer may have redeemed our lock, revealing the
			// secret to its own.
			revealed := f.isBeamSide() &&
				(f.hasSecret() || f.findSecret(ctx))
			if revealed {
				f.Infof("%v rejected, secret revealed: %v",
					slot, err)

				return OnSecretRevealed
			}

			f.Warnf("%v rejected, retrying: %v", slot, err)
			return fsm.NoOp

		default:
			f.Debugf("unable to publish %v: %v", slot, err)
			return fsm.NoOp
		}
	}

	if !f.poll(ctx, chain, slot) {
		return fsm.NoOp
	}

	f.Infof("%v confirmed", slot)

	return OnRefundConfirmed
}

// CancelledAction records who canceled the swap and tells the peer if it
// was us.
func (f *FSM) CancelledAction(ctx context.Context,
	eventCtx fsm.EventContext) fsm.EventType {

	req, ok := eventCtx.(*CancelRequest)
	if ok && req.ByPeer {
		f.Infof("canceled by peer")
		err := f.setReason(
			swapparams.KindFailureReason, swap.FailurePeerCanceled,
		)
		if err != nil {
			f.Errorf("unable to record reason: %v", err)
		}

		return fsm.NoOp
	}

	f.Infof("canceled")
	err := f.setReason(
		swapparams.KindInternalFailureReason, swap.FailureCanceled,
	)
	if err != nil {
		f.Errorf("unable to record reason: %v", err)
	}
	f.sendCancel(ctx)

	return fsm.NoOp
}

// failInternal records a protocol detected failure.
func (f *FSM) failInternal(reason swap.FailureReason) fsm.EventType {
	err := f.setReason(swapparams.KindInternalFailureReason, reason)
	if err != nil {
		return f.HandleError(err)
	}

	return OnFailed
}

// failExternal records a failure reported by a chain or the peer.
func (f *FSM) failExternal(reason swap.FailureReason) fsm.EventType {
	err := f.setReason(swapparams.KindFailureReason, reason)
	if err != nil {
		return f.HandleError(err)
	}

	return OnFailed
}

func (f *FSM) setReason(kind swapparams.Kind,
	reason swap.FailureReason) error {

	return f.params.SetEnum(kind, swapparams.SlotDefault, uint64(reason))
}

// handleBuildError fails the swap on a definitive error and defers on any
// other.
func (f *FSM) handleBuildError(slot swapparams.Slot,
	err error) fsm.EventType {

	if rejected, ok := rejection(err); ok {
		f.Errorf("unable to build %v: %v", slot, err)
		return f.failExternal(rejected.Reason)
	}

	f.Debugf("unable to build %v: %v", slot, err)

	return fsm.NoOp
}

// build asks the builder for a sub-transaction.
func (f *FSM) build(ctx context.Context, slot swapparams.Slot) (*SubTx,
	error) {

	return f.cfg.Builder.BuildSubTx(ctx, &SubTxRequest{
		ID:     f.ID(),
		Slot:   slot,
		Params: f.params.Clone(),
	})
}

// publish builds and broadcasts a sub-transaction and starts tracking it.
func (f *FSM) publish(ctx context.Context, chain ChainClient,
	slot swapparams.Slot) error {

	tx, err := f.build(ctx, slot)
	if err != nil {
		return err
	}

	txID, err := chain.Broadcast(
		ctx, tx.Raw, labels.SubTxLabel(slot, f.ID()),
	)
	if err != nil {
		return err
	}
	if txID == "" {
		txID = tx.ID
	}

	_, err = f.tracker.RecordObservation(subtx.Observation{
		Slot: slot,
		TxID: txID,
	})
	if err != nil {
		return err
	}

	// A transaction whose id was recorded at build time is not observed
	// anew, so mark it published explicitly.
	if !f.params.Has(swapparams.KindConfirmations, slot) {
		err := f.params.SetUint64(swapparams.KindConfirmations, slot, 0)
		if err != nil {
			return err
		}
	}

	return f.params.SetUint64(swapparams.KindFee, slot, tx.Fee)
}

// published returns true once our transaction of the slot was broadcast.
func (f *FSM) published(slot swapparams.Slot) bool {
	return f.params.Has(swapparams.KindConfirmations, slot)
}

// poll refreshes the confirmations of the transaction observed for the slot
// and returns whether its inclusion is proven.
func (f *FSM) poll(ctx context.Context, chain ChainClient,
	slot swapparams.Slot) bool {

	proven, err := f.observe(ctx, chain, slot)
	if err != nil {
		f.Warnf("%v: %v", slot, err)
	}

	return proven
}

// observe is poll for callers that act on a rejection of the transaction,
// which is the only error it returns.
func (f *FSM) observe(ctx context.Context, chain ChainClient,
	slot swapparams.Slot) (bool, error) {

	txID, ok := f.tracker.ObservedID(slot)
	if !ok {
		return false, nil
	}

	if slot.IsForeign() {
		f.watchContract(ctx, chain)
	}

	height, err := chain.CurrentHeight(ctx)
	if err != nil {
		f.Debugf("unable to get height for %v: %v", slot, err)
		return f.tracker.IsProofReceived(slot), nil
	}

	confs, err := chain.GetConfirmations(ctx, txID)
	if _, ok := rejection(err); ok {
		return false, err
	}
	if err != nil {
		f.Debugf("unable to get confirmations of %v: %v", slot, err)
		return f.tracker.IsProofReceived(slot), nil
	}

	reorg, err := f.tracker.RecordObservation(subtx.Observation{
		Slot:          slot,
		TxID:          txID,
		Confirmations: confs,
		Height:        height,
	})
	if err != nil {
		f.Errorf("unable to record %v observation: %v", slot, err)
		return false, nil
	}
	if reorg != nil {
		f.Warnf("%v", reorg)
	}

	return f.tracker.IsProofReceived(slot), nil
}

// findSecret asks the BEAM chain for the secret revealed by the redeem of
// the BEAM lock.
func (f *FSM) findSecret(ctx context.Context) bool {
	finder, ok := f.cfg.BeamChain.(SecretFinder)
	if !ok {
		return false
	}

	hash, ok := f.secretHash()
	if !ok {
		return false
	}

	secret, err := finder.FindSecret(ctx, hash)
	if err != nil {
		f.Debugf("unable to look up secret: %v", err)
		return false
	}
	if secret == nil {
		return false
	}

	return f.setSecret(*secret)
}

// setSecret stores the secret if it matches the hash lock.
func (f *FSM) setSecret(secret lntypes.Preimage) bool {
	hash, ok := f.secretHash()
	if !ok || !secret.Matches(hash) {
		f.Warnf("ignoring secret not matching hash %v", hash)
		return false
	}

	err := f.params.SetHash(
		swapparams.KindSecret, swapparams.SlotDefault, secret,
	)
	if err != nil {
		f.Errorf("unable to store secret: %v", err)
		return false
	}

	return true
}

// generateSecret creates the secret of the swap and its hash lock.
func (f *FSM) generateSecret() error {
	newSecret := f.cfg.NewSecret
	if newSecret == nil {
		newSecret = randomSecret
	}

	secret, err := newSecret()
	if err != nil {
		return err
	}

	err = f.params.SetHash(
		swapparams.KindSecret, swapparams.SlotDefault, secret,
	)
	if err != nil {
		return err
	}

	return f.params.SetHash(
		swapparams.KindSecretHash, swapparams.SlotDefault, secret.Hash(),
	)
}

func randomSecret() (lntypes.Preimage, error) {
	var secret lntypes.Preimage
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, err
	}

	return secret, nil
}

// foreignLockExpired returns true once the foreign chain reached the expiry
// of the foreign lock.
func (f *FSM) foreignLockExpired(ctx context.Context,
	chain ChainClient) bool {

	expiry, ok := f.uint64Param(
		swapparams.KindLockExpiryHeight, swapparams.SlotForeignLock,
	)
	if !ok {
		return false
	}

	height, err := chain.CurrentHeight(ctx)
	if err != nil {
		f.Debugf("unable to get foreign height: %v", err)
		return false
	}

	return swap.DeadlineReached(height, expiry)
}

// redeemTarget returns the slot and chain of our redeem transaction.
func (f *FSM) redeemTarget() (swapparams.Slot, ChainClient, error) {
	if !f.isBeamSide() {
		return swapparams.SlotBeamRedeem, f.cfg.BeamChain, nil
	}

	chain, err := f.foreignChain()

	return swapparams.SlotForeignRedeem, chain, err
}

// refundTarget returns the slot and chain of our refund transaction.
func (f *FSM) refundTarget() (swapparams.Slot, ChainClient, error) {
	if f.isBeamSide() {
		return swapparams.SlotBeamRefund, f.cfg.BeamChain, nil
	}

	chain, err := f.foreignChain()

	return swapparams.SlotForeignRefund, chain, err
}

// lockSlot returns the slot of our lock transaction.
func (f *FSM) lockSlot() swapparams.Slot {
	if f.isBeamSide() {
		return swapparams.SlotBeamLock
	}

	return swapparams.SlotForeignLock
}

// beamHeight returns the BEAM tip height. Errors are transient and only
// logged.
func (f *FSM) beamHeight(ctx context.Context) (uint64, bool) {
	height, err := f.cfg.BeamChain.CurrentHeight(ctx)
	if err != nil {
		f.Debugf("unable to get height: %v", err)
		return 0, false
	}

	return height, true
}

// foreignChain returns the client of the swap's foreign chain.
func (f *FSM) foreignChain() (ChainClient, error) {
	coin, err := swapCoin(f.params)
	if err != nil {
		return nil, err
	}

	chain, ok := f.cfg.ForeignChains[coin]
	if !ok || chain == nil {
		return nil, fmt.Errorf("%w %v", ErrNoForeignChain, coin)
	}

	return chain, nil
}

// swapExpiryHeight is the BEAM height at which the swap's lifetime ends.
func (f *FSM) swapExpiryHeight() uint64 {
	minHeight, _ := f.uint64Param(
		swapparams.KindMinHeight, swapparams.SlotDefault,
	)
	lifetime, _ := f.uint64Param(
		swapparams.KindLifetime, swapparams.SlotDefault,
	)

	return minHeight + lifetime
}

func (f *FSM) requireUint64(kind swapparams.Kind) (uint64, error) {
	v, ok, err := f.params.Uint64(kind, swapparams.SlotDefault)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrMissingParam, kind)
	}

	return v, nil
}

func (f *FSM) uint64Param(kind swapparams.Kind,
	slot swapparams.Slot) (uint64, bool) {

	v, ok, err := f.params.Uint64(kind, slot)
	if err != nil {
		return 0, false
	}

	return v, ok
}

func (f *FSM) boolParam(kind swapparams.Kind) bool {
	v, _, _ := f.params.Bool(kind, swapparams.SlotDefault)
	return v
}

func (f *FSM) isBeamSide() bool {
	return f.boolParam(swapparams.KindIsBeamSide)
}

func (f *FSM) isInitiator() bool {
	return f.boolParam(swapparams.KindIsInitiator)
}

func (f *FSM) peerAccepted() bool {
	return f.boolParam(swapparams.KindPeerAccepted)
}

func (f *FSM) peerLockReady() bool {
	return f.boolParam(swapparams.KindPeerLockReady)
}

func (f *FSM) hasSecret() bool {
	return f.params.Has(swapparams.KindSecret, swapparams.SlotDefault)
}

func (f *FSM) secretHash() (lntypes.Hash, bool) {
	hash, ok, err := f.params.Hash(
		swapparams.KindSecretHash, swapparams.SlotDefault,
	)
	if err != nil || !ok {
		return lntypes.Hash{}, false
	}

	return hash, true
}

// swapCoin returns the foreign coin of a swap.
func swapCoin(params *swapparams.Store) (swap.Coin, error) {
	coin, ok, err := params.Enum(
		swapparams.KindSwapCoin, swapparams.SlotDefault,
	)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrMissingParam,
			swapparams.KindSwapCoin)
	}

	return swap.Coin(coin), nil
}

// parseKernelID parses a hex encoded BEAM kernel id.
func parseKernelID(id string) ([32]byte, error) {
	hash, err := lntypes.MakeHashFromStr(id)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", subtx.ErrInvalidKernelID,
			err)
	}

	return hash, nil
}
