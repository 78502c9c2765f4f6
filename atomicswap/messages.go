package atomicswap

import (
	"context"

	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/token"
)

// paramKey names one parameter of a swap.
type paramKey struct {
	kind swapparams.Kind
	slot swapparams.Slot
}

func def(kind swapparams.Kind) paramKey {
	return paramKey{kind: kind, slot: swapparams.SlotDefault}
}

var (
	// acceptKeys are announced by the acceptor until the initiator
	// confirms the handshake.
	acceptKeys = []paramKey{
		def(swapparams.KindMyID),
		def(swapparams.KindIsBeamSide),
		def(swapparams.KindAmount),
		def(swapparams.KindSwapAmount),
		def(swapparams.KindSwapCoin),
		def(swapparams.KindMinHeight),
		def(swapparams.KindLifetime),
	}

	// beamLockKeys describe the BEAM lock to the foreign side.
	beamLockKeys = []paramKey{
		def(swapparams.KindPeerLockReady),
		{swapparams.KindKernelID, swapparams.SlotBeamLock},
		{swapparams.KindLockExpiryHeight, swapparams.SlotBeamLock},
		{swapparams.KindContractKey, swapparams.SlotForeignRedeem},
	}

	// foreignLockKeys describe the foreign lock to the BEAM side.
	foreignLockKeys = []paramKey{
		def(swapparams.KindPeerLockReady),
		def(swapparams.KindSecretHash),
		{swapparams.KindExternalTxID, swapparams.SlotForeignLock},
		{swapparams.KindLockExpiryHeight, swapparams.SlotForeignLock},
		{swapparams.KindContractKey, swapparams.SlotForeignRefund},
	}

	// beamSideInbound are the parameters the BEAM side takes from the
	// peer. They are set once and never overwritten.
	beamSideInbound = map[paramKey]struct{}{
		def(swapparams.KindSecretHash): {},
		{
			swapparams.KindExternalTxID, swapparams.SlotForeignLock,
		}: {},
		{
			swapparams.KindLockExpiryHeight,
			swapparams.SlotForeignLock,
		}: {},
		{
			swapparams.KindContractKey,
			swapparams.SlotForeignRefund,
		}: {},
	}

	// foreignSideInbound are the parameters the foreign side takes from
	// the peer.
	foreignSideInbound = map[paramKey]struct{}{
		{swapparams.KindKernelID, swapparams.SlotBeamLock}:         {},
		{swapparams.KindLockExpiryHeight, swapparams.SlotBeamLock}: {},
		{swapparams.KindContractKey, swapparams.SlotForeignRedeem}: {},
	}
)

// ReceiveMessage applies a message of the peer to the swap. It returns true
// if the swap should be re-evaluated.
func (f *FSM) ReceiveMessage(ctx context.Context, msg *token.Message) bool {
	if isFinalState(f.CurrentState()) {
		return false
	}

	peer, err := swapparams.NewStoreFromParams(msg.ID, msg.Params)
	if err != nil {
		f.Warnf("invalid peer message: %v", err)
		return false
	}

	stateID, ok, _ := peer.Enum(swapparams.KindState, swapparams.SlotDefault)
	if cancelled, _ := StateID(Cancelled); ok && stateID == cancelled {
		f.peerCanceled = true
		return true
	}

	// Only the acceptor announces its own id.
	if peer.Has(swapparams.KindMyID, swapparams.SlotDefault) {
		if !f.isInitiator() {
			return false
		}

		if f.peerAccepted() {
			f.sendAck(ctx)
			return false
		}

		f.peerOffer = peer
		return true
	}

	var changed bool

	accepted, _, _ := peer.Bool(
		swapparams.KindPeerAccepted, swapparams.SlotDefault,
	)
	if accepted && !f.isInitiator() {
		changed = f.setFromPeer(def(swapparams.KindPeerAccepted), peer)
	}

	ready, _, _ := peer.Bool(
		swapparams.KindPeerLockReady, swapparams.SlotDefault,
	)
	if ready && f.setFromPeer(def(swapparams.KindPeerLockReady), peer) {
		changed = true
	}

	inbound := foreignSideInbound
	if f.isBeamSide() {
		inbound = beamSideInbound
	}
	for key := range inbound {
		if f.params.Has(key.kind, key.slot) {
			continue
		}
		if f.setFromPeer(key, peer) {
			changed = true
		}
	}

	if f.isBeamSide() && !f.hasSecret() {
		secret, ok, _ := peer.Hash(
			swapparams.KindSecret, swapparams.SlotDefault,
		)
		if ok && f.setSecret(secret) {
			changed = true
		}
	}

	return changed
}

// setFromPeer copies a parameter of the peer message and reports whether
// it changed the swap.
func (f *FSM) setFromPeer(key paramKey, peer *swapparams.Store) bool {
	v, ok := peer.Get(key.kind, key.slot)
	if !ok {
		return false
	}

	if old, ok := f.params.Get(key.kind, key.slot); ok && old.Equal(v) {
		return false
	}

	if err := f.params.Set(key.kind, key.slot, v); err != nil {
		f.Warnf("ignoring peer %v/%v: %v", key.kind, key.slot, err)
		return false
	}

	return true
}

// sendAccept announces the acceptor's view of the offer.
func (f *FSM) sendAccept(ctx context.Context) {
	f.send(ctx, acceptKeys)
}

// sendAck confirms the handshake to the acceptor.
func (f *FSM) sendAck(ctx context.Context) {
	f.send(ctx, []paramKey{def(swapparams.KindPeerAccepted)})
}

// sendLockInfo tells the peer our lock is built and where to find it.
func (f *FSM) sendLockInfo(ctx context.Context) {
	keys := foreignLockKeys
	if f.isBeamSide() {
		keys = beamLockKeys
	}

	f.sendWith(ctx, keys, swapparams.Param{
		Kind:  swapparams.KindPeerLockReady,
		Slot:  swapparams.SlotDefault,
		Value: swapparams.BoolValue(true),
	})
}

// sendSecret reveals the secret to the BEAM side.
func (f *FSM) sendSecret(ctx context.Context) {
	f.send(ctx, []paramKey{def(swapparams.KindSecret)})
}

// sendCancel tells the peer we canceled the swap.
func (f *FSM) sendCancel(ctx context.Context) {
	f.send(ctx, []paramKey{def(swapparams.KindState)})
}

// send copies the given parameters into a message to the peer. Absent
// parameters are skipped.
func (f *FSM) send(ctx context.Context, keys []paramKey) {
	f.sendWith(ctx, keys)
}

func (f *FSM) sendWith(ctx context.Context, keys []paramKey,
	overrides ...swapparams.Param) {

	peerID, ok, err := f.params.Bytes(
		swapparams.KindPeerID, swapparams.SlotDefault,
	)
	if err != nil || !ok {
		f.Debugf("no peer to send to")
		return
	}

	override := make(map[paramKey]swapparams.Param, len(overrides))
	for _, p := range overrides {
		override[paramKey{kind: p.Kind, slot: p.Slot}] = p
	}

	msg := &token.Message{ID: f.ID()}
	for _, key := range keys {
		if p, ok := override[key]; ok {
			msg.Params = append(msg.Params, p)
			continue
		}

		v, ok := f.params.Get(key.kind, key.slot)
		if !ok {
			continue
		}

		msg.Params = append(msg.Params, swapparams.Param{
			Kind:  key.kind,
			Slot:  key.slot,
			Value: v,
		})
	}

	if len(msg.Params) == 0 {
		return
	}

	if err := f.cfg.Peer.SendMessage(ctx, peerID, msg); err != nil {
		f.Debugf("unable to send message to peer: %v", err)
	}
}
