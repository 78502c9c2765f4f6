package atomicswap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/token"
)

var (
	// ErrSwapNotFound is returned for unknown swap ids.
	ErrSwapNotFound = errors.New("swap not found")

	// ErrPreviouslyAccepted is returned for a token of a swap the wallet
	// already holds.
	ErrPreviouslyAccepted = errors.New("token was previously accepted")

	// ErrCancelUnavailable is returned when a swap can no longer be
	// canceled.
	ErrCancelUnavailable = errors.New("swap can not be canceled")

	// ErrDeleteUnavailable is returned when a swap is still active.
	ErrDeleteUnavailable = errors.New("swap can not be deleted")

	// ErrInvalidOffer is returned for offers that can't start a swap.
	ErrInvalidOffer = errors.New("invalid offer")

	// ErrManagerStopped is returned for requests to a manager that is not
	// running.
	ErrManagerStopped = errors.New("swap manager stopped")
)

// Offer holds the terms of a new swap.
type Offer struct {
	// IsBeamSide is true if we give BEAM for the foreign coin.
	IsBeamSide bool

	// Coin is the foreign coin.
	Coin swap.Coin

	// Amount is the BEAM amount in groth.
	Amount uint64

	// SwapAmount is the foreign coin amount in its base unit.
	SwapAmount uint64

	// Lifetime is the number of BEAM blocks the swap stays valid.
	Lifetime uint64

	// PeerResponseTime is the number of BEAM blocks the peer has to
	// accept the offer.
	PeerResponseTime uint64
}

// validate checks the terms of the offer.
func (o *Offer) validate() error {
	switch {
	case !o.Coin.Known():
		return fmt.Errorf("%w: unknown coin %v", ErrInvalidOffer, o.Coin)

	case o.Amount == 0 || o.SwapAmount == 0:
		return fmt.Errorf("%w: zero amount", ErrInvalidOffer)

	case o.Lifetime == 0 || o.PeerResponseTime == 0:
		return fmt.Errorf("%w: zero lifetime or response time",
			ErrInvalidOffer)

	case o.PeerResponseTime >= o.Lifetime:
		return fmt.Errorf("%w: response time must be shorter than "+
			"the lifetime", ErrInvalidOffer)
	}

	return nil
}

// request is a function run on the manager's goroutine.
type request func(ctx context.Context)

// Manager owns all swaps of the wallet and drives them from a single
// goroutine.
type Manager struct {
	cfg *Config

	// swaps is only accessed from the Run goroutine.
	swaps map[swapparams.TxID]*FSM

	reqChan chan request

	quit chan struct{}
}

// NewManager creates a new swap manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{
		cfg:     cfg,
		swaps:   make(map[swapparams.TxID]*FSM),
		reqChan: make(chan request),
		quit:    make(chan struct{}),
	}
}

// Run runs the swap manager until the context is canceled. The initChan is
// closed once the stored swaps were recovered.
func (m *Manager) Run(ctx context.Context, initChan chan struct{}) error {
	log.Debugf("Starting swap manager")
	defer close(m.quit)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := m.recoverSwaps(runCtx); err != nil {
		return err
	}

	msgChan, err := m.cfg.Peer.Messages(runCtx)
	if err != nil {
		return err
	}

	blockChan := m.subscribeBlocks(runCtx)

	m.cfg.Ticker.Resume()
	defer m.cfg.Ticker.Stop()

	if m.cfg.Notifier != nil {
		m.cfg.Notifier.Reset(m.views())
	}

	// Signal that the manager has been initialized.
	close(initChan)

	for {
		select {
		case <-m.cfg.Ticker.Ticks():
			m.evaluateAll(runCtx)

		case <-blockChan:
			m.evaluateAll(runCtx)

		case msg, ok := <-msgChan:
			if !ok {
				log.Debugf("Stopping swap manager (message " +
					"channel closed)")

				return nil
			}

			m.handleMessage(runCtx, msg)

		case req := <-m.reqChan:
			req(runCtx)

		case <-runCtx.Done():
			log.Debugf("Stopping swap manager")
			return nil
		}

		m.publish()
	}
}

// recoverSwaps loads all stored swaps and re-evaluates the active ones.
func (m *Manager) recoverSwaps(ctx context.Context) error {
	stored, err := m.cfg.Store.FetchSwaps(ctx)
	if err != nil {
		return err
	}

	for _, params := range stored {
		swapFsm, err := NewFSMFromParams(ctx, m.cfg, params)
		if err != nil {
			log.Errorf("Unable to recover swap %v: %v", params.ID(),
				err)

			continue
		}

		m.swaps[params.ID()] = swapFsm
	}

	log.Infof("Recovered %d swaps", len(m.swaps))

	m.evaluateAll(ctx)

	return nil
}

// subscribeBlocks merges the block notifications of all chains that push
// them. Notifications are coalesced, a single pending one is enough to
// re-evaluate all swaps.
func (m *Manager) subscribeBlocks(ctx context.Context) <-chan struct{} {
	blockChan := make(chan struct{}, 1)

	chains := []ChainClient{m.cfg.BeamChain}
	for _, chain := range m.cfg.ForeignChains {
		chains = append(chains, chain)
	}

	for _, chain := range chains {
		source, ok := chain.(BlockSource)
		if !ok {
			continue
		}

		go func(blocks <-chan uint64) {
			for {
				select {
				case _, ok := <-blocks:
					if !ok {
						return
					}

				case <-ctx.Done():
					return
				}

				select {
				case blockChan <- struct{}{}:
				default:
				}
			}
		}(source.Blocks())
	}

	return blockChan
}

// evaluateAll re-evaluates every active swap.
func (m *Manager) evaluateAll(ctx context.Context) {
	for _, swapFsm := range m.sortedSwaps() {
		m.evaluate(ctx, swapFsm)
	}
}

// evaluate re-evaluates one swap.
func (m *Manager) evaluate(ctx context.Context, swapFsm *FSM) {
	if isFinalState(swapFsm.CurrentState()) {
		return
	}

	if err := swapFsm.SendEvent(ctx, OnCheck, nil); err != nil {
		swapFsm.Errorf("unable to evaluate: %v", err)
	}
}

// handleMessage applies a peer message to its swap.
func (m *Manager) handleMessage(ctx context.Context, msg *token.Message) {
	swapFsm, ok := m.swaps[msg.ID]
	if !ok {
		log.Debugf("Message for unknown swap %v", msg.ID)
		return
	}

	evaluate := swapFsm.ReceiveMessage(ctx, msg)
	if err := swapFsm.persist(ctx); err != nil {
		swapFsm.Errorf("unable to persist swap: %v", err)
	}

	if swapFsm.peerCanceled {
		swapFsm.peerCanceled = false

		if !swapFsm.CancelAvailable() {
			swapFsm.Warnf("ignoring cancel of peer in state %v",
				swapFsm.CurrentState())

			return
		}

		err := swapFsm.SendEvent(
			ctx, OnCancel, &CancelRequest{ByPeer: true},
		)
		if err != nil {
			swapFsm.Errorf("unable to cancel: %v", err)
		}

		return
	}

	if evaluate {
		m.evaluate(ctx, swapFsm)
	}
}

// publish tells the notifier about the current swaps.
func (m *Manager) publish() {
	if m.cfg.Notifier == nil {
		return
	}

	m.cfg.Notifier.Update(m.views())
}

// views projects all swaps in creation order.
func (m *Manager) views() []*SwapView {
	swaps := m.sortedSwaps()
	views := make([]*SwapView, 0, len(swaps))
	for _, swapFsm := range swaps {
		views = append(views, swapFsm.View())
	}

	return views
}

// sortedSwaps returns the swaps ordered by creation time and id.
func (m *Manager) sortedSwaps() []*FSM {
	swaps := make([]*FSM, 0, len(m.swaps))
	for _, swapFsm := range m.swaps {
		swaps = append(swaps, swapFsm)
	}

	createTime := func(f *FSM) uint64 {
		t, _, _ := f.params.Uint64(
			swapparams.KindCreateTime, swapparams.SlotDefault,
		)
		return t
	}

	sort.Slice(swaps, func(i, j int) bool {
		ti, tj := createTime(swaps[i]), createTime(swaps[j])
		if ti != tj {
			return ti < tj
		}

		return swaps[i].ID().String() < swaps[j].ID().String()
	})

	return swaps
}

// View projects the swap for display.
func (f *FSM) View() *SwapView {
	return NewSwapView(f.params, f.CancelAvailable())
}

// HasSwap returns true if the swap is held by the manager. It must only be
// called from the manager goroutine.
func (m *Manager) HasSwap(id swapparams.TxID) bool {
	_, ok := m.swaps[id]
	return ok
}

// do runs fn on the manager goroutine and waits for it to finish.
func (m *Manager) do(ctx context.Context,
	fn func(ctx context.Context) error) error {

	errChan := make(chan error, 1)
	req := func(runCtx context.Context) {
		errChan <- fn(runCtx)
	}

	select {
	case m.reqChan <- req:

	case <-m.quit:
		return ErrManagerStopped

	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewOfferParams creates the parameters of a new swap offered at the given
// BEAM height. The swap gets a fresh id.
func NewOfferParams(offer *Offer, myID []byte, height uint64,
	now time.Time) (*swapparams.Store, error) {

	if err := offer.validate(); err != nil {
		return nil, err
	}

	params := swapparams.NewStore(swapparams.NewTxID())
	err := setAll(params, []swapparams.Param{
		def(swapparams.KindMyID).param(
			swapparams.BytesValue(myID),
		),
		def(swapparams.KindIsInitiator).param(
			swapparams.BoolValue(true),
		),
		def(swapparams.KindIsSender).param(
			swapparams.BoolValue(!offer.IsBeamSide),
		),
		def(swapparams.KindIsBeamSide).param(
			swapparams.BoolValue(offer.IsBeamSide),
		),
		def(swapparams.KindTransactionType).param(
			swapparams.EnumValue(uint64(swap.TypeAtomicSwap)),
		),
		def(swapparams.KindSwapCoin).param(
			swapparams.EnumValue(uint64(offer.Coin)),
		),
		def(swapparams.KindSwapAmount).param(
			swapparams.Uint64Value(offer.SwapAmount),
		),
		def(swapparams.KindAmount).param(
			swapparams.Uint64Value(offer.Amount),
		),
		def(swapparams.KindMinHeight).param(
			swapparams.Uint64Value(height),
		),
		def(swapparams.KindLifetime).param(
			swapparams.Uint64Value(offer.Lifetime),
		),
		def(swapparams.KindPeerResponseTime).param(
			swapparams.Uint64Value(offer.PeerResponseTime),
		),
		def(swapparams.KindCreateTime).param(
			swapparams.Uint64Value(uint64(now.Unix())),
		),
		def(swapparams.KindState).param(
			swapparams.EnumValue(0),
		),
	})
	if err != nil {
		return nil, err
	}

	return params, nil
}

// CreateSwap creates a swap from an offer and returns its id and the token
// to hand to the peer.
func (m *Manager) CreateSwap(ctx context.Context, offer *Offer) (
	swapparams.TxID, string, error) {

	if err := offer.validate(); err != nil {
		return swapparams.TxID{}, "", err
	}

	var (
		id  swapparams.TxID
		tkn string
	)
	err := m.do(ctx, func(ctx context.Context) error {
		height, err := m.cfg.BeamChain.CurrentHeight(ctx)
		if err != nil {
			return fmt.Errorf("unable to get height: %w", err)
		}

		params, err := NewOfferParams(
			offer, m.cfg.MyID, height, m.cfg.Clock.Now(),
		)
		if err != nil {
			return err
		}

		tkn, err = token.Encode(params, swap.RoleInitiator)
		if err != nil {
			return err
		}

		if err := m.addSwap(ctx, params); err != nil {
			return err
		}
		id = params.ID()

		return nil
	})

	return id, tkn, err
}

// AcceptToken creates the acceptor's side of a swap from an offer token.
func (m *Manager) AcceptToken(ctx context.Context, tkn string) (
	swapparams.TxID, error) {

	var id swapparams.TxID
	err := m.do(ctx, func(ctx context.Context) error {
		bootstrap, err := token.Accept(tkn, m)
		if err != nil {
			return err
		}
		if bootstrap.PreviouslyAccepted {
			return fmt.Errorf("%w: %v", ErrPreviouslyAccepted,
				bootstrap.Params.ID())
		}

		params := bootstrap.Params

		txType, _, err := params.Enum(
			swapparams.KindTransactionType, swapparams.SlotDefault,
		)
		if err != nil {
			return err
		}
		if swap.TransactionType(txType) != swap.TypeAtomicSwap {
			return fmt.Errorf("%w: transaction type %v",
				ErrInvalidOffer, swap.TransactionType(txType))
		}

		coin, err := swapCoin(params)
		if err != nil {
			return err
		}
		if !coin.Known() {
			return fmt.Errorf("%w: unknown coin %v",
				ErrInvalidOffer, coin)
		}
		if _, ok := m.cfg.ForeignChains[coin]; !ok {
			return fmt.Errorf("%w %v", ErrNoForeignChain, coin)
		}

		peerID, ok, err := params.Bytes(
			swapparams.KindPeerID, swapparams.SlotDefault,
		)
		if err != nil || !ok || len(peerID) == 0 {
			return fmt.Errorf("%w: no peer id", ErrInvalidOffer)
		}

		err = setAll(params, []swapparams.Param{
			def(swapparams.KindMyID).param(
				swapparams.BytesValue(m.cfg.MyID),
			),
			def(swapparams.KindIsInitiator).param(
				swapparams.BoolValue(false),
			),
			def(swapparams.KindState).param(
				swapparams.EnumValue(0),
			),
		})
		if err != nil {
			return err
		}

		if err := m.addSwap(ctx, params); err != nil {
			return err
		}
		id = params.ID()

		return nil
	})

	return id, err
}

// addSwap stores a new swap and starts driving it.
func (m *Manager) addSwap(ctx context.Context,
	params *swapparams.Store) error {

	swapFsm, err := NewFSMFromParams(ctx, m.cfg, params)
	if err != nil {
		return err
	}

	if err := m.cfg.Store.CreateSwap(ctx, params); err != nil {
		return err
	}
	params.MarkClean()

	m.swaps[params.ID()] = swapFsm
	swapFsm.Infof("created swap")

	m.evaluate(ctx, swapFsm)

	return nil
}

// CancelSwap cancels a swap if no own lock was published yet.
func (m *Manager) CancelSwap(ctx context.Context, id swapparams.TxID) error {
	return m.do(ctx, func(ctx context.Context) error {
		swapFsm, ok := m.swaps[id]
		if !ok {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		if !swapFsm.CancelAvailable() {
			return fmt.Errorf("%w in state %v", ErrCancelUnavailable,
				swapFsm.CurrentState())
		}

		return swapFsm.SendEvent(ctx, OnCancel, &CancelRequest{})
	})
}

// DeleteSwap removes a swap that reached a final state.
func (m *Manager) DeleteSwap(ctx context.Context, id swapparams.TxID) error {
	return m.do(ctx, func(ctx context.Context) error {
		swapFsm, ok := m.swaps[id]
		if !ok {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		if !swapFsm.View().IsDeleteAvailable {
			return fmt.Errorf("%w in state %v", ErrDeleteUnavailable,
				swapFsm.CurrentState())
		}

		if err := m.cfg.Store.DeleteSwap(ctx, id); err != nil {
			return err
		}
		delete(m.swaps, id)

		return nil
	})
}

// Swaps returns the views of all swaps in creation order.
func (m *Manager) Swaps(ctx context.Context) ([]*SwapView, error) {
	var views []*SwapView
	err := m.do(ctx, func(context.Context) error {
		views = m.views()
		return nil
	})

	return views, err
}

// Swap returns the view of one swap.
func (m *Manager) Swap(ctx context.Context, id swapparams.TxID) (*SwapView,
	error) {

	var view *SwapView
	err := m.do(ctx, func(context.Context) error {
		swapFsm, ok := m.swaps[id]
		if !ok {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		view = swapFsm.View()
		return nil
	})

	return view, err
}

// Token re-encodes the offer of a swap as a token.
func (m *Manager) Token(ctx context.Context, id swapparams.TxID) (string,
	error) {

	var tkn string
	err := m.do(ctx, func(context.Context) error {
		swapFsm, ok := m.swaps[id]
		if !ok {
			return fmt.Errorf("%w: %v", ErrSwapNotFound, id)
		}

		role := swap.RoleAcceptor
		if swapFsm.isInitiator() {
			role = swap.RoleInitiator
		}

		var err error
		tkn, err = token.Encode(swapFsm.params, role)

		return err
	})

	return tkn, err
}

// param binds a value to the key.
func (k paramKey) param(v swapparams.Value) swapparams.Param {
	return swapparams.Param{Kind: k.kind, Slot: k.slot, Value: v}
}

// setAll sets a list of parameters.
func setAll(params *swapparams.Store, list []swapparams.Param) error {
	for _, p := range list {
		if err := params.Set(p.Kind, p.Slot, p.Value); err != nil {
			return err
		}
	}

	return nil
}
