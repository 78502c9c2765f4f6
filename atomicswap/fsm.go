package atomicswap

import (
	"context"
	"fmt"

	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/subtx"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/ticker"
)

// Config contains all the services that the swap FSM needs to operate.
type Config struct {
	// Store persists the swap parameters.
	Store Store

	// BeamChain is the client of the BEAM chain.
	BeamChain ChainClient

	// ForeignChains holds a client per supported foreign coin.
	ForeignChains map[swap.Coin]ChainClient

	// Builder constructs the sub-transactions of the swaps.
	Builder SubTxBuilder

	// Peer exchanges protocol messages with the counterparties.
	Peer PeerMessenger

	// MyID is the identity of the local wallet sent to peers.
	MyID []byte

	// BeamRequiredConfs is the number of confirmations a BEAM
	// sub-transaction needs. Zero selects the default.
	BeamRequiredConfs uint32

	// RequiredConfs overrides the confirmation requirement of foreign
	// coins.
	RequiredConfs map[swap.Coin]uint32

	// NewSecret generates the secret of a swap.
	NewSecret func() (lntypes.Preimage, error)

	// Clock is used to timestamp new offers.
	Clock clock.Clock

	// Ticker triggers the periodic re-evaluation of all swaps.
	Ticker ticker.Ticker

	// Notifier is told about swap changes. It is optional.
	Notifier ChangeNotifier

	// Observer is registered with the state machine of every swap. It is
	// optional.
	Observer fsm.Observer
}

// requiredConfs returns the confirmation requirement of a swap.
func (c *Config) requiredConfs(coin swap.Coin) subtx.RequiredConfs {
	required := subtx.RequiredConfs{
		Beam:    c.BeamRequiredConfs,
		Foreign: coin.DefaultRequiredConfs(),
	}
	if required.Beam == 0 {
		required.Beam = swap.BeamRequiredConfs
	}
	if confs, ok := c.RequiredConfs[coin]; ok && confs > 0 {
		required.Foreign = confs
	}

	return required
}

// FSM is the state machine driving one atomic swap.
type FSM struct {
	*fsm.StateMachine

	cfg *Config

	params *swapparams.Store

	tracker *subtx.Tracker

	log *swap.PrefixLog

	// peerOffer is the latest accept message received from the peer
	// while the handshake is pending.
	peerOffer *swapparams.Store

	// peerCanceled is set when the peer announced it canceled the swap.
	peerCanceled bool

	ctx context.Context
}

// NewFSMFromParams creates the state machine of a swap from its parameters.
// The state is read from the parameters, a swap without one starts in
// Initial.
func NewFSMFromParams(ctx context.Context, cfg *Config,
	params *swapparams.Store) (*FSM, error) {

	state := Initial
	if id, ok, err := params.Enum(
		swapparams.KindState, swapparams.SlotDefault,
	); err != nil {
		return nil, err
	} else if ok {
		state, err = StateFromID(id)
		if err != nil {
			return nil, err
		}
	}

	coin, err := swapCoin(params)
	if err != nil {
		return nil, err
	}

	swapFsm := &FSM{
		cfg:     cfg,
		params:  params,
		tracker: subtx.NewTracker(params, cfg.requiredConfs(coin)),
		log: &swap.PrefixLog{
			Logger: log,
			ID:     params.ID(),
		},
		ctx: ctx,
	}

	swapFsm.StateMachine = fsm.NewStateMachineWithState(
		swapFsm.GetSwapStates(), state,
	)
	swapFsm.ActionEntryFunc = swapFsm.updateState
	swapFsm.ActionExitFunc = swapFsm.persistAction

	if cfg.Observer != nil {
		swapFsm.RegisterObserver(cfg.Observer)
	}

	return swapFsm, nil
}

// ID returns the id of the swap.
func (f *FSM) ID() swapparams.TxID {
	return f.params.ID()
}

// Params returns the parameter store of the swap. It must only be used from
// the goroutine driving the swap.
func (f *FSM) Params() *swapparams.Store {
	return f.params
}

// States.
var (
	// Initial is the state of a swap whose handshake is pending.
	Initial = fsm.StateType("Initial")

	// BuildingBeamLockTx is the state where the BEAM side builds its lock
	// transaction.
	BuildingBeamLockTx = fsm.StateType("BuildingBeamLockTx")

	// BuildingForeignLockTx is the state where the foreign side builds
	// its lock transaction and the secret.
	BuildingForeignLockTx = fsm.StateType("BuildingForeignLockTx")

	// HandlingContractTx is the state where the foreign chain contract is
	// being funded.
	HandlingContractTx = fsm.StateType("HandlingContractTx")

	// SendingBeamLockTx is the state where the BEAM lock is published and
	// the BEAM side waits for the secret.
	SendingBeamLockTx = fsm.StateType("SendingBeamLockTx")

	// SendingForeignLockTx is the state where the foreign side waits for
	// both locks to confirm.
	SendingForeignLockTx = fsm.StateType("SendingForeignLockTx")

	// SendingRedeemTx is the state where the BEAM side redeems the foreign
	// lock with the revealed secret.
	SendingRedeemTx = fsm.StateType("SendingRedeemTx")

	// SendingBeamRedeemTx is the state where the foreign side redeems the
	// BEAM lock, revealing the secret.
	SendingBeamRedeemTx = fsm.StateType("SendingBeamRedeemTx")

	// SendingRefundTx is the state where the foreign side refunds its
	// expired lock.
	SendingRefundTx = fsm.StateType("SendingRefundTx")

	// SendingBeamRefundTx is the state where the BEAM side refunds its
	// expired lock.
	SendingBeamRefundTx = fsm.StateType("SendingBeamRefundTx")

	// Completed is the state of a swap that was redeemed.
	Completed = fsm.StateType("Completed")

	// Refunded is the state of a swap whose lock was refunded.
	Refunded = fsm.StateType("Refunded")

	// Failed is the state of a swap that ended before any own lock was
	// published.
	Failed = fsm.StateType("Failed")

	// Cancelled is the state of a swap canceled by either side.
	Cancelled = fsm.StateType("Cancelled")
)

// stateIDs are the persisted identifiers of the states.
var stateIDs = []fsm.StateType{
	Initial,
	BuildingBeamLockTx,
	BuildingForeignLockTx,
	HandlingContractTx,
	SendingBeamLockTx,
	SendingForeignLockTx,
	SendingRedeemTx,
	SendingBeamRedeemTx,
	SendingRefundTx,
	SendingBeamRefundTx,
	Completed,
	Refunded,
	Failed,
	Cancelled,
}

// StateID returns the persisted identifier of a state.
func StateID(state fsm.StateType) (uint64, error) {
	for i, s := range stateIDs {
		if s == state {
			return uint64(i), nil
		}
	}

	return 0, fmt.Errorf("unknown swap state %v", state)
}

// StateFromID returns the state with the given persisted identifier.
func StateFromID(id uint64) (fsm.StateType, error) {
	if id >= uint64(len(stateIDs)) {
		return fsm.Default, fmt.Errorf("unknown swap state id %d", id)
	}

	return stateIDs[id], nil
}

// Events.
var (
	// OnCheck re-evaluates the current state.
	OnCheck = fsm.EventType("OnCheck")

	// OnBuildBeamLock is sent once the handshake completed on the BEAM
	// side.
	OnBuildBeamLock = fsm.EventType("OnBuildBeamLock")

	// OnBuildForeignLock is sent once the handshake completed on the
	// foreign side.
	OnBuildForeignLock = fsm.EventType("OnBuildForeignLock")

	// OnLockBuilt is sent once the own lock was built and the peer is
	// ready to fund its own.
	OnLockBuilt = fsm.EventType("OnLockBuilt")

	// OnForeignLockConfirmed is sent once the foreign lock reached its
	// required confirmations.
	OnForeignLockConfirmed = fsm.EventType("OnForeignLockConfirmed")

	// OnForeignLockPublished is sent once the foreign side published its
	// lock.
	OnForeignLockPublished = fsm.EventType("OnForeignLockPublished")

	// OnSecretRevealed is sent once the BEAM side learned the secret.
	OnSecretRevealed = fsm.EventType("OnSecretRevealed")

	// OnLocksConfirmed is sent once both locks reached their required
	// confirmations on the foreign side.
	OnLocksConfirmed = fsm.EventType("OnLocksConfirmed")

	// OnRedeemConfirmed is sent once the redeem transaction was proven.
	OnRedeemConfirmed = fsm.EventType("OnRedeemConfirmed")

	// OnLockExpired is sent once an own published lock can be refunded.
	OnLockExpired = fsm.EventType("OnLockExpired")

	// OnRefundConfirmed is sent once the refund transaction was proven.
	OnRefundConfirmed = fsm.EventType("OnRefundConfirmed")

	// OnFailed is sent when the swap fails with a recorded reason.
	OnFailed = fsm.EventType("OnFailed")

	// OnCancel is sent when the user or the peer cancels the swap.
	OnCancel = fsm.EventType("OnCancel")
)

// GetSwapStates returns the statemap that defines the swap state machine.
func (f *FSM) GetSwapStates() fsm.States {
	return fsm.States{
		Initial: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:            Initial,
				OnBuildBeamLock:    BuildingBeamLockTx,
				OnBuildForeignLock: BuildingForeignLockTx,
				OnFailed:           Failed,
				OnCancel:           Cancelled,
				fsm.OnError:        Failed,
			},
			Action: f.InitialAction,
		},
		BuildingBeamLockTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:     BuildingBeamLockTx,
				OnLockBuilt: HandlingContractTx,
				OnFailed:    Failed,
				OnCancel:    Cancelled,
				fsm.OnError: Failed,
			},
			Action: f.BuildLockAction,
		},
		BuildingForeignLockTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:     BuildingForeignLockTx,
				OnLockBuilt: HandlingContractTx,
				OnFailed:    Failed,
				OnCancel:    Cancelled,
				fsm.OnError: Failed,
			},
			Action: f.BuildLockAction,
		},
		HandlingContractTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:                HandlingContractTx,
				OnForeignLockConfirmed: SendingBeamLockTx,
				OnForeignLockPublished: SendingForeignLockTx,
				OnFailed:               Failed,
				OnCancel:               Cancelled,
				fsm.OnError:            Failed,
			},
			Action: f.HandleContractAction,
		},
		SendingBeamLockTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:          SendingBeamLockTx,
				OnSecretRevealed: SendingRedeemTx,
				OnLockExpired:    SendingBeamRefundTx,
				OnFailed:         Failed,
			},
			Action: f.SendBeamLockAction,
		},
		SendingForeignLockTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:          SendingForeignLockTx,
				OnLocksConfirmed: SendingBeamRedeemTx,
				OnLockExpired:    SendingRefundTx,
			},
			Action: f.SendForeignLockAction,
		},
		SendingRedeemTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:           SendingRedeemTx,
				OnRedeemConfirmed: Completed,
			},
			Action: f.RedeemAction,
		},
		SendingBeamRedeemTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:           SendingBeamRedeemTx,
				OnRedeemConfirmed: Completed,
				OnLockExpired:     SendingRefundTx,
			},
			Action: f.RedeemAction,
		},
		SendingRefundTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:           SendingRefundTx,
				OnRefundConfirmed: Refunded,
			},
			Action: f.RefundAction,
		},
		SendingBeamRefundTx: fsm.State{
			Transitions: fsm.Transitions{
				OnCheck:           SendingBeamRefundTx,
				OnRefundConfirmed: Refunded,
				OnSecretRevealed:  SendingRedeemTx,
			},
			Action: f.RefundAction,
		},
		Completed: fsm.State{
			Action: fsm.NoOpAction,
		},
		Refunded: fsm.State{
			Action: fsm.NoOpAction,
		},
		Failed: fsm.State{
			Action: fsm.NoOpAction,
		},
		Cancelled: fsm.State{
			Action: f.CancelledAction,
		},
	}
}

// updateState records the state of the swap in its parameters. This
// function is called before every action.
func (f *FSM) updateState(notification fsm.Notification) {
	if notification.PreviousState != notification.NextState {
		f.Debugf("NextState: %v, PreviousState: %v, Event: %v",
			notification.NextState, notification.PreviousState,
			notification.Event)
	}

	id, err := StateID(notification.NextState)
	if err != nil {
		f.Errorf("unable to record state: %v", err)
		return
	}

	err = f.params.SetEnum(swapparams.KindState, swapparams.SlotDefault, id)
	if err != nil {
		f.Errorf("unable to record state: %v", err)
	}
}

// persistAction stores the parameters of the swap after an action changed
// them.
func (f *FSM) persistAction(_ fsm.Notification) {
	if err := f.persist(f.ctx); err != nil {
		f.Errorf("unable to persist swap: %v", err)
	}
}

// persist stores the parameters of the swap if they changed.
func (f *FSM) persist(ctx context.Context) error {
	if !f.params.Dirty() {
		return nil
	}

	if err := f.cfg.Store.PersistSwap(ctx, f.params); err != nil {
		return err
	}
	f.params.MarkClean()

	return nil
}

// CancelAvailable returns true if the swap can still be canceled: no own lock
// has been published yet.
func (f *FSM) CancelAvailable() bool {
	switch f.CurrentState() {
	case Initial, BuildingBeamLockTx, BuildingForeignLockTx:
		return true

	case HandlingContractTx:
		return f.isBeamSide()

	default:
		return false
	}
}

func (f *FSM) Infof(format string, args ...interface{}) {
	f.log.Infof(format, args...)
}

func (f *FSM) Debugf(format string, args ...interface{}) {
	f.log.Debugf(format, args...)
}

func (f *FSM) Warnf(format string, args ...interface{}) {
	f.log.Warnf(format, args...)
}

func (f *FSM) Errorf(format string, args ...interface{}) {
	f.log.Errorf(format, args...)
}

// isFinalState returns true if the state is a final state.
func isFinalState(state fsm.StateType) bool {
	switch state {
	case Completed, Refunded, Failed, Cancelled:
		return true
	}

	return false
}
