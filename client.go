package beamswap

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/notifications"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapdb"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// DefaultTickInterval is the interval in which all swaps are
	// re-evaluated when no block or message arrives.
	DefaultTickInterval = 30 * time.Second
)

var (
	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrNoBeamChain is returned for a config without a BEAM chain.
	ErrNoBeamChain = errors.New("no BEAM chain client")
)

// ClientConfig is the exported configuration structure that is required to
// instantiate the swap client.
type ClientConfig struct {
	// Store persists the swaps.
	Store swapdb.SwapStore

	// BeamChain is the client of the BEAM chain.
	BeamChain atomicswap.ChainClient

	// ForeignChains holds a client per supported foreign coin.
	ForeignChains map[swap.Coin]atomicswap.ChainClient

	// Builder constructs the sub-transactions of the swaps.
	Builder atomicswap.SubTxBuilder

	// Peer exchanges protocol messages with the counterparties.
	Peer atomicswap.PeerMessenger

	// MyID is the identity of the local wallet.
	MyID []byte

	// BeamRequiredConfs overrides the BEAM confirmation requirement.
	BeamRequiredConfs uint32

	// RequiredConfs overrides the foreign confirmation requirements.
	RequiredConfs map[swap.Coin]uint32

	// TickInterval is the re-evaluation interval. Zero selects
	// DefaultTickInterval.
	TickInterval time.Duration

	// Clock is used to timestamp offers. Nil selects the system clock.
	Clock clock.Clock

	// Observer is registered with every swap state machine. It is
	// optional.
	Observer fsm.Observer
}

// Client runs the atomic swaps of one wallet.
type Client struct {
	started uint32 // To be used atomically.

	manager  *atomicswap.Manager
	notifier *notifications.Manager
}

// NewClient returns a new instance to run swaps with.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg.BeamChain == nil {
		return nil, ErrNoBeamChain
	}

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = DefaultTickInterval
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	notifier := notifications.NewManager()
	manager := atomicswap.NewManager(&atomicswap.Config{
		Store:             cfg.Store,
		BeamChain:         cfg.BeamChain,
		ForeignChains:     cfg.ForeignChains,
		Builder:           cfg.Builder,
		Peer:              cfg.Peer,
		MyID:              cfg.MyID,
		BeamRequiredConfs: cfg.BeamRequiredConfs,
		RequiredConfs:     cfg.RequiredConfs,
		Clock:             clk,
		Ticker:            ticker.New(tickInterval),
		Notifier:          notifier,
		Observer:          cfg.Observer,
	})

	return &Client{
		manager:  manager,
		notifier: notifier,
	}, nil
}

// Run runs the swaps until the context is canceled. The initChan is closed
// once the stored swaps were recovered.
func (c *Client) Run(ctx context.Context, initChan chan struct{}) error {
	if !atomic.CompareAndSwapUint32(&c.started, 0, 1) {
		return ErrAlreadyStarted
	}

	log.Infof("Swap client starting, version %v", Version())

	err := c.manager.Run(ctx, initChan)
	if err != nil {
		log.Errorf("Swap client stopped: %v", err)
		return err
	}

	log.Infof("Swap client stopped")

	return nil
}

// CreateOffer creates a swap and returns its id and the token to hand to the
// peer.
func (c *Client) CreateOffer(ctx context.Context, offer *atomicswap.Offer) (
	swapparams.TxID, string, error) {

	return c.manager.CreateSwap(ctx, offer)
}

// AcceptOffer starts the swap offered by a token.
func (c *Client) AcceptOffer(ctx context.Context, tkn string) (
	swapparams.TxID, error) {

	return c.manager.AcceptToken(ctx, tkn)
}

// CancelSwap requests the cancellation of a swap.
func (c *Client) CancelSwap(ctx context.Context, id swapparams.TxID) error {
	return c.manager.CancelSwap(ctx, id)
}

// DeleteSwap removes a finished swap.
func (c *Client) DeleteSwap(ctx context.Context, id swapparams.TxID) error {
	return c.manager.DeleteSwap(ctx, id)
}

// ListSwaps returns the views of all swaps.
func (c *Client) ListSwaps(ctx context.Context) ([]*atomicswap.SwapView,
	error) {

	return c.manager.Swaps(ctx)
}

// GetSwap returns the view of a swap.
func (c *Client) GetSwap(ctx context.Context, id swapparams.TxID) (
	*atomicswap.SwapView, error) {

	return c.manager.Swap(ctx, id)
}

// SwapToken returns the offer token of a swap.
func (c *Client) SwapToken(ctx context.Context, id swapparams.TxID) (string,
	error) {

	return c.manager.Token(ctx, id)
}

// SubscribeSwaps delivers the changes of the swap set until the context is
// canceled.
func (c *Client) SubscribeSwaps(
	ctx context.Context) <-chan *notifications.Change {

	return c.notifier.Subscribe(ctx)
}
