package swapd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/beamswap"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/chainclient"
	"github.com/lightninglabs/beamswap/peer"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoWallet is returned when the daemon is started without a BEAM
	// wallet.
	ErrNoWallet = errors.New("no BEAM wallet, swapd must be started " +
		"by a wallet embedding it")

	// ErrAlreadyStarted is returned when the daemon is started twice.
	ErrAlreadyStarted = errors.New("daemon already started")
)

// BeamWallet is the wallet the daemon swaps for. It follows the BEAM chain,
// builds and signs the sub-transactions of both legs and owns the identity
// key peers address the wallet by. The keys of the foreign contract are
// derived by the wallet too, so the foreign lock can be checked against them.
type BeamWallet interface {
	atomicswap.ChainClient
	atomicswap.SubTxBuilder
	atomicswap.KeySource

	// IdentityKey returns the public key identifying the wallet.
	IdentityKey() *btcec.PublicKey
}

// RunConfig holds the collaborators of a wallet embedding the daemon.
type RunConfig struct {
	// Wallet is the BEAM wallet. The daemon refuses to start without it.
	Wallet BeamWallet

	// Bus is an optional message bus. If set it replaces the connection
	// to the nats server of the config.
	Bus peer.Bus
}

// lndServices are the lnd services the bitcoin leg is built on.
type lndServices struct {
	ChainNotifier lndclient.ChainNotifierClient
	WalletKit     lndclient.WalletKitClient

	close func()
}

// serviceCfg holds closures used to connect to the external services.
type serviceCfg struct {
	// getLnd connects to the lnd instance of the config.
	getLnd func(network lndclient.Network, cfg *lndConfig) (*lndServices,
		error)

	// getBus connects to the message bus.
	getBus func(cfg *peer.Config) (peer.Bus, func(), error)
}

// newServiceCfg creates the service closures from the config and the
// RunConfig.
func newServiceCfg(rpcCfg RunConfig) *serviceCfg {
	return &serviceCfg{
		getLnd: func(network lndclient.Network,
			cfg *lndConfig) (*lndServices, error) {

			services, err := lndclient.NewLndServices(
				&lndclient.LndServicesConfig{
					LndAddress:  cfg.Host,
					Network:     network,
					MacaroonDir: cfg.MacaroonDir,
					TLSPath:     cfg.TLSPath,
				},
			)
			if err != nil {
				return nil, err
			}

			return &lndServices{
				ChainNotifier: services.ChainNotifier,
				WalletKit:     services.WalletKit,
				close:         services.Close,
			}, nil
		},
		getBus: func(cfg *peer.Config) (peer.Bus, func(), error) {
			if rpcCfg.Bus != nil {
				return rpcCfg.Bus, func() {}, nil
			}

			bus, err := peer.Connect(cfg)
			if err != nil {
				return nil, nil, err
			}

			return bus, func() {
				if err := bus.Close(); err != nil {
					log.Errorf("Error closing nats "+
						"connection: %v", err)
				}
			}, nil
		},
	}
}

// Daemon is the swap daemon. It runs the swaps of one wallet against lnd for
// the bitcoin leg and a nats bus for the peer messages.
type Daemon struct {
	cfg    *Config
	svcCfg *serviceCfg
	wallet BeamWallet

	// ErrChan receives the result of the daemon once it stopped.
	ErrChan chan error

	// started is closed once all stored swaps were recovered.
	started chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	client  *beamswap.Client
	rpcAddr net.Addr
}

// New creates a new daemon.
func New(cfg *Config, rpcCfg RunConfig) *Daemon {
	return newDaemon(cfg, newServiceCfg(rpcCfg), rpcCfg.Wallet)
}

func newDaemon(cfg *Config, svcCfg *serviceCfg, wallet BeamWallet) *Daemon {
	return &Daemon{
		cfg:     cfg,
		svcCfg:  svcCfg,
		wallet:  wallet,
		ErrChan: make(chan error, 1),
		started: make(chan struct{}),
	}
}

// Start connects to the services and starts the swaps. The result of the
// daemon is delivered on ErrChan once it stops.
func (d *Daemon) Start() error {
	if d.wallet == nil {
		return ErrNoWallet
	}

	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.mu.Unlock()

	log.Infof("Starting swapd on %v", d.cfg.Network)

	go func() {
		d.ErrChan <- d.run(ctx)
	}()

	return nil
}

// Stop requests the daemon to stop. The result is delivered on ErrChan.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
}

// Client returns the swap client once the daemon has recovered the stored
// swaps, or nil before.
func (d *Daemon) Client() *beamswap.Client {
	select {
	case <-d.started:
	default:
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.client
}

// run runs the daemon until the context is canceled or one of its parts
// fails.
func (d *Daemon) run(ctx context.Context) error {
	clk := clock.NewDefaultClock()

	store, err := openStore(d.cfg, clk)
	if err != nil {
		return fmt.Errorf("unable to open swap store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("Error closing swap store: %v", err)
		}
	}()

	lnd, err := d.svcCfg.getLnd(lndclient.Network(d.cfg.Network), d.cfg.Lnd)
	if err != nil {
		return fmt.Errorf("unable to connect to lnd: %w", err)
	}
	defer lnd.close()

	bus, closeBus, err := d.svcCfg.getBus(d.cfg.Nats)
	if err != nil {
		return fmt.Errorf("unable to connect to message bus: %w", err)
	}
	defer closeBus()

	myID := d.wallet.IdentityKey().SerializeCompressed()
	messenger, err := peer.NewMessenger(bus, myID)
	if err != nil {
		return err
	}

	chainParams, err := swap.ChainParamsFromNetwork(d.cfg.Network)
	if err != nil {
		return err
	}

	btcChain := chainclient.New(&chainclient.Config{
		Coin:          swap.CoinBitcoin,
		ChainNotifier: lnd.ChainNotifier,
		WalletKit:     lnd.WalletKit,
		ChainParams:   chainParams,
	})

	m := newMetrics()

	requiredConfs := d.cfg.Confs.requiredConfs()
	client, err := beamswap.NewClient(&beamswap.ClientConfig{
		Store:     store,
		BeamChain: d.wallet,
		ForeignChains: map[swap.Coin]atomicswap.ChainClient{
			swap.CoinBitcoin: btcChain,
		},
		Builder:           d.wallet,
		Peer:              messenger,
		MyID:              myID,
		BeamRequiredConfs: d.cfg.Confs.Beam,
		RequiredConfs:     requiredConfs,
		TickInterval:      d.cfg.TickInterval,
		Clock:             clk,
		Observer:          m,
	})
	if err != nil {
		return err
	}

	log.Infof("Wallet identity: %x", myID)

	var rpcListener net.Listener
	if d.cfg.RPCListen != "" {
		rpcListener, err = net.Listen("tcp", d.cfg.RPCListen)
		if err != nil {
			return fmt.Errorf("unable to listen on %v: %w",
				d.cfg.RPCListen, err)
		}

		d.mu.Lock()
		d.rpcAddr = rpcListener.Addr()
		d.mu.Unlock()
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return btcChain.Run(ctx)
	})

	initChan := make(chan struct{})
	group.Go(func() error {
		return client.Run(ctx, initChan)
	})

	group.Go(func() error {
		select {
		case <-initChan:
		case <-ctx.Done():
			return nil
		}

		d.mu.Lock()
		d.client = client
		d.mu.Unlock()
		close(d.started)

		log.Infof("Swap client ready")

		m.follow(client.SubscribeSwaps(ctx))

		return nil
	})

	if rpcListener != nil {
		group.Go(func() error {
			select {
			case <-initChan:
			case <-ctx.Done():
				return rpcListener.Close()
			}

			return serveRPC(ctx, rpcListener, client)
		})
	}

	if d.cfg.MetricsListen != "" {
		group.Go(func() error {
			return m.serve(ctx, d.cfg.MetricsListen)
		})
	}

	err = group.Wait()
	log.Infof("swapd stopped: %v", err)

	return err
}
