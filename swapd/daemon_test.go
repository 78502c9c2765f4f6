package swapd

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/peer"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/swaprpc"
	"github.com/lightninglabs/beamswap/test"
	"github.com/lightninglabs/lndclient"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var errNotImplemented = errors.New("not implemented")

// testWallet is a BEAM wallet frozen at one height.
type testWallet struct{}

func (testWallet) CurrentHeight(context.Context) (uint64, error) {
	return 1000, nil
}

func (testWallet) GetConfirmations(context.Context, string) (uint32, error) {
	return 0, errNotImplemented
}

func (testWallet) Broadcast(context.Context, []byte, string) (string,
	error) {

	return "", errNotImplemented
}

func (testWallet) BuildSubTx(context.Context,
	*atomicswap.SubTxRequest) (*atomicswap.SubTx, error) {

	return nil, errNotImplemented
}

func (testWallet) ContractKey(_ context.Context, _ swapparams.TxID,
	slot swapparams.Slot) ([33]byte, error) {

	var key [33]byte
	_, pubKey := test.CreateKey(int32(slot) + 2)
	copy(key[:], pubKey.SerializeCompressed())

	return key, nil
}

func (testWallet) IdentityKey() *btcec.PublicKey {
	_, pubKey := test.CreateKey(1)
	return pubKey
}

// TestDaemon tests running the daemon against mocked services.
func TestDaemon(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "regtest"
	cfg.SwapDir = t.TempDir()
	cfg.MetricsListen = "127.0.0.1:0"
	cfg.RPCListen = "127.0.0.1:0"
	require.NoError(t, Validate(&cfg))

	require.ErrorIs(t, New(&cfg, RunConfig{}).Start(), ErrNoWallet)

	lnd := test.NewMockLnd()
	bus := test.NewMemBus()
	svcCfg := &serviceCfg{
		getLnd: func(network lndclient.Network,
			_ *lndConfig) (*lndServices, error) {

			if network != lndclient.NetworkRegtest {
				return nil, errors.New("unexpected network")
			}

			return &lndServices{
				ChainNotifier: lnd.ChainNotifier,
				WalletKit:     lnd.WalletKit,
				close:         func() {},
			}, nil
		},
		getBus: func(*peer.Config) (peer.Bus, func(), error) {
			return bus, func() {}, nil
		},
	}

	daemon := newDaemon(&cfg, svcCfg, testWallet{})
	require.Nil(t, daemon.Client())

	require.NoError(t, daemon.Start())
	require.ErrorIs(t, daemon.Start(), ErrAlreadyStarted)

	select {
	case <-daemon.started:
	case err := <-daemon.ErrChan:
		t.Fatalf("daemon stopped: %v", err)
	}

	client := daemon.Client()
	require.NotNil(t, client)

	// The daemon listens on the subject of the wallet identity.
	myID := testWallet{}.IdentityKey().SerializeCompressed()
	require.Eventually(t, func() bool {
		return bus.Subscribers(peer.Subject(myID)) == 1
	}, test.Timeout, test.Timeout/100)

	ctx := context.Background()
	id, _, err := client.CreateOffer(ctx, &atomicswap.Offer{
		IsBeamSide:       true,
		Coin:             swap.CoinBitcoin,
		Amount:           100_000_000,
		SwapAmount:       1_000_000,
		Lifetime:         1440,
		PeerResponseTime: 120,
	})
	require.NoError(t, err)

	// The swap is served to rpc clients.
	daemon.mu.Lock()
	rpcAddr := daemon.rpcAddr.String()
	daemon.mu.Unlock()

	conn, err := grpc.Dial(
		rpcAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		swaprpc.DialOption(),
	)
	require.NoError(t, err)
	defer conn.Close()

	list, err := swaprpc.NewSwapClientClient(conn).ListSwaps(
		ctx, &swaprpc.ListSwapsRequest{},
	)
	require.NoError(t, err)
	require.Len(t, list.Swaps, 1)
	require.Equal(t, id, list.Swaps[0].ID)

	daemon.Stop()
	require.NoError(t, <-daemon.ErrChan)

	// The swap outlives the daemon in its store.
	store, err := openStore(&cfg, nil)
	require.NoError(t, err)
	defer store.Close()

	swaps, err := store.FetchSwaps(ctx)
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	require.Equal(t, id, swaps[0].ID())
}
