package atomicswap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapdb"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/test"
	"github.com/lightninglabs/beamswap/token"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/stretchr/testify/require"
)

var (
	errUnknownTx = errors.New("unknown transaction")

	errChainDown = errors.New("chain unavailable")

	errContractMismatch = errors.New("contract not funded")

	testSecret = lntypes.Preimage{1, 2, 3, 4}

	testStartTime = time.Unix(1_700_000_000, 0)
)

// mockChain is a chain that includes broadcast transactions once the test
// says so.
type mockChain struct {
	mu sync.Mutex

	height uint64

	confs map[string]uint32

	broadcasts []string

	// reject is returned by the next broadcast.
	reject error

	// down makes every call fail transiently.
	down bool
}

func newMockChain(height uint64) *mockChain {
	return &mockChain{
		height: height,
		confs:  make(map[string]uint32),
	}
}

func (c *mockChain) CurrentHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.down {
		return 0, errChainDown
	}

	return c.height, nil
}

func (c *mockChain) GetConfirmations(_ context.Context,
	txID string) (uint32, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.down {
		return 0, errChainDown
	}

	confs, ok := c.confs[txID]
	if !ok {
		return 0, fmt.Errorf("%w: %v", errUnknownTx, txID)
	}

	return confs, nil
}

func (c *mockChain) Broadcast(_ context.Context, raw []byte,
	_ string) (string, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.down {
		return "", errChainDown
	}

	if c.reject != nil {
		err := c.reject
		c.reject = nil

		return "", err
	}

	txID := string(raw)
	if _, ok := c.confs[txID]; !ok {
		c.confs[txID] = 0
	}
	c.broadcasts = append(c.broadcasts, txID)

	return txID, nil
}

func (c *mockChain) setHeight(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.height = height
}

func (c *mockChain) confirm(txID string, confs uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.confs[txID] = confs
}

func (c *mockChain) setDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.down = down
}

func (c *mockChain) setReject(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reject = err
}

func (c *mockChain) published(txID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range c.broadcasts {
		if id == txID {
			return true
		}
	}

	return false
}

// mockSecretChain is a chain on which redeem transactions reveal secrets.
type mockSecretChain struct {
	*mockChain

	secrets map[lntypes.Hash]lntypes.Preimage
}

func (c *mockSecretChain) FindSecret(_ context.Context,
	hash lntypes.Hash) (*lntypes.Preimage, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	secret, ok := c.secrets[hash]
	if !ok {
		return nil, nil
	}

	return &secret, nil
}

// mockBuilder builds transactions whose raw form is their id, so the mock
// chains can track them.
type mockBuilder struct {
	// foreignLockExpiry is the foreign height after which foreign locks
	// can be refunded.
	foreignLockExpiry uint64
}

func (b *mockBuilder) BuildSubTx(_ context.Context,
	req *SubTxRequest) (*SubTx, error) {

	txID := testTxID(req.ID, req.Slot)

	tx := &SubTx{
		Raw: []byte(txID),
		ID:  txID,
		Fee: 100,
	}
	if req.Slot == swapparams.SlotForeignLock {
		tx.LockExpiryHeight = b.foreignLockExpiry
	}

	return tx, nil
}

// testTxID returns the id the mock builder gives the transaction of a slot:
// a kernel id on BEAM, a readable id on the foreign chain.
func testTxID(id swapparams.TxID, slot swapparams.Slot) string {
	if slot.IsBeam() {
		sum := sha256.Sum256(append(id[:], byte(slot)))
		return hex.EncodeToString(sum[:])
	}

	return fmt.Sprintf("%v-%v", id.Short(), slot)
}

// keyedBuilder is a mock builder that also hands out contract keys.
type keyedBuilder struct {
	*mockBuilder
}

func (b *keyedBuilder) ContractKey(_ context.Context, _ swapparams.TxID,
	slot swapparams.Slot) ([33]byte, error) {

	return testContractKey(slot), nil
}

// testContractKey returns the contract key the keyed builder uses for a
// slot.
func testContractKey(slot swapparams.Slot) [33]byte {
	var key [33]byte

	_, pubKey := test.CreateKey(int32(slot))
	copy(key[:], pubKey.SerializeCompressed())

	return key
}

// mockContractChain is a foreign chain that records the contracts it is
// asked to watch.
type mockContractChain struct {
	*mockChain

	contracts map[string]*Contract

	// mismatch reports watched contracts as not funded by their
	// transaction.
	mismatch bool
}

func newMockContractChain(chain *mockChain) *mockContractChain {
	return &mockContractChain{
		mockChain: chain,
		contracts: make(map[string]*Contract),
	}
}

func (c *mockContractChain) WatchContract(_ context.Context,
	contract *Contract) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.contracts[contract.TxID]; !ok {
		c.contracts[contract.TxID] = contract
	}

	return nil
}

func (c *mockContractChain) GetConfirmations(ctx context.Context,
	txID string) (uint32, error) {

	c.mu.Lock()
	_, watched := c.contracts[txID]
	mismatch := c.mismatch
	c.mu.Unlock()

	if watched && mismatch {
		return 0, NewRejectedError(
			swap.FailureParametersMismatch, errContractMismatch,
		)
	}

	return c.mockChain.GetConfirmations(ctx, txID)
}

func (c *mockContractChain) watched(txID string) *Contract {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.contracts[txID]
}

func (c *mockContractChain) setMismatch(mismatch bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mismatch = mismatch
}

// mockPeer collects the messages sent by a swap.
type mockPeer struct {
	mu   sync.Mutex
	sent []*token.Message
}

func (p *mockPeer) SendMessage(_ context.Context, _ []byte,
	msg *token.Message) error {

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent = append(p.sent, msg)

	return nil
}

func (p *mockPeer) Messages(ctx context.Context) (<-chan *token.Message,
	error) {

	return make(chan *token.Message), nil
}

// drain returns and forgets the messages sent so far.
func (p *mockPeer) drain() []*token.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	sent := p.sent
	p.sent = nil

	return sent
}

// loopback is one end of an in-memory link between two wallets.
type loopback struct {
	in  *queue.ConcurrentQueue
	out *queue.ConcurrentQueue
}

// newLoopbackPair returns two connected messengers.
func newLoopbackPair() (*loopback, *loopback) {
	aToB := queue.NewConcurrentQueue(10)
	bToA := queue.NewConcurrentQueue(10)
	aToB.Start()
	bToA.Start()

	return &loopback{in: bToA, out: aToB}, &loopback{in: aToB, out: bToA}
}

func (l *loopback) SendMessage(ctx context.Context, _ []byte,
	msg *token.Message) error {

	// Messages travel encoded like on the wire.
	b, err := token.EncodeMessage(msg)
	if err != nil {
		return err
	}

	select {
	case l.out.ChanIn() <- b:
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *loopback) Messages(ctx context.Context) (<-chan *token.Message,
	error) {

	msgs := make(chan *token.Message)
	go func() {
		defer close(msgs)

		for {
			var item interface{}
			select {
			case item = <-l.in.ChanOut():
			case <-ctx.Done():
				return
			}

			msg, err := token.DecodeMessage(item.([]byte))
			if err != nil {
				continue
			}

			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

func (l *loopback) stop() {
	l.in.Stop()
}

// testParty is one wallet of a test swap.
type testParty struct {
	t *testing.T

	cfg *Config

	store *swapdb.MemStore

	peer *mockPeer

	swap *FSM
}

// testSwapContext holds two parties sharing a BEAM and a bitcoin chain.
type testSwapContext struct {
	t *testing.T

	ctx context.Context

	beam *mockChain
	btc  *mockChain

	builder *mockBuilder

	initiator *testParty
	acceptor  *testParty
}

func newTestConfig(beam, btc ChainClient, builder SubTxBuilder,
	peer PeerMessenger, myID []byte,
	store Store) *Config {

	return &Config{
		Store:     store,
		BeamChain: beam,
		ForeignChains: map[swap.Coin]ChainClient{
			swap.CoinBitcoin: btc,
		},
		Builder: builder,
		Peer:    peer,
		MyID:    myID,
		RequiredConfs: map[swap.Coin]uint32{
			swap.CoinBitcoin: 3,
		},
		NewSecret: func() (lntypes.Preimage, error) {
			return testSecret, nil
		},
		Clock: clock.NewTestClock(testStartTime),
	}
}

func newTestParty(t *testing.T, beam, btc ChainClient, builder SubTxBuilder,
	myID []byte) *testParty {

	store := swapdb.NewMemStore()
	peer := &mockPeer{}

	return &testParty{
		t:     t,
		cfg:   newTestConfig(beam, btc, builder, peer, myID, store),
		store: store,
		peer:  peer,
	}
}

// testOffer is 1 BEAM for 0.01 BTC, valid for 1440 blocks.
var testOffer = Offer{
	IsBeamSide:       true,
	Coin:             swap.CoinBitcoin,
	Amount:           100_000_000,
	SwapAmount:       1_000_000,
	Lifetime:         1440,
	PeerResponseTime: 120,
}

// newTestSwapContext creates an offer on the initiator and materializes the
// acceptor from its token, without running the handshake.
func newTestSwapContext(t *testing.T, offer Offer) *testSwapContext {
	c := &testSwapContext{
		t:   t,
		ctx: context.Background(),
		beam: newMockChain(1000),
		btc:  newMockChain(100),
		builder: &mockBuilder{
			foreignLockExpiry: 400,
		},
	}
	c.initiator = newTestParty(t, c.beam, c.btc, c.builder, []byte("alice"))
	c.acceptor = newTestParty(t, c.beam, c.btc, c.builder, []byte("bob"))

	params := newInitiatorParams(t, c.initiator.cfg, &offer, 1000)
	c.initiator.start(params)

	tkn, err := token.Encode(params, swap.RoleInitiator)
	require.NoError(t, err)

	bootstrap, err := token.Accept(tkn, NewManager(c.acceptor.cfg))
	require.NoError(t, err)
	require.False(t, bootstrap.PreviouslyAccepted)

	require.NoError(t, setAll(bootstrap.Params, []swapparams.Param{
		def(swapparams.KindMyID).param(
			swapparams.BytesValue(c.acceptor.cfg.MyID),
		),
		def(swapparams.KindIsInitiator).param(
			swapparams.BoolValue(false),
		),
	}))
	c.acceptor.start(bootstrap.Params)

	return c
}

// newInitiatorParams returns the parameters of a fresh offer.
func newInitiatorParams(t *testing.T, cfg *Config, offer *Offer,
	height uint64) *swapparams.Store {

	params := swapparams.NewStore(swapparams.NewTxID())
	require.NoError(t, setAll(params, []swapparams.Param{
		def(swapparams.KindMyID).param(swapparams.BytesValue(cfg.MyID)),
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
			swapparams.Uint64Value(uint64(testStartTime.Unix())),
		),
	}))

	return params
}

// start stores the swap and creates its state machine.
func (p *testParty) start(params *swapparams.Store) {
	ctx := context.Background()

	require.NoError(p.t, p.store.CreateSwap(ctx, params))
	params.MarkClean()

	swapFsm, err := NewFSMFromParams(ctx, p.cfg, params)
	require.NoError(p.t, err)
	p.swap = swapFsm
}

// check re-evaluates the swap like a tick of the manager does.
func (p *testParty) check() {
	p.t.Helper()

	if isFinalState(p.swap.CurrentState()) {
		return
	}

	err := p.swap.SendEvent(context.Background(), OnCheck, nil)
	require.NoError(p.t, err)
}

// assertState asserts the state of the swap and that it was persisted.
func (p *testParty) assertState(expected fsm.StateType) {
	p.t.Helper()

	require.Equal(p.t, expected, p.swap.CurrentState())

	stored, err := p.store.LoadSwap(context.Background(), p.swap.ID())
	require.NoError(p.t, err)
	require.Equal(p.t, expected, stateOf(stored))
}

// param returns a uint64 parameter of the swap.
func (p *testParty) param(kind swapparams.Kind, slot swapparams.Slot) uint64 {
	p.t.Helper()

	v, ok, err := p.swap.params.Uint64(kind, slot)
	require.NoError(p.t, err)
	require.Truef(p.t, ok, "%v/%v missing", kind, slot)

	return v
}

// deliver hands the messages sent by one party to the other and
// re-evaluates the receiver like the manager does.
func (c *testSwapContext) deliver(from, to *testParty) {
	c.t.Helper()

	m := NewManager(to.cfg)
	m.swaps[to.swap.ID()] = to.swap

	for _, msg := range from.peer.drain() {
		m.handleMessage(c.ctx, msg)
	}
}

// exchange delivers messages both ways until no party has anything to say.
func (c *testSwapContext) exchange() {
	c.t.Helper()

	for i := 0; i < 10; i++ {
		c.deliver(c.acceptor, c.initiator)
		c.deliver(c.initiator, c.acceptor)
	}
}

// handshake runs the handshake until both sides wait for the foreign lock to
// confirm.
func (c *testSwapContext) handshake() {
	c.t.Helper()

	c.initiator.check()
	c.acceptor.check()
	c.exchange()
}
