package chainclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/lndclient"
)

const (
	// DefaultRetryDelay is the time waited before the block subscription
	// is renewed after it failed.
	DefaultRetryDelay = 5 * time.Second
)

var (
	// ErrNotRunning is returned by calls that need the client's run loop.
	ErrNotRunning = errors.New("chain client not running")

	// ErrNoHeight is returned while the first block has not been received.
	ErrNoHeight = errors.New("chain height unknown")

	// ErrNotWatched is returned for transactions the client neither
	// published nor was asked to watch.
	ErrNotWatched = errors.New("transaction not watched")

	// ErrContractMismatch is returned for a lock transaction that doesn't
	// fund the contract the peers agreed on.
	ErrContractMismatch = errors.New("transaction doesn't fund contract")

	// ErrConflict is returned for a transaction whose input was spent by
	// another transaction.
	ErrConflict = errors.New("input spent by conflicting transaction")
)

// Config holds the lnd services the client is built on.
type Config struct {
	// Coin is the coin of the chain lnd is connected to.
	Coin swap.Coin

	// ChainNotifier delivers blocks, confirmations and spends.
	ChainNotifier lndclient.ChainNotifierClient

	// WalletKit publishes transactions.
	WalletKit lndclient.WalletKitClient

	// ChainParams are the parameters contract scripts are derived with.
	// Nil selects mainnet.
	ChainParams *chaincfg.Params

	// RetryDelay is the delay before a failed block subscription is
	// renewed. Zero selects DefaultRetryDelay.
	RetryDelay time.Duration
}

// txWatch is the confirmation state of one transaction.
type txWatch struct {
	hash     chainhash.Hash
	pkScript []byte

	// confHeight is the height of the block that included the
	// transaction, zero while it is unconfirmed.
	confHeight uint64

	reorgChan chan struct{}

	// tx is the confirmed transaction.
	tx *wire.MsgTx

	// inputs are the outputs spent by a transaction we published.
	inputs []wire.OutPoint

	// contract is the contract the transaction must fund, nil if it
	// isn't a lock.
	contract *swap.Htlc
	amount   uint64

	// mismatch is set once the confirmed transaction turned out not to
	// fund the contract.
	mismatch error

	// conflict is the transaction that spent one of our inputs.
	conflict *chainhash.Hash
}

// Client is a bitcoin-family chain client backed by lnd. It implements
// atomicswap.ChainClient, atomicswap.BlockSource and
// atomicswap.ContractWatcher.
type Client struct {
	cfg *Config

	blocks chan uint64

	mu      sync.Mutex
	runCtx  context.Context
	height  uint64
	watches map[chainhash.Hash]*txWatch
	spends  map[wire.OutPoint]struct{}

	wg sync.WaitGroup
}

var (
	_ atomicswap.ChainClient     = (*Client)(nil)
	_ atomicswap.BlockSource     = (*Client)(nil)
	_ atomicswap.ContractWatcher = (*Client)(nil)
)

// New creates a new chain client. It serves requests once Run is called.
func New(cfg *Config) *Client {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ChainParams == nil {
		cfg.ChainParams = &chaincfg.MainNetParams
	}

	return &Client{
		cfg:     cfg,
		blocks:  make(chan uint64, 1),
		watches: make(map[chainhash.Hash]*txWatch),
		spends:  make(map[wire.OutPoint]struct{}),
	}
}

// Run follows the chain tip until the context is canceled. A failed block
// subscription is renewed after the retry delay.
func (c *Client) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.runCtx = runCtx
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.runCtx = nil
		c.mu.Unlock()

		cancel()
		c.wg.Wait()
	}()

	for {
		err := c.followBlocks(runCtx)
		if err == nil {
			return nil
		}

		log.Errorf("%v block subscription failed: %v", c.cfg.Coin, err)

		select {
		case <-time.After(c.cfg.RetryDelay):

		case <-ctx.Done():
			return nil
		}
	}
}

// followBlocks subscribes to blocks and records every new tip. It returns
// nil when the context is canceled.
func (c *Client) followBlocks(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	blockChan, errChan, err := c.cfg.ChainNotifier.RegisterBlockEpochNtfn(
		subCtx,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case height := <-blockChan:
			c.setHeight(uint64(height))

		case err := <-errChan:
			return err

		case <-ctx.Done():
			return nil
		}
	}
}

// setHeight records a new tip and signals it to the block consumer.
func (c *Client) setHeight(height uint64) {
	c.mu.Lock()
	c.height = height
	c.mu.Unlock()

	log.Debugf("%v block height %v", c.cfg.Coin, height)

	// A single pending signal is enough as the consumer reads the current
	// height.
	select {
	case c.blocks <- height:
	default:
		select {
		case <-c.blocks:
		default:
		}
		select {
		case c.blocks <- height:
		default:
		}
	}
}

// Blocks delivers the height of new chain tips. Heights may be coalesced.
func (c *Client) Blocks() <-chan uint64 {
	return c.blocks
}

// CurrentHeight returns the height of the chain tip.
func (c *Client) CurrentHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.height == 0 {
		return 0, ErrNoHeight
	}

	return c.height, nil
}

// GetConfirmations returns the confirmations of a watched transaction. A
// lock that doesn't fund its contract and a transaction that lost its input
// to a conflicting one are rejected.
func (c *Client) GetConfirmations(_ context.Context, txID string) (uint32,
	error) {

	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return 0, fmt.Errorf("invalid tx id %v: %w", txID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.watches[*hash]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrNotWatched, txID)
	}

	if w.mismatch != nil {
		return 0, atomicswap.NewRejectedError(
			swap.FailureParametersMismatch, w.mismatch,
		)
	}

	if w.conflict != nil && w.confHeight == 0 {
		return 0, atomicswap.NewRejectedError(
			swap.FailureDoubleSpend,
			fmt.Errorf("%w: %v", ErrConflict, w.conflict),
		)
	}

	if w.confHeight == 0 || c.height < w.confHeight {
		return 0, nil
	}

	return uint32(c.height - w.confHeight + 1), nil
}

// Broadcast publishes a serialized transaction and starts watching its
// confirmations and the spends of its script hash outputs.
func (c *Client) Broadcast(ctx context.Context, raw []byte,
	label string) (string, error) {

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", atomicswap.NewRejectedError(
			swap.FailureChainRejected,
			fmt.Errorf("invalid transaction: %w", err),
		)
	}

	if len(tx.TxOut) == 0 {
		return "", atomicswap.NewRejectedError(
			swap.FailureChainRejected,
			errors.New("transaction has no outputs"),
		)
	}

	err := c.cfg.WalletKit.PublishTransaction(ctx, tx, label)
	if err != nil {
		return "", classifyPublishError(err)
	}

	hash := tx.TxHash()
	log.Infof("Published %v tx %v (%v)", c.cfg.Coin, hash, label)

	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.watchTx(hash, tx.TxOut[0].PkScript, 0)
	if err != nil {
		return "", err
	}

	w.inputs = w.inputs[:0]
	for _, in := range tx.TxIn {
		w.inputs = append(w.inputs, in.PreviousOutPoint)
	}

	for i, out := range tx.TxOut {
		if !txscript.IsPayToWitnessScriptHash(out.PkScript) {
			continue
		}

		outpoint := wire.OutPoint{Hash: hash, Index: uint32(i)}
		err := c.watchSpend(outpoint, out.PkScript, 0)
		if err != nil {
			return "", err
		}
	}

	return hash.String(), nil
}

// WatchTx starts tracking the confirmations of a transaction paying to the
// given script. The height hint is the height from which lnd searches the
// transaction, zero selects the current height. Watching a transaction twice
// is a no-op.
func (c *Client) WatchTx(_ context.Context, txID string, pkScript []byte,
	heightHint uint64) error {

	hash, err := chainhash.NewHashFromStr(txID)
	if err != nil {
		return fmt.Errorf("invalid tx id %v: %w", txID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.watchTx(*hash, pkScript, heightHint)

	return err
}

// WatchContract starts tracking the lock transaction of a contract. Once it
// confirms, the transaction is checked to fund the contract and the contract
// output is watched for its spend.
func (c *Client) WatchContract(_ context.Context,
	contract *atomicswap.Contract) error {

	hash, err := chainhash.NewHashFromStr(contract.TxID)
	if err != nil {
		return fmt.Errorf("invalid tx id %v: %w", contract.TxID, err)
	}

	htlc, err := swap.NewHtlc(
		int32(contract.LockHeight), contract.RefundKey,
		contract.RedeemKey, contract.SecretHash, c.cfg.ChainParams,
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w, err := c.watchTx(*hash, htlc.PkScript, contract.HeightHint)
	if err != nil {
		return err
	}

	if w.contract != nil {
		return nil
	}

	w.contract = htlc
	w.amount = contract.Amount

	log.Debugf("Watching %v contract %v funded by %v", c.cfg.Coin,
		htlc.Address, hash)

	if w.tx != nil {
		c.checkContract(w)
	}

	return nil
}

// watchTx registers the confirmations of a transaction with lnd unless it is
// watched already. The caller must hold the mutex.
func (c *Client) watchTx(hash chainhash.Hash, pkScript []byte,
	heightHint uint64) (*txWatch, error) {

	if c.runCtx == nil {
		return nil, ErrNotRunning
	}

	if w, ok := c.watches[hash]; ok {
		return w, nil
	}

	if heightHint == 0 {
		heightHint = c.height
	}

	w := &txWatch{
		hash:      hash,
		pkScript:  pkScript,
		reorgChan: make(chan struct{}, 1),
	}

	confChan, errChan, err := c.cfg.ChainNotifier.RegisterConfirmationsNtfn(
		c.runCtx, &w.hash, pkScript, 1, int32(heightHint),
		lndclient.WithReOrgChan(w.reorgChan),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to register confirmations "+
			"of %v: %w", hash, err)
	}

	c.watches[hash] = w

	c.wg.Add(1)
	go func(ctx context.Context) {
		defer c.wg.Done()

		c.watchConfirmations(ctx, w, confChan, errChan)
	}(c.runCtx)

	return w, nil
}

// WatchSpend starts watching an output for its spend. The spending
// transaction is watched in turn.
func (c *Client) WatchSpend(_ context.Context, outpoint wire.OutPoint,
	pkScript []byte, heightHint uint64) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.watchSpend(outpoint, pkScript, heightHint)
}

// watchSpend registers the spend of an output with lnd unless it is watched
// already. The caller must hold the mutex.
func (c *Client) watchSpend(outpoint wire.OutPoint, pkScript []byte,
	heightHint uint64) error {

	if c.runCtx == nil {
		return ErrNotRunning
	}

	if _, ok := c.spends[outpoint]; ok {
		return nil
	}

	if heightHint == 0 {
		heightHint = c.height
	}

	spendChan, errChan, err := c.cfg.ChainNotifier.RegisterSpendNtfn(
		c.runCtx, &outpoint, pkScript, int32(heightHint),
	)
	if err != nil {
		return fmt.Errorf("unable to register spend of %v: %w",
			outpoint, err)
	}

	c.spends[outpoint] = struct{}{}

	c.wg.Add(1)
	go func(ctx context.Context) {
		defer c.wg.Done()

		select {
		case spend := <-spendChan:
			c.spent(outpoint, spend.SpendingTx,
				uint64(spend.SpendingHeight))

		case err := <-errChan:
			log.Errorf("Spend notification of %v failed: %v",
				outpoint, err)

			c.mu.Lock()
			delete(c.spends, outpoint)
			c.mu.Unlock()

		case <-ctx.Done():
		}
	}(c.runCtx)

	return nil
}
