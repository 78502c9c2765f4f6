package chainclient

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/chain"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/test"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

type testContext struct {
	test.Context

	client *Client
	cancel func()
	done   chan error
}

func newTestContext(t *testing.T) *testContext {
	lnd := test.NewMockLnd()

	client := New(&Config{
		Coin:          swap.CoinBitcoin,
		ChainNotifier: lnd.ChainNotifier,
		WalletKit:     lnd.WalletKit,
		ChainParams:   &chaincfg.RegressionNetParams,
		RetryDelay:    time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx)
	}()

	c := &testContext{
		Context: test.NewContext(t, lnd),
		client:  client,
		cancel:  cancel,
		done:    done,
	}

	// Wait for the initial height, which also means the client runs.
	c.waitHeight(uint64(lnd.Height))

	return c
}

func (c *testContext) stop() {
	c.cancel()
	require.NoError(c.T, <-c.done)
	c.Lnd.WaitForFinished()
}

func (c *testContext) waitHeight(height uint64) {
	c.T.Helper()

	require.Eventually(c.T, func() bool {
		h, err := c.client.CurrentHeight(context.Background())
		return err == nil && h == height
	}, test.Timeout, time.Millisecond)
}

func (c *testContext) confs(tx *wire.MsgTx) uint32 {
	c.T.Helper()

	confs, err := c.client.GetConfirmations(
		context.Background(), tx.TxHash().String(),
	)
	require.NoError(c.T, err)

	return confs
}

func (c *testContext) waitConfs(tx *wire.MsgTx, confs uint32) {
	c.T.Helper()

	require.Eventually(c.T, func() bool {
		n, err := c.client.GetConfirmations(
			context.Background(), tx.TxHash().String(),
		)
		return err == nil && n == confs
	}, test.Timeout, time.Millisecond)
}

// testSecret is the secret of the contract of testHtlc.
var testSecret = lntypes.Preimage{9, 8, 7}

const (
	testLockHeight = 700
	testHtlcValue  = 1_000_000
)

// testKeys returns the refund and redeem keys of the test contract.
func testKeys() ([33]byte, [33]byte) {
	_, sender := test.CreateKey(1)
	_, receiver := test.CreateKey(2)

	var senderKey, receiverKey [33]byte
	copy(senderKey[:], sender.SerializeCompressed())
	copy(receiverKey[:], receiver.SerializeCompressed())

	return senderKey, receiverKey
}

func testHtlc(t *testing.T) *swap.Htlc {
	senderKey, receiverKey := testKeys()

	htlc, err := swap.NewHtlc(
		testLockHeight, senderKey, receiverKey, testSecret.Hash(),
		&chaincfg.RegressionNetParams,
	)
	require.NoError(t, err)

	return htlc
}

// testContract returns the terms of the contract funded by tx.
func testContract(tx *wire.MsgTx) *atomicswap.Contract {
	senderKey, receiverKey := testKeys()

	return &atomicswap.Contract{
		TxID:       tx.TxHash().String(),
		SecretHash: testSecret.Hash(),
		RedeemKey:  receiverKey,
		RefundKey:  senderKey,
		LockHeight: testLockHeight,
		Amount:     testHtlcValue,
		HeightHint: 500,
	}
}

// testSpendTx returns a transaction spending the outpoint.
func testSpendTx(t *testing.T, outpoint wire.OutPoint,
	value int64) (*wire.MsgTx, []byte) {

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: outpoint})
	tx.AddTxOut(&wire.TxOut{
		Value:    value,
		PkScript: []byte{0x00, 0x14, 0x01},
	})

	return tx, serialize(t, tx)
}

func serialize(t *testing.T, tx *wire.MsgTx) []byte {
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	return buf.Bytes()
}

// testHtlcTx returns a transaction funding the test contract.
func testHtlcTx(t *testing.T) (*wire.MsgTx, []byte) {
	pkScript := testHtlc(t).PkScript

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 3},
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    testHtlcValue,
		PkScript: pkScript,
	})

	return tx, serialize(t, tx)
}

// TestBroadcastConfirmations tests publishing a transaction and following its
// confirmations through a reorg.
func TestBroadcastConfirmations(t *testing.T) {
	defer test.Guard(t)()

	c := newTestContext(t)
	defer c.stop()

	ctx := context.Background()

	tx, raw := testHtlcTx(t)
	txID, err := c.client.Broadcast(ctx, raw, "label")
	require.NoError(t, err)
	require.Equal(t, tx.TxHash().String(), txID)

	published := c.ReceiveTx()
	require.Equal(t, tx.TxHash(), published.TxHash())

	reg := c.AssertRegisterConf(tx)
	require.EqualValues(t, 1, reg.NumConfs)
	require.Equal(t, tx.TxOut[0].PkScript, reg.PkScript)

	spendReg := c.AssertRegisterSpend()
	require.Equal(t, wire.OutPoint{Hash: tx.TxHash()}, *spendReg.Outpoint)

	require.Zero(t, c.confs(tx))

	// Broadcasting again does not register twice.
	_, err = c.client.Broadcast(ctx, raw, "label")
	require.NoError(t, err)
	c.ReceiveTx()

	c.NotifyConf(reg, tx, 601)
	c.waitConfs(tx, 0)

	require.NoError(t, c.Lnd.NotifyHeight(601))
	c.waitConfs(tx, 1)

	require.NoError(t, c.Lnd.NotifyHeight(603))
	c.waitConfs(tx, 3)

	// A reorg makes the transaction unconfirmed until lnd confirms it
	// again.
	c.client.mu.Lock()
	reorgChan := c.client.watches[tx.TxHash()].reorgChan
	c.client.mu.Unlock()
	reorgChan <- struct{}{}
	c.waitConfs(tx, 0)

	c.NotifyConf(reg, tx, 603)
	c.waitConfs(tx, 1)

	// Tips are signaled to the block consumer.
	select {
	case height := <-c.client.Blocks():
		require.EqualValues(t, 603, height)

	case <-time.After(test.Timeout):
		t.Fatalf("no block signaled")
	}
}

// TestGetConfirmationsUnknown tests that transactions not watched are
// reported as such.
func TestGetConfirmationsUnknown(t *testing.T) {
	defer test.Guard(t)()

	c := newTestContext(t)
	defer c.stop()

	var hash chainhash.Hash
	_, err := c.client.GetConfirmations(
		context.Background(), hash.String(),
	)
	require.ErrorIs(t, err, ErrNotWatched)

	_, err = c.client.GetConfirmations(context.Background(), "xyz")
	require.Error(t, err)
}

// TestPublishErrors tests the classification of publish errors.
func TestPublishErrors(t *testing.T) {
	defer test.Guard(t)()

	c := newTestContext(t)
	defer c.stop()

	ctx := context.Background()
	_, raw := testHtlcTx(t)

	tests := []struct {
		name     string
		err      error
		reason   swap.FailureReason
		rejected bool
	}{
		{
			name:     "insufficient fee",
			err:      chain.ErrInsufficientFee,
			reason:   swap.FailureInsufficientFee,
			rejected: true,
		},
		{
			name: "double spend",
			err: errors.New("transaction rejected: output " +
				"already spent"),
			reason:   swap.FailureDoubleSpend,
			rejected: true,
		},
		{
			name: "other rejection",
			err: errors.New("transaction rejected: bad " +
				"script"),
			reason:   swap.FailureChainRejected,
			rejected: true,
		},
		{
			name: "transient",
			err:  errors.New("connection refused"),
		},
	}

	for _, tc := range tests {
		c.Lnd.FailPublish(tc.err)

		_, err := c.client.Broadcast(ctx, raw, "label")
		require.Error(t, err, tc.name)

		var rejected *atomicswap.RejectedError
		if !tc.rejected {
			require.False(t, errors.As(err, &rejected), tc.name)
			continue
		}

		require.True(t, errors.As(err, &rejected), tc.name)
		require.Equal(t, tc.reason, rejected.Reason, tc.name)
		require.ErrorIs(t, err, atomicswap.ErrRejected)
	}

	// Garbage is rejected without reaching lnd.
	_, err := c.client.Broadcast(ctx, []byte{1, 2, 3}, "label")
	require.ErrorIs(t, err, atomicswap.ErrRejected)
}

// TestWatchContract tests that a confirmed lock is checked against its
// contract and that the spend of the contract is followed.
func TestWatchContract(t *testing.T) {
	defer test.Guard(t)()

	c := newTestContext(t)
	defer c.stop()

	ctx := context.Background()
	htlc := testHtlc(t)
	tx, _ := testHtlcTx(t)

	require.NoError(t, c.client.WatchContract(ctx, testContract(tx)))

	reg := c.AssertRegisterConf(tx)
	require.Equal(t, htlc.PkScript, reg.PkScript)
	require.EqualValues(t, 500, reg.HeightHint)

	// Watching again, as a restarted swap does, registers nothing new.
	require.NoError(t, c.client.WatchContract(ctx, testContract(tx)))
	require.Len(t, c.Lnd.RegisterConfChannel, 0)

	c.NotifyConf(reg, tx, 601)

	spendReg := c.AssertRegisterSpend()
	require.Equal(t, wire.OutPoint{Hash: tx.TxHash()}, *spendReg.Outpoint)
	require.Equal(t, htlc.PkScript, spendReg.PkScript)
	require.EqualValues(t, 601, spendReg.HeightHint)

	require.Zero(t, c.confs(tx))
	require.NoError(t, c.Lnd.NotifyHeight(602))
	c.waitConfs(tx, 2)

	// The transaction spending the contract is watched in turn.
	spendTx, _ := testSpendTx(t, *spendReg.Outpoint, testHtlcValue-500)
	c.NotifySpend(spendReg, spendTx, 0)

	spenderReg := c.AssertRegisterConf(spendTx)
	require.Equal(t, spendTx.TxOut[0].PkScript, spenderReg.PkScript)
	require.EqualValues(t, 602, spenderReg.HeightHint)
	require.Zero(t, c.confs(spendTx))

	c.NotifyConf(spenderReg, spendTx, 602)
	c.waitConfs(spendTx, 1)
}

// TestWatchContractMismatch tests that a lock not funding the agreed contract
// is rejected, whether it confirms before or after the contract is known.
func TestWatchContractMismatch(t *testing.T) {
	defer test.Guard(t)()

	c := newTestContext(t)
	defer c.stop()

	ctx := context.Background()

	assertMismatch := func(tx *wire.MsgTx) {
		t.Helper()

		var err error
		require.Eventually(t, func() bool {
			_, err = c.client.GetConfirmations(
				ctx, tx.TxHash().String(),
			)
			return err != nil
		}, test.Timeout, time.Millisecond)

		var rejected *atomicswap.RejectedError
		require.ErrorAs(t, err, &rejected)
		require.Equal(
			t, swap.FailureParametersMismatch, rejected.Reason,
		)
		require.ErrorIs(t, err, ErrContractMismatch)
	}

	// The lock pays less than agreed.
	tx, _ := testHtlcTx(t)
	contract := testContract(tx)
	contract.Amount = 2 * testHtlcValue

	require.NoError(t, c.client.WatchContract(ctx, contract))
	reg := c.AssertRegisterConf(tx)
	c.NotifyConf(reg, tx, 600)
	assertMismatch(tx)
	require.Len(t, c.Lnd.RegisterSpendChannel, 0)

	// A lock we published pays to a contract with other keys.
	tx, raw := testHtlcTx(t)
	tx.TxIn[0].PreviousOutPoint.Index = 4
	raw = serialize(t, tx)

	_, err := c.client.Broadcast(ctx, raw, "lock")
	require.NoError(t, err)
	c.ReceiveTx()
	reg = c.AssertRegisterConf(tx)
	c.AssertRegisterSpend()

	c.NotifyConf(reg, tx, 600)
	c.waitConfs(tx, 1)

	contract = testContract(tx)
	contract.RedeemKey, contract.RefundKey = contract.RefundKey,
		contract.RedeemKey
	require.NoError(t, c.client.WatchContract(ctx, contract))
	assertMismatch(tx)
}

// TestConflictingSpend tests that a published transaction whose input is
// spent by another transaction is rejected.
func TestConflictingSpend(t *testing.T) {
	defer test.Guard(t)()

	c := newTestContext(t)
	defer c.stop()

	ctx := context.Background()
	lock, _ := testHtlcTx(t)
	outpoint := wire.OutPoint{Hash: lock.TxHash()}

	redeemTx, raw := testSpendTx(t, outpoint, testHtlcValue-500)
	_, err := c.client.Broadcast(ctx, raw, "redeem")
	require.NoError(t, err)
	c.ReceiveTx()
	c.AssertRegisterConf(redeemTx)

	err = c.client.WatchSpend(ctx, outpoint, testHtlc(t).PkScript, 0)
	require.NoError(t, err)
	spendReg := c.AssertRegisterSpend()
	require.EqualValues(t, 600, spendReg.HeightHint)

	refundTx, _ := testSpendTx(t, outpoint, testHtlcValue-700)
	c.NotifySpend(spendReg, refundTx, 0)
	c.AssertRegisterConf(refundTx)

	_, err = c.client.GetConfirmations(ctx, redeemTx.TxHash().String())
	var rejected *atomicswap.RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, swap.FailureDoubleSpend, rejected.Reason)
	require.ErrorIs(t, err, ErrConflict)

	require.Zero(t, c.confs(refundTx))
}

// TestNotRunning tests that watching requires a running client.
func TestNotRunning(t *testing.T) {
	lnd := test.NewMockLnd()
	client := New(&Config{
		ChainNotifier: lnd.ChainNotifier,
		WalletKit:     lnd.WalletKit,
	})

	_, err := client.CurrentHeight(context.Background())
	require.ErrorIs(t, err, ErrNoHeight)

	var hash chainhash.Hash
	err = client.WatchTx(context.Background(), hash.String(), nil, 0)
	require.ErrorIs(t, err, ErrNotRunning)

	err = client.WatchContract(
		context.Background(), &atomicswap.Contract{TxID: hash.String()},
	)
	require.ErrorIs(t, err, ErrNotRunning)
}
