package test

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/chainntnfs"
)

// Context contains shared test context functions.
type Context struct {
	T   *testing.T
	Lnd *LndMockServices
}

// NewContext instanties a new common test context.
func NewContext(t *testing.T, lnd *LndMockServices) Context {
	return Context{
		T:   t,
		Lnd: lnd,
	}
}

// ReceiveTx receives a published tx.
func (ctx *Context) ReceiveTx() *wire.MsgTx {
	ctx.T.Helper()

	select {
	case tx := <-ctx.Lnd.TxPublishChannel:
		return tx
	case <-time.After(Timeout):
		ctx.T.Fatalf("tx not published")
		return nil
	}
}

// AssertRegisterConf asserts that a confirmation registration for the given
// tx is made.
func (ctx *Context) AssertRegisterConf(tx *wire.MsgTx) *ConfRegistration {
	ctx.T.Helper()

	txHash := tx.TxHash()

	select {
	case reg := <-ctx.Lnd.RegisterConfChannel:
		if reg.TxID == nil || *reg.TxID != txHash {
			ctx.T.Fatalf("unexpected conf registration for %v",
				reg.TxID)
		}
		return reg

	case <-time.After(Timeout):
		ctx.T.Fatalf("confirmation not subscribed to")
		return nil
	}
}

// AssertRegisterSpend asserts that a spend registration is made and returns
// it.
func (ctx *Context) AssertRegisterSpend() *SpendRegistration {
	ctx.T.Helper()

	select {
	case reg := <-ctx.Lnd.RegisterSpendChannel:
		return reg

	case <-time.After(Timeout):
		ctx.T.Fatalf("spend not subscribed to")
		return nil
	}
}

// NotifyConf simulates the confirmation of a registered tx at the given
// height.
func (ctx *Context) NotifyConf(reg *ConfRegistration, tx *wire.MsgTx,
	height uint32) {

	ctx.T.Helper()

	select {
	case reg.ConfChan <- &chainntnfs.TxConfirmation{
		Tx:          tx,
		BlockHeight: height,
	}:
	case <-time.After(Timeout):
		ctx.T.Fatalf("conf not consumed")
	}
}

// NotifySpend simulates a spend of a registered output.
func (ctx *Context) NotifySpend(reg *SpendRegistration, tx *wire.MsgTx,
	inputIndex uint32) {

	ctx.T.Helper()

	txHash := tx.TxHash()

	select {
	case reg.SpendChannel <- &chainntnfs.SpendDetail{
		SpentOutPoint:     reg.Outpoint,
		SpendingTx:        tx,
		SpenderTxHash:     &txHash,
		SpenderInputIndex: inputIndex,
	}:
	case <-time.After(Timeout):
		ctx.T.Fatalf("spend not consumed")
	}
}
