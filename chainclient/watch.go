package chainclient

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/chain"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightningnetwork/lnd/chainntnfs"
)

// watchConfirmations follows the confirmation of a transaction. A reorg
// resets the transaction to unconfirmed and lnd delivers the confirmation
// again once it is mined anew.
func (c *Client) watchConfirmations(ctx context.Context, w *txWatch,
	confChan chan *chainntnfs.TxConfirmation, errChan chan error) {

	for {
		select {
		case conf := <-confChan:
			c.mu.Lock()
			w.confHeight = uint64(conf.BlockHeight)
			if conf.Tx != nil {
				w.tx = conf.Tx
			}
			if w.contract != nil && w.tx != nil {
				c.checkContract(w)
			}
			c.mu.Unlock()

			log.Debugf("%v tx %v confirmed at height %v",
				c.cfg.Coin, w.hash, conf.BlockHeight)

		case <-w.reorgChan:
			c.mu.Lock()
			w.confHeight = 0
			c.mu.Unlock()

			log.Infof("%v tx %v reorged out", c.cfg.Coin, w.hash)

		case err := <-errChan:
			log.Errorf("Confirmation notification of %v failed: %v",
				w.hash, err)

			// Forget the watch so that the transaction is watched
			// anew on the next broadcast.
			c.mu.Lock()
			delete(c.watches, w.hash)
			c.mu.Unlock()

			return

		case <-ctx.Done():
			return
		}
	}
}

// checkContract verifies that a confirmed lock funds its contract and
// watches the contract output for its spend. The caller must hold the mutex.
func (c *Client) checkContract(w *txWatch) {
	for i, out := range w.tx.TxOut {
		if !bytes.Equal(out.PkScript, w.contract.PkScript) {
			continue
		}

		if out.Value < 0 || uint64(out.Value) < w.amount {
			continue
		}

		w.mismatch = nil

		outpoint := wire.OutPoint{Hash: w.hash, Index: uint32(i)}
		err := c.watchSpend(outpoint, out.PkScript, w.confHeight)
		if err != nil {
			log.Errorf("Unable to watch contract %v: %v", outpoint,
				err)
		}

		return
	}

	w.mismatch = fmt.Errorf("%w: %v doesn't pay %v to %v",
		ErrContractMismatch, w.hash, w.amount, w.contract.Address)

	log.Warnf("%v lock %v", c.cfg.Coin, w.mismatch)
}

// spent watches the transaction that spent an output and marks the
// transactions we published that lost the output to it.
func (c *Client) spent(outpoint wire.OutPoint, tx *wire.MsgTx,
	height uint64) {

	if tx == nil {
		return
	}

	spender := tx.TxHash()

	log.Infof("%v output %v spent by %v", c.cfg.Coin, outpoint, spender)

	c.mu.Lock()
	defer c.mu.Unlock()

	for hash, w := range c.watches {
		if hash == spender {
			continue
		}

		for _, in := range w.inputs {
			if in == outpoint {
				w.conflict = &spender
				break
			}
		}
	}

	if len(tx.TxOut) == 0 {
		return
	}

	_, err := c.watchTx(spender, tx.TxOut[0].PkScript, height)
	if err != nil {
		log.Errorf("Unable to watch spending tx %v: %v", spender, err)
	}
}

// classifyPublishError turns definitive publish failures into rejections.
// Anything else is left as is and retried by the swap.
func classifyPublishError(err error) error {
	var reason swap.FailureReason

	msg := err.Error()
	switch {
	case strings.Contains(msg, chain.ErrInsufficientFee.Error()):
		reason = swap.FailureInsufficientFee

	case strings.Contains(msg, "output already spent"):
		reason = swap.FailureDoubleSpend

	case strings.Contains(msg, "transaction rejected"):
		reason = swap.FailureChainRejected

	default:
		return err
	}

	return atomicswap.NewRejectedError(reason, err)
}
