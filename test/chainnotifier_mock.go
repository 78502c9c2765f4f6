package test

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/chainntnfs"
)

type mockChainNotifier struct {
	lndclient.ChainNotifierClient

	lnd *LndMockServices
	wg  sync.WaitGroup
}

var _ lndclient.ChainNotifierClient = (*mockChainNotifier)(nil)

// SpendRegistration contains registration details.
type SpendRegistration struct {
	Outpoint     *wire.OutPoint
	PkScript     []byte
	HeightHint   int32
	SpendChannel chan *chainntnfs.SpendDetail
	ErrChan      chan error
}

// ConfRegistration contains registration details.
type ConfRegistration struct {
	TxID       *chainhash.Hash
	PkScript   []byte
	HeightHint int32
	NumConfs   int32
	ConfChan   chan *chainntnfs.TxConfirmation
	ErrChan    chan error
}

func (c *mockChainNotifier) RegisterSpendNtfn(ctx context.Context,
	outpoint *wire.OutPoint, pkScript []byte, heightHint int32,
	_ ...lndclient.NotifierOption) (chan *chainntnfs.SpendDetail,
	chan error, error) {

	reg := &SpendRegistration{
		HeightHint:   heightHint,
		Outpoint:     outpoint,
		PkScript:     pkScript,
		SpendChannel: make(chan *chainntnfs.SpendDetail, 1),
		ErrChan:      make(chan error, 1),
	}

	select {
	case c.lnd.RegisterSpendChannel <- reg:
	case <-time.After(Timeout):
		return nil, nil, ErrTimeout
	}

	return reg.SpendChannel, reg.ErrChan, nil
}

// WaitForFinished waits until all block subscriptions ended.
func (c *mockChainNotifier) WaitForFinished() {
	c.wg.Wait()
}

func (c *mockChainNotifier) RegisterBlockEpochNtfn(ctx context.Context) (
	chan int32, chan error, error) {

	blockErrorChan := make(chan error, 1)
	blockEpochChan := make(chan int32, 1)

	c.lnd.lock.Lock()
	c.lnd.blockHeightListeners = append(
		c.lnd.blockHeightListeners, blockEpochChan,
	)

	// Send initial block height.
	blockEpochChan <- c.lnd.Height
	c.lnd.lock.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		<-ctx.Done()

		c.lnd.lock.Lock()
		defer c.lnd.lock.Unlock()

		for i := 0; i < len(c.lnd.blockHeightListeners); i++ {
			if c.lnd.blockHeightListeners[i] == blockEpochChan {
				c.lnd.blockHeightListeners = append(
					c.lnd.blockHeightListeners[:i],
					c.lnd.blockHeightListeners[i+1:]...,
				)
				break
			}
		}
	}()

	return blockEpochChan, blockErrorChan, nil
}

func (c *mockChainNotifier) RegisterConfirmationsNtfn(ctx context.Context,
	txid *chainhash.Hash, pkScript []byte, numConfs, heightHint int32,
	_ ...lndclient.NotifierOption) (chan *chainntnfs.TxConfirmation,
	chan error, error) {

	reg := &ConfRegistration{
		PkScript:   pkScript,
		TxID:       txid,
		HeightHint: heightHint,
		NumConfs:   numConfs,
		ConfChan:   make(chan *chainntnfs.TxConfirmation, 1),
		ErrChan:    make(chan error, 1),
	}

	select {
	case c.lnd.RegisterConfChannel <- reg:
	case <-time.After(Timeout):
		return nil, nil, ErrTimeout
	}

	return reg.ConfChan, reg.ErrChan, nil
}
