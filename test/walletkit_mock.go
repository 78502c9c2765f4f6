package test

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/lndclient"
)

type mockWalletKit struct {
	lndclient.WalletKitClient

	lnd *LndMockServices
}

var _ lndclient.WalletKitClient = (*mockWalletKit)(nil)

func (m *mockWalletKit) PublishTransaction(ctx context.Context, tx *wire.MsgTx,
	_ string) error {

	if err := m.lnd.nextPublishError(); err != nil {
		return err
	}

	select {
	case m.lnd.TxPublishChannel <- tx:
	case <-time.After(Timeout):
		return ErrTimeout
	}

	return nil
}
