package test

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/lndclient"
)

var testStartingHeight = int32(600)

// NewMockLnd returns a new instance of LndMockServices that can be used in unit
// tests.
func NewMockLnd() *LndMockServices {
	walletKit := &mockWalletKit{}
	chainNotifier := &mockChainNotifier{}

	lnd := LndMockServices{
		ChainNotifier:        chainNotifier,
		WalletKit:            walletKit,
		ChainParams:          &chaincfg.RegressionNetParams,
		RegisterConfChannel:  make(chan *ConfRegistration, 10),
		RegisterSpendChannel: make(chan *SpendRegistration, 10),
		TxPublishChannel:     make(chan *wire.MsgTx, 10),
		Height:               testStartingHeight,
	}

	chainNotifier.lnd = &lnd
	walletKit.lnd = &lnd

	lnd.WaitForFinished = chainNotifier.WaitForFinished

	return &lnd
}

// LndMockServices provides the mocked lnd chain services.
type LndMockServices struct {
	ChainNotifier lndclient.ChainNotifierClient
	WalletKit     lndclient.WalletKitClient
	ChainParams   *chaincfg.Params

	TxPublishChannel     chan *wire.MsgTx
	RegisterConfChannel  chan *ConfRegistration
	RegisterSpendChannel chan *SpendRegistration

	// PublishErrors are returned by the next publish attempts, in order.
	PublishErrors []error

	Height int32

	WaitForFinished func()

	blockHeightListeners []chan int32
	lock                 sync.Mutex
}

// NotifyHeight notifies a new block height.
func (s *LndMockServices) NotifyHeight(height int32) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.Height = height

	for _, listener := range s.blockHeightListeners {
		select {
		case listener <- height:
		case <-time.After(Timeout):
			return ErrTimeout
		}
	}

	return nil
}

// FailPublish makes the next publish attempt fail with the given error.
func (s *LndMockServices) FailPublish(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.PublishErrors = append(s.PublishErrors, err)
}

func (s *LndMockServices) nextPublishError() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.PublishErrors) == 0 {
		return nil
	}

	err := s.PublishErrors[0]
	s.PublishErrors = s.PublishErrors[1:]

	return err
}
