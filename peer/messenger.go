package peer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/token"
	"github.com/lightningnetwork/lnd/queue"
)

const (
	// subjectPrefix prefixes the subject every wallet receives its swap
	// messages on.
	subjectPrefix = "beamswap."

	// defaultQueueSize is the number of incoming messages buffered before
	// the queue grows its overflow list.
	defaultQueueSize = 32
)

var (
	// ErrInvalidPeerID is returned for peer ids that are not compressed
	// public keys.
	ErrInvalidPeerID = errors.New("invalid peer id")

	// ErrAlreadySubscribed is returned when messages are requested twice.
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// Bus is the publish/subscribe transport messages travel on.
type Bus interface {
	// Publish sends data to all subscribers of the subject.
	Publish(subject string, data []byte) error

	// Subscribe calls the handler for all data published on the subject
	// until the returned function is called.
	Subscribe(subject string, handler func(data []byte)) (func() error,
		error)
}

// Subject returns the subject the wallet with the given id receives its
// messages on.
func Subject(id []byte) string {
	return subjectPrefix + hex.EncodeToString(id)
}

// ValidateID checks that a wallet id is a compressed public key.
func ValidateID(id []byte) error {
	if len(id) != btcec.PubKeyBytesLenCompressed {
		return fmt.Errorf("%w: length %d", ErrInvalidPeerID, len(id))
	}

	if _, err := btcec.ParsePubKey(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}

	return nil
}

// Messenger exchanges swap messages with other wallets over a bus. It
// implements atomicswap.PeerMessenger.
type Messenger struct {
	bus  Bus
	myID []byte

	mu         sync.Mutex
	subscribed bool
}

var _ atomicswap.PeerMessenger = (*Messenger)(nil)

// NewMessenger creates a messenger for the wallet with the given id.
func NewMessenger(bus Bus, myID []byte) (*Messenger, error) {
	if err := ValidateID(myID); err != nil {
		return nil, err
	}

	return &Messenger{
		bus:  bus,
		myID: myID,
	}, nil
}

// SendMessage publishes a message on the subject of the peer.
func (m *Messenger) SendMessage(ctx context.Context, peerID []byte,
	msg *token.Message) error {

	if err := ValidateID(peerID); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := token.EncodeMessage(msg)
	if err != nil {
		return err
	}

	log.Debugf("Sending %d params of swap %v to %x", len(msg.Params),
		msg.ID.Short(), peerID)

	return m.bus.Publish(Subject(peerID), data)
}

// Messages subscribes to the messages addressed to the local wallet. The
// channel is closed when the context is canceled. Messages that fail to
// decode are dropped.
func (m *Messenger) Messages(ctx context.Context) (<-chan *token.Message,
	error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribed {
		return nil, ErrAlreadySubscribed
	}

	// The bus handler must not block, so incoming data is queued.
	incoming := queue.NewConcurrentQueue(defaultQueueSize)
	incoming.Start()

	var (
		closedMu sync.Mutex
		closed   bool
	)
	unsubscribe, err := m.bus.Subscribe(
		Subject(m.myID), func(data []byte) {
			closedMu.Lock()
			defer closedMu.Unlock()

			if closed {
				return
			}
			incoming.ChanIn() <- data
		},
	)
	if err != nil {
		incoming.Stop()
		return nil, err
	}
	m.subscribed = true

	msgChan := make(chan *token.Message)
	go func() {
		defer close(msgChan)
		defer func() {
			if err := unsubscribe(); err != nil {
				log.Errorf("Unable to unsubscribe: %v", err)
			}

			closedMu.Lock()
			closed = true
			closedMu.Unlock()

			incoming.Stop()

			m.mu.Lock()
			m.subscribed = false
			m.mu.Unlock()
		}()

		for {
			var item interface{}
			select {
			case item = <-incoming.ChanOut():
			case <-ctx.Done():
				return
			}

			msg, err := token.DecodeMessage(item.([]byte))
			if err != nil {
				log.Warnf("Dropping undecodable message: %v", err)
				continue
			}

			select {
			case msgChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgChan, nil
}
