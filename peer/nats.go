package peer

import (
	"fmt"
	"net/url"

	"github.com/nats-io/nats.go"
)

// Config contains the arguments required to connect to the nats service.
type Config struct {
	Address string `long:"address" description:"The url of the nats server."`
	Name    string `long:"name" description:"The client name announced to the nats server."`
	Token   string `long:"token" description:"The token to authenticate to the nats server with."`
}

// NatsBus is a Bus on a nats connection.
type NatsBus struct {
	conn *nats.Conn
}

var _ Bus = (*NatsBus)(nil)

// Connect connects to the nats server of the config.
func Connect(cfg *Config) (*NatsBus, error) {
	if _, err := url.Parse(cfg.Address); err != nil {
		return nil, fmt.Errorf("invalid nats address: %w", err)
	}

	opts := []nats.Option{nats.Name(cfg.Name)}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, err
	}

	log.Infof("Connected to nats server %v", conn.ConnectedUrl())

	return &NatsBus{conn: conn}, nil
}

// Publish sends data on a subject.
func (b *NatsBus) Publish(subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

// Subscribe calls the handler for every message on a subject.
func (b *NatsBus) Subscribe(subject string,
	handler func(data []byte)) (func() error, error) {

	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	return sub.Unsubscribe, nil
}

// Close drains the subscriptions and closes the connection.
func (b *NatsBus) Close() error {
	return b.conn.Drain()
}
