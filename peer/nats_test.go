//go:build integrations

package peer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNatsMessenger exchanges a message through a local nats server.
func TestNatsMessenger(t *testing.T) {
	bus, err := Connect(&Config{
		Address: "nats://127.0.0.1:4222",
		Name:    "beamswap-integration",
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, bus.Close())
	}()

	alice, err := NewMessenger(bus, testID(1))
	require.NoError(t, err)
	bob, err := NewMessenger(bus, testID(2))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bob.Messages(ctx)
	require.NoError(t, err)

	msg := testMessage()
	require.NoError(t, alice.SendMessage(ctx, testID(2), msg))
	require.Equal(t, msg.ID, receive(t, msgs).ID)
}
