package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/test"
	"github.com/lightninglabs/beamswap/token"
	"github.com/stretchr/testify/require"
)

// TestPrintParams tests printing the parameters of an encoded offer.
func TestPrintParams(t *testing.T) {
	_, pubKey := test.CreateKey(1)

	params, err := atomicswap.NewOfferParams(&atomicswap.Offer{
		IsBeamSide:       true,
		Coin:             swap.CoinLitecoin,
		Amount:           500,
		SwapAmount:       700,
		Lifetime:         1440,
		PeerResponseTime: 720,
	}, pubKey.SerializeCompressed(), 1000, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)

	tkn, err := token.Encode(params, swap.RoleInitiator)
	require.NoError(t, err)

	decoded, err := token.Decode(tkn)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printParams(&buf, decoded))

	out := buf.String()
	require.Contains(t, out, "Swap: "+params.ID().String())
	require.Contains(t, out, "Amount: 500\n")
	require.Contains(t, out, "SwapAmount: 700\n")
	require.Contains(t, out, "MinHeight: 1000\n")

	// The token describes the swap from the acceptor's side.
	require.Contains(t, out, "IsBeamSide: false\n")
}

// TestPrintEstimate tests the estimate of a future height.
func TestPrintEstimate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, printEstimate(&buf, 1000, 1090, now))
	require.Equal(t, "Blocks: 90\nTime left: 1 h 30 min\n"+
		"Reached at: 2024-01-01T01:30:00Z\n", buf.String())

	require.Error(t, printEstimate(&buf, 1000, 1000, now))
}

// TestPrintSwap tests the summary line of a swap.
func TestPrintSwap(t *testing.T) {
	v := &atomicswap.SwapView{
		ID:             swapparams.TxID{1},
		State:          atomicswap.Failed,
		Status:         atomicswap.StatusFailed,
		SentAmount:     "1 BEAM",
		ReceivedAmount: "0.01 BTC",
		FailureReason:  "Swap parameters mismatch",
	}

	var buf bytes.Buffer
	require.NoError(t, printSwap(&buf, v))
	require.Equal(t, v.ID.String()+" Failed ("+
		atomicswap.StatusFailed.String()+") sent 1 BEAM, received "+
		"0.01 BTC - Swap parameters mismatch\n", buf.String())
}
