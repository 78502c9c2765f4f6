package swapd

import (
	"context"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightningnetwork/lnd/clock"
)

// View writes all swaps currently in the database of a validated config. It
// must not be called while the daemon is running.
func View(config *Config, w io.Writer) error {
	store, err := openStore(config, clock.NewDefaultClock())
	if err != nil {
		return err
	}
	defer store.Close()

	swaps, err := store.FetchSwaps(context.Background())
	if err != nil {
		return err
	}

	return viewSwaps(swaps, w)
}

// viewSwaps writes a summary and the raw parameters of each swap.
func viewSwaps(swaps []*swapparams.Store, w io.Writer) error {
	cfg := spew.ConfigState{
		Indent:                  "   ",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}

	for _, s := range swaps {
		v := atomicswap.NewSwapView(s, false)

		_, err := fmt.Fprintf(w, "SWAP %v\n   State: %v (%v)\n"+
			"   Sent: %v, Received: %v\n", v.ID, v.State, v.Status,
			v.SentAmount, v.ReceivedAmount)
		if err != nil {
			return err
		}

		if v.FailureReason != "" {
			_, err := fmt.Fprintf(w, "   Failure: %v\n",
				v.FailureReason)
			if err != nil {
				return err
			}
		}

		for _, p := range s.Params() {
			_, err := fmt.Fprintf(w, "   %v[%v]: %v\n", p.Kind,
				p.Slot, p.Value)
			if err != nil {
				return err
			}
		}

		if _, err := fmt.Fprint(w, cfg.Sdump(v)); err != nil {
			return err
		}

		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}
