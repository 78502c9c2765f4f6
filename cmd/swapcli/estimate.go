package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lightninglabs/beamswap/swap"
	"github.com/urfave/cli"
)

var estimateCommand = cli.Command{
	Name:      "estimate",
	Usage:     "estimate when the BEAM chain reaches a height",
	ArgsUsage: "current target",
	Description: `
	Estimate the time left until the BEAM chain reaches the target height,
	for example the expiry of a swap, from the current height.`,
	Action: estimate,
}

func estimate(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "estimate")
	}

	var current, target uint64
	if _, err := fmt.Sscan(ctx.Args().Get(0), &current); err != nil {
		return fmt.Errorf("invalid current height: %w", err)
	}
	if _, err := fmt.Sscan(ctx.Args().Get(1), &target); err != nil {
		return fmt.Errorf("invalid target height: %w", err)
	}

	return printEstimate(os.Stdout, current, target, time.Now())
}

// printEstimate writes the estimated time left and the projected wall clock
// time of the target height.
func printEstimate(w io.Writer, current, target uint64, now time.Time) error {
	if swap.DeadlineReached(current, target) {
		return errors.New("target height already reached")
	}

	_, err := fmt.Fprintf(w, "Blocks: %d\nTime left: %v\nReached at: %v\n",
		target-current,
		swap.HeightDeltaString(int64(target-current)),
		swap.ExpiresTime(
			now, current, target, swap.BeamBlockInterval,
		).Format(time.RFC3339),
	)

	return err
}
