package main

import (
	"fmt"
	"os"

	"github.com/lightninglabs/beamswap/swapd"
)

// main runs the daemon without a BEAM wallet, which only serves the
// commands that work offline. Wallets start the daemon through swapd.Run
// with their own RunConfig.
func main() {
	cfg := swapd.RunConfig{}
	if err := swapd.Run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
