package main

import (
	"fmt"
	"os"

	"github.com/lightninglabs/beamswap"
	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[swapcli] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()

	app.Version = beamswap.Version()
	app.Name = "swapcli"
	app.Usage = "control plane for swapd and offline swap tools"
	app.Flags = []cli.Flag{
		rpcServerFlag,
	}
	app.Commands = []cli.Command{
		offerCommand, acceptCommand, cancelCommand, deleteCommand,
		listCommand, swapInfoCommand, monitorCommand, tokenCommand,
		estimateCommand, viewCommand,
	}

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}
