package main

import (
	"os"

	"github.com/lightninglabs/beamswap/swapd"
	"github.com/urfave/cli"
)

var viewCommand = cli.Command{
	Name:  "view",
	Usage: "show all swaps of a stopped swapd",
	Description: `
	Show the parameters of all swaps in the database of swapd. The
	database is opened directly, so swapd must not be running.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Value: "mainnet",
			Usage: "the network swapd runs on",
		},
		cli.StringFlag{
			Name:  "swapdir",
			Value: swapd.SwapDirBase,
			Usage: "the directory of swapd's data",
		},
		cli.StringFlag{
			Name:  "databasebackend",
			Value: swapd.DatabaseBackendBolt,
			Usage: "the database backend of swapd (bolt or sqlite)",
		},
		cli.StringFlag{
			Name:  "sqlite.dbfile",
			Usage: "the sqlite database file, if not the default",
		},
	},
	Action: view,
}

func view(ctx *cli.Context) error {
	cfg := swapd.DefaultConfig()
	cfg.Network = ctx.String("network")
	cfg.SwapDir = ctx.String("swapdir")
	cfg.DatabaseBackend = ctx.String("databasebackend")
	if ctx.IsSet("sqlite.dbfile") {
		cfg.Sqlite.DatabaseFileName = ctx.String("sqlite.dbfile")
	}

	if err := swapd.Validate(&cfg); err != nil {
		return err
	}

	return swapd.View(&cfg, os.Stdout)
}
