package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/peer"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/token"
	"github.com/urfave/cli"
)

var tokenCommand = cli.Command{
	Name:  "token",
	Usage: "decode and encode swap offer tokens",
	Subcommands: []cli.Command{
		decodeTokenCommand,
		encodeTokenCommand,
	},
}

// termFlags are the flags of the terms of an offer.
var termFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "coin",
		Value: swap.CoinBitcoin.String(),
		Usage: "the foreign coin (BTC, LTC or QTUM)",
	},
	cli.StringFlag{
		Name:  "amount",
		Usage: "the BEAM amount",
	},
	cli.StringFlag{
		Name:  "swapamount",
		Usage: "the foreign coin amount",
	},
	cli.BoolFlag{
		Name:  "beamside",
		Usage: "offer BEAM for the foreign coin",
	},
	cli.Uint64Flag{
		Name:  "lifetime",
		Value: 1440,
		Usage: "the number of BEAM blocks the swap stays valid",
	},
	cli.Uint64Flag{
		Name:  "responsetime",
		Value: 720,
		Usage: "the BEAM blocks the peer has to accept",
	},
}

var decodeTokenCommand = cli.Command{
	Name:      "decode",
	Usage:     "show the parameters carried by an offer token",
	ArgsUsage: "token",
	Action:    decodeToken,
}

var encodeTokenCommand = cli.Command{
	Name:  "encode",
	Usage: "create an offer token",
	Description: `
	Create the token of a new swap offer without storing the swap. The
	token is what the counterparty accepts the offer with.`,
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  "id",
			Usage: "the hex identity key of the offering wallet",
		},
		cli.Uint64Flag{
			Name:  "minheight",
			Usage: "the current BEAM height",
		},
	}, termFlags...),
	Action: encodeToken,
}

func decodeToken(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "decode")
	}

	params, err := token.Decode(ctx.Args().First())
	if err != nil {
		return err
	}

	return printParams(os.Stdout, params)
}

// printParams writes the id and the parameters of a swap.
func printParams(w io.Writer, params *swapparams.Store) error {
	if _, err := fmt.Fprintf(w, "Swap: %v\n", params.ID()); err != nil {
		return err
	}

	for _, p := range params.Params() {
		_, err := fmt.Fprintf(w, "   %v: %v\n", p.Kind, p.Value)
		if err != nil {
			return err
		}
	}

	return nil
}

func encodeToken(ctx *cli.Context) error {
	offer, myID, err := parseOffer(ctx)
	if err != nil {
		return err
	}

	params, err := atomicswap.NewOfferParams(
		offer, myID, ctx.Uint64("minheight"), time.Now(),
	)
	if err != nil {
		return err
	}

	tkn, err := token.Encode(params, swap.RoleInitiator)
	if err != nil {
		return err
	}

	fmt.Println(tkn)

	return nil
}

// parseOffer reads the identity of the offering wallet and the offer terms
// from the flags.
func parseOffer(ctx *cli.Context) (*atomicswap.Offer, []byte, error) {
	myID, err := hex.DecodeString(ctx.String("id"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid id: %w", err)
	}
	if err := peer.ValidateID(myID); err != nil {
		return nil, nil, err
	}

	offer, err := parseTerms(ctx)
	if err != nil {
		return nil, nil, err
	}

	return offer, myID, nil
}

// parseTerms reads the offer terms from the flags.
func parseTerms(ctx *cli.Context) (*atomicswap.Offer, error) {
	coin, err := swap.ParseCoin(ctx.String("coin"))
	if err != nil {
		return nil, err
	}

	if !ctx.IsSet("amount") || !ctx.IsSet("swapamount") {
		return nil, errors.New("amount and swapamount required")
	}

	amount, err := swap.ParseAmount(ctx.String("amount"))
	if err != nil {
		return nil, err
	}

	swapAmount, err := swap.ParseAmount(ctx.String("swapamount"))
	if err != nil {
		return nil, err
	}

	return &atomicswap.Offer{
		IsBeamSide:       ctx.Bool("beamside"),
		Coin:             coin,
		Amount:           amount,
		SwapAmount:       swapAmount,
		Lifetime:         ctx.Uint64("lifetime"),
		PeerResponseTime: ctx.Uint64("responsetime"),
	}, nil
}
