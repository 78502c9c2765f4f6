package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swapd"
	"github.com/lightninglabs/beamswap/swaprpc"
	"github.com/urfave/cli"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var rpcServerFlag = cli.StringFlag{
	Name:  "rpcserver",
	Value: swapd.DefaultRPCListen,
	Usage: "swapd daemon address host:port",
}

func getClientConn(address string) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		swaprpc.DialOption(),
	}

	conn, err := grpc.Dial(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to RPC server: %w",
			err)
	}

	return conn, nil
}

func getClient(ctx *cli.Context) (swaprpc.SwapClientClient, func(),
	error) {

	conn, err := getClientConn(ctx.GlobalString(rpcServerFlag.Name))
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() { conn.Close() }

	return swaprpc.NewSwapClientClient(conn), cleanup, nil
}

var offerCommand = cli.Command{
	Name:  "offer",
	Usage: "create a swap offer",
	Description: `
	Create a swap in swapd and print the token to hand to the
	counterparty.`,
	Flags:  termFlags,
	Action: offer,
}

func offer(ctx *cli.Context) error {
	terms, err := parseTerms(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.CreateOffer(
		context.Background(), &swaprpc.OfferRequest{
			IsBeamSide:       terms.IsBeamSide,
			Coin:             terms.Coin,
			Amount:           terms.Amount,
			SwapAmount:       terms.SwapAmount,
			Lifetime:         terms.Lifetime,
			PeerResponseTime: terms.PeerResponseTime,
		},
	)
	if err != nil {
		return err
	}

	fmt.Printf("Swap: %v\nToken: %v\n", resp.ID, resp.Token)

	return nil
}

var acceptCommand = cli.Command{
	Name:      "accept",
	Usage:     "accept a swap offer",
	ArgsUsage: "token",
	Action:    accept,
}

func accept(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "accept")
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.AcceptOffer(
		context.Background(), &swaprpc.AcceptRequest{
			Token: ctx.Args().First(),
		},
	)
	if err != nil {
		return err
	}

	fmt.Printf("Swap: %v\n", resp.ID)

	return nil
}

var cancelCommand = cli.Command{
	Name:      "cancel",
	Usage:     "cancel a swap",
	ArgsUsage: "id",
	Description: `
	Request the cancellation of a swap. Swaps can only be canceled
	before our lock transaction is published.`,
	Action: cancelSwap,
}

func cancelSwap(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "cancel")
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = client.CancelSwap(
		context.Background(), &swaprpc.SwapRequest{
			ID: ctx.Args().First(),
		},
	)

	return err
}

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a finished swap",
	ArgsUsage: "id",
	Action:    deleteSwap,
}

func deleteSwap(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "delete")
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = client.DeleteSwap(
		context.Background(), &swaprpc.SwapRequest{
			ID: ctx.Args().First(),
		},
	)

	return err
}

var listCommand = cli.Command{
	Name:   "list",
	Usage:  "list all swaps",
	Action: listSwaps,
}

func listSwaps(ctx *cli.Context) error {
	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := client.ListSwaps(
		context.Background(), &swaprpc.ListSwapsRequest{},
	)
	if err != nil {
		return err
	}

	for _, v := range resp.Swaps {
		if err := printSwap(os.Stdout, v); err != nil {
			return err
		}
	}

	return nil
}

var swapInfoCommand = cli.Command{
	Name:      "swapinfo",
	Usage:     "show a swap and its offer token",
	ArgsUsage: "id",
	Action:    swapInfo,
}

func swapInfo(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "swapinfo")
	}

	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	req := &swaprpc.SwapRequest{ID: ctx.Args().First()}
	resp, err := client.GetSwap(context.Background(), req)
	if err != nil {
		return err
	}

	if err := printSwap(os.Stdout, resp.Swap); err != nil {
		return err
	}

	tkn, err := client.SwapToken(context.Background(), req)
	if err != nil {
		return err
	}

	fmt.Printf("Token: %v\n", tkn.Token)

	return nil
}

var monitorCommand = cli.Command{
	Name:   "monitor",
	Usage:  "monitor progress of all swaps",
	Action: monitor,
}

func monitor(ctx *cli.Context) error {
	client, cleanup, err := getClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stream, err := client.SubscribeSwaps(
		context.Background(), &swaprpc.SubscribeSwapsRequest{},
	)
	if err != nil {
		return err
	}

	for {
		update, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}

		for _, v := range update.Swaps {
			fmt.Printf("%v ", update.Type)
			if err := printSwap(os.Stdout, v); err != nil {
				return err
			}
		}
	}
}

// printSwap writes a one line summary of a swap.
func printSwap(w io.Writer, v *atomicswap.SwapView) error {
	_, err := fmt.Fprintf(w, "%v %v (%v) sent %v, received %v", v.ID,
		v.State, v.Status, v.SentAmount, v.ReceivedAmount)
	if err != nil {
		return err
	}

	if v.FailureReason != "" {
		_, err := fmt.Fprintf(w, " - %v", v.FailureReason)
		if err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(w)

	return err
}
