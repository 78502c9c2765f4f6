package swapd

import (
	"context"
	"errors"
	"net"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/notifications"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/swaprpc"
	"github.com/lightninglabs/beamswap/token"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// swapClient is the part of the swap client served over grpc.
type swapClient interface {
	CreateOffer(ctx context.Context, offer *atomicswap.Offer) (
		swapparams.TxID, string, error)

	AcceptOffer(ctx context.Context, tkn string) (swapparams.TxID, error)

	CancelSwap(ctx context.Context, id swapparams.TxID) error

	DeleteSwap(ctx context.Context, id swapparams.TxID) error

	ListSwaps(ctx context.Context) ([]*atomicswap.SwapView, error)

	GetSwap(ctx context.Context, id swapparams.TxID) (*atomicswap.SwapView,
		error)

	SwapToken(ctx context.Context, id swapparams.TxID) (string, error)

	SubscribeSwaps(ctx context.Context) <-chan *notifications.Change
}

// swapClientServer implements the grpc swap service on top of the swap
// client.
type swapClientServer struct {
	client swapClient
}

var _ swaprpc.SwapClientServer = (*swapClientServer)(nil)

func newSwapClientServer(client swapClient) *swapClientServer {
	return &swapClientServer{client: client}
}

// serveRPC serves the swap service on the listener until the context is
// canceled.
func serveRPC(ctx context.Context, lis net.Listener, client swapClient) error {
	grpcServer := grpc.NewServer(swaprpc.ServerOption())
	swaprpc.RegisterSwapClientServer(
		grpcServer, newSwapClientServer(client),
	)

	errChan := make(chan error, 1)
	go func() {
		log.Infof("RPC server listening on %v", lis.Addr())
		errChan <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
	}

	// Stop ends the open subscriptions too.
	grpcServer.Stop()

	return <-errChan
}

// rpcError maps swap errors to grpc status errors.
func rpcError(err error) error {
	var code codes.Code
	switch {
	case err == nil:
		return nil

	case errors.Is(err, atomicswap.ErrSwapNotFound):
		code = codes.NotFound

	case errors.Is(err, atomicswap.ErrInvalidOffer),
		errors.Is(err, token.ErrParse),
		errors.Is(err, token.ErrIncompleteOffer),
		errors.Is(err, token.ErrRoleMismatch),
		errors.Is(err, swapparams.ErrInvalidEncoding):

		code = codes.InvalidArgument

	case errors.Is(err, atomicswap.ErrPreviouslyAccepted):
		code = codes.AlreadyExists

	case errors.Is(err, atomicswap.ErrCancelUnavailable),
		errors.Is(err, atomicswap.ErrDeleteUnavailable):

		code = codes.FailedPrecondition

	case errors.Is(err, atomicswap.ErrManagerStopped):
		code = codes.Unavailable

	default:
		return err
	}

	return status.Error(code, err.Error())
}

func parseID(id string) (swapparams.TxID, error) {
	txID, err := swapparams.ParseTxID(id)
	if err != nil {
		return txID, status.Errorf(codes.InvalidArgument,
			"invalid swap id %q: %v", id, err)
	}

	return txID, nil
}

// CreateOffer creates a swap and returns the token to hand to the peer.
func (s *swapClientServer) CreateOffer(ctx context.Context,
	in *swaprpc.OfferRequest) (*swaprpc.OfferResponse, error) {

	log.Infof("Offer request received")

	id, tkn, err := s.client.CreateOffer(ctx, &atomicswap.Offer{
		IsBeamSide:       in.IsBeamSide,
		Coin:             in.Coin,
		Amount:           in.Amount,
		SwapAmount:       in.SwapAmount,
		Lifetime:         in.Lifetime,
		PeerResponseTime: in.PeerResponseTime,
	})
	if err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.OfferResponse{ID: id.String(), Token: tkn}, nil
}

// AcceptOffer starts the swap offered by a token.
func (s *swapClientServer) AcceptOffer(ctx context.Context,
	in *swaprpc.AcceptRequest) (*swaprpc.OfferResponse, error) {

	log.Infof("Accept request received")

	id, err := s.client.AcceptOffer(ctx, in.Token)
	if err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.OfferResponse{ID: id.String()}, nil
}

// CancelSwap requests the cancellation of a swap.
func (s *swapClientServer) CancelSwap(ctx context.Context,
	in *swaprpc.SwapRequest) (*swaprpc.Empty, error) {

	id, err := parseID(in.ID)
	if err != nil {
		return nil, err
	}

	log.Infof("Cancel request received for %v", id)

	if err := s.client.CancelSwap(ctx, id); err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.Empty{}, nil
}

// DeleteSwap removes a finished swap.
func (s *swapClientServer) DeleteSwap(ctx context.Context,
	in *swaprpc.SwapRequest) (*swaprpc.Empty, error) {

	id, err := parseID(in.ID)
	if err != nil {
		return nil, err
	}

	log.Infof("Delete request received for %v", id)

	if err := s.client.DeleteSwap(ctx, id); err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.Empty{}, nil
}

// GetSwap returns the view of a swap.
func (s *swapClientServer) GetSwap(ctx context.Context,
	in *swaprpc.SwapRequest) (*swaprpc.SwapResponse, error) {

	id, err := parseID(in.ID)
	if err != nil {
		return nil, err
	}

	view, err := s.client.GetSwap(ctx, id)
	if err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.SwapResponse{Swap: view}, nil
}

// ListSwaps returns the views of all swaps.
func (s *swapClientServer) ListSwaps(ctx context.Context,
	_ *swaprpc.ListSwapsRequest) (*swaprpc.ListSwapsResponse, error) {

	views, err := s.client.ListSwaps(ctx)
	if err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.ListSwapsResponse{Swaps: views}, nil
}

// SwapToken returns the offer token of a swap.
func (s *swapClientServer) SwapToken(ctx context.Context,
	in *swaprpc.SwapRequest) (*swaprpc.TokenResponse, error) {

	id, err := parseID(in.ID)
	if err != nil {
		return nil, err
	}

	tkn, err := s.client.SwapToken(ctx, id)
	if err != nil {
		return nil, rpcError(err)
	}

	return &swaprpc.TokenResponse{Token: tkn}, nil
}

// SubscribeSwaps streams the changes of the swap set until the client goes
// away or the server stops.
func (s *swapClientServer) SubscribeSwaps(_ *swaprpc.SubscribeSwapsRequest,
	server swaprpc.SwapClient_SubscribeSwapsServer) error {

	log.Infof("Swap subscription received")

	ctx, cancel := context.WithCancel(server.Context())
	defer cancel()

	changes := s.client.SubscribeSwaps(ctx)
	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return nil
			}

			err := server.Send(&swaprpc.SwapUpdate{
				Type:  change.Type.String(),
				Swaps: change.Views,
			})
			if err != nil {
				return err
			}

		case <-ctx.Done():
			return nil
		}
	}
}
