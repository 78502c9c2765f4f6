package swaprpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the full name of the swap service.
const serviceName = "swaprpc.SwapClient"

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// SwapClientServer is the server API of the swap service.
type SwapClientServer interface {
	// CreateOffer creates a swap and returns the token to hand to the
	// peer.
	CreateOffer(context.Context, *OfferRequest) (*OfferResponse, error)

	// AcceptOffer starts the swap offered by a token.
	AcceptOffer(context.Context, *AcceptRequest) (*OfferResponse, error)

	// CancelSwap requests the cancellation of a swap.
	CancelSwap(context.Context, *SwapRequest) (*Empty, error)

	// DeleteSwap removes a finished swap.
	DeleteSwap(context.Context, *SwapRequest) (*Empty, error)

	// GetSwap returns the view of a swap.
	GetSwap(context.Context, *SwapRequest) (*SwapResponse, error)

	// ListSwaps returns the views of all swaps.
	ListSwaps(context.Context, *ListSwapsRequest) (*ListSwapsResponse,
		error)

	// SwapToken returns the offer token of a swap.
	SwapToken(context.Context, *SwapRequest) (*TokenResponse, error)

	// SubscribeSwaps streams the changes of the swap set, starting with
	// the current set.
	SubscribeSwaps(*SubscribeSwapsRequest,
		SwapClient_SubscribeSwapsServer) error
}

// SwapClient_SubscribeSwapsServer is the server side of a swap
// subscription.
type SwapClient_SubscribeSwapsServer interface {
	Send(*SwapUpdate) error
	grpc.ServerStream
}

type subscribeSwapsServer struct {
	grpc.ServerStream
}

func (x *subscribeSwapsServer) Send(m *SwapUpdate) error {
	return x.ServerStream.SendMsg(m)
}

// unaryMethod describes a unary call of the service.
func unaryMethod[Req, Resp any](name string,
	call func(SwapClientServer, context.Context, *Req) (*Resp,
		error)) grpc.MethodDesc {

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context,
			dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor) (interface{},
			error) {

			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			server := srv.(SwapClientServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context,
				req interface{}) (interface{}, error) {

				return call(server, ctx, req.(*Req))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeSwapsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(SubscribeSwapsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(SwapClientServer).SubscribeSwaps(
		in, &subscribeSwapsServer{stream},
	)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SwapClientServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateOffer", SwapClientServer.CreateOffer),
		unaryMethod("AcceptOffer", SwapClientServer.AcceptOffer),
		unaryMethod("CancelSwap", SwapClientServer.CancelSwap),
		unaryMethod("DeleteSwap", SwapClientServer.DeleteSwap),
		unaryMethod("GetSwap", SwapClientServer.GetSwap),
		unaryMethod("ListSwaps", SwapClientServer.ListSwaps),
		unaryMethod("SwapToken", SwapClientServer.SwapToken),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeSwaps",
			Handler:       subscribeSwapsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "swaprpc",
}

// RegisterSwapClientServer registers the swap service with a grpc server.
func RegisterSwapClientServer(s grpc.ServiceRegistrar, srv SwapClientServer) {
	s.RegisterService(&serviceDesc, srv)
}

// SwapClientClient is the client API of the swap service.
type SwapClientClient interface {
	CreateOffer(ctx context.Context, in *OfferRequest,
		opts ...grpc.CallOption) (*OfferResponse, error)

	AcceptOffer(ctx context.Context, in *AcceptRequest,
		opts ...grpc.CallOption) (*OfferResponse, error)

	CancelSwap(ctx context.Context, in *SwapRequest,
		opts ...grpc.CallOption) (*Empty, error)

	DeleteSwap(ctx context.Context, in *SwapRequest,
		opts ...grpc.CallOption) (*Empty, error)

	GetSwap(ctx context.Context, in *SwapRequest,
		opts ...grpc.CallOption) (*SwapResponse, error)

	ListSwaps(ctx context.Context, in *ListSwapsRequest,
		opts ...grpc.CallOption) (*ListSwapsResponse, error)

	SwapToken(ctx context.Context, in *SwapRequest,
		opts ...grpc.CallOption) (*TokenResponse, error)

	SubscribeSwaps(ctx context.Context, in *SubscribeSwapsRequest,
		opts ...grpc.CallOption) (SwapClient_SubscribeSwapsClient,
		error)
}

// SwapClient_SubscribeSwapsClient is the client side of a swap
// subscription.
type SwapClient_SubscribeSwapsClient interface {
	Recv() (*SwapUpdate, error)
	grpc.ClientStream
}

type swapClientClient struct {
	cc grpc.ClientConnInterface
}

// NewSwapClientClient returns a client of the swap service. The connection
// must be dialed with DialOption.
func NewSwapClientClient(cc grpc.ClientConnInterface) SwapClientClient {
	return &swapClientClient{cc}
}

// invoke calls a unary method.
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface,
	method string, in interface{}, opts []grpc.CallOption) (*Resp,
	error) {

	out := new(Resp)
	err := cc.Invoke(ctx, fullMethod(method), in, out, opts...)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (c *swapClientClient) CreateOffer(ctx context.Context, in *OfferRequest,
	opts ...grpc.CallOption) (*OfferResponse, error) {

	return invoke[OfferResponse](ctx, c.cc, "CreateOffer", in, opts)
}

func (c *swapClientClient) AcceptOffer(ctx context.Context,
	in *AcceptRequest, opts ...grpc.CallOption) (*OfferResponse, error) {

	return invoke[OfferResponse](ctx, c.cc, "AcceptOffer", in, opts)
}

func (c *swapClientClient) CancelSwap(ctx context.Context, in *SwapRequest,
	opts ...grpc.CallOption) (*Empty, error) {

	return invoke[Empty](ctx, c.cc, "CancelSwap", in, opts)
}

func (c *swapClientClient) DeleteSwap(ctx context.Context, in *SwapRequest,
	opts ...grpc.CallOption) (*Empty, error) {

	return invoke[Empty](ctx, c.cc, "DeleteSwap", in, opts)
}

func (c *swapClientClient) GetSwap(ctx context.Context, in *SwapRequest,
	opts ...grpc.CallOption) (*SwapResponse, error) {

	return invoke[SwapResponse](ctx, c.cc, "GetSwap", in, opts)
}

func (c *swapClientClient) ListSwaps(ctx context.Context,
	in *ListSwapsRequest, opts ...grpc.CallOption) (*ListSwapsResponse,
	error) {

	return invoke[ListSwapsResponse](ctx, c.cc, "ListSwaps", in, opts)
}

func (c *swapClientClient) SwapToken(ctx context.Context, in *SwapRequest,
	opts ...grpc.CallOption) (*TokenResponse, error) {

	return invoke[TokenResponse](ctx, c.cc, "SwapToken", in, opts)
}

func (c *swapClientClient) SubscribeSwaps(ctx context.Context,
	in *SubscribeSwapsRequest, opts ...grpc.CallOption) (
	SwapClient_SubscribeSwapsClient, error) {

	stream, err := c.cc.NewStream(
		ctx, &serviceDesc.Streams[0], fullMethod("SubscribeSwaps"),
		opts...,
	)
	if err != nil {
		return nil, err
	}

	x := &subscribeSwapsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

type subscribeSwapsClient struct {
	grpc.ClientStream
}

func (x *subscribeSwapsClient) Recv() (*SwapUpdate, error) {
	m := new(SwapUpdate)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}

	return m, nil
}
