package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// serviceName names the single hand-rolled gRPC service this package
// exposes; there is no .proto file because Envelope is the only message
// type and jsonCodec handles its wire encoding.
const serviceName = "skitter.Transport"

type transportServer struct {
	handler Handler
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*transportServer)
	if interceptor == nil {
		return s.handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Dispatch"}
	wrapped := func(ctx context.Context, req any) (any, error) {
		return s.handler(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, wrapped)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "skitter/transport.proto",
}

// NewServer returns a gRPC server with the single Dispatch RPC wired to
// handler. Callers still need to register the JSON codec's content
// subtype on any interceptors/options they add, and call Serve themselves.
func NewServer(handler Handler, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	s.RegisterService(&serviceDesc, &transportServer{handler: handler})
	return s
}

// Dispatcher is the client side of one Dispatch RPC connection to a
// cluster peer (master or worker node).
type Dispatcher struct {
	conn *grpc.ClientConn
}

// Dial opens an insecure client connection to addr. skitter does not
// reintroduce the teacher's mTLS certificate-issuance machinery (dropped
// with pkg/security, see DESIGN.md); production deployments are expected
// to terminate TLS at a sidecar or run on a trusted network, matching the
// transport-agnostic framing spec.md describes.
func Dial(addr string) (*Dispatcher, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Dispatcher{conn: conn}, nil
}

// Dispatch sends env to the peer and returns its response.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) (*Envelope, error) {
	out := new(Envelope)
	err := d.conn.Invoke(ctx, "/"+serviceName+"/Dispatch", env, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return out, fmt.Errorf("%s", out.Error)
	}
	return out, nil
}

// Close releases the underlying connection.
func (d *Dispatcher) Close() error {
	return d.conn.Close()
}
