package tcp_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/serializer"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/ValentinKolb/rDBM/rpc/transport/tcp"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// startEchoServer starts a server that answers every primitive with echoes
func startEchoServer(t *testing.T, s serializer.IRPCSerializer) string {
	t.Helper()

	server := tcp.NewTCPServerTransport(s)

	server.RegisterUnary(common.MethodEcho, func(_ context.Context, decode func(any) error) (any, error) {
		var req common.EchoRequest
		if err := decode(&req); err != nil {
			return nil, err
		}
		if req.Message == "reject" {
			return nil, grpcstatus.Error(codes.InvalidArgument, "rejected")
		}
		return &common.EchoResponse{Echo: req.Message}, nil
	})

	server.RegisterStream(common.MethodStream, func(stream transport.IServerStream) error {
		for {
			var req common.StreamRequest
			if err := stream.RecvMsg(&req); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			if err := stream.SendMsg(&common.StreamResponse{Echo: &common.EchoResponse{Echo: req.Echo.Message}}); err != nil {
				return err
			}
		}
	}, true)

	server.RegisterStream(common.MethodReplicate, func(stream transport.IServerStream) error {
		var req common.ReplicateRequest
		if err := stream.RecvMsg(&req); err != nil {
			return err
		}
		for i := int64(0); i < 3; i++ {
			if err := stream.SendMsg(&common.ReplicateResponse{Timestamp: req.MinTimestamp + i}); err != nil {
				return err
			}
		}
		return nil
	}, false)

	require.NoError(t, server.Listen(common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: "127.0.0.1:0"},
	}))
	t.Cleanup(server.Stop)

	return server.Addr()
}

func dial(t *testing.T, s serializer.IRPCSerializer, addr string) transport.IClientChannel {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	config := common.ClientConfig{Transport: common.ClientTransportConfig{
		Endpoint: addr,
		TCPConf:  common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
	}}
	ch, err := tcp.NewTCPClientTransport(s).Dial(ctx, addr, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func TestPrimitives(t *testing.T) {
	for name, s := range map[string]serializer.IRPCSerializer{
		"JSON": serializer.NewJSONSerializer(),
		"GOB":  serializer.NewGOBSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			addr := startEchoServer(t, s)
			ch := dial(t, s, addr)
			ctx := context.Background()

			t.Run("Unary", func(t *testing.T) {
				var resp common.EchoResponse
				require.NoError(t, ch.Invoke(ctx, common.MethodEcho, &common.EchoRequest{Message: "hello"}, &resp))
				require.Equal(t, "hello", resp.Echo)

				err := ch.Invoke(ctx, common.MethodEcho, &common.EchoRequest{Message: "reject"}, &resp)
				require.Equal(t, codes.InvalidArgument, grpcstatus.Code(err))
			})

			t.Run("Duplex", func(t *testing.T) {
				stream, err := ch.NewDuplexStream(ctx, common.MethodStream)
				require.NoError(t, err)

				for _, msg := range []string{"a", "b", "c"} {
					require.NoError(t, stream.Send(&common.StreamRequest{Echo: &common.EchoRequest{Message: msg}}))
					var resp common.StreamResponse
					require.NoError(t, stream.Recv(&resp))
					require.Equal(t, msg, resp.Echo.Echo)
				}

				require.NoError(t, stream.CloseSend())
				require.NoError(t, stream.Finish())
			})

			t.Run("ServerStream", func(t *testing.T) {
				stream, err := ch.NewServerStream(ctx, common.MethodReplicate, &common.ReplicateRequest{MinTimestamp: 10})
				require.NoError(t, err)

				var resp common.ReplicateResponse
				require.NoError(t, stream.Recv(&resp))
				require.Equal(t, int64(10), resp.Timestamp)

				// the remaining frames are dropped
				require.NoError(t, stream.Finish())
			})

			t.Run("UnknownMethod", func(t *testing.T) {
				var resp common.EchoResponse
				err := ch.Invoke(ctx, "Nope", &common.EchoRequest{}, &resp)
				require.Equal(t, codes.Unimplemented, grpcstatus.Code(err))
			})
		})
	}
}

func TestDialFailure(t *testing.T) {
	// reserve a port and close it again so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = tcp.NewTCPClientTransport(serializer.NewJSONSerializer()).Dial(ctx, addr, common.ClientConfig{})
	require.EqualError(t, err, "connection failed")
}
