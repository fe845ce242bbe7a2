package base

import (
	"context"
	"fmt"
	"net"

	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/serializer"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector  IClientConnector
	serializer serializer.IRPCSerializer
}

// clientChannel is one grpc connection created by Dial
type clientChannel struct {
	conn     *grpc.ClientConn
	endpoint string
}

// duplexStream wraps a bidirectional grpc stream
type duplexStream struct {
	cs grpc.ClientStream
}

// serverStreamReader wraps a grpc server stream
type serverStreamReader struct {
	cs grpc.ClientStream
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector.
// All channels created by the transport encode messages with the given serializer.
func NewBaseClientTransport(connector IClientConnector, s serializer.IRPCSerializer) transport.IRPCClientTransport {
	return &clientTransport{
		connector:  connector,
		serializer: s,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) GetName() string {
	return t.connector.GetName()
}

func (t *clientTransport) Dial(ctx context.Context, endpoint string, config common.ClientConfig) (transport.IClientChannel, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}

	// The dialer is called by grpc for every (re)connect
	dialer := func(ctx context.Context, addr string) (net.Conn, error) {
		conn, err := t.connector.Connect(ctx, addr)
		if err != nil {
			return nil, err
		}
		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to upgrade connection to %s: %v", addr, err)
		}
		return conn, nil
	}

	conn, err := grpc.NewClient(
		"passthrough:///"+endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(serializer.NewCodec(t.serializer))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel to %s: %v", endpoint, err)
	}

	// Poll the channel state until it is ready. Any state other than idle or
	// connecting means the connection attempt failed.
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			break
		}
		if state == connectivity.Idle {
			conn.Connect()
		}
		if (state != connectivity.Idle && state != connectivity.Connecting) || !conn.WaitForStateChange(ctx, state) {
			_ = conn.Close()
			Logger.Debugf("Connecting to %s failed in state %s", endpoint, state)
			return nil, fmt.Errorf("connection failed")
		}
	}

	Logger.Infof("Connected to %s using %s transport (%s encoding)", endpoint, t.connector.GetName(), t.serializer.Name())

	return &clientChannel{conn: conn, endpoint: endpoint}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientChannel)
// --------------------------------------------------------------------------

func (c *clientChannel) Invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, common.FullMethod(method), req, resp)
}

func (c *clientChannel) NewDuplexStream(ctx context.Context, method string) (transport.IDuplexStream, error) {
	desc := &grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		ClientStreams: true,
	}
	cs, err := c.conn.NewStream(ctx, desc, common.FullMethod(method))
	if err != nil {
		return nil, err
	}
	return &duplexStream{cs: cs}, nil
}

func (c *clientChannel) NewServerStream(ctx context.Context, method string, req any) (transport.IServerStreamReader, error) {
	desc := &grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
	}
	cs, err := c.conn.NewStream(ctx, desc, common.FullMethod(method))
	if err != nil {
		return nil, err
	}
	if err := cs.SendMsg(req); err != nil {
		// the real outcome is reported by the stream
		if finishErr := finish(cs); finishErr != nil {
			return nil, finishErr
		}
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return &serverStreamReader{cs: cs}, nil
}

func (c *clientChannel) Close() error {
	Logger.Debugf("Closing channel to %s", c.endpoint)
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDuplexStream)
// --------------------------------------------------------------------------

func (s *duplexStream) Send(msg any) error {
	return s.cs.SendMsg(msg)
}

func (s *duplexStream) Recv(msg any) error {
	return s.cs.RecvMsg(msg)
}

func (s *duplexStream) CloseSend() error {
	return s.cs.CloseSend()
}

func (s *duplexStream) Finish() error {
	return finish(s.cs)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerStreamReader)
// --------------------------------------------------------------------------

func (s *serverStreamReader) Recv(msg any) error {
	return s.cs.RecvMsg(msg)
}

func (s *serverStreamReader) Finish() error {
	return finish(s.cs)
}
