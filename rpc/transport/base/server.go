package base

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/serializer"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"google.golang.org/grpc"
)

// gracefulStopTimeout bounds how long Stop waits for running calls
const gracefulStopTimeout = 2 * time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	serializer serializer.IRPCSerializer

	mu       sync.Mutex
	methods  []grpc.MethodDesc
	streams  []grpc.StreamDesc
	server   *grpc.Server
	listener net.Listener
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the specified connector.
// Incoming messages are decoded with the given serializer.
func NewBaseServerTransport(connector IServerConnector, s serializer.IRPCSerializer) transport.IRPCServerTransport {
	return &serverTransport{
		connector:  connector,
		serializer: s,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterUnary(method string, handler transport.UnaryHandleFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.methods = append(t.methods, grpc.MethodDesc{
		MethodName: method,
		Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			return handler(ctx, dec)
		},
	})
}

func (t *serverTransport) RegisterStream(method string, handler transport.StreamHandleFunc, clientStreams bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.streams = append(t.streams, grpc.StreamDesc{
		StreamName: method,
		Handler: func(_ any, stream grpc.ServerStream) error {
			return handler(stream)
		},
		ServerStreams: true,
		ClientStreams: clientStreams,
	})
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.server != nil {
		return fmt.Errorf("transport is already listening on %s", t.listener.Addr())
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener = &upgradingListener{Listener: listener, connector: t.connector, config: config}

	t.server = grpc.NewServer(grpc.ForceServerCodec(serializer.NewCodec(t.serializer)))
	t.server.RegisterService(&grpc.ServiceDesc{
		ServiceName: common.ServiceName,
		HandlerType: (*any)(nil),
		Methods:     t.methods,
		Streams:     t.streams,
	}, t)

	Logger.Infof("Starting %s server on %s with %d unary and %d streaming methods (%s encoding)",
		t.connector.GetName(), listener.Addr(), len(t.methods), len(t.streams), t.serializer.Name())

	// Serve in the background
	go func(server *grpc.Server, l net.Listener) {
		if err := server.Serve(l); err != nil {
			Logger.Errorf("Server on %s stopped: %v", l.Addr(), err)
		}
	}(t.server, t.listener)

	return nil
}

func (t *serverTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *serverTransport) Stop() {
	t.mu.Lock()
	server := t.server
	t.server = nil
	t.mu.Unlock()

	if server == nil {
		return
	}

	// Graceful stop waits for all calls, streams may run forever
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(gracefulStopTimeout):
		server.Stop()
		<-done
	}

	Logger.Infof("Stopped %s server", t.connector.GetName())
}
