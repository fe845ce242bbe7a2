package transport

import (
	"context"

	"github.com/ValentinKolb/rDBM/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerStream is the server side of a streaming call
type IServerStream interface {
	// Context returns the context of the call. It is cancelled when the client goes away.
	Context() context.Context
	// SendMsg sends one message to the client
	SendMsg(msg any) error
	// RecvMsg blocks until a message from the client is received into msg.
	// It returns io.EOF when the client half-closed the stream.
	RecvMsg(msg any) error
}

// UnaryHandleFunc handles one unary call. The decode function fills the request.
// A non-nil error is sent as transport outcome, application failures belong
// into the status embedded in the response.
type UnaryHandleFunc func(ctx context.Context, decode func(req any) error) (resp any, err error)

// StreamHandleFunc handles one streaming call until it returns.
type StreamHandleFunc func(stream IServerStream) error

// IRPCServerTransport is the interface for the server side of the RPC transport layer
type IRPCServerTransport interface {
	// RegisterUnary registers a handler for a unary method (e.g. common.MethodGet)
	RegisterUnary(method string, handler UnaryHandleFunc)
	// RegisterStream registers a handler for a streaming method.
	// clientStreams is false for server streams (one request, many responses).
	RegisterStream(method string, handler StreamHandleFunc, clientStreams bool)
	// Listen binds the configured endpoint and serves incoming calls in the background.
	// All handlers must be registered before.
	Listen(config common.ServerConfig) error
	// Addr returns the bound address (useful when listening on port 0)
	Addr() string
	// Stop stops serving. Running calls are cancelled.
	Stop()
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client side of the RPC transport layer
type IRPCClientTransport interface {
	// Dial opens a channel to the endpoint and blocks until it is ready or ctx is done.
	Dial(ctx context.Context, endpoint string, config common.ClientConfig) (IClientChannel, error)
	// GetName returns the name of the transport (e.g. "tcp")
	GetName() string
}

// IClientChannel is an open connection to a server.
// Every call returns the transport outcome as error (nil on success).
type IClientChannel interface {
	// Invoke performs a unary call
	Invoke(ctx context.Context, method string, req, resp any) error
	// NewDuplexStream opens a bidirectional stream. The stream lives as long as ctx.
	NewDuplexStream(ctx context.Context, method string) (IDuplexStream, error)
	// NewServerStream sends req and opens a stream of responses. The stream lives as long as ctx.
	NewServerStream(ctx context.Context, method string, req any) (IServerStreamReader, error)
	// Close releases the channel
	Close() error
}

// IDuplexStream is the client side of a bidirectional stream
type IDuplexStream interface {
	// Send writes one message
	Send(msg any) error
	// Recv reads one message
	Recv(msg any) error
	// CloseSend half-closes the stream
	CloseSend() error
	// Finish reads until the end of the stream and returns the final outcome (nil if OK)
	Finish() error
}

// IServerStreamReader is the client side of a server stream
type IServerStreamReader interface {
	// Recv reads one message
	Recv(msg any) error
	// Finish reads until the end of the stream and returns the final outcome (nil if OK)
	Finish() error
}
