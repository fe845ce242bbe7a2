// Package transport defines the interfaces for RPC communication between the
// remote DBM client and the server. It provides the three call primitives the
// client core is built on, independent of the concrete implementation.
//
// The package focuses on:
//   - Unary calls: one request, one response
//   - Duplex streams: long-lived bidirectional channels (pipelined stream, iterator)
//   - Server streams: one request, a sequence of responses (replication)
//
// Every primitive reports a transport outcome as error. The application status
// travels inside the response messages (see common.StatusProto). Callers convert
// transport errors with status.FromTransport.
//
// Key Components:
//
//   - IRPCClientTransport: Creates IClientChannel instances. Dial blocks until the
//     channel is ready.
//
//   - IClientChannel: Issues unary calls and opens streams on one connection.
//
//   - IDuplexStream / IServerStreamReader: Client ends of the streaming calls.
//     Finish drains the stream and returns its final outcome.
//
//   - IRPCServerTransport: Routes calls to registered UnaryHandleFunc and
//     StreamHandleFunc handlers.
package transport
