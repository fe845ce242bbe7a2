// Package base provides the foundation for the transport layers of the remote DBM
// service. It implements the transport interfaces on top of grpc, independent of
// the network medium (TCP, Unix sockets). Medium specific behavior is injected
// with connectors.
//
// The package focuses on:
//   - grpc client channels created over a custom dialer
//   - A grpc server whose service description is assembled at runtime from the
//     registered handlers, so no generated code is needed
//   - Forcing the configured serializer as grpc codec on both ends
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for medium-specific operations
//     (dial, listen, socket tuning).
//
//   - clientTransport: Dials a grpc channel and polls the connectivity state until
//     it is ready. Idle and connecting are the only states that keep waiting; every
//     other state fails the dial with "connection failed".
//
//   - serverTransport: Builds a grpc.ServiceDesc for the service and serves it on
//     the connector's listener. Accepted connections are tuned by the connector.
//
// Thread Safety:
//
//	Channels and transports are safe for concurrent use. A single stream must not
//	be used by more than one goroutine at a time.
package base
