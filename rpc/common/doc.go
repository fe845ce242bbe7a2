// Package common provides the data structures and utilities shared by the
// client and the server side of the remote DBM service.
//
// The package focuses on:
//   - The wire schema of the DBM service (request and response messages)
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the Dragonboat logger API
//
// Key Components:
//
//   - Messages: One request and one response type per service method. Every
//     response embeds a StatusProto carrying the application status, which is
//     converted to an error with StatusProto.Err. Byte strings are []byte; an
//     absent value and an empty value are distinguished by explicit existence
//     flags (see RecordState and CompareExchangeRequest) because not every
//     serializer keeps nil and empty slices apart.
//
//   - StreamRequest / StreamResponse: Envelope for the pipelined stream. Exactly
//     one operation field is set. OmitResponse asks the server to skip the
//     response frame (fire-and-forget).
//
//   - IterateRequest / ReplicateResponse: Cursor and replication messages with
//     their operation enums (IterateOp, ReplicateOp).
//
//   - ServerConfig / ClientConfig: Configuration with pretty printers used by
//     the command line interface.
//
//   - Logger: Custom logging implementation that plugs into the Dragonboat
//     logger factory and prints "LEVEL | name | message" lines.
package common
