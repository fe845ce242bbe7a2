// Package rpc provides the remote access layer of the database server. It
// carries the DBM operations, the pipelined streams, the iterators and the
// replication log between clients and servers.
//
// The package is organized into several subpackages:
//
//   - common: Request and response messages of every method, the configuration
//     structures and logging.
//
//   - transport: Network communication abstractions for unary calls, duplex
//     streams and server streams with pluggable implementations (TCP, Unix sockets).
//
//   - serializer: Message serialization with multiple format options (JSON, GOB)
//     used as codec by the transports.
//
//   - client: The remote DBM client: a session with point operations and the
//     Stream, Iterator and Replicator handles bound to it.
//
//   - server: The server hosting several databases, the update log and the
//     replica that follows a master.
package rpc
