// Package server implements the DBM server. It hosts a fixed number of
// databases (lstore on the tree engine), addressed by index, and serves them
// via the unary and streaming methods of the rdbm.DBMService.
//
// The package focuses on:
//   - Mapping the wire messages to store.IStore calls (adapter_dbm.go)
//   - Pipelined streams and server side cursors (adapter_stream.go)
//   - Streaming the shared update log to replicas (replicate.go)
//   - Following a master as a replica (replica.go)
//
// Application failures are sent as the status embedded in a response. Only
// malformed calls, like an out of range dbm index, end the call with a
// transport error (INVALID_ARGUMENT).
//
// Replication:
//
// Every change of every database is appended to one update log with a
// millisecond timestamp. A Replicate call streams this log from a minimum
// timestamp and skips the entries that originate from the requesting server.
// A server becomes a replica via ChangeMaster (or the Master setting); it then
// tails the master with the client package and applies each entry locally,
// keeping the id of the server the change originates from. After a failure
// it reconnects and resumes from the last applied timestamp minus the
// configured skew.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  NumDBMs:  2,
//	  ServerID: 1,
//	  DataDir:  "/var/lib/rdbm",
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:1978"},
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(serializer.NewGOBSerializer()),
//	  tcp.NewTCPClientTransport(serializer.NewGOBSerializer()),
//	)
//
//	// blocks until SIGINT or SIGTERM
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Persistence:
//
// With a data directory, each database is loaded from dbm-<index>.rdbm on
// start and written back by Synchronize and on Stop.
package server
