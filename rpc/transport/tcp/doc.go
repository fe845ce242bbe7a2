// Package tcp implements the TCP transport of the remote DBM service.
// It provides the connectors for the base package and tunes every connection
// with the configured TCP and socket options (no delay, keep alive, linger, buffer sizes).
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
package tcp
