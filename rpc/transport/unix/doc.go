// Package unix implements a transport layer for the remote DBM service using
// Unix domain sockets, for processes running on the same machine.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. An existing socket file at the
//     endpoint path is removed first.
package unix
