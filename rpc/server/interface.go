package server

// IRPCServer is a DBM server serving all databases over one transport
type IRPCServer interface {
	// Start restores the databases, registers all methods and listens in the background
	Start() error
	// Serve starts the server and blocks until SIGINT or SIGTERM, then stops it
	Serve() error
	// Addr returns the address the server is bound to
	Addr() string
	// Stop stops serving and the replication and persists all databases
	Stop() error
}
