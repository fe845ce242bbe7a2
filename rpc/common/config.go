package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Shared transport configuration
// --------------------------------------------------------------------------

// SocketConf holds buffer settings applied to every socket
type SocketConf struct {
	WriteBufferSize int // in bytes, 0 = system default
	ReadBufferSize  int // in bytes, 0 = system default
}

// TCPConf holds settings only applied to tcp sockets
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int // 0 = disabled
	TCPLingerSec    int // negative = system default
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the transport parameters of the server
type ServerTransportConfig struct {
	// Endpoint is the address the server listens on (host:port or socket path)
	Endpoint string
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters for a DBM server.
type ServerConfig struct {
	// NumDBMs is the number of databases served, addressed by index 0..NumDBMs-1
	NumDBMs int

	// ServerID identifies this server in the update log. Entries with the
	// server id of a replication client are never sent back to it.
	ServerID int32

	// DataDir is the directory used for snapshots written by Synchronize.
	// An empty value disables persistence.
	DataDir string

	// UpdateLogCapacity is the number of update log entries kept in memory
	UpdateLogCapacity int

	// Replication: address of the master to follow (empty = this server is a master)
	Master        string
	TimestampSkew float64

	// TimeoutSecond bounds the calls the server makes itself (replication)
	TimeoutSecond int64

	// Transport configuration
	Transport ServerTransportConfig

	// MetricsEndpoint exposes the metrics via http if set (e.g. ":9090")
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Timeout returns the configured timeout as a duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	// Databases
	addSection("Databases")
	addField("Number of DBMs", strconv.Itoa(c.NumDBMs))
	addField("Server ID", strconv.Itoa(int(c.ServerID)))
	addField("Update Log Capacity", strconv.Itoa(c.UpdateLogCapacity))
	if c.DataDir != "" {
		addField("Data Directory", c.DataDir)
	} else {
		addField("Data Directory", "(in-memory only)")
	}

	// Replication
	if c.Master != "" {
		addSection("Replication")
		addField("Master", c.Master)
		addField("Timestamp Skew", fmt.Sprintf("%.3f sec", c.TimestampSkew))
	}

	// Logging and metrics
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport parameters of the client
type ClientTransportConfig struct {
	// Endpoint is the address of the server (host:port or socket path)
	Endpoint string
	SocketConf
	TCPConf
}

// ClientConfig holds the configuration of a remote DBM client
type ClientConfig struct {
	// TimeoutSecond bounds every single call. A negative value means (almost) no bound.
	TimeoutSecond float64
	// DBMIndex is the index of the database used by all operations
	DBMIndex int32
	// Transport configuration
	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	if c.TimeoutSecond < 0 {
		addField("Timeout", "unbounded")
	} else {
		addField("Timeout", fmt.Sprintf("%.3f sec", c.TimeoutSecond))
	}
	addField("DBM Index", strconv.Itoa(int(c.DBMIndex)))

	// Transport
	addSection("Transport")
	addField("Endpoint", c.Transport.Endpoint)
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	return sb.String()
}
