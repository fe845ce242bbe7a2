// Package cmd implements the command-line interface for the rDBM database
// server. It provides a hierarchical command structure with operations
// for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for database operations (get, set, list, tail, perf, etc.)
//   - serve: Commands for starting and configuring the rDBM server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Configuration is read from flags, the environment (RDBM_<FLAG>) and the
// files .env and .env.local.
//
// See rdbm -help for a list of all commands.
package cmd
