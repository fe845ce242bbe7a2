// Package db provides a standardized interface for ordered key-value database implementations.
// It defines the KVDB interface that allows for consistent interaction with various
// in-memory database backends while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for point operations and ordered access
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, Get, Delete, Clear),
//     ordered access used by server side cursors and searches (First, Last, Ceil,
//     Floor, Ascend), maintenance (Removed, Compact) and persistence (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows the store to
//     reject operations a backend cannot serve (e.g. iteration on an unordered engine).
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for different database backends (currently "tree").
//
//   - Database Information: The DatabaseInfo structure reports the number of records,
//     their summed size, the implementation type and implementation-specific metadata.
//
// Ordering:
//
// Keys are compared byte-wise. All ordered methods must agree with this order so that
// a cursor moving with Ceil(key, false) visits every key exactly once in ascending order
// and a cursor moving with Floor(key, false) visits every key in descending order.
//
// Concurrency:
//
// Every method must be safe for concurrent use. Compound operations (read-modify-write
// like compare-and-exchange) are not atomic on this level, the store package serializes
// them on top of the engine.
//
// Related Packages:
//
// The engines/tree package (github.com/ValentinKolb/rDBM/lib/db/engines/tree) implements
// KVDB on top of an in-memory B-tree (github.com/google/btree).
//
// The testing package (github.com/ValentinKolb/rDBM/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
