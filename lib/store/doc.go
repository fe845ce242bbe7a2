// Package store provides the DBM semantics served by the rDBM server on top of the
// lower-level db.KVDB implementations, together with the update log used for replication.
//
// The package focuses on:
//   - A unified interface (IStore) for the operations of one DBM
//   - Pluggable storage backend architecture through the DBFactory pattern
//   - Recording every change in an update log that replicas can tail
//
// Key Components:
//
//   - IStore Interface: The operations of one DBM (point operations, multi-key batches,
//     compare-and-exchange, increment, search, maintenance and persistence). Failures
//     are reported as *status.Error values (e.g. NOT_FOUND, DUPLICATION, INFEASIBLE)
//     which the server embeds in its responses unchanged.
//
//   - ICursor Interface: A position in the key order of a DBM, driven by the Iterate
//     stream of the server. The current record is kept by key, so cursors survive
//     concurrent modifications.
//
//   - IUpdateLog / IUpdateReader: Every change (SET, REMOVE, CLEAR) is appended to an
//     update log with a timestamp in milliseconds. Readers start at a minimum timestamp,
//     may skip the changes of one server and wait for new entries with a timeout.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends.
//
// Implementations:
//
//   - Local Store (lstore): Implements IStore over a db.KVDB instance. Writes are
//     serialized so compound operations are atomic and the update log sees every
//     change in apply order. Available in the "github.com/ValentinKolb/rDBM/lib/store/lstore" package.
//
//   - Update Log (ulog): A bounded in-memory update log shared by all DBMs of a server.
//     Available in the "github.com/ValentinKolb/rDBM/lib/store/ulog" package.
package store
