// Package lstore implements the store.IStore interface for one local DBM. It provides
// the DBM semantics on top of any db.KVDB implementation and records every change in
// an optional update log.
//
// Key Features:
//   - Direct integration with db.KVDB implementations
//   - Atomic compound operations (Append, CompareExchange, Increment, multi-key batches)
//   - Server side cursors and searches based on the ordered access of the engine
//   - Snappy compressed snapshots written by Synchronize and restored at startup
//   - Feature detection to handle unsupported operations gracefully
//
// Implementation Details:
//
//   - Write Serialization: All writes take the store mutex. Reads go to the engine
//     directly since every db.KVDB is safe for concurrent use. Holding the mutex while
//     appending to the update log keeps the log in the order the changes were applied.
//
//   - Value Ownership: Values are copied before they are handed to the engine, values
//     returned by Get are shared with the engine and must not be modified.
//
//   - Compare-and-Exchange: Expectations and desired states are store.State values.
//     Existence false means "absent" and is distinct from an existing empty value.
//     CompareExchangeMulti checks all expectations before the first change is applied.
//
//   - Increment: Numbers are stored as 8 byte big endian integers. An increment of
//     math.MinInt64 reads the current value (or initial) without storing anything.
//
//   - Rebuild: ShouldBeRebuilt reports true when more records were removed since the last
//     rebuild than are alive. Rebuild compacts the engine.
//
//   - Cursors: The cursor keeps the key of its record. Get on a record removed by another
//     client continues with the successor. Remove moves the cursor to the following record.
//
//   - Replication: Apply executes a change received from another server and records it
//     with the server id of its origin, so the change is not sent back to that server.
//
// Search Modes:
//
//	contain, containcase, begin, end, regex: keys matching the pattern in key order
//	upper, upperinc: keys greater than (or equal to) the pattern in ascending order
//	lower, lowerinc: keys less than (or equal to) the pattern in descending order
//
// Usage Example:
//
//	factory := func() db.KVDB { return tree.NewTreeDB(nil) }
//	s := lstore.NewLocalStore(factory, lstore.Options{ServerID: 1, UpdateLog: ulog.NewUpdateLog(0)})
//
//	err := s.Set([]byte("user:1"), []byte("alice"), false)
//	if errors.Is(err, status.ErrDuplication) {
//		// record exists
//	}
package lstore
