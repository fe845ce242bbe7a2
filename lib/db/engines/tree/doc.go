// Package tree implements an ordered in-memory key-value database (KVDB) on top
// of a B-tree (github.com/google/btree). It provides a complete implementation of
// the db.KVDB interface and serves as the engine behind every DBM of the server.
//
// Key Components:
//
//   - treeImpl: A single generic B-tree (btree.BTreeG) of key/value entries guarded
//     by a sync.RWMutex. Readers (Get, Ceil, Floor, Ascend, Save) share the lock,
//     writers (Set, Delete, Clear, Compact, Load) take it exclusively.
//
//   - Size Tracking: The summed length of keys and values is maintained on every
//     write, so Count and SizeBytes are O(1).
//
//   - Removal Counter: Deletions since the last Compact are counted. The store uses
//     the counter to report whether a DBM should be rebuilt (more removals than
//     live records).
//
// Persistence:
//
// Save writes all entries in key order behind a small header (magic "RDBMTREE",
// version byte, entry count). Keys and values are uint32 length prefixed, all
// integers are little endian. Load reads the snapshot into a fresh tree and only
// swaps it in after the last entry was read, a truncated snapshot leaves the
// database untouched. Values are read in chunks so a corrupted length prefix does
// not allocate the announced size at once.
//
// Usage Example:
//
//	database := tree.NewTreeDB(nil)
//	defer database.Close()
//
//	database.Set("user:1", []byte("alice"))
//	key, value, ok := database.Ceil("user:", true)
package tree
