package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/rDBM/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the interface of one DBM served by the server.
// Every method returns nil on success or a *status.Error carrying the DBM status
// (e.g. status.ErrNotFound for a missing record).
type IStore interface {
	// Get returns the value of a record. NOT_FOUND if the record does not exist.
	Get(key []byte) (value []byte, err error)
	// GetMulti returns the existing records of the given keys.
	// NOT_FOUND is returned (together with the found records) if any key is missing.
	GetMulti(keys [][]byte) (records []Record, err error)
	// Set stores a record. Without overwrite an existing record is kept and DUPLICATION is returned.
	Set(key, value []byte, overwrite bool) (err error)
	// SetMulti stores all records. Without overwrite existing records are kept and
	// DUPLICATION is returned after all other records were stored.
	SetMulti(records []Record, overwrite bool) (err error)
	// Remove removes a record. NOT_FOUND if the record does not exist.
	Remove(key []byte) (err error)
	// RemoveMulti removes all existing records of the given keys.
	// NOT_FOUND is returned if any key was missing.
	RemoveMulti(keys [][]byte) (err error)
	// Append appends the value to an existing record separated by delim,
	// or stores the value as new record.
	Append(key, value, delim []byte) (err error)
	// AppendMulti appends every record.
	AppendMulti(records []Record, delim []byte) (err error)
	// CompareExchange replaces the state of a record if its current state equals expected.
	// INFEASIBLE if the current state differs.
	CompareExchange(key []byte, expected, desired State) (err error)
	// CompareExchangeMulti applies all desired states if all expected states match,
	// otherwise nothing is changed and INFEASIBLE is returned.
	CompareExchangeMulti(expected, desired []RecordState) (err error)
	// Increment adds increment to the numeric value of a record and returns the result.
	// An absent record is treated as having the value initial. An increment of
	// math.MinInt64 only reads the current value.
	Increment(key []byte, increment, initial int64) (current int64, err error)
	// Count returns the number of records.
	Count() (count int64, err error)
	// GetFileSize returns the size of the stored data in bytes.
	GetFileSize() (size int64, err error)
	// Clear removes all records.
	Clear() (err error)
	// Rebuild compacts the database. Unknown parameters are ignored.
	Rebuild(params map[string]string) (err error)
	// ShouldBeRebuilt reports whether Rebuild would pay off.
	ShouldBeRebuilt() (tobe bool, err error)
	// Synchronize writes a snapshot if persistence is configured.
	// With hard the snapshot is flushed to the device.
	Synchronize(hard bool, params map[string]string) (err error)
	// Restore loads the snapshot written by Synchronize if one exists.
	Restore() (err error)
	// Search returns up to capacity keys (0 = unlimited) matching the pattern in the given mode.
	// INVALID_ARGUMENT for an unknown mode or an invalid pattern.
	Search(mode string, pattern []byte, capacity int) (keys [][]byte, err error)
	// Inspect returns properties describing the database.
	Inspect() (props []Property, err error)
	// NewCursor creates a cursor over the records of the database.
	// NOT_IMPLEMENTED if the engine does not support ordered access.
	NewCursor() (cursor ICursor, err error)
	// Apply applies a replicated change originating from another server.
	Apply(entry LogEntry) (err error)
}

// ICursor is a position in the key order of one store. A new cursor points to no record.
// A cursor must not be used concurrently.
type ICursor interface {
	// First moves to the first record.
	First() (err error)
	// Last moves to the last record.
	Last() (err error)
	// Jump moves to the first record whose key is equal to or greater than key.
	Jump(key []byte) (err error)
	// JumpLower moves to the last record whose key is less than (or equal to, if inclusive) key.
	JumpLower(key []byte, inclusive bool) (err error)
	// JumpUpper moves to the first record whose key is greater than (or equal to, if inclusive) key.
	JumpUpper(key []byte, inclusive bool) (err error)
	// Next moves to the following record. NOT_FOUND if the cursor points to no record.
	Next() (err error)
	// Previous moves to the preceding record. NOT_FOUND if the cursor points to no record.
	Previous() (err error)
	// Get returns the current record. NOT_FOUND if the cursor points to no record.
	Get() (key, value []byte, err error)
	// Set replaces the value of the current record.
	Set(value []byte) (err error)
	// Remove removes the current record and moves to the following record.
	Remove() (err error)
}

// IUpdateLog receives every change applied to a store, in the order the changes are applied.
type IUpdateLog interface {
	// Append stores the entry. The timestamp is assigned by the log and returned.
	Append(entry LogEntry) (timestamp int64)
}

// IUpdateReader reads the entries of an update log in order.
type IUpdateReader interface {
	// Read returns the next entry. If no entry arrives within wait, ok is false.
	// A canceled ctx returns its error.
	Read(ctx context.Context, wait time.Duration) (entry LogEntry, ok bool, err error)
}

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Record is a key/value pair
type Record struct {
	Key   []byte
	Value []byte
}

// State is the state of a record. Existence false means the record is absent,
// then Value is ignored. An existing record may have an empty value.
type State struct {
	Existence bool
	Value     []byte
}

// Absent is the state of a missing record
var Absent = State{}

// Present returns the state of an existing record with the given value
func Present(value []byte) State {
	return State{Existence: true, Value: value}
}

// RecordState is the state of the record with the given key
type RecordState struct {
	Key []byte
	State
}

// Property is a named piece of information returned by Inspect
type Property struct {
	Name  string
	Value string
}

// LogOp is the kind of change recorded in the update log
type LogOp int32

const (
	LogOpSet LogOp = iota + 1
	LogOpRemove
	LogOpClear
)

func (o LogOp) String() string {
	switch o {
	case LogOpSet:
		return "SET"
	case LogOpRemove:
		return "REMOVE"
	case LogOpClear:
		return "CLEAR"
	default:
		return fmt.Sprintf("LogOp(%d)", int32(o))
	}
}

// LogEntry is one change of one store
type LogEntry struct {
	Timestamp int64 // milliseconds since the unix epoch, assigned by the update log
	ServerID  int32 // server the change originates from
	DBMIndex  int32
	Op        LogOp
	Key       []byte
	Value     []byte
}
