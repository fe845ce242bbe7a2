// Package ulog implements store.IUpdateLog as a bounded in-memory ring buffer.
//
// Every DBM of a server appends its changes to the same log, each entry carries the
// index of its DBM and the id of the server the change originates from. Timestamps are
// milliseconds since the unix epoch and never decrease, entries appended within the same
// millisecond share a timestamp.
//
// Readers are created with a minimum timestamp and an optional server id whose entries
// are skipped. Read blocks until the next matching entry arrives, the wait time elapses
// or the context is canceled. A reader falling behind by more than the capacity of the
// log continues with the oldest kept entry and logs a warning.
package ulog
