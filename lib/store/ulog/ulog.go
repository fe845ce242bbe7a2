package ulog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// DefaultCapacity is the number of entries kept if no capacity is configured
const DefaultCapacity = 100_000

// UpdateLog is an in-memory, bounded queue of store changes.
// Timestamps are milliseconds since the unix epoch and never decrease.
// The oldest entries are dropped when the capacity is exceeded.
type UpdateLog struct {
	mu       sync.Mutex
	entries  []store.LogEntry // ring buffer
	head     int              // index of the oldest entry in entries
	size     int              // number of entries
	firstSeq uint64           // sequence number of the oldest entry
	lastTS   int64
	notify   chan struct{} // closed and replaced on every append
	now      func() time.Time
}

// NewUpdateLog creates an update log keeping up to capacity entries (0 = DefaultCapacity)
func NewUpdateLog(capacity int) *UpdateLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &UpdateLog{
		entries: make([]store.LogEntry, capacity),
		notify:  make(chan struct{}),
		now:     time.Now,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IUpdateLog)
// --------------------------------------------------------------------------

func (l *UpdateLog) Append(entry store.LogEntry) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now().UnixMilli()
	if ts < l.lastTS {
		ts = l.lastTS
	}
	l.lastTS = ts
	entry.Timestamp = ts

	capacity := len(l.entries)
	if l.size == capacity {
		// drop the oldest entry
		l.entries[l.head] = store.LogEntry{}
		l.head = (l.head + 1) % capacity
		l.size--
		l.firstSeq++
	}
	l.entries[(l.head+l.size)%capacity] = entry
	l.size++

	close(l.notify)
	l.notify = make(chan struct{})

	return ts
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// LastTimestamp returns the timestamp of the latest entry (0 if nothing was appended yet)
func (l *UpdateLog) LastTimestamp() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTS
}

// Len returns the number of entries currently kept
func (l *UpdateLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// NewReader creates a reader starting at the first entry with a timestamp equal
// to or greater than minTimestamp. Entries with the skipServerID are not returned
// by the reader (0 = return all entries).
func (l *UpdateLog) NewReader(minTimestamp int64, skipServerID int32) store.IUpdateReader {
	l.mu.Lock()
	defer l.mu.Unlock()

	// entries are sorted by timestamp, find the first match
	idx := sort.Search(l.size, func(i int) bool {
		return l.at(i).Timestamp >= minTimestamp
	})

	return &reader{
		log:          l,
		next:         l.firstSeq + uint64(idx),
		minTimestamp: minTimestamp,
		skipServerID: skipServerID,
	}
}

// at returns the i-th oldest entry. The caller must hold the lock.
func (l *UpdateLog) at(i int) store.LogEntry {
	return l.entries[(l.head+i)%len(l.entries)]
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

type reader struct {
	log          *UpdateLog
	next         uint64
	minTimestamp int64
	skipServerID int32
}

// poll returns the next matching entry or the channel signalling the next append
func (r *reader) poll() (store.LogEntry, bool, <-chan struct{}) {
	l := r.log
	l.mu.Lock()
	defer l.mu.Unlock()

	if r.next < l.firstSeq {
		Logger.Warningf("Update log reader lost %d entries (capacity %d exceeded)", l.firstSeq-r.next, len(l.entries))
		r.next = l.firstSeq
	}

	for r.next < l.firstSeq+uint64(l.size) {
		entry := l.at(int(r.next - l.firstSeq))
		r.next++
		if entry.Timestamp < r.minTimestamp {
			continue
		}
		if r.skipServerID != 0 && entry.ServerID == r.skipServerID {
			continue
		}
		return entry, true, nil
	}

	return store.LogEntry{}, false, l.notify
}

func (r *reader) Read(ctx context.Context, wait time.Duration) (store.LogEntry, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		entry, ok, notify := r.poll()
		if ok {
			return entry, true, nil
		}

		select {
		case <-notify:
		case <-timer.C:
			return store.LogEntry{}, false, nil
		case <-ctx.Done():
			return store.LogEntry{}, false, ctx.Err()
		}
	}
}
