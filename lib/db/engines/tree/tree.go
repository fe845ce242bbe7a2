package tree

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/rDBM/lib/db"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum      = "RDBMTREE"        // File format identifier
	treeVersion   = 1                 // Database version
	defaultDegree = 32                // Default B-tree degree
	entryOverhead = 48                // Estimated bytes per entry besides key and value
	maxKeyLen     = 1<<32 - 1         // Keys are persisted with a uint32 length
	maxValueLen   = 1<<32 - 1         // Values are persisted with a uint32 length
	loadChunkSize = 64 * 1024         // Values larger than this are read in chunks
	minLoadBuffer = 4 * loadChunkSize // Buffer size of the load reader
	minSaveBuffer = 4 * loadChunkSize // Buffer size of the save writer
)

// --------------------------------------------------------------------------
// Core tree database structure
// --------------------------------------------------------------------------

// entry is the item stored in the B-tree
type entry struct {
	key   string
	value []byte
}

func lessEntry(a, b entry) bool {
	return a.key < b.key
}

// treeImpl implements db.KVDB with a single B-tree guarded by a RW lock
type treeImpl struct {
	mu        sync.RWMutex
	degree    int
	tree      *btree.BTreeG[entry]
	sizeBytes int64 // summed length of keys and values
	removed   int   // deletions since the last compaction
}

// DBOptions configures the treeImpl behavior during initialization
type DBOptions struct {
	Degree int // B-tree degree (0 = use default: 32)
}

// DefaultOptions returns the default treeImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewTreeDB creates a new TreeDB instance with the specified options (optional)
func NewTreeDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	degree := opts.Degree
	if degree < 2 {
		degree = defaultDegree
	}
	return &treeImpl{
		degree: degree,
		tree:   btree.NewG[entry](degree, lessEntry),
	}
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Write Operations
// --------------------------------------------------------------------------

func (t *treeImpl) Set(key string, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, replaced := t.tree.ReplaceOrInsert(entry{key: key, value: value})
	if replaced {
		t.sizeBytes -= int64(len(old.key) + len(old.value))
	}
	t.sizeBytes += int64(len(key) + len(value))
}

func (t *treeImpl) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	old, deleted := t.tree.Delete(entry{key: key})
	if deleted {
		t.sizeBytes -= int64(len(old.key) + len(old.value))
		t.removed++
	}
	return deleted
}

func (t *treeImpl) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tree = btree.NewG[entry](t.degree, lessEntry)
	t.sizeBytes = 0
	t.removed = 0
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Query Operations
// --------------------------------------------------------------------------

func (t *treeImpl) Get(key string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.tree.Get(entry{key: key})
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (t *treeImpl) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Len()
}

func (t *treeImpl) SizeBytes() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sizeBytes
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Ordered Access
// --------------------------------------------------------------------------

func (t *treeImpl) First() (string, []byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.tree.Min()
	return e.key, e.value, ok
}

func (t *treeImpl) Last() (string, []byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.tree.Max()
	return e.key, e.value, ok
}

func (t *treeImpl) Ceil(key string, inclusive bool) (string, []byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var found entry
	var ok bool
	t.tree.AscendGreaterOrEqual(entry{key: key}, func(e entry) bool {
		if !inclusive && e.key == key {
			return true
		}
		found, ok = e, true
		return false
	})
	return found.key, found.value, ok
}

func (t *treeImpl) Floor(key string, inclusive bool) (string, []byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var found entry
	var ok bool
	t.tree.DescendLessOrEqual(entry{key: key}, func(e entry) bool {
		if !inclusive && e.key == key {
			return true
		}
		found, ok = e, true
		return false
	})
	return found.key, found.value, ok
}

func (t *treeImpl) Ascend(from string, fn func(key string, value []byte) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.tree.AscendGreaterOrEqual(entry{key: from}, func(e entry) bool {
		return fn(e.key, e.value)
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Maintenance Operations
// --------------------------------------------------------------------------

func (t *treeImpl) Removed() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.removed
}

// Compact rebuilds the tree from its sorted content. Nodes left half empty by
// many deletions are packed again.
func (t *treeImpl) Compact() {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := btree.NewG[entry](t.degree, lessEntry)
	t.tree.Ascend(func(e entry) bool {
		fresh.ReplaceOrInsert(e)
		return true
	})
	t.tree = fresh
	t.removed = 0
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Persistence
// --------------------------------------------------------------------------

// Save writes a snapshot of the database.
//
// File format (little endian):
//
//	magic    [8]byte  "RDBMTREE"
//	version  uint8
//	count    uint64
//	count times:
//	  keyLen   uint32
//	  key      [keyLen]byte
//	  valueLen uint32
//	  value    [valueLen]byte
//
// The read lock is held while writing, writers wait until the snapshot is done.
func (t *treeImpl) Save(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bw := bufio.NewWriterSize(w, minSaveBuffer)

	// Write header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(treeVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(t.tree.Len())); err != nil {
		return err
	}

	// Write entries in key order
	var writeErr error
	t.tree.Ascend(func(e entry) bool {
		if int64(len(e.key)) > maxKeyLen || int64(len(e.value)) > maxValueLen {
			writeErr = fmt.Errorf("entry too large to persist (key %d bytes, value %d bytes)", len(e.key), len(e.value))
			return false
		}
		if writeErr = binary.Write(bw, binary.LittleEndian, uint32(len(e.key))); writeErr != nil {
			return false
		}
		if _, writeErr = bw.WriteString(e.key); writeErr != nil {
			return false
		}
		if writeErr = binary.Write(bw, binary.LittleEndian, uint32(len(e.value))); writeErr != nil {
			return false
		}
		if _, writeErr = bw.Write(e.value); writeErr != nil {
			return false
		}
		return true
	})
	if writeErr != nil {
		return writeErr
	}

	return bw.Flush()
}

// Load replaces the database content with a snapshot written by Save.
// The current content is only replaced if the whole snapshot could be read.
func (t *treeImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, minLoadBuffer)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != treeVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, treeVersion)
	}

	// Read entry count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	fresh := btree.NewG[entry](t.degree, lessEntry)
	var sizeBytes int64

	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("failed to read key of entry %d: %w", i, err)
		}
		value, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("failed to read value of entry %d: %w", i, err)
		}
		fresh.ReplaceOrInsert(entry{key: string(key), value: value})
		sizeBytes += int64(len(key) + len(value))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree = fresh
	t.sizeBytes = sizeBytes
	t.removed = 0

	return nil
}

// readChunk reads a uint32 length prefixed byte slice. Large slices are read
// in steps so a corrupted length does not allocate gigabytes up front.
func readChunk(br *bufio.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(br, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length <= loadChunkSize {
		buf := make([]byte, length)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	buf := make([]byte, 0, loadChunkSize)
	remaining := int(length)
	for remaining > 0 {
		n := min(remaining, loadChunkSize)
		start := len(buf)
		buf = append(buf, make([]byte, n)...)
		if _, err := io.ReadFull(br, buf[start:]); err != nil {
			return nil, err
		}
		remaining -= n
	}
	return buf, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (t *treeImpl) GetInfo() db.DatabaseInfo {
	t.mu.RLock()
	count := t.tree.Len()
	sizeBytes := t.sizeBytes
	removed := t.removed
	t.mu.RUnlock()

	// Metadata for this specific database implementation
	meta := &struct {
		Degree           int   `json:"degree"`
		RemovedSinceLast int   `json:"removed_since_compaction"`
		EstimatedMemory  int64 `json:"estimated_memory"`
	}{
		Degree:           t.degree,
		RemovedSinceLast: removed,
		EstimatedMemory:  sizeBytes + int64(count*entryOverhead),
	}

	supportedFeatures := []db.Feature{
		db.FeatureSet, db.FeatureGet, db.FeatureDelete,
		db.FeatureOrdered,
		db.FeatureSave, db.FeatureLoad,
		db.FeatureCompact,
	}

	return db.DatabaseInfo{
		Count:             count,
		SizeBytes:         sizeBytes,
		DbType:            db.ImplTree,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (t *treeImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureOrdered |
		db.FeatureSave |
		db.FeatureLoad |
		db.FeatureCompact
	return supportedFeatures&feature == feature
}

// Close releases the tree
func (t *treeImpl) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tree = btree.NewG[entry](t.degree, lessEntry)
	t.sizeBytes = 0
	return nil
}
