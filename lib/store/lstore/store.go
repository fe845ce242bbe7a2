package lstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/ValentinKolb/rDBM/lib/db"
	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/golang/snappy"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// Options configures a local store
type Options struct {
	// DBMIndex is the index of the store on its server, recorded in the update log
	DBMIndex int32
	// ServerID is recorded as origin of every local change
	ServerID int32
	// UpdateLog receives all changes (nil = changes are not recorded)
	UpdateLog store.IUpdateLog
	// SnapshotPath is the file written by Synchronize (empty = no persistence)
	SnapshotPath string
}

type storeImpl struct {
	// mu serializes all writes, so compound operations are atomic and
	// the update log sees the changes in the order they are applied
	mu   sync.Mutex
	db   db.KVDB
	opts Options
}

// NewLocalStore creates a new local store instance.
// The store implements the DBM semantics on top of a db.KVDB created by the factory.
// This works by using the tree engine from the db package directly.
func NewLocalStore(factory store.DBFactory, opts Options) store.IStore {
	return &storeImpl{
		db:   factory(),
		opts: opts,
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// record appends a change to the update log. The caller must hold s.mu.
func (s *storeImpl) record(origin int32, op store.LogOp, key string, value []byte) {
	if s.opts.UpdateLog == nil {
		return
	}
	s.opts.UpdateLog.Append(store.LogEntry{
		ServerID: origin,
		DBMIndex: s.opts.DBMIndex,
		Op:       op,
		Key:      []byte(key),
		Value:    value,
	})
}

// setLocked stores a record and logs it. The caller must hold s.mu.
func (s *storeImpl) setLocked(origin int32, key string, value []byte) {
	s.db.Set(key, value)
	s.record(origin, store.LogOpSet, key, value)
}

// removeLocked removes a record and logs it. The caller must hold s.mu.
func (s *storeImpl) removeLocked(origin int32, key string) bool {
	if !s.db.Delete(key) {
		return false
	}
	s.record(origin, store.LogOpRemove, key, nil)
	return true
}

// appendValue returns old+delim+value as new slice
func appendValue(old, value, delim []byte) []byte {
	joined := make([]byte, 0, len(old)+len(delim)+len(value))
	joined = append(joined, old...)
	joined = append(joined, delim...)
	return append(joined, value...)
}

// clone copies a slice, the engine keeps the values it is given
func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return bytes.Clone(b)
}

// stateMatches reports whether the record of key is in the expected state.
// The caller must hold s.mu.
func (s *storeImpl) stateMatches(key string, expected store.State) bool {
	current, exists := s.db.Get(key)
	if exists != expected.Existence {
		return false
	}
	return !exists || bytes.Equal(current, expected.Value)
}

// applyState brings the record of key into the desired state. The caller must hold s.mu.
func (s *storeImpl) applyState(key string, desired store.State) {
	if desired.Existence {
		s.setLocked(s.opts.ServerID, key, clone(desired.Value))
	} else {
		s.removeLocked(s.opts.ServerID, key)
	}
}

// decodeInt reads a big endian integer of up to 8 bytes.
// Longer values use their last 8 bytes.
func decodeInt(b []byte) int64 {
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int64(v)
}

// encodeInt writes an integer as 8 bytes big endian
func encodeInt(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key []byte) ([]byte, error) {
	value, ok := s.db.Get(string(key))
	if !ok {
		return nil, status.NewError(status.CodeNotFound, "")
	}
	return value, nil
}

func (s *storeImpl) GetMulti(keys [][]byte) ([]store.Record, error) {
	records := make([]store.Record, 0, len(keys))
	var err error
	for _, key := range keys {
		value, ok := s.db.Get(string(key))
		if !ok {
			err = status.NewError(status.CodeNotFound, "")
			continue
		}
		records = append(records, store.Record{Key: key, Value: value})
	}
	return records, err
}

func (s *storeImpl) Set(key, value []byte, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	if !overwrite {
		if _, exists := s.db.Get(k); exists {
			return status.NewError(status.CodeDuplication, "")
		}
	}
	s.setLocked(s.opts.ServerID, k, clone(value))
	return nil
}

func (s *storeImpl) SetMulti(records []store.Record, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, r := range records {
		k := string(r.Key)
		if !overwrite {
			if _, exists := s.db.Get(k); exists {
				err = status.NewError(status.CodeDuplication, "")
				continue
			}
		}
		s.setLocked(s.opts.ServerID, k, clone(r.Value))
	}
	return err
}

func (s *storeImpl) Remove(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeLocked(s.opts.ServerID, string(key)) {
		return status.NewError(status.CodeNotFound, "")
	}
	return nil
}

func (s *storeImpl) RemoveMulti(keys [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for _, key := range keys {
		if !s.removeLocked(s.opts.ServerID, string(key)) {
			err = status.NewError(status.CodeNotFound, "")
		}
	}
	return err
}

func (s *storeImpl) Append(key, value, delim []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	if old, exists := s.db.Get(k); exists {
		s.setLocked(s.opts.ServerID, k, appendValue(old, value, delim))
	} else {
		s.setLocked(s.opts.ServerID, k, clone(value))
	}
	return nil
}

func (s *storeImpl) AppendMulti(records []store.Record, delim []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		k := string(r.Key)
		if old, exists := s.db.Get(k); exists {
			s.setLocked(s.opts.ServerID, k, appendValue(old, r.Value, delim))
		} else {
			s.setLocked(s.opts.ServerID, k, clone(r.Value))
		}
	}
	return nil
}

func (s *storeImpl) CompareExchange(key []byte, expected, desired store.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	if !s.stateMatches(k, expected) {
		return status.NewError(status.CodeInfeasible, "")
	}
	s.applyState(k, desired)
	return nil
}

func (s *storeImpl) CompareExchangeMulti(expected, desired []store.RecordState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range expected {
		if !s.stateMatches(string(e.Key), e.State) {
			return status.NewError(status.CodeInfeasible, "")
		}
	}
	for _, d := range desired {
		s.applyState(string(d.Key), d.State)
	}
	return nil
}

func (s *storeImpl) Increment(key []byte, increment, initial int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := string(key)
	current := initial
	old, exists := s.db.Get(k)
	if exists {
		current = decodeInt(old)
	}

	// read only
	if increment == math.MinInt64 {
		return current, nil
	}

	current += increment
	s.setLocked(s.opts.ServerID, k, encodeInt(current))
	return current, nil
}

func (s *storeImpl) Count() (int64, error) {
	return int64(s.db.Count()), nil
}

func (s *storeImpl) GetFileSize() (int64, error) {
	return s.db.SizeBytes(), nil
}

func (s *storeImpl) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.db.Clear()
	s.record(s.opts.ServerID, store.LogOpClear, "", nil)
	return nil
}

func (s *storeImpl) Rebuild(params map[string]string) error {
	if !s.db.SupportsFeature(db.FeatureCompact) {
		return status.NewError(status.CodeNotImplemented, "rebuild is not supported by the engine")
	}
	if len(params) > 0 {
		Logger.Debugf("DBM %d: ignoring rebuild parameters %v", s.opts.DBMIndex, params)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.Compact()
	return nil
}

func (s *storeImpl) ShouldBeRebuilt() (bool, error) {
	removed := s.db.Removed()
	return removed > 0 && removed > s.db.Count(), nil
}

func (s *storeImpl) Synchronize(hard bool, params map[string]string) error {
	if s.opts.SnapshotPath == "" {
		return nil
	}
	if !s.db.SupportsFeature(db.FeatureSave) {
		return status.NewError(status.CodeNotImplemented, "persistence is not supported by the engine")
	}
	if len(params) > 0 {
		Logger.Debugf("DBM %d: ignoring synchronize parameters %v", s.opts.DBMIndex, params)
	}

	// writers wait until the snapshot is complete
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpPath := s.opts.SnapshotPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return status.Errorf(status.CodeSystem, "failed to create snapshot: %v", err)
	}

	// snapshots are snappy framed
	w := snappy.NewBufferedWriter(f)
	err = s.db.Save(w)
	if err == nil {
		err = w.Close()
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return status.Errorf(status.CodeSystem, "failed to write snapshot: %v", err)
	}
	if hard {
		if err := f.Sync(); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return status.Errorf(status.CodeSystem, "failed to sync snapshot: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return status.Errorf(status.CodeSystem, "failed to close snapshot: %v", err)
	}
	if err := os.Rename(tmpPath, s.opts.SnapshotPath); err != nil {
		return status.Errorf(status.CodeSystem, "failed to replace snapshot: %v", err)
	}

	Logger.Debugf("DBM %d: snapshot written to %s", s.opts.DBMIndex, s.opts.SnapshotPath)
	return nil
}

func (s *storeImpl) Restore() error {
	if s.opts.SnapshotPath == "" {
		return nil
	}

	f, err := os.Open(s.opts.SnapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return status.Errorf(status.CodeSystem, "failed to open snapshot: %v", err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Load(snappy.NewReader(f)); err != nil {
		return status.Errorf(status.CodeBrokenData, "failed to load snapshot %s: %v", s.opts.SnapshotPath, err)
	}

	Logger.Infof("DBM %d: restored %d records from %s", s.opts.DBMIndex, s.db.Count(), s.opts.SnapshotPath)
	return nil
}

func (s *storeImpl) Search(mode string, pattern []byte, capacity int) ([][]byte, error) {
	if !s.db.SupportsFeature(db.FeatureOrdered) {
		return nil, status.NewError(status.CodeNotImplemented, "search requires ordered access")
	}
	return search(s.db, mode, pattern, capacity)
}

func (s *storeImpl) Inspect() ([]store.Property, error) {
	info := s.db.GetInfo()
	props := []store.Property{
		{Name: "class", Value: string(info.DbType)},
		{Name: "num_records", Value: strconv.Itoa(info.Count)},
		{Name: "file_size", Value: strconv.FormatInt(info.SizeBytes, 10)},
		{Name: "removed_records", Value: strconv.Itoa(s.db.Removed())},
	}
	if s.opts.SnapshotPath != "" {
		props = append(props, store.Property{Name: "path", Value: s.opts.SnapshotPath})
	}
	features := ""
	for i, f := range info.SupportedFeatures {
		if i > 0 {
			features += ","
		}
		features += f.String()
	}
	props = append(props, store.Property{Name: "features", Value: features})
	return props, nil
}

func (s *storeImpl) NewCursor() (store.ICursor, error) {
	if !s.db.SupportsFeature(db.FeatureOrdered) {
		return nil, status.NewError(status.CodeNotImplemented, "iteration requires ordered access")
	}
	return &cursor{store: s}, nil
}

func (s *storeImpl) Apply(entry store.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch entry.Op {
	case store.LogOpSet:
		s.setLocked(entry.ServerID, string(entry.Key), clone(entry.Value))
	case store.LogOpRemove:
		s.removeLocked(entry.ServerID, string(entry.Key))
	case store.LogOpClear:
		s.db.Clear()
		s.record(entry.ServerID, store.LogOpClear, "", nil)
	default:
		return status.NewError(status.CodeBrokenData, fmt.Sprintf("unknown update operation %s", entry.Op))
	}
	return nil
}
