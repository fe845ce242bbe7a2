package lstore_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ValentinKolb/rDBM/lib/db"
	"github.com/ValentinKolb/rDBM/lib/db/engines/tree"
	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/lib/store/lstore"
	"github.com/ValentinKolb/rDBM/lib/store/ulog"
)

func treeFactory() db.KVDB {
	return tree.NewTreeDB(nil)
}

func newStore(t *testing.T) store.IStore {
	t.Helper()
	return lstore.NewLocalStore(treeFactory, lstore.Options{ServerID: 1})
}

func expectCode(t *testing.T, what string, err error, code status.Code) {
	t.Helper()
	if got := status.CodeOf(err); got != code {
		t.Errorf("%s: expected %s, got %v", what, code, err)
	}
}

func keysOf(keys [][]byte) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func TestBasicScenario(t *testing.T) {
	s := newStore(t)

	expectCode(t, "Set", s.Set([]byte("one"), []byte("first"), true), status.CodeSuccess)
	expectCode(t, "Append", s.Append([]byte("one"), []byte("1"), []byte(":")), status.CodeSuccess)

	value, err := s.Get([]byte("one"))
	if err != nil || string(value) != "first:1" {
		t.Errorf("Expected first:1, got %q (%v)", value, err)
	}

	if count, _ := s.Count(); count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}

	expectCode(t, "Remove", s.Remove([]byte("one")), status.CodeSuccess)
	expectCode(t, "Remove again", s.Remove([]byte("one")), status.CodeNotFound)

	_, err = s.Get([]byte("one"))
	expectCode(t, "Get removed", err, status.CodeNotFound)

	if count, _ := s.Count(); count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}
}

func TestSetOverwrite(t *testing.T) {
	s := newStore(t)

	expectCode(t, "first Set", s.Set([]byte("k"), []byte("v1"), false), status.CodeSuccess)
	expectCode(t, "second Set", s.Set([]byte("k"), []byte("v2"), false), status.CodeDuplication)

	if v, _ := s.Get([]byte("k")); string(v) != "v1" {
		t.Errorf("Expected v1 to be kept, got %s", v)
	}

	expectCode(t, "overwrite", s.Set([]byte("k"), []byte("v3"), true), status.CodeSuccess)
	if v, _ := s.Get([]byte("k")); string(v) != "v3" {
		t.Errorf("Expected v3 after overwrite, got %s", v)
	}
}

func TestMultiOperations(t *testing.T) {
	s := newStore(t)

	records := []store.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	expectCode(t, "SetMulti", s.SetMulti(records, false), status.CodeSuccess)

	// c is stored even though a already exists
	err := s.SetMulti([]store.Record{
		{Key: []byte("a"), Value: []byte("x")},
		{Key: []byte("c"), Value: []byte("3")},
	}, false)
	expectCode(t, "SetMulti duplicate", err, status.CodeDuplication)

	got, err := s.GetMulti([][]byte{[]byte("a"), []byte("c"), []byte("missing")})
	expectCode(t, "GetMulti", err, status.CodeNotFound)
	want := []store.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GetMulti: expected %v, got %v", want, got)
	}

	expectCode(t, "AppendMulti", s.AppendMulti([]store.Record{
		{Key: []byte("a"), Value: []byte("9")},
		{Key: []byte("new"), Value: []byte("n")},
	}, []byte(",")), status.CodeSuccess)
	if v, _ := s.Get([]byte("a")); string(v) != "1,9" {
		t.Errorf("Expected 1,9 got %s", v)
	}
	if v, _ := s.Get([]byte("new")); string(v) != "n" {
		t.Errorf("Expected n got %s", v)
	}

	expectCode(t, "RemoveMulti", s.RemoveMulti([][]byte{[]byte("a"), []byte("missing")}), status.CodeNotFound)
	if _, err := s.Get([]byte("a")); status.CodeOf(err) != status.CodeNotFound {
		t.Errorf("Expected a to be removed")
	}
}

func TestCompareExchange(t *testing.T) {
	s := newStore(t)
	key := []byte("cas")

	// absent -> empty value
	expectCode(t, "absent->empty", s.CompareExchange(key, store.Absent, store.Present([]byte{})), status.CodeSuccess)
	if v, err := s.Get(key); err != nil || len(v) != 0 {
		t.Errorf("Expected existing empty value, got %q (%v)", v, err)
	}

	// expecting absence fails now, the record exists with an empty value
	expectCode(t, "expect absent", s.CompareExchange(key, store.Absent, store.Present([]byte("x"))), status.CodeInfeasible)

	// expecting the empty value succeeds
	expectCode(t, "expect empty", s.CompareExchange(key, store.Present(nil), store.Present([]byte("x"))), status.CodeSuccess)

	// mismatch keeps the value
	expectCode(t, "mismatch", s.CompareExchange(key, store.Present([]byte("y")), store.Absent), status.CodeInfeasible)
	if v, _ := s.Get(key); string(v) != "x" {
		t.Errorf("Expected x, got %s", v)
	}

	// desired absence removes
	expectCode(t, "remove", s.CompareExchange(key, store.Present([]byte("x")), store.Absent), status.CodeSuccess)
	if _, err := s.Get(key); status.CodeOf(err) != status.CodeNotFound {
		t.Errorf("Expected record to be removed")
	}
}

func TestCompareExchangeMultiAllOrNothing(t *testing.T) {
	s := newStore(t)
	_ = s.Set([]byte("a"), []byte("1"), true)
	_ = s.Set([]byte("b"), []byte("2"), true)

	rs := func(key string, state store.State) store.RecordState {
		return store.RecordState{Key: []byte(key), State: state}
	}

	// second expectation fails, nothing changes
	err := s.CompareExchangeMulti(
		[]store.RecordState{rs("a", store.Present([]byte("1"))), rs("b", store.Present([]byte("wrong")))},
		[]store.RecordState{rs("a", store.Present([]byte("A"))), rs("c", store.Present([]byte("C")))},
	)
	expectCode(t, "failing multi", err, status.CodeInfeasible)
	if v, _ := s.Get([]byte("a")); string(v) != "1" {
		t.Errorf("Expected a unchanged, got %s", v)
	}
	if _, err := s.Get([]byte("c")); status.CodeOf(err) != status.CodeNotFound {
		t.Errorf("Expected c not to be created")
	}

	err = s.CompareExchangeMulti(
		[]store.RecordState{rs("a", store.Present([]byte("1"))), rs("c", store.Absent)},
		[]store.RecordState{rs("a", store.Absent), rs("c", store.Present([]byte("C")))},
	)
	expectCode(t, "matching multi", err, status.CodeSuccess)
	if _, err := s.Get([]byte("a")); status.CodeOf(err) != status.CodeNotFound {
		t.Errorf("Expected a to be removed")
	}
	if v, _ := s.Get([]byte("c")); string(v) != "C" {
		t.Errorf("Expected c=C, got %s", v)
	}
}

func TestIncrement(t *testing.T) {
	s := newStore(t)
	key := []byte("num")

	tests := []struct {
		increment int64
		want      int64
	}{
		{5, 105},
		{5, 110},
		{-20, 90},
		{math.MinInt64, 90}, // read only
	}

	for i, tt := range tests {
		got, err := s.Increment(key, tt.increment, 100)
		if err != nil || got != tt.want {
			t.Errorf("Step %d: expected %d, got %d (%v)", i, tt.want, got, err)
		}
	}

	value, _ := s.Get(key)
	if !reflect.DeepEqual(value, []byte{0, 0, 0, 0, 0, 0, 0, 90}) {
		t.Errorf("Expected 8 byte big endian value, got %v", value)
	}

	// read only on an absent key returns the initial value without storing it
	got, _ := s.Increment([]byte("absent"), math.MinInt64, 7)
	if got != 7 {
		t.Errorf("Expected initial value 7, got %d", got)
	}
	if _, err := s.Get([]byte("absent")); status.CodeOf(err) != status.CodeNotFound {
		t.Errorf("Expected read only increment not to store a record")
	}
}

func TestRebuild(t *testing.T) {
	s := newStore(t)

	for _, k := range []string{"a", "b", "c"} {
		_ = s.Set([]byte(k), []byte("v"), true)
	}
	_ = s.Remove([]byte("a"))
	_ = s.Remove([]byte("b"))

	tobe, _ := s.ShouldBeRebuilt()
	if !tobe {
		t.Errorf("Expected rebuild to be recommended after removing most records")
	}

	expectCode(t, "Rebuild", s.Rebuild(map[string]string{"unknown": "1"}), status.CodeSuccess)

	tobe, _ = s.ShouldBeRebuilt()
	if tobe {
		t.Errorf("Expected no rebuild to be recommended after Rebuild")
	}
}

func TestSearch(t *testing.T) {
	s := newStore(t)
	for _, k := range []string{"apple", "apricot", "banana", "Cherry", "grape"} {
		_ = s.Set([]byte(k), []byte("v"), true)
	}

	tests := []struct {
		mode     string
		pattern  string
		capacity int
		want     []string
	}{
		{"contain", "ap", 0, []string{"apple", "apricot", "grape"}},
		{"contain", "ap", 2, []string{"apple", "apricot"}},
		{"containcase", "CHER", 0, []string{"Cherry"}},
		{"begin", "ap", 0, []string{"apple", "apricot"}},
		{"end", "e", 0, []string{"apple", "grape"}},
		{"regex", "^[bg]", 0, []string{"banana", "grape"}},
		{"upper", "apricot", 0, []string{"banana", "grape"}},
		{"upperinc", "apricot", 0, []string{"apricot", "banana", "grape"}},
		{"lower", "apricot", 0, []string{"apple", "Cherry"}},
		{"lowerinc", "apricot", 1, []string{"apricot"}},
	}

	for _, tt := range tests {
		got, err := s.Search(tt.mode, []byte(tt.pattern), tt.capacity)
		if err != nil {
			t.Errorf("%s(%s): unexpected error %v", tt.mode, tt.pattern, err)
			continue
		}
		if !reflect.DeepEqual(keysOf(got), tt.want) {
			t.Errorf("%s(%s): expected %v, got %v", tt.mode, tt.pattern, tt.want, keysOf(got))
		}
	}

	_, err := s.Search("nope", []byte("x"), 0)
	expectCode(t, "unknown mode", err, status.CodeInvalidArgument)
	_, err = s.Search("regex", []byte("("), 0)
	expectCode(t, "invalid regex", err, status.CodeInvalidArgument)
}

func TestCursor(t *testing.T) {
	s := newStore(t)
	for _, k := range []string{"b", "d", "f", "h"} {
		_ = s.Set([]byte(k), []byte("v-"+k), true)
	}

	c, err := s.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}

	// unpositioned cursor
	_, _, err = c.Get()
	expectCode(t, "Get unpositioned", err, status.CodeNotFound)
	expectCode(t, "Next unpositioned", c.Next(), status.CodeNotFound)

	current := func() string {
		key, _, err := c.Get()
		if err != nil {
			return "<" + status.CodeOf(err).String() + ">"
		}
		return string(key)
	}

	steps := []struct {
		name string
		move func() error
		want string
	}{
		{"First", c.First, "b"},
		{"Next", c.Next, "d"},
		{"Jump", func() error { return c.Jump([]byte("e")) }, "f"},
		{"Previous", c.Previous, "d"},
		{"JumpLower exclusive", func() error { return c.JumpLower([]byte("f"), false) }, "d"},
		{"JumpLower inclusive", func() error { return c.JumpLower([]byte("f"), true) }, "f"},
		{"JumpUpper exclusive", func() error { return c.JumpUpper([]byte("f"), false) }, "h"},
		{"JumpUpper inclusive", func() error { return c.JumpUpper([]byte("f"), true) }, "f"},
		{"Last", c.Last, "h"},
		{"Next past end", c.Next, "<NOT_FOUND_ERROR>"},
	}

	for _, step := range steps {
		if err := step.move(); err != nil {
			t.Errorf("%s: unexpected error %v", step.name, err)
		}
		if got := current(); got != step.want {
			t.Errorf("%s: expected %s, got %s", step.name, step.want, got)
		}
	}

	// Set and Remove on the current record
	_ = c.Jump([]byte("d"))
	expectCode(t, "Set", c.Set([]byte("new")), status.CodeSuccess)
	if v, _ := s.Get([]byte("d")); string(v) != "new" {
		t.Errorf("Expected cursor Set to update d, got %s", v)
	}
	expectCode(t, "Remove", c.Remove(), status.CodeSuccess)
	if got := current(); got != "f" {
		t.Errorf("Expected cursor to move to f after Remove, got %s", got)
	}

	// record removed by someone else, the cursor continues with the successor
	_ = s.Remove([]byte("f"))
	if got := current(); got != "h" {
		t.Errorf("Expected cursor to continue with h, got %s", got)
	}
}

func TestUpdateLogAndApply(t *testing.T) {
	log := ulog.NewUpdateLog(100)
	master := lstore.NewLocalStore(treeFactory, lstore.Options{DBMIndex: 2, ServerID: 1, UpdateLog: log})

	reader := log.NewReader(0, 0)

	_ = master.Set([]byte("a"), []byte("1"), true)
	_ = master.Remove([]byte("a"))
	_ = master.Remove([]byte("missing")) // not logged
	_ = master.Clear()

	replicaLog := ulog.NewUpdateLog(100)
	replica := lstore.NewLocalStore(treeFactory, lstore.Options{DBMIndex: 2, ServerID: 2, UpdateLog: replicaLog})

	var ops []store.LogOp
	for {
		entry, ok, err := reader.Read(context.Background(), 10*time.Millisecond)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if !ok {
			break
		}
		if entry.DBMIndex != 2 || entry.ServerID != 1 {
			t.Errorf("Unexpected origin of entry %+v", entry)
		}
		ops = append(ops, entry.Op)
		if err := replica.Apply(entry); err != nil {
			t.Errorf("Apply failed: %v", err)
		}
	}

	want := []store.LogOp{store.LogOpSet, store.LogOpRemove, store.LogOpClear}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("Expected ops %v, got %v", want, ops)
	}

	// the replica records the changes with the origin server id
	entry, ok, _ := replicaLog.NewReader(0, 0).Read(context.Background(), 10*time.Millisecond)
	if !ok || entry.ServerID != 1 {
		t.Errorf("Expected replicated entry with origin 1, got %+v", entry)
	}

	err := replica.Apply(store.LogEntry{Op: 99})
	if !errors.Is(err, status.ErrBrokenData) {
		t.Errorf("Expected BROKEN_DATA for unknown op, got %v", err)
	}
}

func TestSynchronizeRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbm-0.rdbm")

	s := lstore.NewLocalStore(treeFactory, lstore.Options{SnapshotPath: path})
	expectCode(t, "Restore without snapshot", s.Restore(), status.CodeSuccess)

	_ = s.Set([]byte("persisted"), []byte("yes"), true)
	expectCode(t, "Synchronize", s.Synchronize(true, nil), status.CodeSuccess)

	restored := lstore.NewLocalStore(treeFactory, lstore.Options{SnapshotPath: path})
	expectCode(t, "Restore", restored.Restore(), status.CodeSuccess)

	if v, err := restored.Get([]byte("persisted")); err != nil || string(v) != "yes" {
		t.Errorf("Expected restored record, got %q (%v)", v, err)
	}

	// without a path Synchronize is a no-op
	expectCode(t, "Synchronize in-memory", newStore(t).Synchronize(false, nil), status.CodeSuccess)
}

func TestInspect(t *testing.T) {
	s := newStore(t)
	_ = s.Set([]byte("a"), []byte("1"), true)

	props, err := s.Inspect()
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	values := map[string]string{}
	for _, p := range props {
		values[p.Name] = p.Value
	}
	if values["class"] != "tree" || values["num_records"] != "1" || values["file_size"] != "2" {
		t.Errorf("Unexpected inspect result %v", values)
	}
}
