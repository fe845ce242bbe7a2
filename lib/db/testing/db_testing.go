package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/rDBM/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("SizeBytes", func(t *testing.T) {
			testSizeBytes(t, factory())
		})

		t.Run("FirstLast", func(t *testing.T) {
			testFirstLast(t, factory())
		})

		t.Run("CeilFloor", func(t *testing.T) {
			testCeilFloor(t, factory())
		})

		t.Run("Ascend", func(t *testing.T) {
			testAscend(t, factory())
		})

		t.Run("CursorWalk", func(t *testing.T) {
			testCursorWalk(t, factory())
		})

		t.Run("RemovedCompact", func(t *testing.T) {
			testRemovedCompact(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadInvalid", func(t *testing.T) {
			testLoadInvalid(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// fill inserts the keys with the value "v-<key>"
func fill(database db.KVDB, keys ...string) {
	for _, key := range keys {
		database.Set(key, []byte("v-"+key))
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2)

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if database.Count() != 1 {
		t.Errorf("Expected count 1 after overwriting, got %d", database.Count())
	}

	_, exists = database.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	fill(database, "a", "b")

	if !database.Delete("a") {
		t.Errorf("Expected Delete of existing key to return true")
	}
	if database.Delete("a") {
		t.Errorf("Expected second Delete of the same key to return false")
	}
	if database.Delete("never-set") {
		t.Errorf("Expected Delete of unknown key to return false")
	}

	if _, exists := database.Get("a"); exists {
		t.Errorf("Expected key a to be gone after Delete")
	}
	if _, exists := database.Get("b"); !exists {
		t.Errorf("Expected key b to be untouched by Delete of a")
	}
	if database.Count() != 1 {
		t.Errorf("Expected count 1, got %d", database.Count())
	}
}

func testClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	for i := 0; i < 100; i++ {
		database.Set(fmt.Sprintf("key-%03d", i), []byte("value"))
	}
	database.Clear()

	if database.Count() != 0 {
		t.Errorf("Expected empty database after Clear, got %d entries", database.Count())
	}
	if database.SizeBytes() != 0 {
		t.Errorf("Expected size 0 after Clear, got %d", database.SizeBytes())
	}
	if _, _, ok := database.First(); ok {
		t.Errorf("Expected no first entry after Clear")
	}

	// the database stays usable
	database.Set("after", []byte("clear"))
	if v, ok := database.Get("after"); !ok || string(v) != "clear" {
		t.Errorf("Expected database to be usable after Clear")
	}
}

func testSizeBytes(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete)

	database.Set("abc", []byte("12345"))
	if database.SizeBytes() != 8 {
		t.Errorf("Expected size 8, got %d", database.SizeBytes())
	}

	database.Set("abc", []byte("1"))
	if database.SizeBytes() != 4 {
		t.Errorf("Expected size 4 after overwrite, got %d", database.SizeBytes())
	}

	database.Set("x", nil)
	if database.SizeBytes() != 5 {
		t.Errorf("Expected size 5, got %d", database.SizeBytes())
	}

	database.Delete("abc")
	if database.SizeBytes() != 1 {
		t.Errorf("Expected size 1 after delete, got %d", database.SizeBytes())
	}

	info := database.GetInfo()
	if info.Count != 1 || info.SizeBytes != 1 {
		t.Errorf("Expected info count 1 and size 1, got %d and %d", info.Count, info.SizeBytes)
	}
}

func testFirstLast(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureOrdered)

	if _, _, ok := database.First(); ok {
		t.Errorf("Expected First on empty database to fail")
	}
	if _, _, ok := database.Last(); ok {
		t.Errorf("Expected Last on empty database to fail")
	}

	fill(database, "m", "a", "z", "k")

	key, value, ok := database.First()
	if !ok || key != "a" || string(value) != "v-a" {
		t.Errorf("Expected first entry a, got %q (ok=%v)", key, ok)
	}

	key, value, ok = database.Last()
	if !ok || key != "z" || string(value) != "v-z" {
		t.Errorf("Expected last entry z, got %q (ok=%v)", key, ok)
	}
}

func testCeilFloor(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureOrdered)

	fill(database, "b", "d", "f")

	tests := []struct {
		name      string
		ceil      bool
		key       string
		inclusive bool
		want      string
		wantOK    bool
	}{
		{"ceil exact inclusive", true, "d", true, "d", true},
		{"ceil exact exclusive", true, "d", false, "f", true},
		{"ceil between", true, "c", false, "d", true},
		{"ceil before all", true, "", true, "b", true},
		{"ceil after all", true, "f", false, "", false},
		{"floor exact inclusive", false, "d", true, "d", true},
		{"floor exact exclusive", false, "d", false, "b", true},
		{"floor between", false, "e", true, "d", true},
		{"floor after all", false, "zzz", false, "f", true},
		{"floor before all", false, "b", false, "", false},
	}

	for _, tt := range tests {
		var key string
		var ok bool
		if tt.ceil {
			key, _, ok = database.Ceil(tt.key, tt.inclusive)
		} else {
			key, _, ok = database.Floor(tt.key, tt.inclusive)
		}
		if ok != tt.wantOK || key != tt.want {
			t.Errorf("%s: expected (%q, %v), got (%q, %v)", tt.name, tt.want, tt.wantOK, key, ok)
		}
	}
}

func testAscend(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureOrdered)

	fill(database, "c", "a", "e", "b", "d")

	var visited []string
	database.Ascend("", func(key string, value []byte) bool {
		visited = append(visited, key)
		return true
	})
	if fmt.Sprint(visited) != "[a b c d e]" {
		t.Errorf("Expected full ascending walk, got %v", visited)
	}

	visited = nil
	database.Ascend("b", func(key string, value []byte) bool {
		visited = append(visited, key)
		return len(visited) < 2
	})
	if fmt.Sprint(visited) != "[b c]" {
		t.Errorf("Expected walk [b c] starting at b, got %v", visited)
	}
}

// testCursorWalk moves a cursor the same way the server side iterator does
func testCursorWalk(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureOrdered)

	keys := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		keys = append(keys, fmt.Sprintf("%08x", i*7919%1000))
	}
	fill(database, keys...)
	sort.Strings(keys)

	// forward
	var forward []string
	key, _, ok := database.First()
	for ok {
		forward = append(forward, key)
		key, _, ok = database.Ceil(key, false)
	}
	if len(forward) != len(keys) {
		t.Fatalf("Expected %d keys walking forward, got %d", len(keys), len(forward))
	}
	for i := range keys {
		if forward[i] != keys[i] {
			t.Errorf("Forward walk mismatch at %d: expected %s, got %s", i, keys[i], forward[i])
		}
	}

	// backward
	var backward []string
	key, _, ok = database.Last()
	for ok {
		backward = append(backward, key)
		key, _, ok = database.Floor(key, false)
	}
	if len(backward) != len(keys) {
		t.Fatalf("Expected %d keys walking backward, got %d", len(keys), len(backward))
	}
	for i := range keys {
		if backward[len(backward)-1-i] != keys[i] {
			t.Errorf("Backward walk mismatch at %d", i)
		}
	}
}

func testRemovedCompact(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureCompact)

	for i := 0; i < 10; i++ {
		database.Set(fmt.Sprintf("k%d", i), []byte("v"))
	}
	for i := 0; i < 6; i++ {
		database.Delete(fmt.Sprintf("k%d", i))
	}
	database.Delete("unknown")

	if database.Removed() != 6 {
		t.Errorf("Expected 6 removals, got %d", database.Removed())
	}

	database.Compact()

	if database.Removed() != 0 {
		t.Errorf("Expected removal counter reset after Compact, got %d", database.Removed())
	}
	if database.Count() != 4 {
		t.Errorf("Expected 4 entries after Compact, got %d", database.Count())
	}
	if v, ok := database.Get("k9"); !ok || string(v) != "v" {
		t.Errorf("Expected k9 to survive Compact")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		database.Set(key, value)
	}

	// binary safe keys and values, one larger than a read chunk
	database.Set("bin\x00key", []byte{0, 1, 2, 255})
	database.Set("large", bytes.Repeat([]byte("x"), 200*1024))
	database.Set("empty", []byte{})

	// content of the target is replaced
	database2.Set("stale", []byte("stale"))

	var buf bytes.Buffer
	err := database.Save(&buf)
	if err != nil {
		t.Errorf("Unexpected error during Save: %v", err)
	}

	err = database2.Load(&buf)
	if err != nil {
		t.Errorf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	if v, ok := database2.Get("bin\x00key"); !ok || !bytes.Equal(v, []byte{0, 1, 2, 255}) {
		t.Errorf("Binary entry not restored")
	}
	if v, ok := database2.Get("large"); !ok || len(v) != 200*1024 {
		t.Errorf("Large entry not restored (len %d)", len(v))
	}
	if v, ok := database2.Get("empty"); !ok || len(v) != 0 {
		t.Errorf("Empty entry not restored")
	}
	if _, ok := database2.Get("stale"); ok {
		t.Errorf("Expected Load to replace the previous content")
	}
	if database2.Count() != database.Count() {
		t.Errorf("Expected %d entries after Load, got %d", database.Count(), database2.Count())
	}
	if database2.SizeBytes() != database.SizeBytes() {
		t.Errorf("Expected size %d after Load, got %d", database.SizeBytes(), database2.SizeBytes())
	}
}

func testLoadInvalid(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureLoad)

	database.Set("keep", []byte("me"))

	if err := database.Load(bytes.NewReader([]byte("NOTADB.."))); err == nil {
		t.Errorf("Expected error loading garbage")
	}
	if err := database.Load(bytes.NewReader(nil)); err == nil {
		t.Errorf("Expected error loading empty input")
	}

	if v, ok := database.Get("keep"); !ok || string(v) != "me" {
		t.Errorf("Expected failed Load to keep the content")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureOrdered)

	// empty key
	database.Set("", []byte("empty key"))
	if v, ok := database.Get(""); !ok || string(v) != "empty key" {
		t.Errorf("Expected the empty key to be stored")
	}
	if key, _, ok := database.First(); !ok || key != "" {
		t.Errorf("Expected the empty key to be the first key")
	}

	// nil value is stored as existing record
	database.Set("nil-value", nil)
	if _, ok := database.Get("nil-value"); !ok {
		t.Errorf("Expected key with nil value to exist")
	}

	// byte-wise ordering
	fill(database, "\xff", "a", "B")
	if key, _, _ := database.Last(); key != "\xff" {
		t.Errorf("Expected byte-wise ordering, last key is %q", key)
	}
	if key, _, _ := database.Ceil("", false); key != "B" {
		t.Errorf("Expected B to follow the empty key, got %q", key)
	}
}

func testConcurrency(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureOrdered)

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("w%d-%04d", w, i)
				database.Set(key, []byte(key))
				if _, ok := database.Get(key); !ok {
					t.Errorf("Key %s not found right after Set", key)
				}
				database.Ceil(key, false)
				if i%2 == 0 {
					database.Delete(key)
				}
			}
		}(w)
	}
	wg.Wait()

	if database.Count() != workers*perWorker/2 {
		t.Errorf("Expected %d entries, got %d", workers*perWorker/2, database.Count())
	}
}
