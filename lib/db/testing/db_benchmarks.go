package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/rDBM/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory())
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("CursorNext", func(b *testing.B) {
		benchmarkCursorNext(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var worker atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		id := worker.Add(1)
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d-%d", id, counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	// Prepare data
	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value)
			counter++
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	largeValue := bytes.Repeat([]byte("x"), 64*1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Set(fmt.Sprintf("large-key-%d", i%1000), largeValue)
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	// Prepare data
	numKeys := 10_000
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(keys[counter%numKeys])
			counter++
		}
	})
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureDelete)

	// Prepare data
	keys := make([]string, b.N)
	for i := 0; i < b.N; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Delete(keys[i])
	}
}

// Benchmark for a cursor moving forward with Ceil
func benchmarkCursorNext(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureOrdered)

	// Prepare data
	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("test-key-%08d", i), []byte("value"))
	}

	b.ResetTimer()
	key, _, ok := database.First()
	for i := 0; i < b.N; i++ {
		if !ok {
			key, _, ok = database.First()
			continue
		}
		key, _, ok = database.Ceil(key, false)
	}
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureSave|db.FeatureLoad)

	// Prepare data
	for i := 0; i < 100_000; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatalf("Save failed: %v", err)
	}
	data := snapshot.Bytes()

	b.Run("Save", func(b *testing.B) {
		var buf bytes.Buffer
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := database.Save(&buf); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(data)); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
		}
	})
}

// Benchmark for a realistic read heavy mix of operations
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureOrdered)

	// Prepare data
	numKeys := 10_000
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], []byte("value"))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := keys[rng.Intn(numKeys)]
			switch op := rng.Intn(100); {
			case op < 70: // 70% reads
				database.Get(key)
			case op < 85: // 15% writes
				database.Set(key, []byte("updated"))
			case op < 95: // 10% cursor steps
				database.Ceil(key, false)
			default: // 5% deletes
				database.Delete(key)
			}
		}
	})
}
