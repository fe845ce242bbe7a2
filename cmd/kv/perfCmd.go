package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/rDBM/cmd/util"
	"github.com/ValentinKolb/rDBM/rpc/client"
	"github.com/ValentinKolb/rDBM/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for rDBM servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfValueSize  = 100
	perfNumThreads = 10
	perfKeySpread  = 100
	perfOps        = 10000
	perfSkip       = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,stream-get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmark"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("Size of the values written by the set tests (in bytes)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per test"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOps = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult is the outcome of one test
type perfResult struct {
	timer   gometrics.Timer
	errors  gometrics.Counter
	elapsed time.Duration
	skipped bool
}

// perfTest is one benchmark
type perfTest struct {
	name string
	// setup runs before the test (optional)
	setup func(keys []string) error
	// worker creates the operation of one goroutine and a func to release it
	worker func() (op func(key string) error, done func())
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for rDBM servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Operations: %d\n", perfOps)
	fmt.Println()

	fmt.Println("starting tests...")

	value := make([]byte, perfValueSize)
	fillKeys := func(keys []string) error {
		records := make(map[string][]byte, len(keys))
		for _, k := range keys {
			records[k] = value
		}
		return remoteDBM.SetMulti(records, true)
	}
	pointOp := func(op func(key string) error) func() (func(string) error, func()) {
		return func() (func(string) error, func()) { return op, func() {} }
	}
	streamOp := func(op func(s *client.Stream, key string) error) func() (func(string) error, func()) {
		return func() (func(string) error, func()) {
			s := remoteDBM.MakeStream()
			return func(key string) error { return op(s, key) }, func() { _ = s.Close() }
		}
	}

	tests := []perfTest{
		{
			name: "set",
			worker: pointOp(func(key string) error {
				return remoteDBM.Set([]byte(key), value, true)
			}),
		},
		{
			name:  "get",
			setup: fillKeys,
			worker: pointOp(func(key string) error {
				_, err := remoteDBM.Get([]byte(key))
				return err
			}),
		},
		{
			name: "incr",
			worker: pointOp(func(key string) error {
				_, err := remoteDBM.Increment([]byte(key), 1, 0)
				return err
			}),
		},
		{
			name: "stream-set",
			worker: streamOp(func(s *client.Stream, key string) error {
				return s.Set([]byte(key), value, true, false)
			}),
		},
		{
			name: "stream-set-async",
			worker: streamOp(func(s *client.Stream, key string) error {
				return s.Set([]byte(key), value, true, true)
			}),
		},
		{
			name:  "stream-get",
			setup: fillKeys,
			worker: streamOp(func(s *client.Stream, key string) error {
				_, err := s.Get([]byte(key))
				return err
			}),
		},
		{
			name:  "mixed",
			setup: fillKeys,
			worker: func() (func(string) error, func()) {
				s := remoteDBM.MakeStream()
				counter := 0
				op := func(key string) error {
					counter++
					switch counter % 4 {
					case 0:
						return s.Set([]byte(key), value, true, false)
					case 1:
						_, err := s.Get([]byte(key))
						return err
					case 2:
						return s.Append([]byte(key), []byte("x"), nil, false)
					default:
						return s.Check([]byte(key))
					}
				}
				return op, func() { _ = s.Close() }
			},
		},
	}

	results := make(map[string]*perfResult, len(tests))
	for _, test := range tests {
		result := runPerfTest(test)
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, tests, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runPerfTest runs a test with perfNumThreads goroutines and removes its keys afterwards
func runPerfTest(test perfTest) *perfResult {
	result := &perfResult{
		timer:  gometrics.NewTimer(),
		errors: gometrics.NewCounter(),
	}
	if shouldSkip(test.name) {
		result.skipped = true
		return result
	}

	keys := getKeys(test.name)
	defer func() {
		byteKeys := make([][]byte, len(keys))
		for i, k := range keys {
			byteKeys[i] = []byte(k)
		}
		// keys that were never written are reported as missing
		_ = remoteDBM.RemoveMulti(byteKeys)
	}()

	if test.setup != nil {
		if err := test.setup(keys); err != nil {
			log.Printf("(%s) - error preparing keys: %v\n", test.name, err)
		}
	}

	perWorker := perfOps / perfNumThreads
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < perfNumThreads; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			op, done := test.worker()
			defer done()
			for i := 0; i < perWorker; i++ {
				key := keys[(w*perWorker+i)%len(keys)]
				var err error
				result.timer.Time(func() { err = op(key) })
				if err != nil {
					result.errors.Inc(1)
					if result.errors.Count() <= 10 {
						log.Printf("(%s) - error: %v\n", test.name, err)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	result.elapsed = time.Since(start)

	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// getKeys creates the test keys of a test
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// opsPerSec returns the throughput of all goroutines together
func (r *perfResult) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.timer.Count()) / r.elapsed.Seconds()
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result *perfResult) {
	if result.skipped || result.timer.Count() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	snapshot := result.timer.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-20s%.0f ops/sec\tmean %s\tp50 %s\tp99 %s\terrors %d\n",
		test,
		result.opsPerSec(),
		time.Duration(snapshot.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		result.errors.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, tests []perfTest, results map[string]*perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "OpsPerSec", "MeanNs", "P50Ns", "P99Ns", "Errors", "Skipped",
		"Endpoint", "TimeoutSec", "DBMIndex", "Serializer", "Transport",
		"Threads", "Ops", "ValueSize", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results in the order they ran
	for _, test := range tests {
		result := results[test.name]
		snapshot := result.timer.Snapshot()
		ps := snapshot.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test.name,
			fmt.Sprintf("%.0f", result.opsPerSec()),
			fmt.Sprintf("%.0f", snapshot.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(result.errors.Count(), 10),
			strconv.FormatBool(result.skipped),
			config.Transport.Endpoint,
			strconv.FormatFloat(config.TimeoutSecond, 'f', -1, 64),
			strconv.Itoa(int(config.DBMIndex)),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfOps),
			strconv.Itoa(perfValueSize),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test.name, err)
		}
	}

	return nil
}
