package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/rkv/cmd/util"
	"github.com/ValentinKolb/rkv/lib/store"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for rkv stores",
		Long:    "Runs a set of benchmarks against the selected target. Every benchmark runs --ops operations on --threads goroutines, atomic and batch benchmarks count one unit as one operation.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOps              = 10000
	perfBatchSize        = 10
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("Number of operations per benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "batch-size"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Commands per unit of the atomic and batch tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfOps = max(viper.GetInt("ops"), 1)
	perfBatchSize = max(viper.GetInt("batch-size"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is a named operation; i is the operation index (used to pick keys)
type benchmark struct {
	name    string
	prepare func(ctx context.Context, keys []string) error
	op      func(ctx context.Context, keys []string, i int) error
}

func benchmarks() []benchmark {
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	fill := func(ctx context.Context, keys []string) error {
		for _, k := range keys {
			if _, err := access.Do(ctx, "SET", k, "test"); err != nil {
				return err
			}
		}
		return nil
	}

	return []benchmark{
		{name: "set", op: func(ctx context.Context, keys []string, i int) error {
			_, err := access.Do(ctx, "SET", keys[i%len(keys)], "test")
			return err
		}},
		{name: "set-large", op: func(ctx context.Context, keys []string, i int) error {
			_, err := access.Do(ctx, "SET", keys[i%len(keys)], largeValue)
			return err
		}},
		{name: "get", prepare: fill, op: func(ctx context.Context, keys []string, i int) error {
			_, err := access.Do(ctx, "GET", keys[i%len(keys)])
			return err
		}},
		{name: "incr", op: func(ctx context.Context, keys []string, i int) error {
			_, err := access.Do(ctx, "INCR", keys[i%len(keys)])
			return err
		}},
		{name: "delete", prepare: fill, op: func(ctx context.Context, keys []string, i int) error {
			_, err := access.Do(ctx, "DEL", keys[i%len(keys)])
			return err
		}},
		{name: "atomic", op: func(ctx context.Context, keys []string, i int) error {
			res, err := access.RunAtomic(ctx, func(ctx context.Context, c store.Commander) error {
				for j := 0; j < perfBatchSize; j++ {
					if _, err := c.Do(ctx, "INCR", keys[(i+j)%len(keys)]); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return res.Err()
		}},
		{name: "batch", op: func(ctx context.Context, keys []string, i int) error {
			res, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
				for j := 0; j < perfBatchSize; j++ {
					if _, err := c.Do(ctx, "SET", keys[(i+j)%len(keys)], "test"); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return res.Err()
		}},
		{name: "mixed", prepare: fill, op: func(ctx context.Context, keys []string, i int) error {
			key := keys[i%len(keys)]
			var err error
			switch i % 4 {
			case 0:
				_, err = access.Do(ctx, "SET", key, "test")
			case 1:
				_, err = access.Do(ctx, "GET", key)
			case 2:
				_, err = access.Do(ctx, "DEL", key)
			case 3:
				_, err = access.Do(ctx, "EXISTS", key)
			}
			return err
		}},
	}
}

func runPerf(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for rkv stores")

	target, err := util.GetTarget()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  %-22s: %s\n", "Target", store.Redact(target.String()))
	fmt.Print(util.GetClientConfig().String())
	fmt.Printf("  %-22s: %d\n", "Threads", perfNumThreads)
	fmt.Printf("  %-22s: %d\n", "Operations", perfOps)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	var order []string

	for _, b := range benchmarks() {
		if shouldSkip(b.name) {
			fmt.Printf("%-14sskipped\n", b.name)
			continue
		}

		timer, errs := runBenchmark(cmd.Context(), registry, b)
		printResult(b.name, timer, errs)
		order = append(order, b.name)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry, order); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBenchmark runs perfOps operations of b on perfNumThreads goroutines and
// records their latencies in the timer "<name>" of registry
func runBenchmark(ctx context.Context, registry metrics.Registry, b benchmark) (metrics.Timer, metrics.Counter) {
	keys := getKeys(b.name)
	timer := metrics.GetOrRegisterTimer(b.name, registry)
	errs := metrics.GetOrRegisterCounter(b.name+".errors", registry)

	if b.prepare != nil {
		if err := b.prepare(ctx, keys); err != nil {
			fmt.Printf("(%s) - error preparing keys: %v\n", b.name, err)
		}
	}
	defer cleanup(ctx, b.name, keys)

	var (
		wg   sync.WaitGroup
		next = make(chan int, perfNumThreads)
	)
	for w := 0; w < perfNumThreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				start := time.Now()
				err := b.op(ctx, keys, i)
				timer.UpdateSince(start)
				if err != nil {
					errs.Inc(1)
				}
			}
		}()
	}
	for i := 0; i < perfOps; i++ {
		next <- i
	}
	close(next)
	wg.Wait()

	return timer, errs
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

func cleanup(ctx context.Context, name string, keys []string) {
	_, err := access.RunBatch(ctx, func(ctx context.Context, c store.Commander) error {
		for _, k := range keys {
			if _, err := c.Do(ctx, "DEL", k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		fmt.Printf("(%s) - error deleting keys: %v\n", name, err)
	}
}

// printResult prints the result of a benchmark in a formatted way
func printResult(test string, timer metrics.Timer, errs metrics.Counter) {
	s := timer.Snapshot()
	ps := s.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-14s%12s/op  p50 %-10s p99 %-10s %10.0f ops/sec  errors %d\n",
		test,
		time.Duration(s.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		s.RateMean(),
		errs.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry metrics.Registry, order []string) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Count", "Errors", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "OpsPerSec",
		"Target", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Threads", "Operations", "BatchSize", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	config := util.GetClientConfig()
	for _, test := range order {
		timer, ok := registry.Get(test).(metrics.Timer)
		if !ok {
			continue
		}
		s := timer.Snapshot()
		ps := s.Percentiles([]float64{0.5, 0.99})
		var errCount int64
		if c, ok := registry.Get(test + ".errors").(metrics.Counter); ok {
			errCount = c.Count()
		}

		row := []string{
			test,
			strconv.FormatInt(s.Count(), 10),
			strconv.FormatInt(errCount, 10),
			fmt.Sprintf("%.0f", s.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			strconv.FormatInt(s.Max(), 10),
			fmt.Sprintf("%.0f", s.RateMean()),
			store.Redact(viper.GetString("target")),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfOps),
			strconv.Itoa(perfBatchSize),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
