package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/btree-query-bench/bpidx/dbms/index"
	"github.com/btree-query-bench/bpidx/dbms/index/bptree"
	"github.com/btree-query-bench/bpidx/dbms/index/lsm"
	"github.com/btree-query-bench/bpidx/dbms/index/mem"
)

// runBench compares the disk B+ tree against a memory-resident B+ tree and
// Pebble on the same workloads and writes the figures to a CSV, replacing
// any existing file at the configured output path.
func runBench(configPath string, w io.Writer) error {
	cfg, err := loadBenchConfig(configPath)
	if err != nil {
		return err
	}

	f, err := os.Create(cfg.Out)
	if err != nil {
		return err
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	// HeapObjects is included to track GC pressure alongside latency.
	cw.Write([]string{"Structure", "Config", "TestType", "LatencyNs", "MemMB", "HeapObjects"})

	workDir, err := os.MkdirTemp("", "bpidx-bench")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	for _, b := range cfg.Branching {
		path := filepath.Join(workDir, fmt.Sprintf("tree_%d.idx", b))
		tree, err := bptree.Create(path, b)
		if err != nil {
			return err
		}
		if err := runSuite(cw, w, "BPlusTree-disk", int(b), tree, cfg.Scale); err != nil {
			return err
		}
		tree.Close()
	}

	for _, b := range cfg.Branching {
		// mem.New takes the minimum degree; b keys of fan-out is ~b/2 degree.
		memTree := mem.New(int(b) / 2)
		if err := runSuite(cw, w, "BPlusTree-mem", int(b), memTree, cfg.Scale); err != nil {
			return err
		}
	}

	db, err := lsm.Open(filepath.Join(workDir, "pebble"))
	if err != nil {
		return err
	}
	if err := runSuite(cw, w, "LSM-pebble", 0, db, cfg.Scale); err != nil {
		db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Benchmark complete. Results in %s\n", cfg.Out)
	return nil
}

func runSuite(cw *csv.Writer, w io.Writer, name string, conf int, idx index.Index, n int) error {
	fmt.Fprintf(w, "Testing %s (Config: %d)\n", name, conf)
	confStr := strconv.Itoa(conf)

	// 1. Pure insert (initial load).
	start := time.Now()
	for k := 0; k < n; k++ {
		if err := idx.Insert(int32(k), int32(k)*10); err != nil {
			return fmt.Errorf("%s: insert %d: %w", name, k, err)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	// Verify before timing anything else: a fast wrong index is no result.
	if err := verifyIndex(name, idx, n); err != nil {
		return err
	}

	// Memory footprint right after load, before the mixed workloads.
	stats := getDetailedMem()
	record(cw, benchResult{
		Name:      name,
		Config:    confStr,
		Operation: "Footprint_SteadyState",
		LatencyNs: insertLatency,
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	})

	start = time.Now()
	if err := executeWorkload(idx, oltp, n/2); err != nil {
		return err
	}
	record(cw, benchResult{name, confStr, "Workload_OLTP", time.Since(start).Nanoseconds() / int64(n/2), getDetailedMem().AllocMB, 0})

	start = time.Now()
	if err := executeWorkload(idx, olap, n/2); err != nil {
		return err
	}
	record(cw, benchResult{name, confStr, "Workload_OLAP", time.Since(start).Nanoseconds() / int64(n/2), getDetailedMem().AllocMB, 0})

	start = time.Now()
	if err := executeWorkload(idx, reporting, 100); err != nil {
		return err
	}
	record(cw, benchResult{name, confStr, "Workload_Range", time.Since(start).Nanoseconds() / 100, getDetailedMem().AllocMB, 0})

	return nil
}

// verifyIndex spot-checks a point lookup and a cross-leaf range count.
func verifyIndex(name string, idx index.Index, n int) error {
	mid := int32(n / 2)
	v, found, err := idx.Search(mid)
	if err != nil {
		return fmt.Errorf("%s: verify search: %w", name, err)
	}
	if !found || v != mid*10 {
		return fmt.Errorf("%s: verify search %d: got (%d, %v), want (%d, true)", name, mid, v, found, mid*10)
	}

	span := int32(100)
	if int32(n) < span {
		span = int32(n)
	}
	it, err := idx.Range(0, span-1)
	if err != nil {
		return fmt.Errorf("%s: verify range: %w", name, err)
	}
	defer it.Close()
	count := int32(0)
	for it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("%s: verify range: %w", name, err)
	}
	if count != span {
		return fmt.Errorf("%s: verify range: got %d keys, want %d", name, count, span)
	}
	return nil
}

type benchResult struct {
	Name      string
	Config    string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type memoryStats struct {
	AllocMB      uint64
	TotalAllocMB uint64
	HeapObjects  uint64
}

func getDetailedMem() memoryStats {
	var m runtime.MemStats
	// Force GC so we measure live data, not garbage.
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memoryStats{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		HeapObjects:  m.HeapObjects,
	}
}

func record(cw *csv.Writer, res benchResult) {
	cw.Write([]string{
		res.Name,
		res.Config,
		res.Operation,
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}
