// Package store implements the partitioned record store. Records are
// kept in a global ingestion-order arena; partitions are index lists
// keyed by HTTP status code, created lazily and never merged or split.
//
// The store is mutable only while loading. Seal converts it into a
// read-only View; the aggregation engine and the sinks read exclusively
// through Views, so no locking is needed while analyses run.
package store

import (
	"context"
	"sort"

	"github.com/logmill/logmill/pkg/types"
)

// cancelStride is how many records a scan yields between cancellation
// checks. Keeps cancellation latency bounded without a per-record branch
// dominating tight scans.
const cancelStride = 1024

// Store ingests validated records and lays them out by partition key.
type Store struct {
	records    []types.LogRecord
	partitions map[int][]int // status -> record indexes, ingestion order
	sealed     bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		partitions: make(map[int][]int),
	}
}

// Append adds one record to the partition matching its status code,
// creating the partition if absent. Records are never mutated or removed.
//
// Append must not be called after Seal; the sealed store is read-shared
// by concurrent analyses and a late write would break that invariant,
// so violations panic rather than corrupt a run.
func (s *Store) Append(rec types.LogRecord) {
	if s.sealed {
		panic("store: append after seal")
	}
	idx := len(s.records)
	s.records = append(s.records, rec)
	s.partitions[rec.StatusCode] = append(s.partitions[rec.StatusCode], idx)
}

// Len returns the number of records loaded so far.
func (s *Store) Len() int {
	return len(s.records)
}

// Seal freezes the store and returns its read-only view. After Seal the
// store accepts no further writes for the remainder of the run.
func (s *Store) Seal() *View {
	s.sealed = true
	return &View{s: s}
}

// View is the read-only face of a sealed store. All analyses and exports
// read through it.
type View struct {
	s *Store
}

// TotalCount returns the number of records. O(1).
func (v *View) TotalCount() int64 {
	return int64(len(v.s.records))
}

// StatusCounts returns per-status record counts. O(number of partitions):
// each partition already knows its size, so this never rescans records.
func (v *View) StatusCounts() map[int]int64 {
	counts := make(map[int]int64, len(v.s.partitions))
	for status, idxs := range v.s.partitions {
		counts[status] = int64(len(idxs))
	}
	return counts
}

// Statuses returns all partition keys in ascending order.
func (v *View) Statuses() []int {
	statuses := make([]int, 0, len(v.s.partitions))
	for status := range v.s.partitions {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)
	return statuses
}

// ScanAll yields every record in ingestion order. The scan stops early
// and returns the first error fn returns, or the context error if the
// run is cancelled mid-scan.
func (v *View) ScanAll(ctx context.Context, fn func(rec types.LogRecord) error) error {
	for i := range v.s.records {
		if i%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(v.s.records[i]); err != nil {
			return err
		}
	}
	return nil
}

// ScanByStatus yields only records whose partition key is in the given
// set, bounding the scan to matching partitions. Partitions are visited
// in ascending status order; within a partition records keep ingestion
// order.
func (v *View) ScanByStatus(ctx context.Context, statuses map[int]bool, fn func(rec types.LogRecord) error) error {
	for _, status := range v.Statuses() {
		if !statuses[status] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for n, idx := range v.s.partitions[status] {
			if n%cancelStride == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := fn(v.s.records[idx]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScanPartition yields one partition's records in ingestion order.
// Scanning an absent partition is a no-op.
func (v *View) ScanPartition(ctx context.Context, status int, fn func(rec types.LogRecord) error) error {
	return v.ScanByStatus(ctx, map[int]bool{status: true}, fn)
}
