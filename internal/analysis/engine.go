package analysis

import (
	"context"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/logmill/logmill/internal/config"
	"github.com/logmill/logmill/internal/store"
	"github.com/logmill/logmill/pkg/types"
)

// Analysis names, used as result-set names by the sinks.
const (
	NameTotalCount         = "total_count"
	NameStatusDistribution = "status_distribution"
	NameTopPaths           = "top_paths"
	NameTopUserAgents      = "top_user_agents"
	NameSuspiciousIPs      = "suspicious_ips"
	NameTrafficTrend       = "traffic_trend"
	NamePartitionExport    = "partition_export"
)

// Engine computes the analytical operations over a sealed store view.
// It holds no mutable state of its own; every method is safe to call
// concurrently with the others.
type Engine struct {
	view *store.View
	cfg  config.AnalysisConfig
}

// NewEngine creates an engine over the given view.
func NewEngine(view *store.View, cfg config.AnalysisConfig) *Engine {
	return &Engine{view: view, cfg: cfg}
}

// TotalCount returns the number of loaded records. O(1): the store
// maintains the total at load time.
func (e *Engine) TotalCount(ctx context.Context) (types.Result, error) {
	return types.ScalarResult(NameTotalCount, e.view.TotalCount()), nil
}

// StatusDistribution returns per-status counts sorted descending by
// count, ties broken by ascending numeric status code.
func (e *Engine) StatusDistribution(ctx context.Context) (types.Result, error) {
	counts := e.view.StatusCounts()

	type statusCount struct {
		status int
		count  int64
	}
	rows := make([]statusCount, 0, len(counts))
	for status, count := range counts {
		rows = append(rows, statusCount{status, count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].status < rows[j].status
	})

	pairs := make([]types.Pair, len(rows))
	for i, r := range rows {
		pairs[i] = types.Pair{Key: strconv.Itoa(r.status), Count: r.count}
	}
	return types.PairsResult(NameStatusDistribution, pairs), nil
}

// TopPaths returns the K most requested paths, ties broken by first-seen
// order.
func (e *Engine) TopPaths(ctx context.Context) (types.Result, error) {
	return e.topKBy(ctx, NameTopPaths, func(rec types.LogRecord) string {
		return rec.Path
	})
}

// TopUserAgents returns the K most frequent user agents. Same algorithm
// as TopPaths with a different grouping key; agents differing only in
// whitespace stay distinct.
func (e *Engine) TopUserAgents(ctx context.Context) (types.Result, error) {
	return e.topKBy(ctx, NameTopUserAgents, func(rec types.LogRecord) string {
		return rec.UserAgent
	})
}

// topKBy groups a full scan by the extracted key and selects the K
// largest groups.
func (e *Engine) topKBy(ctx context.Context, name string, keyOf func(types.LogRecord) string) (types.Result, error) {
	counter := NewShardedCounter()
	err := e.view.ScanAll(ctx, func(rec types.LogRecord) error {
		counter.Add(keyOf(rec))
		return nil
	})
	if err != nil {
		return types.Result{}, err
	}
	return types.PairsResult(name, counter.TopK(e.cfg.TopK)), nil
}

// SuspiciousIPs returns every client whose request count within the
// configured failure-status set strictly exceeds the threshold, sorted
// by descending failure count then ascending address.
//
// The scan touches only the failure-status partitions, one goroutine per
// partition, merging the per-partition counters afterwards. The final
// ordering ignores first-seen positions, so it is independent of how the
// partition scans interleave.
func (e *Engine) SuspiciousIPs(ctx context.Context) (types.Result, error) {
	failureSet := e.cfg.FailureStatusSet()
	var statuses []int
	for _, status := range e.view.Statuses() {
		if failureSet[status] {
			statuses = append(statuses, status)
		}
	}

	counters := make([]*ShardedCounter, len(statuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, status := range statuses {
		i, status := i, status
		counters[i] = NewShardedCounter()
		g.Go(func() error {
			c := counters[i]
			return e.view.ScanPartition(gctx, status, func(rec types.LogRecord) error {
				c.Add(rec.ClientAddress)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return types.Result{}, err
	}

	counter := NewShardedCounter()
	for _, c := range counters {
		counter.Merge(c)
	}

	threshold := int64(e.cfg.SuspiciousThreshold)
	var flagged []types.Pair
	for _, g := range counter.Entries() {
		if g.Count > threshold {
			flagged = append(flagged, types.Pair{Key: g.Key, Count: g.Count})
		}
	}
	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].Count != flagged[j].Count {
			return flagged[i].Count > flagged[j].Count
		}
		return flagged[i].Key < flagged[j].Key
	})
	return types.PairsResult(NameSuspiciousIPs, flagged), nil
}

// TrafficTrend buckets timestamp-parseable records by the configured
// granularity and returns buckets sorted ascending by bucket start.
// Records without a parseable timestamp are excluded here; they are
// tallied in the ingestion ParseStats, never silently dropped.
func (e *Engine) TrafficTrend(ctx context.Context) (types.Result, error) {
	layout := bucketLayout(e.cfg.TrendBucket)

	counter := NewShardedCounter()
	err := e.view.ScanAll(ctx, func(rec types.LogRecord) error {
		if !rec.HasTime {
			return nil
		}
		counter.Add(rec.Time.Format(layout))
		return nil
	})
	if err != nil {
		return types.Result{}, err
	}

	buckets := counter.Entries()
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Key < buckets[j].Key
	})
	pairs := make([]types.Pair, len(buckets))
	for i, b := range buckets {
		pairs[i] = types.Pair{Key: b.Key, Count: b.Count}
	}
	return types.PairsResult(NameTrafficTrend, pairs), nil
}

// bucketLayout maps a trend granularity to its truncation layout.
// The layouts sort lexicographically in time order.
func bucketLayout(b config.TrendBucket) string {
	switch b {
	case config.BucketHour:
		return "2006-01-02 15"
	case config.BucketDay:
		return "2006-01-02"
	default:
		return "2006-01-02 15:04"
	}
}
