// Package analysis implements the aggregation engine: the analytical
// operations computed over a sealed store view. All analyses are pure
// reads through the store's scan primitives.
package analysis

import (
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/logmill/logmill/pkg/types"
)

// counterShards is the number of shard maps in a ShardedCounter. Keys are
// routed by murmur3 hash so no single map grows with the whole key space.
const counterShards = 16

// GroupCount is one group's accumulated count plus the scan position at
// which the group was first seen. FirstSeen is the tie-break for equal
// counts, which keeps top-K output stable against input order.
type GroupCount struct {
	Key       string
	Count     int64
	FirstSeen int64
}

// ShardedCounter counts occurrences per group key. Groups are spread
// across shards by murmur3 hash of the key; Entries flattens the shards
// back into one deterministic slice.
type ShardedCounter struct {
	shards [counterShards]map[string]*GroupCount
	seq    int64
}

// NewShardedCounter creates an empty counter.
func NewShardedCounter() *ShardedCounter {
	c := &ShardedCounter{}
	for i := range c.shards {
		c.shards[i] = make(map[string]*GroupCount)
	}
	return c
}

// Add counts one occurrence of key.
func (c *ShardedCounter) Add(key string) {
	shard := c.shards[murmur3.Sum32([]byte(key))%counterShards]
	g, ok := shard[key]
	if !ok {
		g = &GroupCount{Key: key, FirstSeen: c.seq}
		shard[key] = g
	}
	g.Count++
	c.seq++
}

// Merge folds other into c, summing counts per key. First-seen keeps the
// smaller position; positions are only comparable when both counters
// observed the same scan sequence, so callers merging independently
// built counters must not rely on first-seen order afterwards.
func (c *ShardedCounter) Merge(other *ShardedCounter) {
	for i := range other.shards {
		for key, g := range other.shards[i] {
			dst, ok := c.shards[i][key]
			if !ok {
				cp := *g
				c.shards[i][key] = &cp
				continue
			}
			dst.Count += g.Count
			if g.FirstSeen < dst.FirstSeen {
				dst.FirstSeen = g.FirstSeen
			}
		}
	}
}

// Groups returns the number of distinct keys.
func (c *ShardedCounter) Groups() int {
	n := 0
	for i := range c.shards {
		n += len(c.shards[i])
	}
	return n
}

// Entries returns all groups sorted by descending count, ties broken by
// ascending first-seen position.
func (c *ShardedCounter) Entries() []GroupCount {
	out := make([]GroupCount, 0, c.Groups())
	for i := range c.shards {
		for _, g := range c.shards[i] {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].FirstSeen < out[j].FirstSeen
	})
	return out
}

// TopK returns the K largest groups as result pairs. K larger than the
// number of distinct groups returns all groups.
func (c *ShardedCounter) TopK(k int) []types.Pair {
	entries := c.Entries()
	if k < len(entries) {
		entries = entries[:k]
	}
	pairs := make([]types.Pair, len(entries))
	for i, g := range entries {
		pairs[i] = types.Pair{Key: g.Key, Count: g.Count}
	}
	return pairs
}
