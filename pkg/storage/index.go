// An Index keeps one deterministic skip list of string keys behind a lock. A bloom filter of every key ever added
// sits in front of it, so lookups and removals of keys that were never added skip the descent entirely.

package storage

import (
	"flag"
	"fmt"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nobletooth/detskip/pkg/skiplist"
)

const (
	// MaxKey is greater than every key an Index accepts.
	MaxKey = "\xfe"
	// maxKey1 closes every level of the skip list; it must be greater than MaxKey.
	maxKey1 = "\xff"
)

var (
	bloomEnabled = flag.Bool("enable_bloom_filter", true,
		"Consult a bloom filter of added keys before searching the index.")
	bloomExpectedKeys = flag.Uint("bloom_expected_keys", 100_000,
		"The number of keys each index's bloom filter is sized for.")
	bloomFalsePositiveRate = flag.Float64("bloom_false_positive_rate", 0.01,
		"The target false positive rate of each index's bloom filter.")
	indexNodeCapacity = flag.Int("index_node_capacity", 0,
		"The maximum number of skip list nodes per index shard; 0 means unbounded.")

	indexOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "index_operations_total",
		Help: "Total number of index operations by outcome.",
	}, []string{
		"op",     // add | contains | remove
		"result", // inserted | duplicate | found | absent | removed | error
	})
	indexBloomSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "index_bloom_skips_total",
		Help: "Total number of lookups and removals answered by the bloom filter alone.",
	})
	indexHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "index_height",
		Help: "Number of skip list levels above the lowest one.",
	}, []string{"shard"})
	indexEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "index_entries",
		Help: "Number of keys held by the index.",
	}, []string{"shard"})
	indexNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "index_nodes",
		Help: "Number of live skip list nodes, routers included.",
	}, []string{"shard"})
)

// Index is a thread-safe ordered set of string keys.
type Index struct {
	mux   sync.RWMutex
	list  *skiplist.SkipList[string]
	seen  *bloom.BloomFilter // Nil when the filter is disabled.
	shard string             // Metrics label.
}

// NewIndex builds an empty index reporting its gauges under `shard`.
func NewIndex(shard string) (*Index, error) {
	list, err := skiplist.New(strings.Compare, MaxKey, maxKey1, skiplist.WithNodeCapacity(*indexNodeCapacity))
	if err != nil {
		return nil, fmt.Errorf("failed to build the skip list of shard %s: %w", shard, err)
	}
	index := &Index{list: list, shard: shard}
	if *bloomEnabled {
		if *bloomExpectedKeys == 0 || *bloomFalsePositiveRate <= 0 || *bloomFalsePositiveRate >= 1 {
			return nil, fmt.Errorf("invalid bloom filter settings: expected_keys=%d, false_positive_rate=%v",
				*bloomExpectedKeys, *bloomFalsePositiveRate)
		}
		index.seen = bloom.NewWithEstimates(*bloomExpectedKeys, *bloomFalsePositiveRate)
	}
	index.updateGauges()
	return index, nil
}

// neverAdded reports whether the bloom filter proves `key` was never added. Callers hold the lock.
func (i *Index) neverAdded(key string) bool {
	if i.seen == nil || key >= MaxKey || i.seen.TestString(key) {
		return false
	}
	indexBloomSkips.Inc()
	return true
}

func (i *Index) updateGauges() {
	indexHeight.WithLabelValues(i.shard).Set(float64(i.list.Height()))
	indexEntries.WithLabelValues(i.shard).Set(float64(i.list.Len()))
	indexNodes.WithLabelValues(i.shard).Set(float64(i.list.Nodes()))
}

// Add inserts `key`; it returns false when the key was already present.
func (i *Index) Add(key string) (bool, error) {
	i.mux.Lock()
	defer i.mux.Unlock()

	inserted, err := i.list.Insert(key)
	switch {
	case err != nil:
		indexOperations.WithLabelValues("add", "error").Inc()
		return false, err
	case !inserted:
		indexOperations.WithLabelValues("add", "duplicate").Inc()
		return false, nil
	}
	if i.seen != nil {
		i.seen.AddString(key)
	}
	indexOperations.WithLabelValues("add", "inserted").Inc()
	i.updateGauges()
	return true, nil
}

// Contains reports whether `key` is in the index.
func (i *Index) Contains(key string) bool {
	i.mux.RLock()
	defer i.mux.RUnlock()

	found := !i.neverAdded(key) && i.list.Search(key)
	if found {
		indexOperations.WithLabelValues("contains", "found").Inc()
	} else {
		indexOperations.WithLabelValues("contains", "absent").Inc()
	}
	return found
}

// Remove deletes `key`; it returns false when the key was not present.
func (i *Index) Remove(key string) (bool, error) {
	i.mux.Lock()
	defer i.mux.Unlock()

	if i.neverAdded(key) {
		indexOperations.WithLabelValues("remove", "absent").Inc()
		return false, nil
	}
	removed, err := i.list.Remove(key)
	// Even an absent key may have merged runs on the way down.
	defer i.updateGauges()
	switch {
	case err != nil:
		indexOperations.WithLabelValues("remove", "error").Inc()
		return false, err
	case !removed:
		indexOperations.WithLabelValues("remove", "absent").Inc()
		return false, nil
	}
	indexOperations.WithLabelValues("remove", "removed").Inc()
	return true, nil
}

// Validate reports whether the underlying skip list is well-formed.
func (i *Index) Validate() bool {
	i.mux.RLock()
	defer i.mux.RUnlock()
	return i.list.IsValid()
}

// Len returns the number of keys in the index.
func (i *Index) Len() int {
	i.mux.RLock()
	defer i.mux.RUnlock()
	return i.list.Len()
}

// Clear drops every key and resets the bloom filter.
func (i *Index) Clear() {
	i.mux.Lock()
	defer i.mux.Unlock()

	i.list.Clear()
	if i.seen != nil {
		i.seen.ClearAll()
	}
	i.updateGauges()
}
