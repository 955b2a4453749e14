// Sharding distributes keys uniformly across independent indexes. Each index has its own lock, so goroutines
// working on keys of different shards never wait on each other.

package storage

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/nobletooth/detskip/pkg/utils"
)

// Sharded is a KeySet spread over several Index shards, picked by the xxhash of the key.
type Sharded struct {
	shards []*Index
}

// NewSharded builds `shardCount` empty shards. A non-positive count falls back to a single shard.
func NewSharded(shardCount int) (*Sharded, error) {
	if shardCount <= 0 {
		utils.RaiseInvariant("shard", "non_positive_shard_count",
			"Invalid shard count has been given to the sharded index.", "shardCount", shardCount)
		shardCount = 1
	}
	sharded := &Sharded{shards: make([]*Index, shardCount)}
	for i := range shardCount {
		shard, err := NewIndex(strconv.Itoa(i))
		if err != nil {
			return nil, fmt.Errorf("failed to build shard %d: %w", i, err)
		}
		sharded.shards[i] = shard
	}
	return sharded, nil
}

// getShard picks the shard `key` belongs to.
func (s *Sharded) getShard(key string) *Index {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

func (s *Sharded) Add(key string) (bool, error) {
	return s.getShard(key).Add(key)
}

func (s *Sharded) Contains(key string) bool {
	return s.getShard(key).Contains(key)
}

func (s *Sharded) Remove(key string) (bool, error) {
	return s.getShard(key).Remove(key)
}

// Validate reports whether every shard is well-formed.
func (s *Sharded) Validate() bool {
	for _, shard := range s.shards {
		if !shard.Validate() {
			return false
		}
	}
	return true
}

// Len sums the lengths of all shards. Concurrent writers may make the sum slightly stale.
func (s *Sharded) Len() int {
	total := 0
	for _, shard := range s.shards {
		total += shard.Len()
	}
	return total
}

// Clear drops the keys of every shard.
func (s *Sharded) Clear() {
	for _, shard := range s.shards {
		shard.Clear()
	}
}
