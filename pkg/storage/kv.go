package storage

import (
	"flag"
	"runtime"
	"strconv"
)

var indexShardCount = flag.Int("index_shard_count", runtime.NumCPU(),
	"The number of independent index shards keys are spread over; 1 disables sharding.")

// KeySet is an ordered set of string keys. Implementations are safe for concurrent use.
type KeySet interface {
	// Add inserts the key and reports whether it was new.
	Add(key string) (bool, error)
	// Contains reports whether the key is in the set.
	Contains(key string) bool
	// Remove deletes the key and reports whether it was present.
	Remove(key string) (bool, error)
	// Validate walks the underlying structures and reports whether they are well-formed.
	Validate() bool
	// Len returns the number of keys.
	Len() int
	// Clear drops every key.
	Clear()
}

var (
	_ KeySet = (*Index)(nil)
	_ KeySet = (*Sharded)(nil)
)

// NewKeySet builds the set configured by flags: a single Index, or a Sharded one over `--index_shard_count` shards.
func NewKeySet() (KeySet, error) {
	if *indexShardCount == 1 {
		return NewIndex(strconv.Itoa(0))
	}
	return NewSharded(*indexShardCount)
}
