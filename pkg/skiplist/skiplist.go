// Package skiplist implements a deterministic 1-2-3 skip list: an ordered set whose height is bounded
// structurally instead of probabilistically.
//
// Every level is a singly linked chain of nodes ending at the tail sentinel. A node above the lowest level
// summarizes a run of nodes one level below: its down link points at the first node of the run and its key
// equals the key of the run's last node, which is the same element continued one level lower. The nodes of
// the run that precede that last node form the node's gap, and every gap holds 1, 2 or 3 nodes.
//
// Properties
// - Search, Insert and Remove are single top-down passes: O(log n) worst case.
// - Insert splits full gaps on its way down, Remove widens single-node gaps before entering them.
// - Height never exceeds ceil(log3(n+1)) + 1 for n elements.
// - Nodes live in a slot arena with a free list; an optional capacity turns exhaustion into an error.
//
// A SkipList is not safe for concurrent use; callers serialize access.
package skiplist

import (
	"errors"
	"fmt"

	"github.com/nobletooth/detskip/pkg/utils"
)

var (
	// ErrInvalidBounds is returned by New when max1 is not strictly greater than max.
	ErrInvalidBounds = errors.New("max1 must be greater than max")
	// ErrKeyOutOfRange is returned for keys that are not strictly less than max.
	ErrKeyOutOfRange = errors.New("key is not less than the max sentinel")
	// ErrArenaExhausted is returned when an insertion needs more nodes than the capacity allows.
	ErrArenaExhausted = errors.New("node arena exhausted")
	// ErrCorrupted is returned when the structure was found in a state Insert/Remove never produce.
	ErrCorrupted = errors.New("skip list structure is corrupted")
)

type config struct {
	nodeCapacity int
}

// Option tunes a SkipList at construction.
type Option func(*config)

// WithNodeCapacity bounds the number of live nodes (head, routers and elements; sentinels excluded).
// Zero, the default, means unbounded.
func WithNodeCapacity(capacity int) Option {
	return func(c *config) { c.nodeCapacity = capacity }
}

// SkipList is a deterministic 1-2-3 skip list holding a set of keys.
type SkipList[K any] struct {
	compare   utils.CompareFn[K]
	max, max1 K // max is above every client key; max1 is above max.
	arena     *arena[K]
	head      nodeID
	levels    int // Levels from head down to the lowest one, both included.
	length    int // Number of client keys.
}

// New creates an empty skip list. Every key later passed to it must compare strictly less than `max`,
// and `max1` must compare strictly greater than `max`.
func New[K any](compare utils.CompareFn[K], max, max1 K, opts ...Option) (*SkipList[K], error) {
	if compare == nil {
		return nil, errors.New("expected a non-nil compare function")
	}
	if compare(max1, max) <= 0 {
		return nil, fmt.Errorf("%w: max=%v, max1=%v", ErrInvalidBounds, max, max1)
	}
	var conf config
	for _, opt := range opts {
		opt(&conf)
	}
	if conf.nodeCapacity < 0 {
		return nil, fmt.Errorf("expected a non-negative node capacity, got %d", conf.nodeCapacity)
	}

	s := &SkipList[K]{
		compare: compare,
		max:     max,
		max1:    max1,
		arena:   newArena(max1, conf.nodeCapacity),
	}
	s.initHead()
	return s, nil
}

// initHead installs the empty level: a lone head whose down link is bottom.
func (s *SkipList[K]) initHead() {
	s.head = s.arena.alloc(s.max, tailID, bottomID)
	s.levels = 1
	s.length = 0
}

func (s *SkipList[K]) node(id nodeID) *node[K] { return &s.arena.nodes[id] }
func (s *SkipList[K]) key(id nodeID) K         { return s.arena.nodes[id].key }
func (s *SkipList[K]) right(id nodeID) nodeID  { return s.arena.nodes[id].right }
func (s *SkipList[K]) down(id nodeID) nodeID   { return s.arena.nodes[id].down }
func (s *SkipList[K]) equal(x, y K) bool       { return s.compare(x, y) == 0 }

// checkKey rejects keys that would collide with the head or tail sentinels.
func (s *SkipList[K]) checkKey(key K) error {
	if s.compare(key, s.max) >= 0 {
		return fmt.Errorf("%w: %v", ErrKeyOutOfRange, key)
	}
	return nil
}

// advance moves right from `current` to the first node whose key is not less than `key`.
// Tail holds max1, so the walk always ends on the current level.
func (s *SkipList[K]) advance(current nodeID, key K) nodeID {
	for s.compare(key, s.key(current)) > 0 {
		current = s.right(current)
	}
	return current
}

// Search reports whether `key` is in the set.
func (s *SkipList[K]) Search(key K) bool {
	if s.checkKey(key) != nil {
		return false
	}
	current := s.head
	for {
		current = s.advance(current, key)
		if s.down(current) == bottomID {
			return s.equal(s.key(current), key)
		}
		current = s.down(current)
	}
}

// gapIsFull reports whether the gap under `id` already holds three nodes.
func (s *SkipList[K]) gapIsFull(id nodeID) bool {
	third := s.right(s.right(s.down(id)))
	return s.compare(s.key(id), s.key(third)) > 0
}

// split makes room under `current`. A new node takes over current's key and right link; on the lowest level
// `current` then holds `key` itself, on upper levels it keeps the first two nodes of its full gap and the middle
// one gets promoted.
func (s *SkipList[K]) split(current nodeID, key K) {
	cur := s.node(current)
	promoted, newDown := key, bottomID
	if first := cur.down; first != bottomID {
		second := s.right(first)
		promoted, newDown = s.key(second), s.right(second)
	}
	id := s.arena.alloc(cur.key, cur.right, newDown)
	cur = s.node(current) // The slot slice may have moved.
	cur.right = id
	cur.key = promoted
}

// plannedAllocations counts the nodes an insertion of `key` is going to allocate, without mutating anything.
// A split never moves the cursor nor its down link, so this walk follows the same path Insert takes.
func (s *SkipList[K]) plannedAllocations(key K) int {
	allocations := 0
	for current := s.head; current != bottomID; current = s.down(current) {
		current = s.advance(current, key)
		atLowest := s.down(current) == bottomID
		if atLowest && s.equal(s.key(current), key) {
			break
		}
		if atLowest || s.gapIsFull(current) {
			allocations++
			if current == s.head { // The top level got a second node; a new head goes on top.
				allocations++
			}
		}
	}
	return allocations
}

// Insert adds `key` to the set. It returns false when the key was already present.
// On ErrArenaExhausted or ErrKeyOutOfRange the list is left untouched.
func (s *SkipList[K]) Insert(key K) (bool, error) {
	if err := s.checkKey(key); err != nil {
		return false, err
	}
	if s.arena.bounded() {
		if needed := s.plannedAllocations(key); !s.arena.fits(needed) {
			return false, fmt.Errorf("%w: need %d more nodes, %d of %d in use",
				ErrArenaExhausted, needed, s.arena.live, s.arena.capacity)
		}
	}

	inserted := true
	for current := s.head; current != bottomID; current = s.down(current) {
		current = s.advance(current, key)
		atLowest := s.down(current) == bottomID
		if atLowest && s.equal(s.key(current), key) {
			inserted = false
			break
		}
		if atLowest || s.gapIsFull(current) {
			s.split(current, key)
		}
	}
	// The top level must hold the head alone.
	if s.right(s.head) != tailID {
		s.head = s.arena.alloc(s.max, tailID, s.head)
		s.levels++
	}

	if inserted {
		s.length++
	}
	return inserted, nil
}

// Clear releases every node, level by level, and leaves the list empty and ready for reuse.
func (s *SkipList[K]) Clear() {
	for level := s.head; level != bottomID; {
		below := s.down(level)
		for current := level; current != tailID; {
			next := s.right(current)
			s.arena.release(current)
			current = next
		}
		level = below
	}
	if s.arena.live != 0 {
		utils.RaiseInvariant("skiplist", "leaked_nodes", "Nodes were left behind after clearing every level.",
			"live", s.arena.live)
		s.arena.reset(s.max1)
	}
	s.initHead()
}

// Len returns the number of keys in the set.
func (s *SkipList[K]) Len() int {
	return s.length
}

// Height returns the number of levels above the lowest one; an empty list has height 0.
func (s *SkipList[K]) Height() int {
	return s.levels - 1
}

// Nodes returns the number of live nodes, the sentinels excluded.
func (s *SkipList[K]) Nodes() int {
	return s.arena.live
}
