package skiplist

import "github.com/nobletooth/detskip/pkg/utils"

// nodeID addresses a slot inside the arena. Slots are reused after release, so an id is only
// meaningful while the node it names is linked into the list.
type nodeID int32

const (
	noNode      nodeID = -1
	bottomID    nodeID = 0 // Marks the level below the lowest one; loops to itself on both links.
	tailID      nodeID = 1 // Right end of every level; loops to itself and holds max1.
	firstNodeID nodeID = 2 // Slots from here on hold head, routers and elements.
)

type node[K any] struct {
	key   K
	right nodeID // Same-level successor.
	down  nodeID // First node of the run this node summarizes on the level below.
}

// arena owns every node of a SkipList. Released slots are kept on a free list and handed out again
// before the slice grows.
type arena[K any] struct {
	nodes    []node[K]
	free     []nodeID
	capacity int // Upper bound on live non-sentinel nodes; 0 means unbounded.
	live     int
}

func newArena[K any](max1 K, capacity int) *arena[K] {
	a := &arena[K]{capacity: capacity}
	a.reset(max1)
	return a
}

// reset drops every node and re-creates the two permanent sentinels.
func (a *arena[K]) reset(max1 K) {
	clear(a.nodes)
	a.nodes = append(a.nodes[:0],
		node[K]{right: bottomID, down: bottomID},
		node[K]{key: max1, right: tailID, down: noNode})
	a.free = a.free[:0]
	a.live = 0
}

// bounded reports whether allocations are limited by a node capacity.
func (a *arena[K]) bounded() bool {
	return a.capacity > 0
}

// fits reports whether `n` more nodes can be allocated without going over the capacity.
func (a *arena[K]) fits(n int) bool {
	return !a.bounded() || a.live+n <= a.capacity
}

// alloc stores a new node and returns its id. Callers check fits beforehand; alloc itself never fails.
// NOTE: alloc may grow the slot slice, so *node pointers taken before it must not be used after it.
func (a *arena[K]) alloc(key K, right, down nodeID) nodeID {
	a.live++
	if last := len(a.free) - 1; last >= 0 {
		id := a.free[last]
		a.free = a.free[:last]
		a.nodes[id] = node[K]{key: key, right: right, down: down}
		return id
	}
	a.nodes = append(a.nodes, node[K]{key: key, right: right, down: down})
	return nodeID(len(a.nodes) - 1)
}

// release gives the slot of `id` back to the free list. The node must already be unlinked.
func (a *arena[K]) release(id nodeID) {
	if id < firstNodeID || int(id) >= len(a.nodes) {
		utils.RaiseInvariant("skiplist", "release_reserved_slot", "Attempted to release a sentinel or unknown slot.",
			"id", id, "slots", len(a.nodes))
		return
	}
	a.nodes[id] = node[K]{right: noNode, down: noNode} // Drops the key so it can be collected.
	a.free = append(a.free, id)
	a.live--
}
