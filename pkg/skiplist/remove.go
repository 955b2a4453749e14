package skiplist

import (
	"fmt"

	"github.com/nobletooth/detskip/pkg/utils"
)

// Remove deletes `key` from the set. It returns false when the key was not present.
// The descent widens every single-node gap before entering it, so the lowest level can always give up a node
// without leaving an empty gap above it.
func (s *SkipList[K]) Remove(key K) (bool, error) {
	if err := s.checkKey(key); err != nil {
		return false, err
	}
	if s.down(s.head) == bottomID { // Empty.
		return false, nil
	}

	visits := 0 // Levels on which the cursor landed on a node keyed `key`.
	current := s.down(s.head)
	for {
		previous := noNode
		for s.compare(key, s.key(current)) > 0 {
			previous, current = current, s.right(current)
		}
		if s.equal(s.key(current), key) {
			visits++
		}

		if s.down(current) == bottomID {
			return s.removeAtLowest(current, previous, key, visits)
		}

		next := s.down(current)
		if s.hasSingleGap(current) {
			if err := s.widenGap(current, previous); err != nil {
				return false, err
			}
		}
		current = next
	}
}

// removeAtLowest resolves the descent once the cursor reached the lowest level.
func (s *SkipList[K]) removeAtLowest(current, previous nodeID, key K, visits int) (bool, error) {
	switch {
	case visits == 0:
		s.lowerHead()
		return false, nil
	case !s.equal(s.key(current), key):
		utils.RaiseInvariant("skiplist", "router_without_element", "A router key has no element on the lowest level.",
			"key", key, "visits", visits)
		return false, fmt.Errorf("%w: router %v has no element", ErrCorrupted, key)
	case visits == 1:
		s.removeShort(current)
	default:
		if previous == noNode {
			utils.RaiseInvariant("skiplist", "tall_without_previous", "A tall element is the first node of its run.",
				"key", key, "visits", visits)
			return false, fmt.Errorf("%w: tall element %v opens its run", ErrCorrupted, key)
		}
		s.removeTall(current, previous, key)
	}
	s.length--
	return true, nil
}

// hasSingleGap reports whether the gap under `id` holds exactly one node.
func (s *SkipList[K]) hasSingleGap(id nodeID) bool {
	return s.equal(s.key(id), s.key(s.right(s.down(id))))
}

// hasSpare reports whether the gap under `id` holds at least two nodes, so it can lend one.
func (s *SkipList[K]) hasSpare(id nodeID) bool {
	return s.compare(s.key(id), s.key(s.right(s.down(id)))) > 0
}

// widenGap grows the single-node gap under `current` to two or three nodes, borrowing from or merging with a
// neighbouring run. `previous` is the node left of `current` inside the same parent run, or noNode.
func (s *SkipList[K]) widenGap(current, previous nodeID) error {
	if previous != noNode {
		if s.hasSpare(previous) {
			s.borrowFromPrevious(current, previous)
		} else {
			s.mergeWithPrevious(current, previous)
		}
		return nil
	}

	next := s.right(current)
	if next == tailID {
		utils.RaiseInvariant("skiplist", "lonely_run", "A single-node gap has no neighbouring run to widen it with.",
			"key", s.key(current))
		return fmt.Errorf("%w: run %v has no neighbour", ErrCorrupted, s.key(current))
	}
	if s.hasSpare(next) {
		s.borrowFromNext(current, next)
	} else {
		s.mergeWithNext(current, next)
	}
	return nil
}

// borrowFromNext moves the first node of next's run to the end of current's run.
func (s *SkipList[K]) borrowFromNext(current, next nodeID) {
	first := s.down(next)
	s.node(current).key = s.key(first)
	s.node(next).down = s.right(first)
}

// mergeWithNext joins next's run onto current's and drops the router between them.
func (s *SkipList[K]) mergeWithNext(current, next nodeID) {
	s.absorbRight(current, next)
}

// borrowFromPrevious moves the last node of previous's run to the front of current's run.
func (s *SkipList[K]) borrowFromPrevious(current, previous nodeID) {
	beforeLast := s.right(s.down(previous))
	if !s.equal(s.key(s.right(beforeLast)), s.key(previous)) { // Gap of three.
		beforeLast = s.right(beforeLast)
	}
	s.node(previous).key = s.key(beforeLast)
	s.node(current).down = s.right(beforeLast)
}

// mergeWithPrevious joins current's run onto previous's and drops `current`.
func (s *SkipList[K]) mergeWithPrevious(current, previous nodeID) {
	prev, cur := s.node(previous), s.node(current)
	prev.key = cur.key
	prev.right = cur.right
	s.arena.release(current)
}

// absorbRight makes `id` take over the key and right link of its right neighbour, which is then freed.
func (s *SkipList[K]) absorbRight(id, neighbour nodeID) {
	target, other := s.node(id), s.node(neighbour)
	target.key = other.key
	target.right = other.right
	s.arena.release(neighbour)
}

// removeShort drops an element that only lives on the lowest level. Since no router names it, its right
// neighbour sits in the same run and can be folded into its slot.
func (s *SkipList[K]) removeShort(current nodeID) {
	s.absorbRight(current, s.right(current))
	s.lowerHead()
}

// removeTall drops an element that also serves as a router key. Every router naming it is renamed to the key
// of the element before it, which becomes the new last node of the run.
func (s *SkipList[K]) removeTall(current, previous nodeID, key K) {
	s.lowerHead()
	s.rewriteRouters(key, s.key(previous))
	s.node(previous).right = s.right(current)
	s.arena.release(current)
}

// rewriteRouters renames every node keyed `from` on the search path of `from` to `to`.
func (s *SkipList[K]) rewriteRouters(from, to K) {
	for current := s.head; current != bottomID; current = s.down(current) {
		current = s.advance(current, from)
		if s.equal(s.key(current), from) {
			s.node(current).key = to
		}
	}
}

// lowerHead drops the top level when the level under head has shrunk to its closing node.
func (s *SkipList[K]) lowerHead() {
	below := s.down(s.head)
	if below == bottomID || s.right(below) != tailID {
		return
	}
	old := s.head
	s.head = below
	s.arena.release(old)
	s.levels--
}
