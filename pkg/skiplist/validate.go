package skiplist

// maxGap is the widest gap a valid list holds under one node.
const maxGap = 3

// IsValid walks the whole structure and reports whether every gap above the lowest level holds 1 to 3 nodes,
// and whether the top level holds the head alone.
func (s *SkipList[K]) IsValid() bool {
	if s.right(s.head) != tailID || !s.equal(s.key(s.head), s.max) {
		return false
	}
	for level := s.head; s.down(level) != bottomID; level = s.down(level) {
		for current := level; current != tailID; current = s.right(current) {
			if gap := s.gapSize(current); gap < 1 || gap > maxGap {
				return false
			}
		}
	}
	return true
}

// gapSize counts the nodes under `id` that precede the one carrying id's key. It returns -1 if that node
// was not found within a few steps past the largest valid gap, or the level ended first.
func (s *SkipList[K]) gapSize(id nodeID) int {
	key := s.key(id)
	lower := s.down(id)
	for gap := 0; gap <= maxGap+1; gap++ {
		if lower < firstNodeID { // Tail, bottom or a released slot.
			return -1
		}
		if s.equal(s.key(lower), key) {
			return gap
		}
		lower = s.right(lower)
	}
	return -1
}
