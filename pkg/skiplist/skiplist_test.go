package skiplist

import (
	"cmp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	intMax  = 100
	intMax1 = 101
)

func newIntList(t *testing.T, opts ...Option) *SkipList[int] {
	t.Helper()
	list, err := New(cmp.Compare[int], intMax, intMax1, opts...)
	require.NoError(t, err)
	return list
}

func newStringList(t *testing.T) *SkipList[string] {
	t.Helper()
	list, err := New(strings.Compare, "\xfe", "\xff")
	require.NoError(t, err)
	return list
}

// insertNew inserts `key` and asserts it was not present before.
func insertNew[K any](t *testing.T, list *SkipList[K], key K) {
	t.Helper()
	inserted, err := list.Insert(key)
	require.NoError(t, err)
	assert.Truef(t, inserted, "Expected %v to be new.", key)
}

// removeExisting removes `key` and asserts it was present before.
func removeExisting[K any](t *testing.T, list *SkipList[K], key K) {
	t.Helper()
	removed, err := list.Remove(key)
	require.NoError(t, err)
	assert.Truef(t, removed, "Expected %v to be present.", key)
}

// levels returns the keys of every level, top to bottom, the closing max node included.
func levels[K any](list *SkipList[K]) [][]K {
	var out [][]K
	for level := list.head; level != bottomID; level = list.down(level) {
		var keys []K
		for current := level; current != tailID; current = list.right(current) {
			keys = append(keys, list.key(current))
		}
		out = append(out, keys)
	}
	return out
}

// elements returns the keys of the lowest level, the closing max node excluded.
func elements[K any](list *SkipList[K]) []K {
	all := levels(list)
	lowest := all[len(all)-1]
	return lowest[:len(lowest)-1]
}

func TestNew_Errors(t *testing.T) {
	{
		_, err := New(cmp.Compare[int], intMax, intMax)
		assert.ErrorIs(t, err, ErrInvalidBounds)
	}
	{
		_, err := New(cmp.Compare[int], intMax1, intMax)
		assert.ErrorIs(t, err, ErrInvalidBounds)
	}
	{
		_, err := New[int](nil, intMax, intMax1)
		assert.Error(t, err)
	}
	{
		_, err := New(cmp.Compare[int], intMax, intMax1, WithNodeCapacity(-1))
		assert.Error(t, err)
	}
}

func TestSkipList_Empty(t *testing.T) {
	list := newIntList(t)
	assert.True(t, list.IsValid())
	assert.False(t, list.Search(1))
	assert.Zero(t, list.Len())
	assert.Zero(t, list.Height())
	assert.Equal(t, 1, list.Nodes())
	assert.Equal(t, bottomID, list.down(list.head))

	removed, err := list.Remove(1)
	assert.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, elements(list))
}

func TestSkipList_Letters(t *testing.T) {
	list := newStringList(t)
	for _, testCase := range []struct {
		key    string
		height int
		nodes  int
	}{
		{key: "a", height: 1, nodes: 3},
		{key: "b", height: 1, nodes: 4},
		{key: "c", height: 1, nodes: 5},
		{key: "d", height: 2, nodes: 8},
	} {
		insertNew(t, list, testCase.key)
		assert.True(t, list.IsValid())
		assert.Equal(t, testCase.height, list.Height(), "after inserting %q", testCase.key)
		assert.Equal(t, testCase.nodes, list.Nodes(), "after inserting %q", testCase.key)
	}
	for _, key := range []string{"a", "b", "c", "d"} {
		assert.True(t, list.Search(key))
	}
	assert.False(t, list.Search("e"))
	assert.Equal(t, 4, list.Len())

	{ // Duplicate insertion changes nothing.
		inserted, err := list.Insert("b")
		assert.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, 2, list.Height())
		assert.Equal(t, 8, list.Nodes())
		assert.Equal(t, 4, list.Len())
	}

	removeExisting(t, list, "c")
	assert.False(t, list.Search("c"))
	assert.True(t, list.IsValid())
	assert.Equal(t, 2, list.Height())
	assert.Equal(t, 7, list.Nodes())

	{ // Merges done on the way down stay in place even when the key is absent.
		removed, err := list.Remove("z")
		assert.NoError(t, err)
		assert.False(t, removed)
		assert.True(t, list.IsValid())
		assert.Equal(t, 1, list.Height())
		assert.Equal(t, 5, list.Nodes())
		assert.Equal(t, []string{"a", "b", "d"}, elements(list))
	}

	removeExisting(t, list, "a")
	assert.Equal(t, 4, list.Nodes())
	removeExisting(t, list, "b")
	assert.Equal(t, 3, list.Nodes())
	removeExisting(t, list, "d")
	assert.True(t, list.IsValid())
	assert.Zero(t, list.Height())
	assert.Equal(t, 1, list.Nodes())
	assert.Zero(t, list.Len())
	assert.Equal(t, bottomID, list.down(list.head))
}

func TestSkipList_Idempotence(t *testing.T) {
	list := newIntList(t)
	for _, key := range []int{7, 3, 9} {
		first, err := list.Insert(key)
		require.NoError(t, err)
		second, err := list.Insert(key)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false}, []bool{first, second})
	}
	for _, key := range []int{3, 9, 7} {
		first, err := list.Remove(key)
		require.NoError(t, err)
		second, err := list.Remove(key)
		require.NoError(t, err)
		assert.Equal(t, []bool{true, false}, []bool{first, second})
	}
	assert.True(t, list.IsValid())
	assert.Zero(t, list.Len())
}

func TestSkipList_RoundTrip(t *testing.T) {
	list := newIntList(t)
	for key := range 5 {
		insertNew(t, list, key*10)
	}
	before := levels(list)

	insertNew(t, list, 25)
	assert.True(t, list.Search(25))
	removeExisting(t, list, 25)
	assert.False(t, list.Search(25))
	assert.True(t, list.IsValid())
	assert.Equal(t, []int{0, 10, 20, 30, 40}, elements(list))
	assert.Equal(t, len(before), len(levels(list)))
}

func TestSkipList_KeyOutOfRange(t *testing.T) {
	list := newIntList(t)
	insertNew(t, list, 1)
	for _, key := range []int{intMax, intMax1, intMax + 50} {
		inserted, err := list.Insert(key)
		assert.ErrorIs(t, err, ErrKeyOutOfRange)
		assert.False(t, inserted)

		removed, err := list.Remove(key)
		assert.ErrorIs(t, err, ErrKeyOutOfRange)
		assert.False(t, removed)

		assert.False(t, list.Search(key))
	}
	assert.Equal(t, 1, list.Len())
	assert.Equal(t, 3, list.Nodes())
}

func TestSkipList_Layout(t *testing.T) {
	{
		list := newIntList(t)
		for _, key := range []int{10, 20, 30} {
			insertNew(t, list, key)
		}
		assert.Equal(t, [][]int{{100}, {10, 20, 30, 100}}, levels(list))
	}
	{
		list := newIntList(t)
		for key := 1; key <= 4; key++ {
			insertNew(t, list, key)
		}
		assert.Equal(t, [][]int{{100}, {2, 100}, {1, 2, 3, 4, 100}}, levels(list))
	}
	{
		list := newIntList(t)
		for key := 1; key <= 10; key++ {
			insertNew(t, list, key)
		}
		assert.Equal(t, [][]int{{100}, {4, 100}, {2, 4, 6, 8, 100}, {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 100}},
			levels(list))
	}
}

func TestSkipList_SequentialGrowth(t *testing.T) {
	expected := []struct{ height, nodes int }{
		{1, 3}, {1, 4}, {1, 5}, {2, 8}, {2, 9}, {2, 11}, {2, 12}, {2, 14}, {3, 17}, {3, 19},
		{3, 20}, {3, 22}, {3, 24}, {3, 26}, {3, 27}, {3, 29}, {3, 31}, {4, 35}, {4, 36}, {4, 38},
		{4, 40}, {4, 42}, {4, 43}, {4, 45}, {4, 47}, {4, 50}, {4, 51}, {4, 53}, {4, 55},
	}
	list := newIntList(t)
	for i, want := range expected {
		key := i + 1
		insertNew(t, list, key)
		assert.True(t, list.IsValid(), "after inserting %d", key)
		assert.Equal(t, want.height, list.Height(), "after inserting %d", key)
		assert.Equal(t, want.nodes, list.Nodes(), "after inserting %d", key)
	}
}

func TestSkipList_NodeCapacity(t *testing.T) {
	list := newIntList(t, WithNodeCapacity(3))
	insertNew(t, list, 1)
	assert.Equal(t, 3, list.Nodes())
	before := levels(list)

	inserted, err := list.Insert(2)
	assert.ErrorIs(t, err, ErrArenaExhausted)
	assert.False(t, inserted)
	assert.Equal(t, before, levels(list))
	assert.Equal(t, 1, list.Len())
	assert.False(t, list.Search(2))

	{ // Duplicates need no room.
		inserted, err := list.Insert(1)
		assert.NoError(t, err)
		assert.False(t, inserted)
	}
	{ // Removal frees room again.
		removeExisting(t, list, 1)
		insertNew(t, list, 2)
		assert.True(t, list.IsValid())
	}
}

func TestSkipList_NodeCapacityNeverExceeded(t *testing.T) {
	const capacity = 20
	list := newIntList(t, WithNodeCapacity(capacity))
	accepted := 0
	for key := range 50 {
		inserted, err := list.Insert(key)
		if err != nil {
			assert.ErrorIs(t, err, ErrArenaExhausted)
			continue
		}
		assert.True(t, inserted)
		accepted++
		assert.LessOrEqual(t, list.Nodes(), capacity)
	}
	assert.Equal(t, accepted, list.Len())
	assert.True(t, list.IsValid())
	assert.Positive(t, accepted)
}

func TestSkipList_Clear(t *testing.T) {
	list := newIntList(t)
	for key := range 40 {
		insertNew(t, list, key)
	}
	list.Clear()
	assert.Zero(t, list.Len())
	assert.Zero(t, list.Height())
	assert.Equal(t, 1, list.Nodes())
	assert.True(t, list.IsValid())
	assert.False(t, list.Search(3))

	{ // Usable again, on recycled slots.
		slots := len(list.arena.nodes)
		for key := range 40 {
			insertNew(t, list, key)
		}
		assert.Equal(t, slots, len(list.arena.nodes))
		assert.True(t, list.IsValid())
	}
}
