package scan

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchGlob(t *testing.T) {
	names := []string{"key1", "key2", "anotherkey"}

	for _, testCase := range []struct {
		name     string
		glob     string
		expected []string
	}{
		{name: "match all", glob: "*", expected: []string{"key1", "key2", "anotherkey"}},
		{name: "match with ?", glob: "key?", expected: []string{"key1", "key2"}},
		{name: "match with * at the end", glob: "key*", expected: []string{"key1", "key2"}},
		{name: "match with * at the beginning", glob: "*key", expected: []string{"anotherkey"}},
		{name: "match with multiple *", glob: "*key*", expected: []string{"key1", "key2", "anotherkey"}},
		{name: "match with a set", glob: "key[2-9]", expected: []string{"key2"}},
		{name: "no match", glob: "nomatch", expected: nil},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			seq, err := MatchGlob(testCase.glob, slices.Values(names))
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, slices.Collect(seq))
		})
	}
}

func TestMatchGlob_InvalidPattern(t *testing.T) {
	_, err := MatchGlob("key[", slices.Values([]string{"key1"}))
	assert.Error(t, err)
}

func TestMatchGlob_StopsEarly(t *testing.T) {
	seq, err := MatchGlob("*.rec", slices.Values([]string{"a.rec", "b.rec", "c.rec"}))
	require.NoError(t, err)
	for name := range seq {
		assert.Equal(t, "a.rec", name)
		break
	}
}
