package utils

// CompareFn defines a three-way comparison for keys of type T.
// It must return a negative value if x < y, 0 if x == y, and a positive value if x > y.
// cmp.Compare, strings.Compare and bytes.Compare all satisfy it.
type CompareFn[T any] func(x, y T) int
