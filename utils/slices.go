// Package utils implements various helper functions.
package utils

import (
	"math"
	"sort"

	"golang.org/x/exp/constraints"
)

// GetKeys returns the keys of the input map.
// Order is not guaranteed.
func GetKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {

	keys = make([]K, len(m))

	var i int
	for key := range m {
		keys[i] = key
		i++
	}

	return
}

// GetSortedKeys returns the sorted keys of a map.
func GetSortedKeys[K constraints.Ordered, V any](m map[K]V) (keys []K) {
	keys = GetKeys(m)
	SortSlice(keys)
	return
}

// SortSlice sorts a slice in place.
func SortSlice[T constraints.Ordered](s []T) {
	sort.Slice(s, func(i, j int) bool {
		return s[i] < s[j]
	})
}

// AllDistinct returns true if all elements in s are distinct, and false otherwise.
func AllDistinct[V comparable](s []V) bool {
	m := make(map[V]struct{}, len(s))
	for _, si := range s {
		if _, exists := m[si]; exists {
			return false
		}
		m[si] = struct{}{}
	}
	return true
}

// EqualSlice checks the equality between two slices.
func EqualSlice[V comparable](a, b []V) (v bool) {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AbsInt returns |x|.
func AbsInt[T constraints.Signed](x T) T {
	if x < 0 {
		return -x
	}
	return x
}

// MaxAbsInt returns the largest absolute value of s, or 0 if s is empty.
func MaxAbsInt[T constraints.Signed](s []T) (max T) {
	for _, si := range s {
		if a := AbsInt(si); a > max {
			max = a
		}
	}
	return
}

// MaxAbs returns the largest absolute value of s as a float64.
// NaN entries propagate: the result is NaN if any entry of s is NaN.
func MaxAbs[T constraints.Float](s []T) (max float64) {
	for _, si := range s {
		a := math.Abs(float64(si))
		if math.IsNaN(a) {
			return a
		}
		if a > max {
			max = a
		}
	}
	return
}

// AllNonNegative returns true if every element of s is >= 0.
func AllNonNegative[T constraints.Signed](s []T) bool {
	for _, si := range s {
		if si < 0 {
			return false
		}
	}
	return true
}

// AllNonPositive returns true if every element of s is <= 0.
func AllNonPositive[T constraints.Signed](s []T) bool {
	for _, si := range s {
		if si > 0 {
			return false
		}
	}
	return true
}

// ShiftSlice returns a new slice with k added to every element of s.
func ShiftSlice[T constraints.Integer](s []T, k T) (r []T) {
	r = make([]T, len(s))
	for i := range s {
		r[i] = s[i] + k
	}
	return
}
