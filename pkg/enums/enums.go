// Package enums holds the closed string vocabularies shared by the API, the
// database and the storefront.
package enums

import (
	"fmt"
	"slices"
)

// valueSet is the declared members of a string enum, in display order.
type valueSet[T ~string] []T

func (s valueSet[T]) contains(v T) bool {
	return slices.Contains(s, v)
}

func (s valueSet[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.contains(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

// list returns a copy so callers cannot reorder the set.
func (s valueSet[T]) list() []T {
	return slices.Clone(s)
}
