package numerator

import (
	"errors"
	"fmt"
)

// ErrInvalidCount is returned when fewer than one identifier is requested.
var ErrInvalidCount = errors.New("count must be a positive integer")

// Allocate returns the count smallest positive integers not present in used,
// in ascending order, and marks each of them as used.
//
// The scan is linear in the highest value it has to step over, so a dense
// used-set of size k costs O(k) per call.
func Allocate(used UsedSet, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	if used == nil {
		used = UsedSet{}
	}

	result := make([]int64, 0, count)
	for cursor := int64(1); len(result) < count; cursor++ {
		if used.Has(cursor) {
			continue
		}
		used.Add(cursor)
		result = append(result, cursor)
	}
	return result, nil
}

// AllocateFormatted runs Allocate and renders the result with f.
func AllocateFormatted(f Format, used UsedSet, count int) ([]string, []int64, error) {
	numbers, err := Allocate(used, count)
	if err != nil {
		return nil, nil, err
	}
	refs := make([]string, len(numbers))
	for i, n := range numbers {
		refs[i] = f.Format(n)
	}
	return refs, numbers, nil
}
