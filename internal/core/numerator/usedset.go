package numerator

// UsedSet holds the integer suffixes already taken in one scheme or group.
// It is built per request and owned by a single goroutine; it is not safe for
// concurrent use.
type UsedSet map[int64]struct{}

// NewUsedSet creates a set containing the given values.
func NewUsedSet(values ...int64) UsedSet {
	s := make(UsedSet, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add marks n as used.
func (s UsedSet) Add(n int64) {
	s[n] = struct{}{}
}

// Has reports whether n is used.
func (s UsedSet) Has(n int64) bool {
	_, ok := s[n]
	return ok
}

// Len returns the number of used values.
func (s UsedSet) Len() int {
	return len(s)
}

// Merge adds every value of other to s.
func (s UsedSet) Merge(other UsedSet) {
	for n := range other {
		s[n] = struct{}{}
	}
}
