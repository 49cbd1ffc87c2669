package ipset

import "sort"

// Set is an ordered sequence of disjoint, non-adjacent ranges sorted by
// First. Every mutation preserves: ranges sorted; no two ranges overlap or
// touch (ranges[i].Last+1 < ranges[i+1].First); membership test is O(log n).
type Set struct {
	ranges []Range
}

// NewSet builds a Set from zero or more ranges, merging as needed.
func NewSet(ranges ...Range) *Set {
	s := &Set{}
	for _, r := range ranges {
		s.Add(r)
	}
	return s
}

// Ranges returns a copy of the set's disjoint ranges in ascending order;
// changing the returned slice does not affect the set.
func (s *Set) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Len reports how many disjoint ranges currently make up the set.
func (s *Set) Len() int {
	return len(s.ranges)
}

// Size returns the total number of addresses covered by the set.
func (s *Set) Size() uint64 {
	var total uint64
	for _, r := range s.ranges {
		total += r.Len()
	}
	return total
}

// Empty reports whether the set covers no addresses.
func (s *Set) Empty() bool {
	return len(s.ranges) == 0
}

// First returns the smallest address in the set, or ok=false if empty.
func (s *Set) First() (Address, bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[0].First, true
}

// Contains reports whether addr lies in any of the set's ranges, in
// O(log n) via binary search over sorted, disjoint ranges.
func (s *Set) Contains(addr Address) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Last >= addr
	})
	return i < len(s.ranges) && s.ranges[i].First <= addr
}

// Add inserts range r, merging with any neighbor it overlaps or touches.
//
// Position is found by binary search on First; r is then merged left if it
// abuts or overlaps the preceding range, then repeatedly absorbs following
// ranges while they abut or overlap, extending Last to the maximum absorbed.
// This is O(k) merges per insertion, k = number of absorbed ranges.
func (s *Set) Add(r Range) {
	if r.First > r.Last {
		r.First, r.Last = r.Last, r.First
	}

	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].First >= r.First
	})

	// Merge with the left neighbor if it abuts or overlaps.
	if i > 0 {
		left := s.ranges[i-1]
		if r.First <= left.Last+1 || left.Last+1 == 0 {
			if left.First < r.First {
				r.First = left.First
			}
			if left.Last > r.Last {
				r.Last = left.Last
			}
			i--
			s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
		}
	}

	// Absorb following ranges while they abut or overlap.
	j := i
	for j < len(s.ranges) && rangeAbuts(r, s.ranges[j]) {
		if s.ranges[j].Last > r.Last {
			r.Last = s.ranges[j].Last
		}
		j++
	}
	s.ranges = append(s.ranges[:i], append([]Range{r}, s.ranges[j:]...)...)
}

// rangeAbuts reports whether candidate starts at or before cur.Last+1,
// i.e. whether absorbing candidate into cur keeps the set disjoint and
// non-adjacent. Guards against overflow when cur.Last is the max address.
func rangeAbuts(cur, candidate Range) bool {
	if cur.Last == ^Address(0) {
		return true
	}
	return candidate.First <= cur.Last+1
}

// LoopFrom returns a pull-style iterator starting from the smallest address
// >= ip in any range (or the range containing ip), yielding addresses in
// ascending order, wrapping past the last range to the first, indefinitely.
// Calling the returned function on an empty set yields (0, false) forever.
func (s *Set) LoopFrom(ip Address) func() (Address, bool) {
	if len(s.ranges) == 0 {
		return func() (Address, bool) { return 0, false }
	}

	// Find the first range whose Last >= ip; if ip falls before all ranges,
	// that is also the first range whose First > ip, i.e. wrap to range 0.
	idx := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].Last >= ip
	})
	if idx == len(s.ranges) {
		idx = 0
	}

	cur := s.ranges[idx]
	next := cur.First
	if cur.Contains(ip) {
		next = ip
	}

	return func() (Address, bool) {
		val := next
		if next < cur.Last {
			next++
		} else {
			idx = (idx + 1) % len(s.ranges)
			cur = s.ranges[idx]
			next = cur.First
		}
		return val, true
	}
}
