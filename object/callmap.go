package object

import (
	"sort"
)

// CallMap is a sorted-by-ReturnAddrOffset view over a module's call
// sites, with a binary search by offset and a check of the sortedness
// invariant. The linker does not use it; it tracks the unpatched tail
// by index.
type CallMap struct {
	CallSites []CallSite
	Targets   []CallSiteTarget
}

// Sorted reports whether CallSites is non-decreasing in ReturnAddrOffset.
func (m CallMap) Sorted() bool {
	for i := 1; i < len(m.CallSites); i++ {
		if m.CallSites[i].ReturnAddrOffset < m.CallSites[i-1].ReturnAddrOffset {
			return false
		}
	}
	return true
}

// FindCallSite returns the index of the first call site whose
// ReturnAddrOffset is >= offset, or len(CallSites) if none.
func (m CallMap) FindCallSite(offset uint32) int {
	return sort.Search(len(m.CallSites), func(i int) bool {
		return m.CallSites[i].ReturnAddrOffset >= offset
	})
}

// CodeRangeMap is the analogous sorted view over code ranges.
type CodeRangeMap struct {
	Ranges []CodeRange
}

// Sorted reports whether Ranges is non-decreasing in Begin.
func (m CodeRangeMap) Sorted() bool {
	for i := 1; i < len(m.Ranges); i++ {
		if m.Ranges[i].Begin < m.Ranges[i-1].Begin {
			return false
		}
	}
	return true
}

// FindCodeRange returns the index of the last code range whose Begin is
// <= offset, or -1 if offset precedes every range.
func (m CodeRangeMap) FindCodeRange(offset uint32) int {
	i := sort.Search(len(m.Ranges), func(i int) bool {
		return m.Ranges[i].Begin > offset
	})
	return i - 1
}
