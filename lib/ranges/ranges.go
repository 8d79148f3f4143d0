// Package ranges implements a sorted, non-overlapping, non-adjacent set of
// byte ranges. textfile uses it to track which byte spans of a text's
// content are currently held in memory (the resident segments), so that
// reads can be served from memory where possible and the rest loaded from
// disk.
package ranges

import (
	"sort"
)

// Range is a half open interval [Pos, Pos+Size).
type Range struct {
	Pos  int64
	Size int64
}

// End returns the (exclusive) end of the range.
func (r Range) End() int64 {
	return r.Pos + r.Size
}

// IsEmpty returns true if the range contains no bytes.
func (r Range) IsEmpty() bool {
	return r.Size <= 0
}

// Clip restricts r to [0, limit), zeroing it out entirely if it starts
// beyond limit; a range starting exactly at limit keeps its Pos with Size 0.
func (r *Range) Clip(limit int64) {
	if r.Pos > limit {
		r.Pos = 0
		r.Size = 0
		return
	}
	if end := r.End(); end > limit {
		r.Size = limit - r.Pos
	}
}

// Intersection returns the overlap between r and b, or the zero Range if
// they don't overlap.
func (r Range) Intersection(b Range) Range {
	pos := r.Pos
	if b.Pos > pos {
		pos = b.Pos
	}
	end := r.End()
	if bEnd := b.End(); bEnd < end {
		end = bEnd
	}
	if end <= pos {
		return Range{}
	}
	return Range{Pos: pos, Size: end - pos}
}

// merge folds new into dst if they overlap or touch, returning whether it
// did. dst is left unmodified when they don't.
func merge(new, dst *Range) bool {
	if new.Pos > dst.End() || dst.Pos > new.End() {
		return false
	}
	pos := dst.Pos
	if new.Pos < pos {
		pos = new.Pos
	}
	end := dst.End()
	if newEnd := new.End(); newEnd > end {
		end = newEnd
	}
	dst.Pos = pos
	dst.Size = end - pos
	return true
}

// FoundRange is one segment of a query range returned by FindAll, tagged
// with whether it was present in the set.
type FoundRange struct {
	R       Range
	Present bool
}

// Ranges is a sorted slice of disjoint, non-adjacent Range values.
type Ranges []Range

// coalesce merges rs[i] with any overlapping or touching neighbours,
// shrinking the slice as needed. i must be a valid index.
func (rs *Ranges) coalesce(i int) {
	if len(*rs) == 0 {
		return
	}
	r := (*rs)[i]
	j := i + 1
	for j < len(*rs) && merge(&(*rs)[j], &r) {
		j++
	}
	k := i
	for k > 0 && merge(&(*rs)[k-1], &r) {
		k--
	}
	(*rs)[k] = r
	*rs = append((*rs)[:k+1], (*rs)[j:]...)
}

// Insert adds new to the set, merging it with any overlapping or touching
// ranges already present. A zero-size new range is a no-op.
func (rs *Ranges) Insert(new Range) {
	if new.IsEmpty() {
		return
	}
	i := sort.Search(len(*rs), func(i int) bool { return (*rs)[i].Pos >= new.Pos })
	*rs = append(*rs, Range{})
	copy((*rs)[i+1:], (*rs)[i:])
	(*rs)[i] = new
	rs.coalesce(i)
}

// Find locates the first contiguous chunk of r (starting at r.Pos) that is
// either wholly present or wholly absent from rs, returning it as curr along
// with present. next is whatever of r remains beyond curr; it is the zero
// Range once r is fully absent and nothing further is known about it.
func (rs Ranges) Find(r Range) (curr, next Range, present bool) {
	i := sort.Search(len(rs), func(i int) bool { return rs[i].End() > r.Pos })
	var boundEnd int64
	if i < len(rs) && rs[i].Pos <= r.Pos {
		present = true
		boundEnd = rs[i].End()
	} else if i < len(rs) {
		boundEnd = rs[i].Pos
	} else {
		boundEnd = r.End()
	}
	currEnd := r.End()
	if boundEnd < currEnd {
		currEnd = boundEnd
	}
	curr = Range{Pos: r.Pos, Size: currEnd - r.Pos}
	remainder := r.End() - currEnd
	switch {
	case remainder == 0 && present:
		next = Range{Pos: currEnd, Size: 0}
	case remainder == 0:
		next = Range{}
	default:
		next = Range{Pos: currEnd, Size: remainder}
	}
	return curr, next, present
}

// FindAll splits r into alternating present/absent chunks covering it
// completely, using Find repeatedly.
func (rs Ranges) FindAll(r Range) []FoundRange {
	var out []FoundRange
	for !r.IsEmpty() {
		curr, next, present := rs.Find(r)
		out = append(out, FoundRange{R: curr, Present: present})
		if next.IsEmpty() {
			break
		}
		r = next
	}
	return out
}

// Present reports whether the whole of r is covered by rs.
func (rs Ranges) Present(r Range) bool {
	for !r.IsEmpty() {
		curr, next, present := rs.Find(r)
		_ = curr
		if !present {
			return false
		}
		if next.IsEmpty() {
			return true
		}
		r = next
	}
	return true
}

// Intersection returns the parts of rs that overlap r, clipped to r. An
// empty rs is returned unchanged (preserving nil-ness); a non-empty rs with
// no overlap returns nil.
func (rs Ranges) Intersection(r Range) Ranges {
	if len(rs) == 0 {
		return rs
	}
	var out Ranges
	for _, x := range rs {
		if i := x.Intersection(r); !i.IsEmpty() {
			out = append(out, i)
		}
	}
	return out
}

// Equal reports whether rs and bs contain the same ranges in the same
// order, treating nil and empty as equal.
func (rs Ranges) Equal(bs Ranges) bool {
	if len(rs) != len(bs) {
		return false
	}
	for i := range rs {
		if rs[i] != bs[i] {
			return false
		}
	}
	return true
}

// Size returns the total number of bytes covered by rs.
func (rs Ranges) Size() int64 {
	var total int64
	for _, r := range rs {
		total += r.Size
	}
	return total
}

// FindMissing returns the range that must be loaded to make all of r
// resident: if r.Pos is already present, the range from the end of that
// present run through r.End(); otherwise r itself from the point it first
// goes missing. It does not stop at a present run further inside r, since a
// loader needs the whole remainder regardless.
func (rs Ranges) FindMissing(r Range) Range {
	i := sort.Search(len(rs), func(i int) bool { return rs[i].End() > r.Pos })
	pos := r.Pos
	if i < len(rs) && rs[i].Pos <= r.Pos {
		pos = rs[i].End()
	}
	if pos > r.End() {
		pos = r.End()
	}
	return Range{Pos: pos, Size: r.End() - pos}
}
