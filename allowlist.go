package canmon

import "sort"

// AllowList restricts which frame IDs are recorded.
//
// AllowList is immutable after creation via [NewAllowList]. The zero value
// and a list created with no IDs accept every frame.
type AllowList struct {
	ids map[uint32]struct{}
}

// NewAllowList creates an [AllowList] containing ids. Duplicates are
// collapsed.
func NewAllowList(ids ...uint32) AllowList {
	if len(ids) == 0 {
		return AllowList{}
	}
	set := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return AllowList{ids: set}
}

// Allows reports whether a frame with id should be recorded. An empty list
// allows everything.
func (a AllowList) Allows(id uint32) bool {
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[id]
	return ok
}

// Contains reports whether id is explicitly listed.
func (a AllowList) Contains(id uint32) bool {
	_, ok := a.ids[id]
	return ok
}

// Len returns the number of listed IDs.
func (a AllowList) Len() int {
	return len(a.ids)
}

// IsEmpty reports whether the list accepts every ID.
func (a AllowList) IsEmpty() bool {
	return len(a.ids) == 0
}

// IDs returns the listed IDs in ascending order.
func (a AllowList) IDs() []uint32 {
	out := make([]uint32, 0, len(a.ids))
	for id := range a.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
