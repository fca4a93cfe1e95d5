// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package region

import (
	"sort"

	"github.com/biogo/store/interval"
)

// treeEntry adapts a Region to interval.IntInterface. IntTree ranges are
// half-open, so Pos2 is stored as Pos2+1.
type treeEntry struct {
	id  uintptr
	r   Region
	val interface{}
}

func (e *treeEntry) Overlap(b interval.IntRange) bool {
	return e.r.Pos2+1 > b.Start && e.r.Pos1 < b.End
}

func (e *treeEntry) ID() uintptr { return e.id }

func (e *treeEntry) Range() interval.IntRange {
	return interval.IntRange{Start: e.r.Pos1, End: e.r.Pos2 + 1}
}

type query Region

func (q query) Overlap(b interval.IntRange) bool {
	return q.Pos2+1 > b.Start && q.Pos1 < b.End
}

// TreeMap answers overlap queries against a set of regions, keeping one
// interval tree per reference. Each region may carry an arbitrary value.
// A TreeMap is not safe for concurrent Insert, but concurrent queries on a
// fully built map are fine.
type TreeMap struct {
	trees map[int]*interval.IntTree
	n     uintptr
}

// NewTreeMap returns a TreeMap holding regions, each with a nil value.
func NewTreeMap(regions []Region) *TreeMap {
	m := &TreeMap{}
	for _, r := range regions {
		m.Insert(r, nil)
	}
	return m
}

// Insert adds r with its associated value.
func (m *TreeMap) Insert(r Region, val interface{}) {
	if m.trees == nil {
		m.trees = make(map[int]*interval.IntTree)
	}
	t := m.trees[r.RefID]
	if t == nil {
		t = &interval.IntTree{}
		m.trees[r.RefID] = t
	}
	m.n++
	if err := t.Insert(&treeEntry{id: m.n, r: r, val: val}, false); err != nil {
		panic(err)
	}
}

// Len returns the number of regions in the map.
func (m *TreeMap) Len() int {
	if m == nil {
		return 0
	}
	return int(m.n)
}

// Overlaps reports whether any stored region overlaps r.
func (m *TreeMap) Overlaps(r Region) bool {
	if m == nil {
		return false
	}
	t := m.trees[r.RefID]
	if t == nil {
		return false
	}
	return len(t.Get(query(r))) > 0
}

// Query returns the stored regions overlapping r, and their values, in
// insertion order.
func (m *TreeMap) Query(r Region) ([]Region, []interface{}) {
	if m == nil {
		return nil, nil
	}
	t := m.trees[r.RefID]
	if t == nil {
		return nil, nil
	}
	hits := t.Get(query(r))
	entries := make([]*treeEntry, len(hits))
	for i, h := range hits {
		entries[i] = h.(*treeEntry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	regions := make([]Region, len(entries))
	vals := make([]interface{}, len(entries))
	for i, e := range entries {
		regions[i] = e.r
		vals[i] = e.val
	}
	return regions, vals
}
