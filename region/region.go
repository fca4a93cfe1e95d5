// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package region defines 1-based genomic intervals and the partitioning used
// to schedule work over a genome: fixed-size chunks for the scheduler and
// overlapping windows for assembly.
package region

import (
	"fmt"
	"sort"

	"github.com/biogo/hts/sam"
)

// Region is a closed interval [Pos1, Pos2] on one reference, 1-based.
type Region struct {
	RefID int
	Pos1  int
	Pos2  int
	// Strand is '+', '-' or 0 when unstranded.
	Strand byte
}

// Width returns the number of bases covered by r.
func (r Region) Width() int {
	if r.Pos2 < r.Pos1 {
		return 0
	}
	return r.Pos2 - r.Pos1 + 1
}

// Pad extends r by n bases on both sides. The left edge is clamped at 1.
func (r Region) Pad(n int) Region {
	r.Pos1 -= n
	if r.Pos1 < 1 {
		r.Pos1 = 1
	}
	r.Pos2 += n
	return r
}

// Overlap returns the number of bases r and o share. Regions on different
// references never overlap.
func (r Region) Overlap(o Region) int {
	if r.RefID != o.RefID {
		return 0
	}
	lo, hi := r.Pos1, r.Pos2
	if o.Pos1 > lo {
		lo = o.Pos1
	}
	if o.Pos2 < hi {
		hi = o.Pos2
	}
	if hi < lo {
		return 0
	}
	return hi - lo + 1
}

// Contains reports whether the position (refID, pos) falls inside r.
func (r Region) Contains(refID, pos int) bool {
	return r.RefID == refID && pos >= r.Pos1 && pos <= r.Pos2
}

// Less orders regions by (RefID, Pos1, Pos2, Strand).
func (r Region) Less(o Region) bool {
	if r.RefID != o.RefID {
		return r.RefID < o.RefID
	}
	if r.Pos1 != o.Pos1 {
		return r.Pos1 < o.Pos1
	}
	if r.Pos2 != o.Pos2 {
		return r.Pos2 < o.Pos2
	}
	return r.Strand < o.Strand
}

// String formats r as "chr:pos1-pos2". names maps RefID to reference name; if
// it is nil or too short the numeric ID is printed instead.
func (r Region) String(names []string) string {
	s := fmt.Sprintf("%d:%d-%d", r.RefID, r.Pos1, r.Pos2)
	if r.RefID >= 0 && r.RefID < len(names) {
		s = fmt.Sprintf("%s:%d-%d", names[r.RefID], r.Pos1, r.Pos2)
	}
	if r.Strand != 0 {
		s += "(" + string(r.Strand) + ")"
	}
	return s
}

// RefNames returns the reference names of h indexed by reference ID.
func RefNames(h *sam.Header) []string {
	refs := h.Refs()
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
	}
	return names
}

// Sort sorts regions in place by (RefID, Pos1, Pos2).
func Sort(regions []Region) {
	sort.Slice(regions, func(i, j int) bool { return regions[i].Less(regions[j]) })
}

// MergeOverlapping returns the union of regions as a sorted list of disjoint
// regions. Abutting regions are merged too. Strand is dropped.
func MergeOverlapping(regions []Region) []Region {
	if len(regions) == 0 {
		return nil
	}
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	Sort(sorted)
	merged := []Region{{RefID: sorted[0].RefID, Pos1: sorted[0].Pos1, Pos2: sorted[0].Pos2}}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.RefID == last.RefID && r.Pos1 <= last.Pos2+1 {
			if r.Pos2 > last.Pos2 {
				last.Pos2 = r.Pos2
			}
			continue
		}
		merged = append(merged, Region{RefID: r.RefID, Pos1: r.Pos1, Pos2: r.Pos2})
	}
	return merged
}

// DivideWithOverlaps splits r into windows of the given width, each starting
// width-overlap bases after the previous one. The last window is clamped to
// r.Pos2. A region narrower than width yields itself.
func DivideWithOverlaps(r Region, width, overlap int) []Region {
	if width <= 0 || overlap >= width {
		panic(fmt.Sprintf("region.DivideWithOverlaps: bad width %d / overlap %d", width, overlap))
	}
	if r.Width() <= width {
		return []Region{r}
	}
	var out []Region
	step := width - overlap
	for start := r.Pos1; ; start += step {
		end := start + width - 1
		if end >= r.Pos2 {
			out = append(out, Region{RefID: r.RefID, Pos1: start, Pos2: r.Pos2, Strand: r.Strand})
			break
		}
		out = append(out, Region{RefID: r.RefID, Pos1: start, Pos2: end, Strand: r.Strand})
	}
	return out
}

// Partition cuts every region into work units of at most chunk bases. Each unit
// other than the first of a region is extended pad bases to the left so that
// events straddling a unit boundary are seen by one unit in full.
func Partition(regions []Region, chunk, pad int) []Region {
	if chunk <= 0 {
		panic(fmt.Sprintf("region.Partition: bad chunk size %d", chunk))
	}
	var out []Region
	for _, r := range regions {
		for start := r.Pos1; start <= r.Pos2; start += chunk {
			end := start + chunk - 1
			if end > r.Pos2 {
				end = r.Pos2
			}
			u := Region{RefID: r.RefID, Pos1: start, Pos2: end}
			if start > r.Pos1 {
				u.Pos1 -= pad
				if u.Pos1 < r.Pos1 {
					u.Pos1 = r.Pos1
				}
			}
			out = append(out, u)
		}
	}
	return out
}

// WholeGenome returns one region per reference of h, for the first maxRefs
// references. maxRefs <= 0 means all references.
func WholeGenome(h *sam.Header, maxRefs int) []Region {
	var out []Region
	for i, ref := range h.Refs() {
		if maxRefs > 0 && i >= maxRefs {
			break
		}
		out = append(out, Region{RefID: ref.ID(), Pos1: 1, Pos2: ref.Len()})
	}
	return out
}
