// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package overlap

import (
	"sort"
)

// Edge is one overlap between sequences A and B, as stored in an overlap graph
// file. Coordinates are half-open, each in its sequence's own orientation.
type Edge struct {
	A, B         int
	AStart, AEnd int
	ALen         int
	BStart, BEnd int
	BLen         int
	RC           bool
	Diffs        int
}

// Overlap returns the length of the overlap on A.
func (e Edge) Overlap() int { return e.AEnd - e.AStart }

// swap returns e with the roles of A and B exchanged.
func (e Edge) swap() Edge {
	return Edge{
		A: e.B, B: e.A,
		AStart: e.BStart, AEnd: e.BEnd, ALen: e.BLen,
		BStart: e.AStart, BEnd: e.AEnd, BLen: e.ALen,
		RC: e.RC, Diffs: e.Diffs,
	}
}

// ends identifies which end of A and of B the overlap covers: true for the
// suffix.
func (e Edge) ends() (aSuffix, bSuffix bool) {
	return e.AStart > 0, e.BStart > 0
}

type edgeKey struct {
	a, b             int
	aSuffix, bSuffix bool
	rc               bool
}

// Graph is the outcome of overlapping every sequence of the index.
type Graph struct {
	// Substring[i] is set when sequence i is contained in another.
	Substring []bool
	Edges     []Edge
}

// Overlaps overlaps every sequence of the index with every other. Each
// overlap is reported once, with A < B; when several overlaps join the same
// ends of a pair only the longest is kept.
func (e *Engine) Overlaps() Graph {
	n := e.idx.Table.Len()
	g := Graph{Substring: make([]bool, n)}
	best := make(map[edgeKey]Edge)
	for i := 0; i < n; i++ {
		res := e.OverlapRead(i)
		g.Substring[i] = res.IsSubstring
		for _, b := range res.Blocks {
			if b.Kind == Substring {
				continue
			}
			edge := Edge{
				A: i, B: b.Target,
				AStart: b.QueryStart, AEnd: b.QueryEnd, ALen: len(e.seq(i)),
				BStart: b.TargetStart, BEnd: b.TargetEnd, BLen: len(e.seq(b.Target)),
				RC: b.RC, Diffs: b.Diffs,
			}
			if edge.A > edge.B {
				edge = edge.swap()
			}
			as, bs := edge.ends()
			k := edgeKey{edge.A, edge.B, as, bs, edge.RC}
			if old, ok := best[k]; !ok || edge.Overlap() > old.Overlap() ||
				(edge.Overlap() == old.Overlap() && edge.Diffs < old.Diffs) {
				best[k] = edge
			}
		}
	}
	for _, edge := range best {
		g.Edges = append(g.Edges, edge)
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		x, y := g.Edges[i], g.Edges[j]
		if x.A != y.A {
			return x.A < y.A
		}
		if x.B != y.B {
			return x.B < y.B
		}
		if x.AStart != y.AStart {
			return x.AStart < y.AStart
		}
		return x.BStart < y.BStart
	})
	return g
}
