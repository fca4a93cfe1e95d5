// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package assembly

import (
	"sort"

	"github.com/antzucaro/matchr"
	"v.io/x/lib/vlog"
)

// transitiveFuzz is the slack, in bases, when comparing the extension of a
// direct edge with that of a two-edge path.
const transitiveFuzz = 10

// maxBubbleBranch bounds the number of vertices on one side of a bubble.
const maxBubbleBranch = 8

// RemoveContainments deletes every vertex flagged as a substring of another.
// It returns the number of vertices removed.
func (g *Graph) RemoveContainments() int {
	n := 0
	for _, v := range g.Vertices() {
		if v.Substring {
			g.RemoveVertex(v)
			n++
		}
	}
	return n
}

// TransitiveReduction removes every edge v->x that is implied by a path
// v->w->x leaving v from the same end and arriving at x through the same end.
// It returns the number of edge pairs removed.
func (g *Graph) TransitiveReduction() int {
	marked := make(map[*Edge]bool)
	for _, v := range g.Vertices() {
		for _, d := range []Dir{Sense, Antisense} {
			edges := v.EdgesIn(d)
			if len(edges) < 2 {
				continue
			}
			sort.SliceStable(edges, func(i, j int) bool { return edges[i].Extension() < edges[j].Extension() })
			direct := make(map[*Vertex]*Edge, len(edges))
			for _, e := range edges {
				direct[e.To] = e
			}
			longest := edges[len(edges)-1].Extension() + transitiveFuzz
			for _, e := range edges {
				w := e.To
				for _, f := range w.EdgesIn(e.Twin.Dir.Flip()) {
					x := f.To
					if x == v {
						continue
					}
					ex := direct[x]
					if ex == nil || ex == e || marked[ex] || marked[ex.Twin] {
						continue
					}
					if ex.Twin.Dir != f.Twin.Dir {
						continue
					}
					if e.Extension()+f.Extension() <= longest {
						marked[ex] = true
					}
				}
			}
		}
	}
	n := 0
	for _, v := range g.Vertices() {
		for _, e := range append([]*Edge(nil), v.Edges...) {
			if marked[e] {
				g.RemoveEdge(e)
				n++
			}
		}
	}
	return n
}

// ResolveSmallRepeats drops the shorter overlaps at any vertex end where the
// longest overlap exceeds the next one by at least minDiff bases. Such short
// overlaps are typically induced by repeats shorter than a read.
func (g *Graph) ResolveSmallRepeats(minDiff int) int {
	if minDiff <= 0 {
		return 0
	}
	n := 0
	for _, v := range g.Vertices() {
		for _, d := range []Dir{Sense, Antisense} {
			edges := v.EdgesIn(d)
			if len(edges) < 2 {
				continue
			}
			sort.SliceStable(edges, func(i, j int) bool { return edges[i].Overlap > edges[j].Overlap })
			if edges[0].Overlap-edges[1].Overlap < minDiff {
				continue
			}
			for _, e := range edges[1:] {
				g.RemoveEdge(e)
				n++
			}
		}
	}
	return n
}

// Trim removes dead-end vertices shorter than threshold, repeating for the
// given number of rounds. A negative threshold disables trimming. It returns
// the number of vertices removed.
func (g *Graph) Trim(rounds, threshold int) int {
	if threshold < 0 {
		return 0
	}
	total := 0
	for r := 0; r < rounds; r++ {
		var tips []*Vertex
		for _, v := range g.Vertices() {
			sense, anti := len(v.EdgesIn(Sense)), len(v.EdgesIn(Antisense))
			if (sense == 0) != (anti == 0) && len(v.Seq) < threshold {
				tips = append(tips, v)
			}
		}
		for _, v := range tips {
			g.RemoveVertex(v)
		}
		total += len(tips)
		if len(tips) == 0 {
			break
		}
	}
	return total
}

// BubbleOpts bounds the divergence of branches merged by PopBubbles.
type BubbleOpts struct {
	// Divergence is the largest edit distance between branches, as a fraction
	// of branch length.
	Divergence float64
	// GapDivergence is the largest length difference between branches, as a
	// fraction of branch length.
	GapDivergence float64
	// MaxIndelLength is the largest absolute length difference between
	// branches.
	MaxIndelLength int
}

type branch struct {
	vertices []*Vertex
	// end is the vertex where the branch rejoins, entered through endDir.
	end    *Vertex
	endDir Dir
	seq    []byte
}

func (b *branch) reads() int {
	n := 0
	for _, v := range b.vertices {
		n += v.Reads
	}
	return n
}

// followBranch follows the unambiguous path that starts with e until it
// reaches a vertex with more than one edge on its entry end. It returns nil if
// the path forks or runs out first.
func followBranch(e *Edge) *branch {
	b := &branch{}
	cur, enter := e.To, e.Twin.Dir
	if len(cur.EdgesIn(enter)) != 1 {
		return nil
	}
	for len(b.vertices) < maxBubbleBranch {
		b.vertices = append(b.vertices, cur)
		out := cur.EdgesIn(enter.Flip())
		if len(out) != 1 {
			return nil
		}
		next, nextEnter := out[0].To, out[0].Twin.Dir
		if len(next.EdgesIn(nextEnter)) > 1 {
			b.end, b.endDir = next, nextEnter
			return b
		}
		cur, enter = next, nextEnter
	}
	return nil
}

// spell returns the bases of the branch vertices, entered through first. The
// first vertex is taken whole, so bases it shares with the anchor vertex are
// compared too and the spelling does not depend on the side walked from.
func (b *branch) spell(first *Edge) []byte {
	e := first
	seq := append([]byte(nil), oriented(e.To, e.Twin.Dir)...)
	last := b.vertices[len(b.vertices)-1]
	for e.To != last {
		e = e.To.EdgesIn(e.Twin.Dir.Flip())[0]
		seq = append(seq, oriented(e.To, e.Twin.Dir)[e.ToOverlap:]...)
	}
	return seq
}

// PopBubbles merges parallel branches that leave a vertex end and rejoin at
// the same vertex end when the branches are similar enough. The branch
// standing for the most reads is kept. It repeats for up to rounds rounds and
// returns the number of branches removed.
func (g *Graph) PopBubbles(rounds int, opts BubbleOpts) int {
	total := 0
	for r := 0; r < rounds; r++ {
		n := 0
		for _, v := range g.Vertices() {
			if v.deleted {
				continue
			}
			for _, d := range []Dir{Sense, Antisense} {
				n += g.popAt(v, d, opts)
			}
		}
		total += n
		if n == 0 {
			break
		}
	}
	return total
}

func (g *Graph) popAt(v *Vertex, d Dir, opts BubbleOpts) int {
	edges := v.EdgesIn(d)
	if len(edges) < 2 {
		return 0
	}
	type endKey struct {
		v *Vertex
		d Dir
	}
	groups := make(map[endKey][]*branch)
	var order []endKey
	for _, e := range edges {
		b := followBranch(e)
		if b == nil || b.end == v {
			continue
		}
		b.seq = b.spell(e)
		k := endKey{b.end, b.endDir}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], b)
	}
	removed := 0
	for _, k := range order {
		bs := groups[k]
		if len(bs) < 2 {
			continue
		}
		sort.SliceStable(bs, func(i, j int) bool {
			if ri, rj := bs[i].reads(), bs[j].reads(); ri != rj {
				return ri > rj
			}
			return bs[i].vertices[0].ID < bs[j].vertices[0].ID
		})
		keep := bs[0]
		for _, b := range bs[1:] {
			if !similar(keep.seq, b.seq, opts) {
				continue
			}
			vlog.VI(3).Infof("assembly: popping bubble branch at %s (%d vertices)", b.vertices[0].ID, len(b.vertices))
			for _, x := range b.vertices {
				keep.vertices[0].Reads += x.Reads
				g.RemoveVertex(x)
			}
			removed++
		}
	}
	return removed
}

// similar tells whether two branch spellings differ by few enough edits.
func similar(a, b []byte, opts BubbleOpts) bool {
	la, lb := len(a), len(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return true
	}
	gap := la - lb
	if gap < 0 {
		gap = -gap
	}
	if gap > opts.MaxIndelLength || float64(gap)/float64(longest) > opts.GapDivergence {
		return false
	}
	d := matchr.Levenshtein(string(a), string(b))
	return float64(d)/float64(longest) <= opts.Divergence
}
