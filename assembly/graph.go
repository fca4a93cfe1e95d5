// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package assembly builds a bidirected string graph from read overlaps,
// simplifies it and walks its unambiguous paths into contigs.
package assembly

import (
	"sort"

	"github.com/grailbio/sv/fmindex"
	"github.com/grailbio/sv/overlap"
	"github.com/grailbio/sv/reads"
)

// Dir names the end of a vertex an edge leaves from.
type Dir uint8

const (
	// Sense edges leave from the end (suffix) of the vertex sequence.
	Sense Dir = iota
	// Antisense edges leave from the start (prefix).
	Antisense
)

// Flip returns the opposite end.
func (d Dir) Flip() Dir { return 1 - d }

// Comp tells whether the two sequences joined by an edge are on the same
// strand.
type Comp uint8

const (
	// Same strand.
	Same Comp = iota
	// Reverse: one sequence is reverse complemented relative to the other.
	Reverse
)

// Vertex is one read, or one contig in later passes.
type Vertex struct {
	ID        string
	Seq       []byte
	Substring bool
	Edges     []*Edge
	// Reads is the number of input reads the vertex stands for.
	Reads   int
	deleted bool
}

// Edge joins end Dir of From to To. Every edge has a Twin going the other way.
type Edge struct {
	From, To *Vertex
	Dir      Dir
	Comp     Comp
	// Overlap is the length of the overlap on From; ToOverlap on To.
	Overlap   int
	ToOverlap int
	Twin      *Edge
}

// Extension returns the number of bases To adds beyond the overlap.
func (e *Edge) Extension() int { return len(e.To.Seq) - e.ToOverlap }

// EdgesIn returns the edges of v leaving from end d.
func (v *Vertex) EdgesIn(d Dir) []*Edge {
	var out []*Edge
	for _, e := range v.Edges {
		if e.Dir == d {
			out = append(out, e)
		}
	}
	return out
}

// Graph is a bidirected string graph.
type Graph struct {
	vertices []*Vertex
	byID     map[string]*Vertex
}

// NewGraph creates a graph with one vertex per sequence of tab and one edge
// pair per overlap in og. Edges whose overlap covers a whole sequence are
// containments and are skipped. maxEdges > 0 keeps only the longest maxEdges
// overlaps of each vertex.
func NewGraph(tab *fmindex.Table, og overlap.Graph, maxEdges int) *Graph {
	g := &Graph{byID: make(map[string]*Vertex, tab.Len())}
	for i, s := range tab.Seqs {
		v := g.AddVertex(s.ID, s.Seq)
		if i < len(og.Substring) {
			v.Substring = og.Substring[i]
		}
	}
	for _, oe := range og.Edges {
		if (oe.AStart == 0 && oe.AEnd == oe.ALen) || (oe.BStart == 0 && oe.BEnd == oe.BLen) {
			continue
		}
		g.AddOverlap(g.vertices[oe.A], g.vertices[oe.B], oe)
	}
	if maxEdges > 0 {
		g.limitEdges(maxEdges)
	}
	return g
}

// AddVertex adds a vertex standing for one read.
func (g *Graph) AddVertex(id string, seq []byte) *Vertex {
	if g.byID == nil {
		g.byID = make(map[string]*Vertex)
	}
	v := &Vertex{ID: id, Seq: seq, Reads: 1}
	g.vertices = append(g.vertices, v)
	g.byID[id] = v
	return v
}

// AddOverlap adds the edge pair for overlap oe between a and b.
func (g *Graph) AddOverlap(a, b *Vertex, oe overlap.Edge) {
	dirA, dirB := Antisense, Antisense
	if oe.AStart > 0 {
		dirA = Sense
	}
	if oe.BStart > 0 {
		dirB = Sense
	}
	comp := Same
	if oe.RC {
		comp = Reverse
	}
	ab := &Edge{From: a, To: b, Dir: dirA, Comp: comp, Overlap: oe.AEnd - oe.AStart, ToOverlap: oe.BEnd - oe.BStart}
	ba := &Edge{From: b, To: a, Dir: dirB, Comp: comp, Overlap: ab.ToOverlap, ToOverlap: ab.Overlap}
	ab.Twin, ba.Twin = ba, ab
	a.Edges = append(a.Edges, ab)
	b.Edges = append(b.Edges, ba)
}

// Vertices returns the live vertices sorted by ID.
func (g *Graph) Vertices() []*Vertex {
	var out []*Vertex
	for _, v := range g.vertices {
		if !v.deleted {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Vertex returns the vertex with the given ID, or nil.
func (g *Graph) Vertex(id string) *Vertex {
	v := g.byID[id]
	if v == nil || v.deleted {
		return nil
	}
	return v
}

// NumEdges returns the number of edge pairs.
func (g *Graph) NumEdges() int {
	n := 0
	for _, v := range g.vertices {
		if !v.deleted {
			n += len(v.Edges)
		}
	}
	return n / 2
}

// RemoveEdge deletes e and its twin.
func (g *Graph) RemoveEdge(e *Edge) {
	e.From.Edges = without(e.From.Edges, e)
	e.To.Edges = without(e.To.Edges, e.Twin)
}

// RemoveVertex deletes v and all its edges.
func (g *Graph) RemoveVertex(v *Vertex) {
	for _, e := range v.Edges {
		e.To.Edges = without(e.To.Edges, e.Twin)
	}
	v.Edges = nil
	v.deleted = true
}

func without(edges []*Edge, e *Edge) []*Edge {
	for i, x := range edges {
		if x == e {
			return append(edges[:i:i], edges[i+1:]...)
		}
	}
	return edges
}

func (g *Graph) limitEdges(maxEdges int) {
	for _, v := range g.vertices {
		if len(v.Edges) <= maxEdges {
			continue
		}
		sorted := append([]*Edge(nil), v.Edges...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Overlap > sorted[j].Overlap })
		for _, e := range sorted[maxEdges:] {
			g.RemoveEdge(e)
		}
	}
}

// oriented returns the sequence of v as read when entering through end d:
// entering through the start reads v forward.
func oriented(v *Vertex, enter Dir) []byte {
	if enter == Antisense {
		return v.Seq
	}
	return reads.RevComp(v.Seq)
}
