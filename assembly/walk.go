// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package assembly

import (
	"fmt"

	"github.com/grailbio/sv/reads"
)

// Contig is an assembled sequence.
type Contig struct {
	ID  string
	Seq []byte
	// Vertices lists the IDs of the graph vertices spelled by the contig.
	Vertices []string
	// Reads is the number of input reads the contig stands for.
	Reads int
}

// extend walks from v, leaving through end d, as long as the path is
// unambiguous, and returns the bases added past v in the walking orientation.
func extend(v *Vertex, d Dir, visited map[*Vertex]bool, c *Contig) []byte {
	var seq []byte
	cur, leave := v, d
	for {
		out := cur.EdgesIn(leave)
		if len(out) != 1 {
			return seq
		}
		e := out[0]
		next := e.To
		if visited[next] || len(next.EdgesIn(e.Twin.Dir)) != 1 {
			return seq
		}
		visited[next] = true
		c.Vertices = append(c.Vertices, next.ID)
		c.Reads += next.Reads
		seq = append(seq, oriented(next, e.Twin.Dir)[e.ToOverlap:]...)
		cur, leave = next, e.Twin.Dir.Flip()
	}
}

// Contigs spells every maximal unambiguous path of the graph. Vertices are
// visited in ID order so the result is deterministic. Contigs are named
// prefix + "C" + index.
func (g *Graph) Contigs(prefix string) []Contig {
	visited := make(map[*Vertex]bool)
	var out []Contig
	for _, v := range g.Vertices() {
		if visited[v] {
			continue
		}
		visited[v] = true
		c := Contig{Vertices: []string{v.ID}, Reads: v.Reads}
		right := extend(v, Sense, visited, &c)
		left := extend(v, Antisense, visited, &c)
		seq := make([]byte, 0, len(left)+len(v.Seq)+len(right))
		seq = append(seq, reads.RevComp(left)...)
		seq = append(seq, v.Seq...)
		seq = append(seq, right...)
		c.Seq = seq
		c.ID = fmt.Sprintf("%sC%d", prefix, len(out))
		out = append(out, c)
	}
	return out
}
