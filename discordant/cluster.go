// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package discordant groups read pairs with anomalous insert size or
// cross-reference mates into clusters that share a locus on both mate sides.
package discordant

import (
	"fmt"
	"sort"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/sv/region"
)

// Opts configures clustering.
type Opts struct {
	// Pad is the largest gap between consecutive reads of one cluster.
	Pad int `mapstructure:"pad"`
	// MinPerCluster is the smallest number of pairs kept as a cluster.
	MinPerCluster int `mapstructure:"min_per_cluster"`
	// MinInsertSize is the smallest |insert size| of a discordant pair on one
	// reference.
	MinInsertSize int `mapstructure:"min_insert_size"`
}

// DefaultOpts are the clustering parameters used by the caller.
var DefaultOpts = Opts{Pad: 400, MinPerCluster: 2, MinInsertSize: 800}

// Cluster is a set of discordant pairs whose reads share one locus and whose
// mates share another.
type Cluster struct {
	ID string
	// Reg1 spans the clustered reads, Reg2 their mates. Strand is '+' or '-'.
	Reg1, Reg2 region.Region
	// Reads and Mates are keyed by PairID.
	Reads, Mates map[string]*reads.Read
	// TCount and NCount are the tumor and normal pair counts.
	TCount, NCount int
	// ReadsMapq and MatesMapq are the mean mapping qualities of each side.
	ReadsMapq, MatesMapq float64
	// Contig names the contig this cluster was attached to, if any.
	Contig string
}

// Support returns the total number of pairs in c.
func (c *Cluster) Support() int { return c.TCount + c.NCount }

// sweep splits reads, already sorted by the swept coordinate, into runs where
// consecutive reads of the same strand partition are at most pad apart on the
// same reference. Runs shorter than min are dropped.
func sweep(rs []*reads.Read, pad, min int, key func(*reads.Read) (refID, pos int), reverse func(*reads.Read) bool) (fwd, rev [][]*reads.Read) {
	var cur [2][]*reads.Read
	var out [2][][]*reads.Read
	for _, r := range rs {
		s := 0
		if reverse(r) {
			s = 1
		}
		if n := len(cur[s]); n > 0 {
			lastRef, lastPos := key(cur[s][n-1])
			ref, pos := key(r)
			if ref == lastRef && pos-lastPos <= pad {
				cur[s] = append(cur[s], r)
				continue
			}
			if n >= min {
				out[s] = append(out[s], cur[s])
			}
		}
		cur[s] = []*reads.Read{r}
	}
	for s := range cur {
		if len(cur[s]) >= min {
			out[s] = append(out[s], cur[s])
		}
	}
	return out[0], out[1]
}

func readPos(r *reads.Read) (int, int) { return r.RefID, r.Pos }
func matePos(r *reads.Read) (int, int) { return r.MateRefID, r.MatePos }
func readRev(r *reads.Read) bool      { return r.Reverse }
func mateRev(r *reads.Read) bool      { return r.MateReverse }

// sortByMate orders reads by (mate reference, mate position, PairID).
func sortByMate(rs []*reads.Read) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.MateRefID != b.MateRefID {
			return a.MateRefID < b.MateRefID
		}
		if a.MatePos != b.MatePos {
			return a.MatePos < b.MatePos
		}
		return a.PairID < b.PairID
	})
}

// ClusterReads clusters the discordant pairs among rs. Only pairs with both
// reads present in rs are considered; each pair is clustered once, from the
// read that sorts first. The result is keyed by cluster ID and does not
// depend on the order of rs.
func ClusterReads(rs []*reads.Read, opts Opts) map[string]*Cluster {
	byFrag := make(map[string][]*reads.Read, len(rs))
	for _, r := range rs {
		byFrag[r.FragmentID] = append(byFrag[r.FragmentID], r)
	}
	var paired []*reads.Read
	for _, r := range rs {
		if len(byFrag[r.FragmentID]) == 2 {
			paired = append(paired, r)
		}
	}
	reads.SortByPosition(paired)

	seen := make(map[string]bool, len(paired)/2)
	var anchors []*reads.Read
	for _, r := range paired {
		if !r.Discordant(opts.MinInsertSize) || seen[r.FragmentID] {
			continue
		}
		seen[r.FragmentID] = true
		anchors = append(anchors, r)
	}

	fwd, rev := sweep(anchors, opts.Pad, opts.MinPerCluster, readPos, readRev)
	var groups [][]*reads.Read
	for _, first := range [][][]*reads.Read{fwd, rev} {
		for _, g := range first {
			sortByMate(g)
			mf, mr := sweep(g, opts.Pad, opts.MinPerCluster, matePos, mateRev)
			groups = append(groups, mf...)
			groups = append(groups, mr...)
		}
	}

	out := make(map[string]*Cluster, len(groups))
	for _, g := range groups {
		c := newCluster(g, byFrag)
		out[c.ID] = c
	}
	return out
}

func strand(reverse bool) byte {
	if reverse {
		return '-'
	}
	return '+'
}

func newCluster(g []*reads.Read, byFrag map[string][]*reads.Read) *Cluster {
	c := &Cluster{
		Reads: make(map[string]*reads.Read, len(g)),
		Mates: make(map[string]*reads.Read, len(g)),
	}
	c.Reg1 = region.Region{RefID: g[0].RefID, Pos1: g[0].Pos, Pos2: g[0].End, Strand: strand(g[0].Reverse)}
	c.Reg2 = region.Region{RefID: g[0].MateRefID, Pos1: g[0].MatePos, Pos2: g[0].MatePos, Strand: strand(g[0].MateReverse)}
	names := make([]string, 0, len(g))
	var rq, mq int
	for _, r := range g {
		c.Reads[r.PairID] = r
		names = append(names, r.FragmentID)
		rq += r.MapQ
		if r.Pos < c.Reg1.Pos1 {
			c.Reg1.Pos1 = r.Pos
		}
		if r.End > c.Reg1.Pos2 {
			c.Reg1.Pos2 = r.End
		}
		if r.Cohort == reads.Tumor {
			c.TCount++
		} else {
			c.NCount++
		}
		var mate *reads.Read
		for _, m := range byFrag[r.FragmentID] {
			if m != r {
				mate = m
			}
		}
		mateEnd := r.MatePos
		if mate != nil {
			c.Mates[mate.PairID] = mate
			mq += mate.MapQ
			mateEnd = mate.End
		}
		if r.MatePos < c.Reg2.Pos1 {
			c.Reg2.Pos1 = r.MatePos
		}
		if mateEnd > c.Reg2.Pos2 {
			c.Reg2.Pos2 = mateEnd
		}
	}
	c.ReadsMapq = float64(rq) / float64(len(g))
	if len(c.Mates) > 0 {
		c.MatesMapq = float64(mq) / float64(len(c.Mates))
	}
	sort.Strings(names)
	h := seahash.Sum64([]byte(strings.Join(names, ",")))
	c.ID = fmt.Sprintf("%d_%d_%d_%d_%08x", c.Reg1.RefID, c.Reg1.Pos1, c.Reg2.RefID, c.Reg2.Pos1, uint32(h))
	return c
}

// Sorted returns the clusters of m ordered by their regions, then ID.
func Sorted(m map[string]*Cluster) []*Cluster {
	out := make([]*Cluster, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Reg1 != b.Reg1 {
			return a.Reg1.Less(b.Reg1)
		}
		if a.Reg2 != b.Reg2 {
			return a.Reg2.Less(b.Reg2)
		}
		return a.ID < b.ID
	})
	return out
}
