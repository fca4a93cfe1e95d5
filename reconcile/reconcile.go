// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package reconcile merges assembly evidence with discordant-pair evidence
// into the final set of breakpoints of a region.
package reconcile

import (
	"sort"

	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/contig"
	"github.com/grailbio/sv/discordant"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/sv/region"
)

// DefaultPad is the margin added around each contig breakpoint end before
// matching it against cluster regions.
const DefaultPad = 400

// matches reports whether the padded breakpoint ends overlap the two cluster
// regions, in either orientation.
func matches(bp1, bp2 region.Region, c *discordant.Cluster) bool {
	straight := bp1.Overlap(c.Reg1) > 0 && bp2.Overlap(c.Reg2) > 0
	crossed := bp1.Overlap(c.Reg2) > 0 && bp2.Overlap(c.Reg1) > 0
	return straight || crossed
}

// better reports whether cluster a carries stronger evidence than b: more
// normal pairs first, then more tumor pairs.
func better(a, b *discordant.Cluster) bool {
	if a.NCount != b.NCount {
		return a.NCount > b.NCount
	}
	return a.TCount > b.TCount
}

// Combine attaches clusters to the supported split contigs whose global
// breakpoint they match. A cluster is tagged with the first contig it matches
// unless a later contig has strictly more split support. The global breakpoint
// of a contig keeps the strongest of its matching clusters. Contigs are visited in ID
// order and clusters in region order, so the outcome does not depend on the
// order of the inputs. Combine returns the number of attachments made.
func Combine(clusters map[string]*discordant.Cluster, contigs []*contig.AlignedContig, pad int) int {
	if len(clusters) == 0 || len(contigs) == 0 {
		return 0
	}
	sorted := discordant.Sorted(clusters)
	var tree region.TreeMap
	for _, c := range sorted {
		tree.Insert(c.Reg1, c)
		tree.Insert(c.Reg2, c)
	}
	cs := append([]*contig.AlignedContig(nil), contigs...)
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
	owner := make(map[string]*contig.AlignedContig)

	n := 0
	for _, ctg := range cs {
		g := ctg.Global
		if !ctg.Supported() || g == nil {
			continue
		}
		bp1, bp2 := g.Gr1.Pad(pad), g.Gr2.Pad(pad)
		seen := make(map[string]bool)
		var cands []*discordant.Cluster
		for _, q := range []region.Region{bp1, bp2} {
			_, vals := tree.Query(q)
			for _, v := range vals {
				c := v.(*discordant.Cluster)
				if !seen[c.ID] {
					seen[c.ID] = true
					cands = append(cands, c)
				}
			}
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })
		for _, c := range cands {
			if !matches(bp1, bp2, c) {
				continue
			}
			n++
			ctg.Clusters = append(ctg.Clusters, c)
			if prev, ok := owner[c.ID]; !ok || g.SplitSupport() > prev.Global.SplitSupport() {
				owner[c.ID] = ctg
				c.Contig = ctg.ID
			}
			if g.Cluster == nil || better(c, g.Cluster) {
				g.Cluster = c
			}
		}
	}
	return n
}

// PromoteClusters returns a discordant breakpoint, in region order, for every
// unattached cluster supported by more than one pair.
func PromoteClusters(clusters map[string]*discordant.Cluster) []*breakpoint.Breakpoint {
	var out []*breakpoint.Breakpoint
	for _, c := range discordant.Sorted(clusters) {
		if c.Contig == "" && c.Support() > 1 {
			out = append(out, breakpoint.FromCluster(c))
		}
	}
	return out
}

// Emit returns the breakpoints of contigs and promoted clusters that pass the
// emission filter, sorted.
func Emit(contigs []*contig.AlignedContig, promoted []*breakpoint.Breakpoint, opts breakpoint.MinimalOpts) []*breakpoint.Breakpoint {
	var out []*breakpoint.Breakpoint
	for _, c := range contigs {
		for _, b := range c.Calls() {
			if b.HasMinimal(opts) {
				out = append(out, b)
			}
		}
	}
	for _, b := range promoted {
		if b.HasMinimal(opts) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// SupportReads collects the reads backing the region's calls: the reads
// realigned to every contig carrying a call, and both reads of every cluster
// whose mean mapping quality is at least minMapq on each side.
func SupportReads(contigs []*contig.AlignedContig, clusters map[string]*discordant.Cluster, minMapq float64) reads.Set {
	s := make(reads.Set)
	for _, c := range contigs {
		if len(c.Calls()) == 0 {
			continue
		}
		for _, h := range c.Hits {
			s.Add(h.Read)
		}
	}
	for _, c := range clusters {
		if c.ReadsMapq < minMapq || c.MatesMapq < minMapq {
			continue
		}
		for _, r := range c.Reads {
			s.Add(r)
		}
		for _, r := range c.Mates {
			s.Add(r)
		}
	}
	return s
}
