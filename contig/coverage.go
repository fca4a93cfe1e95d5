// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package contig

import (
	"github.com/grailbio/sv/align"
	"github.com/grailbio/sv/reads"
)

// AlignReads realigns rs to the contig and keeps those that align.
func (c *AlignedContig) AlignReads(rs []*reads.Read) {
	c.Hits = c.Hits[:0]
	if len(c.Seq) == 0 {
		return
	}
	ra := align.NewRealigner(c.Seq)
	for _, r := range rs {
		if len(r.Seq) == 0 {
			continue
		}
		if hit, ok := ra.Align(r.Seq); ok {
			c.Hits = append(c.Hits, ReadHit{Read: r, Hit: hit})
		}
	}
}

// support counts the hits spanning j with buf bases to spare on both sides,
// and the hits covering it at all, per cohort.
func (c *AlignedContig) support(j junction, buf int) (tsplit, nsplit, tcov, ncov int) {
	for _, h := range c.Hits {
		split := h.Hit.Pos <= j.lo-buf && h.Hit.End >= j.hi+buf
		cov := h.Hit.Pos <= j.lo && h.Hit.End >= j.hi
		switch h.Read.Cohort {
		case reads.Tumor:
			if split {
				tsplit++
			}
			if cov {
				tcov++
			}
		case reads.Normal:
			if split {
				nsplit++
			}
			if cov {
				ncov++
			}
		}
	}
	return
}

// CountSupport fills the split and coverage counts of every breakpoint of c
// from its realigned reads. The global breakpoint of a multi-segment contig
// takes the weakest support of its constituent junctions.
func (c *AlignedContig) CountSupport(opts Opts) {
	for i, b := range c.Breaks {
		b.TSplit, b.NSplit, b.TCov, b.NCov = c.support(c.breakJunctions[i], opts.SplitBuffer)
	}
	for i, b := range c.Indels {
		b.TSplit, b.NSplit, b.TCov, b.NCov = c.support(c.indelJunctions[i], opts.SplitBuffer)
	}
	if c.Global == nil {
		return
	}
	g := c.Global
	if len(c.Breaks) == 1 {
		g.TSplit, g.NSplit, g.TCov, g.NCov = c.Breaks[0].TSplit, c.Breaks[0].NSplit, c.Breaks[0].TCov, c.Breaks[0].NCov
		return
	}
	for i, b := range c.Breaks {
		if i == 0 || b.SplitSupport() < g.SplitSupport() {
			g.TSplit, g.NSplit = b.TSplit, b.NSplit
		}
		if i == 0 || b.TCov+b.NCov < g.TCov+g.NCov {
			g.TCov, g.NCov = b.TCov, b.NCov
		}
	}
}
