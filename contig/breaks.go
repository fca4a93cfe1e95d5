// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package contig

import (
	"github.com/biogo/hts/sam"
	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/reads"
)

// junction is the stretch of contig, in 0-based coordinates, that a read must
// span to support a breakpoint. Lo == Hi for a junction between two bases.
type junction struct {
	lo, hi int
}

// FindBreaks derives the breakpoints implied by the alignment: one split
// breakpoint per pair of adjacent segments plus the global breakpoint for a
// split contig, or one indel breakpoint per insertion or deletion for a
// contig aligned in one piece.
func (c *AlignedContig) FindBreaks() {
	c.Breaks, c.Global, c.Indels = nil, nil, nil
	c.breakJunctions, c.indelJunctions = nil, nil
	if c.Skip {
		return
	}
	if c.IsSplit() {
		for i := 0; i+1 < len(c.Segments); i++ {
			b, j := c.pairBreak(c.Segments[i], c.Segments[i+1])
			c.Breaks = append(c.Breaks, b)
			c.breakJunctions = append(c.breakJunctions, j)
		}
		c.Global, c.globalJunction = c.pairBreak(c.Segments[0], c.Segments[len(c.Segments)-1])
		return
	}
	c.Indels, c.indelJunctions = c.indelBreaks(c.Segments[0])
}

// pairBreak joins the end of s1 to the start of s2, both in contig order.
func (c *AlignedContig) pairBreak(s1, s2 Segment) (*breakpoint.Breakpoint, junction) {
	b := &breakpoint.Breakpoint{
		Kind:     breakpoint.Split,
		ContigID: c.ID,
		Seq:      string(c.Seq),
		Mapq1:    s1.MapQ,
		Mapq2:    s2.MapQ,
		NumAlign: len(c.Segments),
	}
	if s1.Reverse {
		b.Gr1 = breakpoint.Point(s1.RefID, s1.Pos, '-')
	} else {
		b.Gr1 = breakpoint.Point(s1.RefID, s1.End, '+')
	}
	if s2.Reverse {
		b.Gr2 = breakpoint.Point(s2.RefID, s2.End, '+')
	} else {
		b.Gr2 = breakpoint.Point(s2.RefID, s2.Pos, '-')
	}
	j := junction{lo: s1.QEnd, hi: s2.QStart}
	switch {
	case s2.QStart > s1.QEnd:
		b.Insertion = string(c.Seq[s1.QEnd:s2.QStart])
	case s2.QStart < s1.QEnd:
		b.Homology = string(c.Seq[s2.QStart:s1.QEnd])
		j = junction{lo: s2.QStart, hi: s1.QEnd}
	}
	b.Order()
	return b, j
}

// indelBreaks walks the CIGAR of s. Deletions join the base before the
// deleted stretch to the base after it; insertions join the two reference
// bases around the inserted sequence.
func (c *AlignedContig) indelBreaks(s Segment) ([]*breakpoint.Breakpoint, []junction) {
	var (
		bs    []*breakpoint.Breakpoint
		js    []junction
		seq   = s.Rec.Seq.Expand()
		n     = len(c.Seq)
		pos   = s.Pos
		qseq  int // index into seq
		qfull int // index into the query including hard clips
	)
	onContig := func(lo, hi int) junction {
		if s.Reverse {
			return junction{lo: n - hi, hi: n - lo}
		}
		return junction{lo: lo, hi: hi}
	}
	for _, op := range s.Rec.Cigar {
		l := op.Len()
		switch op.Type() {
		case sam.CigarDeletion:
			bs = append(bs, &breakpoint.Breakpoint{
				Kind: breakpoint.Indel,
				Gr1:  breakpoint.Point(s.RefID, pos-1, '+'),
				Gr2:  breakpoint.Point(s.RefID, pos+l, '-'),
				Span: l,
			})
			js = append(js, onContig(qfull, qfull))
		case sam.CigarInsertion:
			b := &breakpoint.Breakpoint{
				Kind: breakpoint.Indel,
				Gr1:  breakpoint.Point(s.RefID, pos-1, '+'),
				Gr2:  breakpoint.Point(s.RefID, pos, '-'),
				Span: l,
			}
			if qseq+l <= len(seq) {
				b.Insertion = string(seq[qseq : qseq+l])
			}
			bs = append(bs, b)
			js = append(js, onContig(qfull, qfull+l))
		}
		cons := op.Type().Consumes()
		pos += l * cons.Reference
		if op.Type() == sam.CigarHardClipped {
			qfull += l
		} else {
			qseq += l * cons.Query
			qfull += l * cons.Query
		}
	}
	for _, b := range bs {
		b.ContigID = c.ID
		b.Seq = string(c.Seq)
		b.Mapq1, b.Mapq2 = s.MapQ, s.MapQ
		b.NumAlign = 1
	}
	return bs, js
}

// indelKey returns the read signature matching an indel breakpoint.
func indelKey(b *breakpoint.Breakpoint) string {
	typ := byte('D')
	if b.Gr2.Pos1 == b.Gr1.Pos1+1 {
		typ = 'I'
	}
	return reads.IndelKey(b.Gr1.RefID, b.Gr1.Pos1+1, b.Span, typ)
}

// MatchCigars counts the input reads carrying each indel of the contig and
// flags indels also seen in the normal, or seen in at least
// opts.MaxCigarRecurrence reads, as artifacts.
func (c *AlignedContig) MatchCigars(tumor, normal reads.CigarMap, opts Opts) {
	for _, b := range c.Indels {
		key := indelKey(b)
		b.CigarHitsT = tumor[key]
		b.CigarHitsN = normal[key]
		b.Artifact = b.CigarHitsN > 0 ||
			(opts.MaxCigarRecurrence > 0 && b.CigarHitsT+b.CigarHitsN >= opts.MaxCigarRecurrence)
	}
}

// Calls returns the breakpoints of c to be reconciled: the global breakpoint
// of a split contig, or its indels. A contig that no read realigned to makes
// no calls.
func (c *AlignedContig) Calls() []*breakpoint.Breakpoint {
	if !c.Supported() {
		return nil
	}
	if c.Global != nil {
		return []*breakpoint.Breakpoint{c.Global}
	}
	return c.Indels
}

// Dedup marks as skipped every contig whose global breakpoint is also reported
// by a better contig. Contigs with more split support win, then those with
// the higher minimum mapping quality, then the lower ID.
func Dedup(cs []*AlignedContig) int {
	best := make(map[string]*AlignedContig)
	better := func(a, b *AlignedContig) bool {
		if sa, sb := a.Global.SplitSupport(), b.Global.SplitSupport(); sa != sb {
			return sa > sb
		}
		if ma, mb := a.MinMapq(), b.MinMapq(); ma != mb {
			return ma > mb
		}
		return a.ID < b.ID
	}
	for _, c := range cs {
		if c.Skip || c.Global == nil {
			continue
		}
		key := c.Global.Key()
		if cur, ok := best[key]; !ok || better(c, cur) {
			best[key] = c
		}
	}
	n := 0
	for _, c := range cs {
		if c.Skip || c.Global == nil {
			continue
		}
		if best[c.Global.Key()] != c {
			c.Skip = true
			n++
		}
	}
	return n
}
