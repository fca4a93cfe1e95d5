// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package contig interprets the reference alignment of an assembled contig:
// it derives structural breakpoints from split alignments and indels from
// gapped ones, and measures their read support by realigning the assembled
// reads to the contig.
package contig

import (
	"sort"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/sv/align"
	"github.com/grailbio/sv/breakpoint"
	"github.com/grailbio/sv/discordant"
	"github.com/grailbio/sv/reads"
)

// Opts configures contig interpretation.
type Opts struct {
	// MinMapq is the least mapping quality of every segment of a contig with
	// a variant.
	MinMapq int `mapstructure:"min_mapq"`
	// MaxMapq is the least mapping quality of the best segment.
	MaxMapq int `mapstructure:"max_mapq"`
	// SplitBuffer is the number of bases a read must extend past each side of
	// a junction to count as split support.
	SplitBuffer int `mapstructure:"split_buffer"`
	// MaxCigarRecurrence flags an indel as an artifact when at least this many
	// input reads carry it. Zero disables the check.
	MaxCigarRecurrence int `mapstructure:"max_cigar_recurrence"`
}

// DefaultOpts are the thresholds used by the caller.
var DefaultOpts = Opts{MinMapq: 10, MaxMapq: 40, SplitBuffer: 5}

// Segment is one aligned piece of a contig.
type Segment struct {
	Rec *sam.Record
	// RefID, Pos and End give the 1-based, closed reference span.
	RefID, Pos, End int
	// QStart and QEnd locate the piece on the contig as assembled (0-based,
	// half-open), whatever strand it aligned on.
	QStart, QEnd int
	Reverse      bool
	MapQ         int
}

func newSegment(rec *sam.Record) Segment {
	var lead, aligned, trail int
	seenAligned := false
	for _, op := range rec.Cigar {
		switch op.Type() {
		case sam.CigarSoftClipped, sam.CigarHardClipped:
			if seenAligned {
				trail += op.Len()
			} else {
				lead += op.Len()
			}
		default:
			if op.Type().Consumes().Query == 1 {
				aligned += op.Len()
				seenAligned = true
			}
		}
	}
	s := Segment{
		Rec:     rec,
		RefID:   rec.Ref.ID(),
		Pos:     rec.Pos + 1,
		End:     rec.End(),
		Reverse: rec.Flags&sam.Reverse != 0,
		MapQ:    int(rec.MapQ),
		QStart:  lead,
		QEnd:    lead + aligned,
	}
	if s.Reverse {
		n := lead + aligned + trail
		s.QStart, s.QEnd = n-s.QEnd, n-s.QStart
	}
	return s
}

// ReadHit is a read realigned to the contig.
type ReadHit struct {
	Read *reads.Read
	Hit  align.Hit
}

// AlignedContig is a contig with its reference alignment and the evidence
// derived from it.
type AlignedContig struct {
	ID string
	// Seq is the contig sequence as assembled.
	Seq []byte
	// Records are the alignment records of the contig, mapped or not.
	Records  []*sam.Record
	Segments []Segment
	// Hits are the assembled reads that realigned to the contig.
	Hits []ReadHit
	// Breaks holds one split breakpoint per adjacent segment pair; Global
	// joins the outermost segments. Indels holds the indels of a single-segment
	// alignment.
	Breaks []*breakpoint.Breakpoint
	Global *breakpoint.Breakpoint
	Indels []*breakpoint.Breakpoint
	// Clusters are the discordant clusters attached during reconciliation.
	Clusters []*discordant.Cluster
	// Skip marks a contig excluded from further processing.
	Skip bool

	breakJunctions []junction
	globalJunction junction
	indelJunctions []junction
}

// New builds the aligned contig for the records of one query. Unmapped and
// secondary records are ignored; a contig without mapped segments is marked
// Skip.
func New(id string, seq []byte, recs []*sam.Record) *AlignedContig {
	c := &AlignedContig{ID: id, Seq: seq, Records: recs}
	for _, r := range recs {
		if r.Flags&(sam.Unmapped|sam.Secondary) != 0 || r.Ref == nil {
			continue
		}
		c.Segments = append(c.Segments, newSegment(r))
	}
	sort.SliceStable(c.Segments, func(i, j int) bool { return c.Segments[i].QStart < c.Segments[j].QStart })
	c.Skip = len(c.Segments) == 0
	return c
}

// IsSplit reports whether the contig aligned in more than one piece.
func (c *AlignedContig) IsSplit() bool { return len(c.Segments) > 1 }

// HasIndel reports whether a single-segment alignment contains an insertion
// or deletion.
func (c *AlignedContig) HasIndel() bool {
	if len(c.Segments) != 1 {
		return false
	}
	for _, op := range c.Segments[0].Rec.Cigar {
		if t := op.Type(); t == sam.CigarInsertion || t == sam.CigarDeletion {
			return true
		}
	}
	return false
}

// HasVariant reports whether the alignment implies any variant.
func (c *AlignedContig) HasVariant() bool { return c.IsSplit() || c.HasIndel() }

// MinMapq returns the lowest segment mapping quality.
func (c *AlignedContig) MinMapq() int {
	m := -1
	for _, s := range c.Segments {
		if m < 0 || s.MapQ < m {
			m = s.MapQ
		}
	}
	return m
}

// MaxMapq returns the highest segment mapping quality.
func (c *AlignedContig) MaxMapq() int {
	m := -1
	for _, s := range c.Segments {
		if s.MapQ > m {
			m = s.MapQ
		}
	}
	return m
}

// Qualifies reports whether the contig carries a variant in segments mapped
// confidently enough to be interpreted.
func (c *AlignedContig) Qualifies(opts Opts) bool {
	return !c.Skip && c.HasVariant() && c.MinMapq() >= opts.MinMapq && c.MaxMapq() >= opts.MaxMapq
}

// Supported reports whether c is live and at least one read realigned to it.
func (c *AlignedContig) Supported() bool { return !c.Skip && len(c.Hits) > 0 }

// Reads returns the reads realigned to the contig.
func (c *AlignedContig) Reads() []*reads.Read {
	out := make([]*reads.Read, len(c.Hits))
	for i, h := range c.Hits {
		out[i] = h.Read
	}
	return out
}
