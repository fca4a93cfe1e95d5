// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package breakpoint defines the structural-variant call emitted by the
// caller, its emission filter and its text form.
package breakpoint

import (
	"fmt"
	"math"

	"github.com/grailbio/sv/discordant"
	"github.com/grailbio/sv/region"
)

// Kind is the evidence class a breakpoint was derived from.
type Kind uint8

const (
	// Split breakpoints join two aligned segments of one contig.
	Split Kind = iota
	// Indel breakpoints are insertions or deletions inside one contig alignment.
	Indel
	// Discordant breakpoints come from a discordant cluster alone.
	Discordant
)

func (k Kind) String() string {
	switch k {
	case Split:
		return "ASSMB"
	case Indel:
		return "INDEL"
	case Discordant:
		return "DSCRD"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Breakpoint is a pair of joined genomic positions with its evidence. Gr1 and
// Gr2 are single-base regions; their Strand tells which side of the position
// is retained ('+' for the bases at and before it). Gr1 sorts before Gr2.
type Breakpoint struct {
	Kind     Kind
	Gr1, Gr2 region.Region
	// ContigID and Seq identify the contig the call came from, if any.
	ContigID string
	Seq      string
	// Cluster is the discordant cluster supporting the call, if any.
	Cluster *discordant.Cluster
	// TSplit and NSplit count tumor and normal reads spanning the junction on
	// the contig; TCov and NCov count reads covering it.
	TSplit, NSplit int
	TCov, NCov     int
	Mapq1, Mapq2   int
	// Span is the distance between the positions, the indel length for
	// indels, or -1 across references.
	Span      int
	Homology  string
	Insertion string
	// CigarHitsT and CigarHitsN count input reads carrying the same indel.
	CigarHitsT, CigarHitsN int
	// NumAlign is the number of aligned segments of the contig.
	NumAlign int
	// Artifact marks indels judged to be systematic errors.
	Artifact bool
}

// Point returns a single-base region.
func Point(refID, pos int, strand byte) region.Region {
	return region.Region{RefID: refID, Pos1: pos, Pos2: pos, Strand: strand}
}

// Order swaps the ends of b, with their mapping qualities, so that Gr1 sorts
// first.
func (b *Breakpoint) Order() {
	if b.Gr2.Less(b.Gr1) {
		b.Gr1, b.Gr2 = b.Gr2, b.Gr1
		b.Mapq1, b.Mapq2 = b.Mapq2, b.Mapq1
	}
	b.Span = span(b.Gr1, b.Gr2)
}

func span(a, b region.Region) int {
	if a.RefID != b.RefID {
		return -1
	}
	d := b.Pos1 - a.Pos1
	if d < 0 {
		d = -d
	}
	return d
}

// FromCluster returns the breakpoint implied by a discordant cluster alone:
// each end sits at the edge of the cluster region that faces the junction.
func FromCluster(c *discordant.Cluster) *Breakpoint {
	end := func(r region.Region) region.Region {
		if r.Strand == '+' {
			return Point(r.RefID, r.Pos2, '+')
		}
		return Point(r.RefID, r.Pos1, '-')
	}
	b := &Breakpoint{
		Kind:    Discordant,
		Gr1:     end(c.Reg1),
		Gr2:     end(c.Reg2),
		Cluster: c,
		Mapq1:   int(math.Round(c.ReadsMapq)),
		Mapq2:   int(math.Round(c.MatesMapq)),
	}
	b.Order()
	return b
}

// Key identifies the joined positions, independent of the evidence.
func (b *Breakpoint) Key() string {
	return fmt.Sprintf("%d:%d%c_%d:%d%c_%d", b.Gr1.RefID, b.Gr1.Pos1, b.Gr1.Strand, b.Gr2.RefID, b.Gr2.Pos1, b.Gr2.Strand, b.Span)
}

// SplitSupport returns the number of split reads across both cohorts.
func (b *Breakpoint) SplitSupport() int { return b.TSplit + b.NSplit }

// DiscordantSupport returns the tumor and normal pair counts of the attached
// cluster.
func (b *Breakpoint) DiscordantSupport() (t, n int) {
	if b.Cluster == nil {
		return 0, 0
	}
	return b.Cluster.TCount, b.Cluster.NCount
}

// Less orders breakpoints by position, then kind and contig.
func (b *Breakpoint) Less(o *Breakpoint) bool {
	if b.Gr1 != o.Gr1 {
		return b.Gr1.Less(o.Gr1)
	}
	if b.Gr2 != o.Gr2 {
		return b.Gr2.Less(o.Gr2)
	}
	if b.Kind != o.Kind {
		return b.Kind < o.Kind
	}
	if b.ContigID != o.ContigID {
		return b.ContigID < o.ContigID
	}
	return b.Span < o.Span
}
