// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package reads converts aligned SAM records into the read representation used
// by clustering and assembly, applies the read selection rules and tracks
// indel signatures per cohort.
package reads

import (
	"fmt"

	"github.com/biogo/hts/sam"
)

// Cohort identifies the sample class a read came from.
type Cohort byte

const (
	// Tumor marks reads from the case sample(s).
	Tumor Cohort = 't'
	// Normal marks reads from the control sample(s).
	Normal Cohort = 'n'
)

func (c Cohort) String() string {
	switch c {
	case Tumor:
		return "tumor"
	case Normal:
		return "normal"
	}
	return fmt.Sprintf("cohort(%d)", byte(c))
}

// Read is one aligned sequencing read. Coordinates are 1-based.
type Read struct {
	Name   string
	PairID string
	// FragmentID is shared by the two reads of a pair.
	FragmentID  string
	Cohort      Cohort
	RefID       int
	Pos         int
	End         int
	MateRefID   int
	MatePos     int
	Reverse     bool
	MateReverse bool
	MateMapped  bool
	Mapped      bool
	MapQ        int
	InsertSize  int
	// Seq is the quality-trimmed read sequence, in reference orientation.
	Seq []byte
	// FromMateRegion is set for reads fetched because their mate lies in the
	// region being processed. Such reads are assigned to assembly windows by
	// their mate position.
	FromMateRegion bool
	Rec            *sam.Record
}

// New converts rec into a Read. sample distinguishes several inputs of the same
// cohort in the pair identifier.
func New(rec *sam.Record, cohort Cohort, sample int) *Read {
	r := &Read{
		Name:        rec.Name,
		Cohort:      cohort,
		RefID:       rec.Ref.ID(),
		Pos:         rec.Pos + 1,
		End:         rec.End(),
		MateRefID:   rec.MateRef.ID(),
		MatePos:     rec.MatePos + 1,
		Reverse:     rec.Flags&sam.Reverse != 0,
		MateReverse: rec.Flags&sam.MateReverse != 0,
		Mapped:      rec.Flags&sam.Unmapped == 0 && rec.Ref != nil,
		MateMapped:  rec.Flags&sam.Paired != 0 && rec.Flags&sam.MateUnmapped == 0 && rec.MateRef != nil,
		MapQ:        int(rec.MapQ),
		InsertSize:  rec.TempLen,
		Rec:         rec,
	}
	r.PairID = fmt.Sprintf("%c%03d_%d_%s", byte(cohort), sample, rec.Flags, rec.Name)
	r.FragmentID = fmt.Sprintf("%c%03d_%s", byte(cohort), sample, rec.Name)
	return r
}

// Anchor returns the position used to assign r to assembly windows.
func (r *Read) Anchor() (refID, pos int) {
	if r.FromMateRegion {
		return r.MateRefID, r.MatePos
	}
	return r.RefID, r.Pos
}

// Interchromosomal reports whether r and its mate map to different references.
func (r *Read) Interchromosomal() bool {
	return r.Mapped && r.MateMapped && r.RefID != r.MateRefID
}

// AbsInsertSize returns |InsertSize|.
func (r *Read) AbsInsertSize() int {
	if r.InsertSize < 0 {
		return -r.InsertSize
	}
	return r.InsertSize
}

// Discordant reports whether the pair is mapped with an insert size of at least
// minInsert, or across references.
func (r *Read) Discordant(minInsert int) bool {
	if !r.Mapped || !r.MateMapped {
		return false
	}
	return r.Interchromosomal() || r.AbsInsertSize() >= minInsert
}

// Clipped returns the number of soft-clipped bases in the alignment.
func (r *Read) Clipped() int {
	n := 0
	for _, op := range r.Rec.Cigar {
		if op.Type() == sam.CigarSoftClipped {
			n += op.Len()
		}
	}
	return n
}

// HardClipped reports whether the alignment contains a hard clip.
func (r *Read) HardClipped() bool {
	for _, op := range r.Rec.Cigar {
		if op.Type() == sam.CigarHardClipped {
			return true
		}
	}
	return false
}

// Indel returns the length of the longest insertion or deletion in the
// alignment, or zero.
func (r *Read) Indel() int {
	n := 0
	for _, op := range r.Rec.Cigar {
		if t := op.Type(); (t == sam.CigarInsertion || t == sam.CigarDeletion) && op.Len() > n {
			n = op.Len()
		}
	}
	return n
}

// Key returns a compact form of PairID used for set membership.
func (r *Read) Key() uint64 {
	return pairKey(r.PairID)
}
