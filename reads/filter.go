// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reads

import (
	"github.com/biogo/hts/sam"
	"github.com/grailbio/sv/biosimd"
)

// FilterOpts selects the reads that can carry structural-variant evidence.
type FilterOpts struct {
	// MinInsertSize is the absolute insert size at or above which a mapped pair
	// is discordant.
	MinInsertSize int `mapstructure:"min_insert_size"`
	// MinClip is the minimum number of soft-clipped bases for a read to be kept
	// as a split-read candidate.
	MinClip int `mapstructure:"min_clip"`
	// MinMapQ is the minimum mapping quality for clipped and indel reads.
	MinMapQ int `mapstructure:"min_mapq"`
	// MinPhred is the base quality below which read ends are trimmed.
	MinPhred int `mapstructure:"min_phred"`
	// KeepUnmapped keeps reads that are unmapped, or whose mate is, so that they
	// can take part in assembly.
	KeepUnmapped bool `mapstructure:"keep_unmapped"`
}

// DefaultFilterOpts mirrors the default read rules of the caller.
var DefaultFilterOpts = FilterOpts{
	MinInsertSize: 800,
	MinClip:       5,
	MinMapQ:       1,
	MinPhred:      4,
	KeepUnmapped:  true,
}

const missingQual = 0xff

// Trim returns the part of seq between the first and last base whose quality is
// at least minPhred. If qual is missing the whole sequence is returned.
func Trim(seq, qual []byte, minPhred int) []byte {
	if len(qual) != len(seq) || len(qual) == 0 || qual[0] == missingQual {
		return seq
	}
	start := 0
	for start < len(qual) && int(qual[start]) < minPhred {
		start++
	}
	end := len(qual)
	for end > start && int(qual[end-1]) < minPhred {
		end--
	}
	return seq[start:end]
}

// Keep reports whether rec is usable at all: primary, not a duplicate, passing
// vendor QC and without hard clips.
func Keep(rec *sam.Record) bool {
	const reject = sam.Duplicate | sam.QCFail | sam.Secondary | sam.Supplementary
	if rec.Flags&reject != 0 {
		return false
	}
	for _, op := range rec.Cigar {
		if op.Type() == sam.CigarHardClipped {
			return false
		}
	}
	return true
}

// Select converts rec and applies the read rules: the read is kept if it is
// discordant, clipped, carries an indel or is (mate-)unmapped. It returns nil
// for rejected reads. The returned read has its trimmed sequence set.
func (o FilterOpts) Select(rec *sam.Record, cohort Cohort, sample int) *Read {
	if !Keep(rec) {
		return nil
	}
	r := New(rec, cohort, sample)
	keep := false
	switch {
	case r.Discordant(o.MinInsertSize):
		keep = true
	case o.KeepUnmapped && (!r.Mapped || (rec.Flags&sam.Paired != 0 && !r.MateMapped)):
		keep = true
	case r.MapQ >= o.MinMapQ && r.Clipped() >= o.MinClip:
		keep = true
	case r.MapQ >= o.MinMapQ && r.Indel() > 0:
		keep = true
	}
	if !keep {
		return nil
	}
	r.Seq = Trim(rec.Seq.Expand(), rec.Qual, o.MinPhred)
	if len(r.Seq) == 0 {
		return nil
	}
	biosimd.CleanASCIISeqInplace(r.Seq)
	return r
}
