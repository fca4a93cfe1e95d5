// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package align

import (
	"github.com/biogo/biogo/align"
	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/hts/sam"
	"github.com/cespare/xxhash"
	"github.com/grailbio/sv/reads"
)

// Realignment scoring. Smith-Waterman uses a linear gap cost.
const (
	swMatch    = 2
	swMismatch = -4
	swGap      = -5
	realignK   = 16
)

// Hit is the local alignment of a read to a contig. Pos and End are 0-based,
// half-open contig coordinates; QStart and QEnd are in the coordinates of the
// read strand that aligned.
type Hit struct {
	Pos, End     int
	QStart, QEnd int
	RC           bool
	Score        int
	Cigar        sam.Cigar
}

// Realigner aligns reads to one contig: reads are placed by their shared
// k-mers with the contig and the placement is refined with Smith-Waterman.
type Realigner struct {
	// MinScoreFrac is the fraction of a perfect score a hit must reach.
	MinScoreFrac float64
	// Pad widens the contig window around the seeded placement.
	Pad int

	contig []byte
	index  map[uint64][]int
	table  align.SW
}

// NewRealigner indexes contig for realignment.
func NewRealigner(contig []byte) *Realigner {
	r := &Realigner{
		MinScoreFrac: 0.9,
		Pad:          20,
		contig:       swSanitize(contig),
		index:        make(map[uint64][]int),
		table:        swTable(),
	}
	for i := 0; i+realignK <= len(r.contig); i++ {
		k := xxhash.Sum64(r.contig[i : i+realignK])
		r.index[k] = append(r.index[k], i)
	}
	return r
}

func swTable() align.SW {
	alpha := alphabet.DNAgapped
	sw := make(align.SW, alpha.Len())
	for i := range sw {
		row := make([]int, alpha.Len())
		for j := range row {
			row[j] = swMismatch
		}
		row[i] = swMatch
		sw[i] = row
	}
	for i := range sw {
		sw[0][i] = swGap
		sw[i][0] = swGap
	}
	return sw
}

// swSanitize maps bases outside ACGT onto the gap letter, which scores as a
// gap against anything.
func swSanitize(s []byte) []byte {
	out := make([]byte, len(s))
	for i, b := range s {
		switch b {
		case 'A', 'C', 'G', 'T':
			out[i] = b
		case 'a', 'c', 'g', 't':
			out[i] = b - 'a' + 'A'
		default:
			out[i] = '-'
		}
	}
	return out
}

// diagonal returns the most supported contig offset of read position 0, and
// the number of seeds supporting it.
func (r *Realigner) diagonal(read []byte) (int, int) {
	votes := make(map[int]int)
	for i := 0; i+realignK <= len(read); i++ {
		for _, p := range r.index[xxhash.Sum64(read[i:i+realignK])] {
			votes[p-i]++
		}
	}
	best, n := 0, 0
	for d, v := range votes {
		if v > n || (v == n && d < best) {
			best, n = d, v
		}
	}
	return best, n
}

// Align places read on the contig. It returns false if neither strand of the
// read aligns well enough.
func (r *Realigner) Align(read []byte) (Hit, bool) {
	fwd := swSanitize(read)
	var (
		best Hit
		ok   bool
	)
	for _, rc := range []bool{false, true} {
		q := fwd
		if rc {
			q = reads.RevComp(fwd)
			for i, b := range q {
				if b == 'N' {
					q[i] = '-'
				}
			}
		}
		h, found := r.alignStrand(q)
		if !found {
			continue
		}
		h.RC = rc
		if !ok || h.Score > best.Score {
			best, ok = h, true
		}
	}
	if !ok || float64(best.Score) < r.MinScoreFrac*float64(swMatch*len(read)) {
		return Hit{}, false
	}
	return best, true
}

func (r *Realigner) alignStrand(q []byte) (Hit, bool) {
	d, n := r.diagonal(q)
	if n == 0 {
		return Hit{}, false
	}
	lo, hi := d-r.Pad, d+len(q)+r.Pad
	if lo < 0 {
		lo = 0
	}
	if hi > len(r.contig) {
		hi = len(r.contig)
	}
	if hi <= lo {
		return Hit{}, false
	}
	ref := linear.NewSeq("contig", alphabet.BytesToLetters(r.contig[lo:hi]), alphabet.DNAgapped)
	query := linear.NewSeq("read", alphabet.BytesToLetters(q), alphabet.DNAgapped)
	pairs, err := r.table.Align(ref, query)
	if err != nil || len(pairs) == 0 {
		return Hit{}, false
	}
	h := Hit{QStart: -1}
	var ops []sam.CigarOp
	for _, p := range pairs {
		f := p.Features()
		rs, re := f[0].Start(), f[0].End()
		qs, qe := f[1].Start(), f[1].End()
		if h.QStart < 0 {
			h.QStart, h.Pos = qs, lo+rs
		}
		h.QEnd, h.End = qe, lo+re
		switch {
		case re > rs && qe > qs:
			for i := 0; i < qe-qs; i++ {
				if r.contig[lo+rs+i] == q[qs+i] && q[qs+i] != '-' {
					h.Score += swMatch
				} else {
					h.Score += swMismatch
				}
			}
			ops = append(ops, sam.NewCigarOp(sam.CigarMatch, qe-qs))
		case qe > qs:
			h.Score += swGap * (qe - qs)
			ops = append(ops, sam.NewCigarOp(sam.CigarInsertion, qe-qs))
		case re > rs:
			h.Score += swGap * (re - rs)
			ops = append(ops, sam.NewCigarOp(sam.CigarDeletion, re-rs))
		}
	}
	if h.QStart > 0 {
		h.Cigar = append(h.Cigar, sam.NewCigarOp(sam.CigarSoftClipped, h.QStart))
	}
	h.Cigar = append(h.Cigar, mergeOps(ops)...)
	if h.QEnd < len(q) {
		h.Cigar = append(h.Cigar, sam.NewCigarOp(sam.CigarSoftClipped, len(q)-h.QEnd))
	}
	return h, true
}
