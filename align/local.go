// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package align

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/biogo/hts/sam"
	"github.com/cespare/xxhash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/sv/reads"
)

// LocalOpts configures the in-process aligner.
type LocalOpts struct {
	// K is the seed length.
	K int
	// MaxOcc drops seeds occurring more often than this in the reference.
	MaxOcc int
	// MinSegment is the shortest aligned segment reported.
	MinSegment int
	// XDrop stops ungapped extension once the score falls this far below the
	// best seen.
	XDrop int
	// MaxIndel is the longest insertion or deletion joining two collinear
	// segments into one record.
	MaxIndel int
	// MaxSegments bounds the number of records per query.
	MaxSegments int
}

// DefaultLocalOpts are suitable for contigs of a few hundred bases.
var DefaultLocalOpts = LocalOpts{K: 15, MaxOcc: 64, MinSegment: 30, XDrop: 15, MaxIndel: 60, MaxSegments: 4}

const (
	matchScore    = 1
	mismatchScore = -3
	uniqueMapq    = 60
)

type refPos struct {
	id, pos int32
}

// Local is a seed-and-extend split aligner over a reference held in memory.
// It reports chimeric alignments the way bwa mem does: one primary record
// and supplementary records carrying SA tags. Collinear segments separated by
// a short insertion or deletion are joined into one gapped record.
type Local struct {
	ref    *Reference
	opts   LocalOpts
	header *sam.Header
	index  map[uint64][]refPos
}

// NewLocal indexes ref, which must have been loaded with sequences.
func NewLocal(ref *Reference, opts LocalOpts) (*Local, error) {
	if ref.Seqs == nil {
		return nil, errors.E(errors.Invalid, "align.NewLocal: reference has no sequences")
	}
	h, err := ref.Header()
	if err != nil {
		return nil, err
	}
	l := &Local{ref: ref, opts: opts, header: h, index: make(map[uint64][]refPos)}
	for id, seq := range ref.Seqs {
		for i := 0; i+opts.K <= len(seq); i++ {
			kmer := seq[i : i+opts.K]
			if !acgt(kmer) {
				continue
			}
			k := xxhash.Sum64(kmer)
			if len(l.index[k]) > opts.MaxOcc {
				continue
			}
			l.index[k] = append(l.index[k], refPos{int32(id), int32(i)})
		}
	}
	return l, nil
}

func acgt(s []byte) bool {
	for _, b := range s {
		switch b {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

// Header implements Aligner.
func (l *Local) Header() *sam.Header { return l.header }

// Align implements Aligner.
func (l *Local) Align(ctx context.Context, queries []Query) ([][]*sam.Record, error) {
	out := make([][]*sam.Record, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := l.alignOne(q)
		if err != nil {
			return nil, err
		}
		out[i] = recs
	}
	return out, nil
}

// piece is a (possibly gapped) local alignment of the query, in the
// coordinates of the query strand that aligns.
type piece struct {
	id           int
	rc           bool
	qStart, qEnd int
	rStart, rEnd int
	score, nm    int
	ops          []sam.CigarOp
	mapq         byte
	// fwdStart and fwdEnd locate the piece on the forward query.
	fwdStart, fwdEnd int
}

func (p *piece) fwd(n int) (int, int) {
	if p.rc {
		return n - p.qEnd, n - p.qStart
	}
	return p.qStart, p.qEnd
}

// extend grows the exact seed match q[qi:qi+k] = r[ri:ri+k] in both
// directions with an x-drop rule and returns the ungapped piece.
func (l *Local) extend(q, r []byte, qi, ri int) (qs, qe, rs, score, nm int) {
	k := l.opts.K
	score = k * matchScore
	// Right.
	best, bestLen, cur, curNM, bestNM := 0, 0, 0, 0, 0
	for j := 0; qi+k+j < len(q) && ri+k+j < len(r); j++ {
		if q[qi+k+j] == r[ri+k+j] {
			cur += matchScore
		} else {
			cur += mismatchScore
			curNM++
		}
		if cur > best {
			best, bestLen, bestNM = cur, j+1, curNM
		}
		if cur < best-l.opts.XDrop {
			break
		}
	}
	qe = qi + k + bestLen
	score += best
	nm = bestNM
	// Left.
	best, bestLen, cur, curNM, bestNM = 0, 0, 0, 0, 0
	for j := 1; qi-j >= 0 && ri-j >= 0; j++ {
		if q[qi-j] == r[ri-j] {
			cur += matchScore
		} else {
			cur += mismatchScore
			curNM++
		}
		if cur > best {
			best, bestLen, bestNM = cur, j, curNM
		}
		if cur < best-l.opts.XDrop {
			break
		}
	}
	qs = qi - bestLen
	rs = ri - bestLen
	score += best
	nm += bestNM
	return
}

// seedPieces finds the ungapped pieces of q, one strand.
func (l *Local) seedPieces(q []byte, rc bool) []*piece {
	k := l.opts.K
	type diag struct {
		id, d int
	}
	covered := make(map[diag]int)
	var pieces []*piece
	for i := 0; i+k <= len(q); i++ {
		kmer := q[i : i+k]
		hits := l.index[xxhash.Sum64(kmer)]
		if len(hits) == 0 || len(hits) > l.opts.MaxOcc {
			continue
		}
		for _, h := range hits {
			key := diag{int(h.id), int(h.pos) - i}
			if end, ok := covered[key]; ok && i < end {
				continue
			}
			r := l.ref.Seqs[h.id]
			qs, qe, rs, score, nm := l.extend(q, r, i, int(h.pos))
			covered[key] = qe
			if qe-qs < l.opts.MinSegment {
				continue
			}
			pieces = append(pieces, &piece{
				id: int(h.id), rc: rc,
				qStart: qs, qEnd: qe, rStart: rs, rEnd: rs + qe - qs,
				score: score, nm: nm,
				ops: []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, qe-qs)},
			})
		}
	}
	return pieces
}

// join merges b into a when b continues a on the same reference and strand
// across a short insertion or deletion. It reports whether it did.
func (l *Local) join(a, b *piece) bool {
	if a.id != b.id || a.rc != b.rc || b.qStart < a.qStart || b.qEnd <= a.qEnd || b.rEnd <= a.rEnd {
		return false
	}
	qgap, rgap := b.qStart-a.qEnd, b.rStart-a.rEnd
	// Trim any overlap off the start of b.
	trim := 0
	if -qgap > trim {
		trim = -qgap
	}
	if -rgap > trim {
		trim = -rgap
	}
	if trim >= b.qEnd-b.qStart {
		return false
	}
	qgap += trim
	rgap += trim
	if rgap < 0 || qgap < 0 {
		return false
	}
	m := qgap
	if rgap < m {
		m = rgap
	}
	indel := qgap - rgap
	if indel < 0 {
		indel = -indel
	}
	if indel > l.opts.MaxIndel || m > l.opts.MaxIndel {
		return false
	}
	ops := a.ops
	if m > 0 {
		ops = append(ops, sam.NewCigarOp(sam.CigarMatch, m))
	}
	switch {
	case qgap > rgap:
		ops = append(ops, sam.NewCigarOp(sam.CigarInsertion, qgap-rgap))
	case rgap > qgap:
		ops = append(ops, sam.NewCigarOp(sam.CigarDeletion, rgap-qgap))
	}
	ops = append(ops, sam.NewCigarOp(sam.CigarMatch, b.qEnd-b.qStart-trim))
	a.ops = mergeOps(ops)
	a.qEnd, a.rEnd = b.qEnd, b.rEnd
	a.score += b.score - trim*matchScore + m*mismatchScore - indel
	a.nm += b.nm + m + indel
	return true
}

// mergeOps coalesces adjacent operations of the same type.
func mergeOps(ops []sam.CigarOp) []sam.CigarOp {
	var out []sam.CigarOp
	for _, op := range ops {
		if n := len(out); n > 0 && out[n-1].Type() == op.Type() {
			out[n-1] = sam.NewCigarOp(op.Type(), out[n-1].Len()+op.Len())
			continue
		}
		out = append(out, op)
	}
	return out
}

// chain joins collinear pieces of one strand.
func (l *Local) chain(pieces []*piece) []*piece {
	sort.Slice(pieces, func(i, j int) bool {
		a, b := pieces[i], pieces[j]
		if a.id != b.id {
			return a.id < b.id
		}
		if a.qStart != b.qStart {
			return a.qStart < b.qStart
		}
		return a.rStart < b.rStart
	})
	var out []*piece
	for _, p := range pieces {
		joined := false
		for _, c := range out {
			if l.join(c, p) {
				joined = true
				break
			}
		}
		if !joined {
			out = append(out, p)
		}
	}
	return out
}

func overlapLen(s1, e1, s2, e2 int) int {
	if s2 > s1 {
		s1 = s2
	}
	if e2 < e1 {
		e1 = e2
	}
	if e1 < s1 {
		return 0
	}
	return e1 - s1
}

// pick selects the pieces to report: greedily by score, skipping any piece
// that mostly covers query bases already explained. Pieces that tie with a
// chosen piece on the same query bases make its placement ambiguous.
func (l *Local) pick(all []*piece, n int) []*piece {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		if all[i].id != all[j].id {
			return all[i].id < all[j].id
		}
		return all[i].rStart < all[j].rStart
	})
	for _, p := range all {
		p.fwdStart, p.fwdEnd = p.fwd(n)
	}
	var chosen []*piece
	for _, p := range all {
		if len(chosen) == l.opts.MaxSegments {
			break
		}
		redundant := false
		for _, c := range chosen {
			if 2*overlapLen(p.fwdStart, p.fwdEnd, c.fwdStart, c.fwdEnd) > p.fwdEnd-p.fwdStart {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		p.mapq = uniqueMapq
		for _, o := range all {
			if o == p || o.score < p.score {
				continue
			}
			if 10*overlapLen(p.fwdStart, p.fwdEnd, o.fwdStart, o.fwdEnd) >= 8*(p.fwdEnd-p.fwdStart) {
				p.mapq = 0
				break
			}
		}
		chosen = append(chosen, p)
	}
	return chosen
}

func (l *Local) alignOne(q Query) ([]*sam.Record, error) {
	n := len(q.Seq)
	seqs := [2][]byte{q.Seq, reads.RevComp(q.Seq)}
	var all []*piece
	for s, seq := range seqs {
		all = append(all, l.chain(l.seedPieces(seq, s == 1))...)
	}
	chosen := l.pick(all, n)
	if len(chosen) == 0 {
		rec, err := sam.NewRecord(q.Name, nil, nil, -1, -1, 0, 0, nil, q.Seq, nil, nil)
		if err != nil {
			return nil, err
		}
		rec.Flags = sam.Unmapped
		return []*sam.Record{rec}, nil
	}
	refs := l.header.Refs()
	cigars := make([]sam.Cigar, len(chosen))
	for i, p := range chosen {
		var c sam.Cigar
		if p.qStart > 0 {
			c = append(c, sam.NewCigarOp(sam.CigarSoftClipped, p.qStart))
		}
		c = append(c, p.ops...)
		if p.qEnd < n {
			c = append(c, sam.NewCigarOp(sam.CigarSoftClipped, n-p.qEnd))
		}
		cigars[i] = c
	}
	recs := make([]*sam.Record, len(chosen))
	for i, p := range chosen {
		seq := seqs[0]
		if p.rc {
			seq = seqs[1]
		}
		aux := []sam.Aux{mustAux("NM", int32(p.nm)), mustAux("AS", int32(p.score))}
		if len(chosen) > 1 {
			var sa []string
			for j, o := range chosen {
				if j == i {
					continue
				}
				strand := "+"
				if o.rc {
					strand = "-"
				}
				sa = append(sa, fmt.Sprintf("%s,%d,%s,%s,%d,%d;", refs[o.id].Name(), o.rStart+1, strand, cigars[j], o.mapq, o.nm))
			}
			aux = append(aux, mustAux("SA", strings.Join(sa, "")))
		}
		rec, err := sam.NewRecord(q.Name, refs[p.id], nil, p.rStart, -1, 0, p.mapq, cigars[i], seq, nil, aux)
		if err != nil {
			return nil, errors.E(err, "align.Local", q.Name)
		}
		if p.rc {
			rec.Flags |= sam.Reverse
		}
		if i > 0 {
			rec.Flags |= sam.Supplementary
		}
		recs[i] = rec
	}
	return recs, nil
}

func mustAux(tag string, v interface{}) sam.Aux {
	a, err := sam.NewAux(sam.NewTag(tag), v)
	if err != nil {
		panic(err)
	}
	return a
}
