// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package fmindex

import (
	"bytes"
	"sort"

	"github.com/grailbio/base/errors"
)

// Terminator ends every sequence in the transform. It sorts before all bases.
const Terminator = '$'

const (
	nSymbols       = 6
	checkpointBits = 6
	checkpointMask = 1<<checkpointBits - 1
)

// symbols in lexicographic order.
var symbols = [nSymbols]byte{Terminator, 'A', 'C', 'G', 'N', 'T'}

var rank [256]int8

func init() {
	for i := range rank {
		rank[i] = -1
	}
	for i, b := range symbols {
		rank[b] = int8(i)
	}
}

// Pos locates a suffix: sequence index and offset within the sequence. An
// offset equal to the sequence length denotes the terminator.
type Pos struct {
	Seq int32
	Off int32
}

// Interval is a half-open range [Lo, Hi) of suffix-array rows.
type Interval struct {
	Lo, Hi int
}

// Size returns the number of rows in the interval.
func (iv Interval) Size() int { return iv.Hi - iv.Lo }

// Empty reports whether the interval has no rows.
func (iv Interval) Empty() bool { return iv.Hi <= iv.Lo }

// BWT is the Burrows-Wheeler transform of a set of terminated sequences,
// with its suffix array and occurrence tables.
type BWT struct {
	// SA[i] is the suffix at row i.
	SA []Pos
	// L[i] is the symbol preceding suffix SA[i]; Terminator for suffixes that
	// start a sequence.
	L []byte
	// c[r] is the number of rows whose suffix starts with a symbol of rank < r.
	c [nSymbols + 1]int
	// occ[k][r] counts symbol r in L[:k<<checkpointBits].
	occ     [][nSymbols]int32
	nString int
}

// NewBWT sorts all suffixes of the sequences in t and derives the transform.
// Suffixes are ordered lexicographically, with the terminator of sequence i
// sorting before that of sequence j when i < j.
func NewBWT(t *Table) (*BWT, error) {
	if t.Len() == 0 {
		return nil, errors.E(errors.Invalid, "fmindex: empty sequence table")
	}
	n := 0
	for _, s := range t.Seqs {
		n += len(s.Seq) + 1
	}
	sa := make([]Pos, 0, n)
	for i, s := range t.Seqs {
		for off := 0; off <= len(s.Seq); off++ {
			sa = append(sa, Pos{Seq: int32(i), Off: int32(off)})
		}
	}
	sort.Slice(sa, func(i, j int) bool {
		a, b := sa[i], sa[j]
		sufA := t.Seqs[a.Seq].Seq[a.Off:]
		sufB := t.Seqs[b.Seq].Seq[b.Off:]
		if c := bytes.Compare(sufA, sufB); c != 0 {
			// A proper prefix compares smaller, matching the terminator rule.
			return c < 0
		}
		return a.Seq < b.Seq
	})
	b := &BWT{SA: sa, L: make([]byte, n), nString: t.Len()}
	for i, p := range sa {
		if p.Off == 0 {
			b.L[i] = Terminator
		} else {
			b.L[i] = t.Seqs[p.Seq].Seq[p.Off-1]
		}
	}
	b.buildOcc()
	return b, nil
}

func (b *BWT) buildOcc() {
	b.occ = make([][nSymbols]int32, len(b.L)>>checkpointBits+1)
	var counts [nSymbols]int32
	for i, ch := range b.L {
		if i&checkpointMask == 0 {
			b.occ[i>>checkpointBits] = counts
		}
		counts[rank[ch]]++
	}
	if len(b.L)&checkpointMask == 0 {
		b.occ[len(b.L)>>checkpointBits] = counts
	}
	total := 0
	for r := 0; r < nSymbols; r++ {
		b.c[r] = total
		total += int(counts[r])
	}
	b.c[nSymbols] = total
}

// Len returns the number of rows.
func (b *BWT) Len() int { return len(b.L) }

// NumStrings returns the number of sequences in the transform.
func (b *BWT) NumStrings() int { return b.nString }

// Full returns the interval covering every row.
func (b *BWT) Full() Interval { return Interval{0, len(b.L)} }

// Occ returns the number of occurrences of sym in L[:i].
func (b *BWT) Occ(sym byte, i int) int {
	r := rank[sym]
	if r < 0 {
		return 0
	}
	k := i >> checkpointBits
	n := int(b.occ[k][r])
	for j := k << checkpointBits; j < i; j++ {
		if b.L[j] == sym {
			n++
		}
	}
	return n
}

// Backward extends the pattern of iv by one symbol on the left: if iv holds
// the rows prefixed by P, the result holds the rows prefixed by sym+P.
func (b *BWT) Backward(iv Interval, sym byte) Interval {
	r := rank[sym]
	if r < 0 || iv.Empty() {
		return Interval{}
	}
	return Interval{
		Lo: b.c[r] + b.Occ(sym, iv.Lo),
		Hi: b.c[r] + b.Occ(sym, iv.Hi),
	}
}

// Find returns the rows whose suffix starts with pattern.
func (b *BWT) Find(pattern []byte) Interval {
	iv := b.Full()
	for i := len(pattern) - 1; i >= 0 && !iv.Empty(); i-- {
		iv = b.Backward(iv, pattern[i])
	}
	return iv
}

// Lookup returns the suffix at row i.
func (b *BWT) Lookup(i int) Pos { return b.SA[i] }

// StartsInInterval returns the number of rows in iv whose suffix is a whole
// sequence, i.e. rows preceded by the terminator.
func (b *BWT) StartsInInterval(iv Interval) int {
	if iv.Empty() {
		return 0
	}
	return b.Occ(Terminator, iv.Hi) - b.Occ(Terminator, iv.Lo)
}
