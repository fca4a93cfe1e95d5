// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package overlap finds suffix-prefix overlaps and containments between the
// sequences of an fmindex.Index, in both orientations.
package overlap

import (
	"fmt"
	"sort"

	"github.com/grailbio/sv/fmindex"
	"github.com/grailbio/sv/reads"
)

// Opts configures an Engine.
type Opts struct {
	// MinOverlap is the shortest overlap reported.
	MinOverlap int
	// ErrorRate is the largest fraction of differences in an inexact overlap.
	ErrorRate float64
	// Exact restricts the search to error-free overlaps found by backward search.
	Exact bool
	// SeedLength and SeedStride control candidate generation in inexact mode.
	// Zero means MinOverlap.
	SeedLength int
	SeedStride int
}

// Kind tags a Block.
type Kind int

const (
	// Forward blocks were found with the query in its own orientation.
	Forward Kind = iota
	// Reverse blocks were found with the query reverse complemented.
	Reverse
	// Substring blocks record that the query is contained in the target.
	Substring
)

func (k Kind) String() string {
	switch k {
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	case Substring:
		return "substring"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Block is one overlap of a query with a target. Coordinates are half-open and
// refer to each sequence in its own forward orientation.
type Block struct {
	Kind        Kind
	Target      int
	QueryStart  int
	QueryEnd    int
	TargetStart int
	TargetEnd   int
	// RC is set when the matching segments are reverse complements.
	RC    bool
	Diffs int
}

// Len returns the length of the overlap on the query.
func (b Block) Len() int { return b.QueryEnd - b.QueryStart }

// Result is the outcome of overlapping one query.
type Result struct {
	// IsSubstring is set when the query is contained in another sequence, or
	// duplicates a sequence that appears earlier in the table.
	IsSubstring bool
	Blocks      []Block
}

// Engine computes overlaps against a built index. It is read-only and safe for
// concurrent use.
type Engine struct {
	idx  *fmindex.Index
	opts Opts
}

// NewEngine returns an engine over idx.
func NewEngine(idx *fmindex.Index, opts Opts) *Engine {
	if opts.SeedLength <= 0 {
		opts.SeedLength = opts.MinOverlap
	}
	if opts.SeedStride <= 0 {
		opts.SeedStride = opts.SeedLength
	}
	return &Engine{idx: idx, opts: opts}
}

// OverlapRead returns the overlaps of sequence i with every other sequence.
func (e *Engine) OverlapRead(i int) Result {
	var res Result
	if e.opts.Exact {
		e.exact(i, &res)
	} else {
		e.inexact(i, &res)
	}
	sort.Slice(res.Blocks, func(a, b int) bool {
		x, y := res.Blocks[a], res.Blocks[b]
		if x.Target != y.Target {
			return x.Target < y.Target
		}
		if x.Kind != y.Kind {
			return x.Kind < y.Kind
		}
		return x.QueryStart < y.QueryStart
	})
	return res
}

func (e *Engine) seq(i int) []byte { return e.idx.Table.Seqs[i].Seq }

// containedIn reports whether query q is considered a substring of target t.
// Identical sequences are resolved in favor of the earlier one.
func containedIn(q, t, qLen, tLen int) bool {
	return tLen > qLen || (tLen == qLen && t < q)
}

// prefixMatches calls fn for every j such that q[j:] equals a prefix of some
// sequence of b, for overlaps of at least minOverlap. At j == 0 every
// occurrence of the whole of q is passed instead.
func prefixMatches(b *fmindex.BWT, q []byte, minOverlap int, fn func(j int, p fmindex.Pos)) {
	iv := b.Full()
	for j := len(q) - 1; j >= 0; j-- {
		iv = b.Backward(iv, q[j])
		if iv.Empty() {
			return
		}
		if len(q)-j < minOverlap {
			continue
		}
		if j == 0 {
			for row := iv.Lo; row < iv.Hi; row++ {
				fn(0, b.Lookup(row))
			}
			return
		}
		if b.StartsInInterval(iv) == 0 {
			continue
		}
		for row := iv.Lo; row < iv.Hi; row++ {
			if p := b.Lookup(row); p.Off == 0 {
				fn(j, p)
			}
		}
	}
}

func (e *Engine) exact(qi int, res *Result) {
	a := e.seq(qi)
	n := len(a)
	tlen := func(t int32) int { return len(e.seq(int(t))) }

	// Query suffix against target prefix, both orientations, using the forward
	// index.
	for _, rc := range []bool{false, true} {
		q := a
		kind := Forward
		if rc {
			q = reads.RevComp(a)
			kind = Reverse
		}
		prefixMatches(e.idx.Fwd, q, e.opts.MinOverlap, func(j int, p fmindex.Pos) {
			t := int(p.Seq)
			if t == qi {
				return
			}
			m := tlen(p.Seq)
			if j == 0 {
				if containedIn(qi, t, n, m) {
					res.IsSubstring = true
					res.Blocks = append(res.Blocks, Block{
						Kind: Substring, Target: t, QueryStart: 0, QueryEnd: n,
						TargetStart: int(p.Off), TargetEnd: int(p.Off) + n, RC: rc,
					})
				}
				return
			}
			l := n - j
			if l >= m {
				return
			}
			b := Block{Kind: kind, Target: t, TargetStart: 0, TargetEnd: l, RC: rc}
			if rc {
				b.QueryStart, b.QueryEnd = 0, l
			} else {
				b.QueryStart, b.QueryEnd = j, n
			}
			res.Blocks = append(res.Blocks, b)
		})
	}

	// Query prefix against target suffix through the reverse index. The
	// reversed query finds same-strand matches; the complemented query finds
	// reverse-complement matches.
	comp := reads.Reverse(reads.RevComp(a))
	for _, rc := range []bool{false, true} {
		q := reads.Reverse(a)
		kind := Forward
		if rc {
			q = comp
			kind = Reverse
		}
		prefixMatches(e.idx.Rev, q, e.opts.MinOverlap, func(j int, p fmindex.Pos) {
			t := int(p.Seq)
			if t == qi || j == 0 || p.Off != 0 {
				return
			}
			m := tlen(p.Seq)
			l := n - j
			if l >= m {
				return
			}
			b := Block{Kind: kind, Target: t, TargetStart: m - l, TargetEnd: m, RC: rc}
			if rc {
				b.QueryStart, b.QueryEnd = j, n
			} else {
				b.QueryStart, b.QueryEnd = 0, l
			}
			res.Blocks = append(res.Blocks, b)
		})
	}
}
