// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package overlap

import (
	"github.com/antzucaro/matchr"
	"github.com/grailbio/sv/reads"
)

type candidate struct {
	target int
	shift  int
	rc     bool
}

// inexact generates candidates from exact seed hits and keeps those whose
// overlapping segments are within the error rate. Seeds laid out from the
// start of the query are searched in the forward index, seeds laid out from
// its end are searched reversed in the reverse index.
func (e *Engine) inexact(qi int, res *Result) {
	a := e.seq(qi)
	n := len(a)
	k := e.opts.SeedLength
	if k > n {
		k = n
	}
	starts := seedStarts(n, k, e.opts.SeedStride)
	seen := make(map[candidate]bool)
	for _, rc := range []bool{false, true} {
		q := a
		if rc {
			q = reads.RevComp(a)
		}
		add := func(t, shift int) {
			c := candidate{target: t, shift: shift, rc: rc}
			if t == qi || seen[c] {
				return
			}
			seen[c] = true
			e.verify(qi, q, c, res)
		}
		for _, s := range starts {
			iv := e.idx.Fwd.Find(q[s : s+k])
			for row := iv.Lo; row < iv.Hi; row++ {
				p := e.idx.Fwd.Lookup(row)
				add(int(p.Seq), s-int(p.Off))
			}
		}
		rq := reads.Reverse(q)
		for _, rs := range starts {
			iv := e.idx.Rev.Find(rq[rs : rs+k])
			for row := iv.Lo; row < iv.Hi; row++ {
				p := e.idx.Rev.Lookup(row)
				t := int(p.Seq)
				// The seed starts at n-rs-k in q and at m-Off-k in the target.
				add(t, (n-rs-k)-(len(e.seq(t))-int(p.Off)-k))
			}
		}
	}
}

// seedStarts returns seed offsets at the given stride, always including a seed
// that ends at the end of the sequence.
func seedStarts(n, k, stride int) []int {
	var starts []int
	for s := 0; s+k <= n; s += stride {
		starts = append(starts, s)
	}
	if last := n - k; len(starts) == 0 || starts[len(starts)-1] != last {
		starts = append(starts, last)
	}
	return starts
}

// verify checks the overlap implied by placing target c.target at offset
// c.shift of q (the query in the candidate's orientation).
func (e *Engine) verify(qi int, q []byte, c candidate, res *Result) {
	n := len(q)
	t := e.seq(c.target)
	m := len(t)
	qStart, qEnd := c.shift, c.shift+m
	if qStart < 0 {
		qStart = 0
	}
	if qEnd > n {
		qEnd = n
	}
	l := qEnd - qStart
	if l < e.opts.MinOverlap {
		return
	}
	tStart, tEnd := qStart-c.shift, qEnd-c.shift
	diffs := matchr.Levenshtein(string(q[qStart:qEnd]), string(t[tStart:tEnd]))
	if float64(diffs) > e.opts.ErrorRate*float64(l) {
		return
	}
	queryContained := qStart == 0 && qEnd == n
	targetContained := tStart == 0 && tEnd == m
	switch {
	case queryContained:
		if containedIn(qi, c.target, n, m) {
			res.IsSubstring = true
			res.Blocks = append(res.Blocks, Block{
				Kind: Substring, Target: c.target, QueryStart: 0, QueryEnd: n,
				TargetStart: tStart, TargetEnd: tEnd, RC: c.rc, Diffs: diffs,
			})
		}
		return
	case targetContained:
		return
	}
	b := Block{Kind: Forward, Target: c.target, TargetStart: tStart, TargetEnd: tEnd, Diffs: diffs}
	if c.rc {
		b.Kind = Reverse
		b.RC = true
		b.QueryStart, b.QueryEnd = n-qEnd, n-qStart
	} else {
		b.QueryStart, b.QueryEnd = qStart, qEnd
	}
	res.Blocks = append(res.Blocks, b)
}
