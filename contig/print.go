// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package contig

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/grailbio/sv/reads"
)

// PrintAlignments writes a text picture of c: the contig, its aligned
// segments, the breakpoints and every realigned read, each placed at its
// contig offset.
func (c *AlignedContig) PrintAlignments(w io.Writer, names []string) error {
	var b strings.Builder
	ref := func(id int) string {
		if id >= 0 && id < len(names) {
			return names[id]
		}
		return fmt.Sprint(id)
	}
	fmt.Fprintf(&b, "%s len=%d segments=%d reads=%d\n", c.ID, len(c.Seq), len(c.Segments), len(c.Hits))
	for _, bp := range c.Calls() {
		fmt.Fprintf(&b, "%s %s:%d(%c)-%s:%d(%c) span=%d tsplit=%d nsplit=%d\n",
			bp.Kind, ref(bp.Gr1.RefID), bp.Gr1.Pos1, bp.Gr1.Strand,
			ref(bp.Gr2.RefID), bp.Gr2.Pos1, bp.Gr2.Strand, bp.Span, bp.TSplit, bp.NSplit)
	}
	fmt.Fprintf(&b, "%s\n", c.Seq)
	for _, s := range c.Segments {
		strand := '+'
		if s.Reverse {
			strand = '-'
		}
		fmt.Fprintf(&b, "%s%s %s:%d-%d(%c) mapq=%d cigar=%s\n",
			strings.Repeat(" ", s.QStart), strings.Repeat("=", s.QEnd-s.QStart),
			ref(s.RefID), s.Pos, s.End, strand, s.MapQ, s.Rec.Cigar)
	}
	hits := append([]ReadHit(nil), c.Hits...)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Hit.Pos-hits[i].Hit.QStart < hits[j].Hit.Pos-hits[j].Hit.QStart })
	for _, h := range hits {
		seq := h.Read.Seq
		if h.Hit.RC {
			seq = reads.RevComp(seq)
		}
		off := h.Hit.Pos - h.Hit.QStart
		if off < 0 {
			seq = seq[-off:]
			off = 0
		}
		fmt.Fprintf(&b, "%s%s %c %s cigar=%s\n", strings.Repeat(" ", off), seq, byte(h.Read.Cohort), h.Read.Name, h.Hit.Cigar)
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
