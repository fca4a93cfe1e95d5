// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"strconv"

	"github.com/grailbio/base/tsv"
)

// Header is the column header of the breakpoint stream.
const Header = "chr1\tpos1\tstrand1\tchr2\tpos2\tstrand2\ttype\tspan\tmapq1\tmapq2\t" +
	"tsplit\tnsplit\ttcov\tncov\ttdisc\tndisc\thomology\tinsertion\t" +
	"cigar_t\tcigar_n\tnum_align\tartifact\tcontig\tcluster\tseq"

func refName(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return strconv.Itoa(id)
}

func orX(s string) string {
	if s == "" {
		return "x"
	}
	return s
}

// Write appends b as one line of the breakpoint stream. names maps reference
// IDs to names.
func (b *Breakpoint) Write(w *tsv.Writer, names []string) error {
	w.WriteString(refName(names, b.Gr1.RefID))
	w.WriteInt64(int64(b.Gr1.Pos1))
	w.WriteByte(b.Gr1.Strand)
	w.WriteString(refName(names, b.Gr2.RefID))
	w.WriteInt64(int64(b.Gr2.Pos1))
	w.WriteByte(b.Gr2.Strand)
	w.WriteString(b.Kind.String())
	w.WriteInt64(int64(b.Span))
	w.WriteInt64(int64(b.Mapq1))
	w.WriteInt64(int64(b.Mapq2))
	w.WriteInt64(int64(b.TSplit))
	w.WriteInt64(int64(b.NSplit))
	w.WriteInt64(int64(b.TCov))
	w.WriteInt64(int64(b.NCov))
	t, n := b.DiscordantSupport()
	w.WriteInt64(int64(t))
	w.WriteInt64(int64(n))
	w.WriteString(orX(b.Homology))
	w.WriteString(orX(b.Insertion))
	w.WriteInt64(int64(b.CigarHitsT))
	w.WriteInt64(int64(b.CigarHitsN))
	w.WriteInt64(int64(b.NumAlign))
	if b.Artifact {
		w.WriteString("1")
	} else {
		w.WriteString("0")
	}
	w.WriteString(orX(b.ContigID))
	cluster := ""
	if b.Cluster != nil {
		cluster = b.Cluster.ID
	}
	w.WriteString(orX(cluster))
	w.WriteString(orX(b.Seq))
	return w.EndLine()
}
