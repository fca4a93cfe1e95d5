// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package discordant

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/sv/internal/samtest"
	"github.com/grailbio/sv/reads"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var (
	names   = []string{"chr1", "chr2", "chr3", "chr4", "chr5"}
	lengths = []int{100000, 100000, 100000, 100000, 100000}
)

// pair returns both reads of a pair.
func pair(h *sam.Header, cohort reads.Cohort, name, ref1 string, pos1 int, rev1 bool, ref2 string, pos2 int, rev2 bool, mapq byte) []*reads.Read {
	flags := func(first, rev, mrev bool) sam.Flags {
		f := sam.Paired
		if first {
			f |= sam.Read1
		} else {
			f |= sam.Read2
		}
		if rev {
			f |= sam.Reverse
		}
		if mrev {
			f |= sam.MateReverse
		}
		return f
	}
	tlen := 0
	if ref1 == ref2 {
		tlen = pos2 + 100 - pos1
	}
	seq := samtest.RandomSeq(100, uint64(pos1))
	r1 := samtest.Record(h, samtest.Rec{Name: name, Ref: ref1, Pos: pos1, MapQ: mapq, Cigar: "100M", Flags: flags(true, rev1, rev2),
		MateRef: ref2, MatePos: pos2, TempLen: tlen, Seq: seq})
	r2 := samtest.Record(h, samtest.Rec{Name: name, Ref: ref2, Pos: pos2, MapQ: mapq, Cigar: "100M", Flags: flags(false, rev2, rev1),
		MateRef: ref1, MatePos: pos1, TempLen: -tlen, Seq: seq})
	return []*reads.Read{reads.New(r1, cohort, 0), reads.New(r2, cohort, 0)}
}

func testReads() []*reads.Read {
	h := samtest.Header(names, lengths)
	var rs []*reads.Read
	for i := 0; i < 10; i++ {
		cohort := reads.Tumor
		if i >= 8 {
			cohort = reads.Normal
		}
		rs = append(rs, pair(h, cohort, fmt.Sprintf("tra%d", i), "chr2", 2000+10*i, false, "chr5", 9000+15*i, true, 60)...)
	}
	// Concordant pair.
	rs = append(rs, pair(h, reads.Tumor, "conc", "chr2", 2010, false, "chr2", 2300, true, 60)...)
	// A lone discordant pair elsewhere.
	rs = append(rs, pair(h, reads.Tumor, "lone", "chr3", 5000, false, "chr4", 100, false, 60)...)
	// A discordant read whose mate was not collected.
	rs = append(rs, pair(h, reads.Tumor, "orphan", "chr2", 2050, false, "chr5", 9050, true, 60)[0])
	return rs
}

func TestCluster(t *testing.T) {
	m := ClusterReads(testReads(), DefaultOpts)
	expect.EQ(t, len(m), 1)
	c := Sorted(m)[0]
	expect.EQ(t, c.TCount, 8)
	expect.EQ(t, c.NCount, 2)
	expect.EQ(t, c.Support(), 10)
	expect.EQ(t, c.Reg1.RefID, 1)
	expect.EQ(t, c.Reg1.Pos1, 2000)
	expect.EQ(t, c.Reg1.Pos2, 2189)
	expect.EQ(t, c.Reg1.Strand, byte('+'))
	expect.EQ(t, c.Reg2.RefID, 4)
	expect.EQ(t, c.Reg2.Pos1, 9000)
	expect.EQ(t, c.Reg2.Pos2, 9234)
	expect.EQ(t, c.Reg2.Strand, byte('-'))
	expect.EQ(t, len(c.Reads), 10)
	expect.EQ(t, len(c.Mates), 10)
	expect.EQ(t, c.ReadsMapq, 60.0)
	expect.EQ(t, c.MatesMapq, 60.0)
	for _, r := range c.Reads {
		expect.EQ(t, r.RefID, 1)
	}
}

func TestClusterShuffle(t *testing.T) {
	want := ClusterReads(testReads(), DefaultOpts)
	rnd := rand.New(rand.NewSource(0))
	for i := 0; i < 5; i++ {
		rs := testReads()
		rnd.Shuffle(len(rs), func(i, j int) { rs[i], rs[j] = rs[j], rs[i] })
		got := ClusterReads(rs, DefaultOpts)
		expect.EQ(t, len(got), len(want))
		for id, c := range want {
			g, ok := got[id]
			expect.True(t, ok)
			if ok {
				expect.EQ(t, len(g.Reads), len(c.Reads))
				expect.EQ(t, g.Reg1, c.Reg1)
				expect.EQ(t, g.Reg2, c.Reg2)
			}
		}
	}
}

func TestClusterSplitsByPadAndStrand(t *testing.T) {
	h := samtest.Header(names, lengths)
	var rs []*reads.Read
	// Two groups 1000bp apart on the read side.
	for i := 0; i < 3; i++ {
		rs = append(rs, pair(h, reads.Tumor, fmt.Sprintf("a%d", i), "chr1", 1000+50*i, false, "chr3", 500+50*i, false, 30)...)
		rs = append(rs, pair(h, reads.Tumor, fmt.Sprintf("b%d", i), "chr1", 2500+50*i, false, "chr3", 500+50*i, false, 30)...)
	}
	// Same read locus, mates on the opposite strand.
	for i := 0; i < 2; i++ {
		rs = append(rs, pair(h, reads.Normal, fmt.Sprintf("c%d", i), "chr1", 1010+50*i, false, "chr3", 520+50*i, true, 30)...)
	}
	m := ClusterReads(rs, DefaultOpts)
	expect.EQ(t, len(m), 3)
	var strands []string
	for _, c := range Sorted(m) {
		strands = append(strands, fmt.Sprintf("%d%c%c", c.Reg1.Pos1, c.Reg1.Strand, c.Reg2.Strand))
	}
	expect.EQ(t, strands, []string{"1000++", "1010+-", "2500++"})

	// Raising the minimum drops the two-pair cluster.
	opts := DefaultOpts
	opts.MinPerCluster = 3
	expect.EQ(t, len(ClusterReads(rs, opts)), 2)
}

func TestWrite(t *testing.T) {
	m := ClusterReads(testReads(), DefaultOpts)
	var buf bytes.Buffer
	w := tsv.NewWriter(&buf)
	for _, c := range Sorted(m) {
		assert.NoError(t, c.Write(w, names))
	}
	assert.NoError(t, w.Flush())
	fields := strings.Split(strings.TrimSpace(buf.String()), "\t")
	expect.EQ(t, len(fields), len(strings.Split(Header, "\t")))
	expect.EQ(t, fields[0], "chr2")
	expect.EQ(t, fields[4], "chr5")
	expect.EQ(t, fields[8], "8")
	expect.EQ(t, fields[9], "2")
	expect.EQ(t, fields[12], "x")
}
